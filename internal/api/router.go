package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"dataframehub/internal/middleware"
)

// RouterOptions configures the HTTP router.
type RouterOptions struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	// Validator enables bearer token authentication when set.
	Validator middleware.TokenValidator
	// RateLimiter is applied after authentication so principals share a bucket.
	RateLimiter *middleware.RateLimiter
	// Sessions reports the number of open backend sessions on /health.
	Sessions func() int
}

// NewRouter returns the HTTP handler serving h.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	started := time.Now()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(opts.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]interface{}{
			"status":         "ok",
			"uptime_seconds": int(time.Since(started).Seconds()),
		}
		if opts.Sessions != nil {
			body["sessions"] = opts.Sessions()
		}
		writeJSON(w, http.StatusOK, body)
	})

	r.Get("/openapi.json", ServeOpenAPI)

	r.Group(func(r chi.Router) {
		if opts.Validator != nil {
			r.Use(middleware.Authenticate(opts.Validator))
		}
		if opts.RateLimiter != nil {
			r.Use(opts.RateLimiter.Handler)
		}

		r.Post("/query/{organization}/{dataset}", h.QueryDataset)
		r.Route("/api", func(r chi.Router) {
			r.Post("/query_dataset", h.QueryByKey)
			r.Get("/datacard/{organization}/{definition}", h.GetDatacard)
			r.Get("/datasets/{organization}/{dataset}", h.GetDataset)
			r.Get("/history", h.ListHistory)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "route not found")
	})
	return r
}
