package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dataframehub/internal/api"
	"dataframehub/internal/config"
	"dataframehub/internal/middleware"
	"dataframehub/internal/service/history"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.ListenAddr = addr
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer cancel()

			ln, err := net.Listen("tcp", a.cfg.ListenAddr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return a.serve(ctx, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides LISTEN_ADDR)")
	return cmd
}

// serve runs the HTTP API on ln until ctx is cancelled.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	cfg := a.cfg
	for _, w := range cfg.Warnings {
		a.logger.Warn(w)
	}

	st, err := a.openStack(ctx)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			a.logger.Warn("close query stack", "error", err)
		}
	}()

	validator, err := tokenValidator(ctx, cfg)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("auth: %w", err)
	}

	if cfg.HistoryRetention > 0 {
		pruner, err := history.NewPruner(st.history, cfg.HistoryRetention, cfg.HistoryPruneSchedule, a.logger)
		if err != nil {
			_ = ln.Close()
			return err
		}
		pruner.Start()
		defer pruner.Stop()
	}

	router := api.NewRouter(api.NewHandler(st.service), api.RouterOptions{
		Logger:         a.logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Validator:      validator,
		RateLimiter: middleware.NewRateLimiter(ctx, middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}),
		Sessions: st.manager.Len,
	})

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.QueryTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("HTTP API listening", "addr", ln.Addr().String(), "auth", cfg.AuthEnabled(), "datasets_dir", cfg.DatasetsDir)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// tokenValidator returns the configured bearer token validator, or nil when
// authentication is disabled. OIDC takes precedence over a shared secret.
func tokenValidator(ctx context.Context, cfg *config.Config) (middleware.TokenValidator, error) {
	switch {
	case cfg.OIDCIssuerURL != "" && cfg.OIDCJWKSURL != "":
		return middleware.NewOIDCValidatorFromJWKS(ctx, cfg.OIDCJWKSURL, cfg.OIDCIssuerURL, cfg.OIDCAudience), nil
	case cfg.OIDCIssuerURL != "":
		v, err := middleware.NewOIDCValidator(ctx, cfg.OIDCIssuerURL, cfg.OIDCAudience)
		if err != nil {
			return nil, err
		}
		return v, nil
	case cfg.JWTSecret != "":
		v, err := middleware.NewHS256Validator(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, nil
}
