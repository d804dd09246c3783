// Package api provides the HTTP surface of the dataset query service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"dataframehub/internal/domain"
	"dataframehub/internal/service/query"
)

// maxBodyBytes bounds the size of a query model request body.
const maxBodyBytes = 1 << 20

// noDataMessage is returned with 404 when a /query request matches no rows.
const noDataMessage = "No data found for the given query"

// QueryService is the service surface the handlers depend on.
// Implemented by query.Service.
type QueryService interface {
	Query(ctx context.Context, organization, dataset string, q *domain.QueryModel) (*query.Execution, error)
	QueryDataset(ctx context.Context, key string, q *domain.QueryModel) (*query.Execution, error)
	Describe(ctx context.Context, organization, dataset string) (*domain.DatasetDescriptor, error)
	Datacard(ctx context.Context, organization, definition string) (map[string]any, error)
	History(ctx context.Context, filter domain.QueryHistoryFilter) ([]domain.QueryHistoryEntry, int64, error)
}

var _ QueryService = (*query.Service)(nil)

// Handler serves the query API.
type Handler struct {
	svc QueryService
}

// NewHandler creates a Handler backed by svc.
func NewHandler(svc QueryService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, httpStatusFromDomainError(err), err.Error())
}

// QueryDataset handles POST /query/{organization}/{dataset}. The body is a
// query model whose description is mandatory.
func (h *Handler) QueryDataset(w http.ResponseWriter, r *http.Request) {
	q, err := domain.DecodeQueryModel(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if strings.TrimSpace(q.Description) == "" {
		writeError(w, r, http.StatusBadRequest, "description is required")
		return
	}

	exec, err := h.svc.Query(r.Context(), chi.URLParam(r, "organization"), chi.URLParam(r, "dataset"), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(exec.Rows) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": noDataMessage})
		return
	}
	writeJSON(w, http.StatusOK, exec.Rows)
}

type queryDatasetRequest struct {
	Query   json.RawMessage `json:"query"`
	Dataset string          `json:"dataset"`
}

// QueryByKey handles POST /api/query_dataset with a body of
// {"query": <query model>, "dataset": "organization/dataset"}.
func (h *Handler) QueryByKey(w http.ResponseWriter, r *http.Request) {
	var req queryDatasetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, r, http.StatusBadRequest, "request body is required")
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	q := &domain.QueryModel{}
	if len(req.Query) > 0 && string(req.Query) != "null" {
		var err error
		if q, err = domain.ParseQueryModel(req.Query); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	exec, err := h.svc.QueryDataset(r.Context(), req.Dataset, q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows := exec.Rows
	if rows == nil {
		rows = []domain.Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetDatacard handles GET /api/datacard/{organization}/{definition}.
func (h *Handler) GetDatacard(w http.ResponseWriter, r *http.Request) {
	card, err := h.svc.Datacard(r.Context(), chi.URLParam(r, "organization"), chi.URLParam(r, "definition"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// GetDataset handles GET /api/datasets/{organization}/{dataset}.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	desc, err := h.svc.Describe(r.Context(), chi.URLParam(r, "organization"), chi.URLParam(r, "dataset"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

type historyEntry struct {
	ID           string  `json:"id"`
	Organization string  `json:"organization"`
	Dataset      string  `json:"dataset"`
	Principal    string  `json:"principal"`
	Description  *string `json:"description,omitempty"`
	CompiledSQL  *string `json:"compiled_sql,omitempty"`
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message,omitempty"`
	DurationMs   int64   `json:"duration_ms"`
	RowsReturned *int64  `json:"rows_returned,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

type historyPage struct {
	Entries       []historyEntry `json:"entries"`
	Total         int64          `json:"total"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// ListHistory handles GET /api/history. Optional query parameters:
// organization, dataset, status, max_results, page_token.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	filter := domain.QueryHistoryFilter{
		Organization: optionalParam(params.Get("organization")),
		Dataset:      optionalParam(params.Get("dataset")),
		Status:       optionalParam(strings.ToUpper(params.Get("status"))),
		Page:         domain.PageRequest{PageToken: params.Get("page_token")},
	}
	if v := params.Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "max_results must be an integer")
			return
		}
		filter.Page.MaxResults = n
	}

	entries, total, err := h.svc.History(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	page := historyPage{Entries: make([]historyEntry, 0, len(entries)), Total: total}
	for _, e := range entries {
		page.Entries = append(page.Entries, historyEntry{
			ID:           e.ID,
			Organization: e.Organization,
			Dataset:      e.Dataset,
			Principal:    e.Principal,
			Description:  e.Description,
			CompiledSQL:  e.CompiledSQL,
			Status:       e.Status,
			ErrorMessage: e.ErrorMessage,
			DurationMs:   e.DurationMs,
			RowsReturned: e.RowsReturned,
			CreatedAt:    e.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	page.NextPageToken = domain.NextPageToken(filter.Page.Offset(), filter.Page.Limit(), total)
	writeJSON(w, http.StatusOK, page)
}

func optionalParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
