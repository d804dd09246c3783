package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dataframehub/internal/domain"
)

// Runner executes a query model against one dataset.
// Implemented by Manager.
type Runner interface {
	Run(ctx context.Context, q *domain.QueryModel, organization, dataset string) (*Execution, error)
}

var _ Runner = (*Manager)(nil)

// anonymousPrincipal is recorded in history when authentication is disabled.
const anonymousPrincipal = "anonymous"

// Service is the entry point used by the HTTP and CLI surfaces. It enforces
// organization access, bounds execution time and records every query in
// the history repository.
type Service struct {
	runner    Runner
	resolver  domain.DescriptorResolver
	datacards domain.DatacardStore
	history   domain.QueryHistoryRepository
	timeout   time.Duration
	logger    *slog.Logger
}

// NewService creates a Service. history may be nil to disable recording and
// a zero timeout leaves queries bounded only by the caller's context.
func NewService(
	runner Runner,
	resolver domain.DescriptorResolver,
	datacards domain.DatacardStore,
	history domain.QueryHistoryRepository,
	timeout time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		runner:    runner,
		resolver:  resolver,
		datacards: datacards,
		history:   history,
		timeout:   timeout,
		logger:    logger,
	}
}

// Query runs q against organization/dataset as the principal in ctx.
func (s *Service) Query(ctx context.Context, organization, dataset string, q *domain.QueryModel) (*Execution, error) {
	principal, err := s.authorize(ctx, organization)
	if err != nil {
		return nil, err
	}
	if q == nil {
		q = &domain.QueryModel{}
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	exec, err := s.runner.Run(runCtx, q, organization, dataset)
	elapsed := time.Since(start)

	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("query on %s exceeded the %s timeout: %w", domain.DatasetKey(organization, dataset), s.timeout, err)
	}

	s.record(ctx, principal, organization, dataset, q, exec, err, elapsed)
	if err != nil {
		s.logger.Warn("dataset query failed",
			"dataset", domain.DatasetKey(organization, dataset), "principal", principal, "error", err)
		return nil, err
	}

	s.logger.Debug("dataset query",
		"dataset", domain.DatasetKey(organization, dataset), "rows", len(exec.Rows), "duration", elapsed)
	return exec, nil
}

// QueryDataset is Query addressed by an "organization/dataset" key.
func (s *Service) QueryDataset(ctx context.Context, key string, q *domain.QueryModel) (*Execution, error) {
	organization, dataset, ok := domain.SplitDatasetKey(key)
	if !ok {
		return nil, domain.ErrValidation("dataset %q must have the form organization/dataset", key)
	}
	return s.Query(ctx, organization, dataset, q)
}

// Describe returns the resolved descriptor of a dataset.
func (s *Service) Describe(ctx context.Context, organization, dataset string) (*domain.DatasetDescriptor, error) {
	if _, err := s.authorize(ctx, organization); err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, organization, dataset)
}

// Datacard returns the datacard definition of an organization.
func (s *Service) Datacard(ctx context.Context, organization, definition string) (map[string]any, error) {
	if _, err := s.authorize(ctx, organization); err != nil {
		return nil, err
	}
	return s.datacards.GetDatacard(ctx, organization, definition)
}

// History lists recorded executions. A principal restricted to specific
// organizations must filter on one of them.
func (s *Service) History(ctx context.Context, filter domain.QueryHistoryFilter) ([]domain.QueryHistoryEntry, int64, error) {
	if s.history == nil {
		return nil, 0, nil
	}
	if p, ok := domain.PrincipalFromContext(ctx); ok && !p.CanAccess("*") {
		if filter.Organization == nil {
			return nil, 0, domain.ErrAccessDenied("principal %q must filter history by organization", p.Name)
		}
		if !p.CanAccess(*filter.Organization) {
			return nil, 0, domain.ErrAccessDenied("principal %q may not read history of organization %q", p.Name, *filter.Organization)
		}
	}
	return s.history.List(ctx, filter)
}

// authorize returns the principal name for ctx. Requests without a principal
// are allowed; authentication is enforced by the HTTP middleware when enabled.
func (s *Service) authorize(ctx context.Context, organization string) (string, error) {
	if strings.TrimSpace(organization) == "" {
		return "", domain.ErrValidation("organization is required")
	}
	p, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return anonymousPrincipal, nil
	}
	if !p.CanAccess(organization) {
		return "", domain.ErrAccessDenied("principal %q may not query organization %q", p.Name, organization)
	}
	return p.Name, nil
}

func (s *Service) record(ctx context.Context, principal, organization, dataset string, q *domain.QueryModel, exec *Execution, runErr error, elapsed time.Duration) {
	if s.history == nil {
		return
	}

	entry := &domain.QueryHistoryEntry{
		Organization: organization,
		Dataset:      dataset,
		Principal:    principal,
		DurationMs:   elapsed.Milliseconds(),
	}
	if q.Description != "" {
		desc := q.Description
		entry.Description = &desc
	}
	if runErr != nil {
		msg := runErr.Error()
		entry.Status = domain.QueryStatusError
		entry.ErrorMessage = &msg
	} else {
		sqlText := exec.SQL
		n := int64(len(exec.Rows))
		entry.Status = domain.QueryStatusSuccess
		entry.CompiledSQL = &sqlText
		entry.RowsReturned = &n
	}

	if err := s.history.Insert(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("record query history", "dataset", domain.DatasetKey(organization, dataset), "error", err)
	}
}
