// Package history schedules retention of the query history.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Deleter removes history entries created before a cutoff.
// Implemented by repository.QueryHistoryRepo.
type Deleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner periodically deletes history entries older than its retention.
type Pruner struct {
	cron      *cron.Cron
	deleter   Deleter
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewPruner creates a pruner that runs on the given cron schedule.
func NewPruner(deleter Deleter, retention time.Duration, schedule string, logger *slog.Logger) (*Pruner, error) {
	if retention <= 0 {
		return nil, errors.New("history retention must be positive")
	}
	p := &Pruner{
		cron:      cron.New(),
		deleter:   deleter,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
	if _, err := p.cron.AddFunc(schedule, func() {
		if _, err := p.Prune(context.Background()); err != nil {
			p.logger.Warn("query history prune failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Prune deletes entries older than the retention once.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.deleter.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Info("pruned query history", "deleted", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
	return n, nil
}

// Start runs the schedule in the background.
func (p *Pruner) Start() {
	p.cron.Start()
	p.logger.Info("query history pruner started", "retention", p.retention.String())
}

// Stop halts the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
	p.logger.Info("query history pruner stopped")
}
