package cli

import (
	"context"
	"errors"
	"fmt"

	internaldb "dataframehub/internal/db"
	"dataframehub/internal/db/repository"
	"dataframehub/internal/descriptor"
	"dataframehub/internal/engine"
	"dataframehub/internal/service/query"
	"dataframehub/internal/storage"
)

// stack is the query engine wired from configuration.
type stack struct {
	store   *descriptor.FileStore
	locator *storage.Locator
	manager *query.Manager
	meta    *internaldb.Store
	history *repository.QueryHistoryRepo
	service *query.Service
}

func (a *app) openStack(ctx context.Context) (*stack, error) {
	cfg := a.cfg
	store := descriptor.NewFileStore(cfg.DatasetsDir, cfg.DatacardsDir)

	locator, err := storage.NewLocator(ctx, cfg.Storage, a.logger)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	meta, err := internaldb.Open(ctx, cfg.MetaDBPath)
	if err != nil {
		_ = locator.Close()
		return nil, fmt.Errorf("metastore: %w", err)
	}

	registry := engine.NewRegistry(engine.Options{StrictExpressions: cfg.StrictExpressions}, a.logger)
	manager := query.NewManager(store, registry, locator,
		query.ManagerOptions{ReregisterAlways: cfg.ReregisterAlways}, a.logger)
	history := repository.NewQueryHistoryRepo(meta.Write, meta.Read)

	return &stack{
		store:   store,
		locator: locator,
		manager: manager,
		meta:    meta,
		history: history,
		service: query.NewService(manager, store, store, history, cfg.QueryTimeout, a.logger),
	}, nil
}

// Close releases backend sessions, the metastore and storage clients.
func (s *stack) Close() error {
	return errors.Join(s.manager.Close(), s.meta.Close(), s.locator.Close())
}
