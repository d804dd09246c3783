// Package query resolves datasets to backend sessions, runs query models
// against them and records the executions.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"dataframehub/internal/domain"
	"dataframehub/internal/engine"
	"dataframehub/internal/serialize"
)

// DriverRegistry selects the driver for a backend type.
// Implemented by engine.Registry.
type DriverRegistry interface {
	Driver(t domain.BackendType) (domain.Driver, error)
}

var _ DriverRegistry = (*engine.Registry)(nil)

// ManagerOptions tunes the connection manager.
type ManagerOptions struct {
	// ReregisterAlways re-snapshots a dataset's physical file on every query.
	// When false the file is registered again only after its size or
	// modification time changes.
	ReregisterAlways bool
}

// Execution is the outcome of one query against a dataset.
type Execution struct {
	Descriptor *domain.DatasetDescriptor
	SQL        string
	Columns    []string
	Rows       []domain.Row
}

// Manager owns one cached backend session per dataset and executes query
// models against them.
type Manager struct {
	resolver domain.DescriptorResolver
	drivers  DriverRegistry
	locator  domain.FileLocator
	opts     ManagerOptions
	logger   *slog.Logger

	cache         *connCache
	constructions atomic.Int64
}

// NewManager creates a Manager. locator may be nil when every physical file is local.
func NewManager(resolver domain.DescriptorResolver, drivers DriverRegistry, locator domain.FileLocator, opts ManagerOptions, logger *slog.Logger) *Manager {
	return &Manager{
		resolver: resolver,
		drivers:  drivers,
		locator:  locator,
		opts:     opts,
		logger:   logger,
		cache:    newConnCache(),
	}
}

// ExecuteQueryOnDataset runs q against organization/dataset and returns the
// serialized rows in result order.
func (m *Manager) ExecuteQueryOnDataset(ctx context.Context, q *domain.QueryModel, organization, dataset string) ([]domain.Row, error) {
	exec, err := m.Run(ctx, q, organization, dataset)
	if err != nil {
		return nil, err
	}
	return exec.Rows, nil
}

// Run is ExecuteQueryOnDataset with the resolved descriptor and compiled SQL attached.
func (m *Manager) Run(ctx context.Context, q *domain.QueryModel, organization, dataset string) (*Execution, error) {
	if q == nil {
		q = &domain.QueryModel{}
	}

	desc, err := m.resolver.Resolve(ctx, organization, dataset)
	if err != nil {
		return nil, err
	}

	entry, err := m.acquire(ctx, desc)
	if err != nil {
		return nil, err
	}
	defer entry.unlock()

	relation := desc.RelationName()
	if desc.PhysicalFile != "" {
		if err := m.ensureRegistered(ctx, entry, desc, relation); err != nil {
			return nil, err
		}
	}

	query := q.Clone()
	query.Table = relation

	sqlText, err := entry.driver.Compile(query, relation)
	if err != nil {
		return nil, err
	}
	rs, err := entry.driver.Execute(ctx, entry.conn, sqlText)
	if err != nil {
		return nil, err
	}

	columns, err := m.alignColumns(ctx, entry, query, relation, rs)
	if err != nil {
		return nil, err
	}
	rows, err := serialize.Rows(rs, columns)
	if err != nil {
		return nil, err
	}

	return &Execution{Descriptor: desc, SQL: sqlText, Columns: columns, Rows: rows}, nil
}

// acquire returns the live session for desc with its lock held. A session
// opened for another backend or location is evicted, and an entry evicted
// while this caller waited for the lock is skipped; both are looked up again.
func (m *Manager) acquire(ctx context.Context, desc *domain.DatasetDescriptor) (*connEntry, error) {
	driver, err := m.drivers.Driver(desc.BackendType)
	if err != nil {
		return nil, err
	}

	key := desc.Key()
	create := func(buildCtx context.Context) (*connEntry, error) {
		conn, err := driver.Connect(buildCtx, desc.Location)
		if err != nil {
			return nil, err
		}
		m.constructions.Add(1)
		m.logger.Info("backend session opened", "dataset", key, "backend", driver.Type(), "location", desc.Location)
		return newConnEntry(key, driver, desc.Location, conn), nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := m.cache.getOrCreate(ctx, key, create)
		if err != nil {
			return nil, err
		}
		if entry.backend != desc.BackendType || entry.location != desc.Location {
			m.logger.Warn("dataset descriptor changed, reopening session",
				"dataset", key, "backend", desc.BackendType, "location", desc.Location)
			if err := m.cache.evict(entry); err != nil {
				m.logger.Warn("close stale session", "dataset", key, "error", err)
			}
			continue
		}
		live, err := entry.lock(ctx)
		if err != nil {
			return nil, err
		}
		if live {
			return entry, nil
		}
	}
}

// ensureRegistered registers the dataset's physical file under relation,
// on every call or only when the file changed, per ManagerOptions. The caller holds entry.sem.
func (m *Manager) ensureRegistered(ctx context.Context, entry *connEntry, desc *domain.DatasetDescriptor, relation string) error {
	location := desc.PhysicalFile
	if m.locator != nil {
		var err error
		location, err = m.locator.Locate(ctx, desc.PhysicalFile)
		if err != nil {
			return err
		}
	}

	stamp, err := stampFile(desc.PhysicalFile, location)
	if err != nil {
		return err
	}
	if !m.opts.ReregisterAlways {
		if prev, ok := entry.registered[relation]; ok && prev == stamp {
			return nil
		}
	}

	delete(entry.registered, relation)
	if err := entry.driver.RegisterRelation(ctx, entry.conn, location, desc.EffectiveFormat(), relation); err != nil {
		return err
	}
	entry.registered[relation] = stamp
	return nil
}

// stampFile identifies the current version of a physical file. Remote files
// are identified by their reference alone.
func stampFile(reference, location string) (fileStamp, error) {
	if engine.IsRemotePath(location) {
		return fileStamp{path: reference}, nil
	}
	info, err := os.Stat(location)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileStamp{}, domain.ErrNotFound("physical file %q not found", reference)
		}
		return fileStamp{}, fmt.Errorf("stat %s: %w", location, err)
	}
	return fileStamp{path: reference, size: info.Size(), modNano: info.ModTime().UnixNano()}, nil
}

// alignColumns returns the row keys for rs: the query's effective column
// list, or the relation's introspected columns for a wildcard query. Either
// must match the width of the returned rows.
func (m *Manager) alignColumns(ctx context.Context, entry *connEntry, q *domain.QueryModel, relation string, rs *domain.ResultSet) ([]string, error) {
	var columns []string
	if q.IsWildcard() {
		var err error
		columns, err = entry.driver.IntrospectColumns(ctx, entry.conn, relation)
		if err != nil {
			return nil, err
		}
	} else {
		columns = q.EffectiveColumns()
	}
	if len(columns) != len(rs.Columns) {
		return nil, domain.ErrSchemaMismatch("relation %q: %d column names for %d result columns", relation, len(columns), len(rs.Columns))
	}
	return columns, nil
}

// Len returns the number of cached backend sessions.
func (m *Manager) Len() int { return m.cache.len() }

// Constructions returns how many backend sessions have been opened.
func (m *Manager) Constructions() int64 { return m.constructions.Load() }

// Close closes every cached session. Queries issued afterwards fail with ErrManagerClosed.
func (m *Manager) Close() error {
	return m.cache.close()
}
