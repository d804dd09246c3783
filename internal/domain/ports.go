package domain

import "context"

// DescriptorResolver maps (organization, dataset) to a dataset descriptor.
// Implemented by descriptor.FileStore.
type DescriptorResolver interface {
	Resolve(ctx context.Context, organization, dataset string) (*DatasetDescriptor, error)
}

// DatacardStore loads datacard definitions.
// Implemented by descriptor.FileStore.
type DatacardStore interface {
	GetDatacard(ctx context.Context, organization, definition string) (map[string]any, error)
}

// Connection is a live backend session owned by a driver.
type Connection interface {
	Location() string
	Close() error
}

// ResultSet holds a fully materialized query result. Types carries the
// backend's type name for each column and may be shorter than Columns when
// the backend does not report types.
type ResultSet struct {
	Columns []string
	Types   []string
	Rows    [][]any
}

// Driver is the capability interface of a storage engine.
// Implementations: engine.DuckDBDriver, engine.SQLiteDriver.
type Driver interface {
	Type() BackendType
	Connect(ctx context.Context, location string) (Connection, error)
	RegisterRelation(ctx context.Context, conn Connection, physicalFile string, format FileFormat, relation string) error
	Compile(q *QueryModel, relation string) (string, error)
	Execute(ctx context.Context, conn Connection, query string) (*ResultSet, error)
	IntrospectColumns(ctx context.Context, conn Connection, relation string) ([]string, error)
}

// FileLocator turns a physical file reference into a location the backend can read.
// Implemented by storage.Locator.
type FileLocator interface {
	Locate(ctx context.Context, path string) (string, error)
}

// QueryHistoryRepository persists query executions.
// Implemented by repository.QueryHistoryRepo.
type QueryHistoryRepository interface {
	Insert(ctx context.Context, e *QueryHistoryEntry) error
	List(ctx context.Context, filter QueryHistoryFilter) ([]QueryHistoryEntry, int64, error)
}
