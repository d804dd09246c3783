package engine

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" database/sql driver

	"dataframehub/internal/ddl"
	"dataframehub/internal/domain"
)

var _ domain.Driver = (*DuckDBDriver)(nil)

// DuckDBDriver serves datasets backed by parquet, CSV or JSON files through
// an embedded DuckDB database.
type DuckDBDriver struct {
	Compiler
	logger *slog.Logger
}

// NewDuckDBDriver creates a DuckDB driver.
func NewDuckDBDriver(compiler Compiler, logger *slog.Logger) *DuckDBDriver {
	return &DuckDBDriver{Compiler: compiler, logger: logger}
}

// Type returns domain.BackendDuckDB.
func (d *DuckDBDriver) Type() domain.BackendType { return domain.BackendDuckDB }

// Connect opens a DuckDB database at location, or an in-memory one when
// location is empty or ":memory:".
func (d *DuckDBDriver) Connect(ctx context.Context, location string) (domain.Connection, error) {
	dsn := location
	if dsn == ":memory:" {
		dsn = ""
	}
	return openSession(ctx, domain.BackendDuckDB, "duckdb", dsn, location)
}

// RegisterRelation snapshots physicalFile into a table named relation,
// replacing any previous table of that name.
func (d *DuckDBDriver) RegisterRelation(ctx context.Context, c domain.Connection, physicalFile string, format domain.FileFormat, relation string) error {
	s, err := sessionFrom(c, domain.BackendDuckDB)
	if err != nil {
		return err
	}
	if err := checkLocalFile(physicalFile); err != nil {
		return err
	}
	if IsRemotePath(physicalFile) && !s.httpfsLoaded {
		if _, err := s.conn.ExecContext(ctx, ddl.InstallHTTPFS); err != nil {
			return fmt.Errorf("load httpfs: %w", err)
		}
		s.httpfsLoaded = true
	}

	stmt, err := ddl.ReplaceRelationTable(relation, physicalFile, format)
	if err != nil {
		return domain.ErrConfiguration("register relation %q: %v", relation, err)
	}
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("register relation %q: %w", relation, err)
	}
	d.logger.Debug("relation registered", "relation", relation, "format", format)
	return nil
}

// Execute runs query on the session and materializes all rows.
func (d *DuckDBDriver) Execute(ctx context.Context, c domain.Connection, query string) (*domain.ResultSet, error) {
	s, err := sessionFrom(c, domain.BackendDuckDB)
	if err != nil {
		return nil, err
	}
	rs, err := queryAll(ctx, s.conn, query)
	if err != nil {
		return nil, classifyDuckDBError(err)
	}
	return rs, nil
}

// IntrospectColumns lists the relation's columns in declaration order.
func (d *DuckDBDriver) IntrospectColumns(ctx context.Context, c domain.Connection, relation string) ([]string, error) {
	s, err := sessionFrom(c, domain.BackendDuckDB)
	if err != nil {
		return nil, err
	}
	stmt, err := ddl.DescribeRelation(relation)
	if err != nil {
		return nil, domain.ErrCompilation("%v", err)
	}
	// DESCRIBE yields column_name, column_type, null, key, default, extra.
	return firstColumnStrings(ctx, s.conn, stmt, 0)
}
