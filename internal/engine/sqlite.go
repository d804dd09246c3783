package engine

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" database/sql driver

	"dataframehub/internal/ddl"
	"dataframehub/internal/domain"
)

var _ domain.Driver = (*SQLiteDriver)(nil)

// sourceAlias is the schema name a dataset's physical SQLite file is attached under.
const sourceAlias = "dataset_source"

// SQLiteDriver serves datasets stored in SQLite database files.
//
// The session location is the database holding the relation. When a
// descriptor also names a physical file, that file is attached and the
// relation is exposed through a temporary view over its same-named table.
type SQLiteDriver struct {
	Compiler
	logger *slog.Logger
}

// NewSQLiteDriver creates a SQLite driver.
func NewSQLiteDriver(compiler Compiler, logger *slog.Logger) *SQLiteDriver {
	return &SQLiteDriver{Compiler: compiler, logger: logger}
}

// Type returns domain.BackendSQLite.
func (d *SQLiteDriver) Type() domain.BackendType { return domain.BackendSQLite }

// Connect opens the existing SQLite database at location, or a private
// in-memory database when location is empty or ":memory:".
func (d *SQLiteDriver) Connect(ctx context.Context, location string) (domain.Connection, error) {
	dsn := ":memory:"
	if location != "" && location != ":memory:" {
		if err := checkLocalFile(location); err != nil {
			return nil, err
		}
		dsn = "file:" + location + "?mode=rw&_busy_timeout=5000"
	}
	return openSession(ctx, domain.BackendSQLite, "sqlite3", dsn, location)
}

// RegisterRelation attaches physicalFile and points a temporary view named
// relation at its table of the same name. format is ignored.
func (d *SQLiteDriver) RegisterRelation(ctx context.Context, c domain.Connection, physicalFile string, _ domain.FileFormat, relation string) error {
	s, err := sessionFrom(c, domain.BackendSQLite)
	if err != nil {
		return err
	}
	if err := checkLocalFile(physicalFile); err != nil {
		return err
	}

	view, err := ddl.ReplaceTempView(relation, sourceAlias)
	if err != nil {
		return domain.ErrConfiguration("register relation %q: %v", relation, err)
	}
	attach, err := ddl.AttachSQLite(physicalFile, sourceAlias)
	if err != nil {
		return domain.ErrConfiguration("register relation %q: %v", relation, err)
	}
	detach, err := ddl.DetachSQLite(sourceAlias)
	if err != nil {
		return domain.ErrConfiguration("register relation %q: %v", relation, err)
	}

	if _, err := s.conn.ExecContext(ctx, view[0]); err != nil {
		return fmt.Errorf("drop view %q: %w", relation, err)
	}
	// Nothing is attached on the first registration.
	_, _ = s.conn.ExecContext(ctx, detach)
	if _, err := s.conn.ExecContext(ctx, attach); err != nil {
		return fmt.Errorf("attach %q: %w", physicalFile, err)
	}
	if _, err := s.conn.ExecContext(ctx, view[1]); err != nil {
		return fmt.Errorf("create view %q: %w", relation, err)
	}
	d.logger.Debug("relation registered", "relation", relation, "file", physicalFile)
	return nil
}

// Execute runs query on the session and materializes all rows.
func (d *SQLiteDriver) Execute(ctx context.Context, c domain.Connection, query string) (*domain.ResultSet, error) {
	s, err := sessionFrom(c, domain.BackendSQLite)
	if err != nil {
		return nil, err
	}
	rs, err := queryAll(ctx, s.conn, query)
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	return rs, nil
}

// IntrospectColumns lists the relation's columns in declaration order.
func (d *SQLiteDriver) IntrospectColumns(ctx context.Context, c domain.Connection, relation string) ([]string, error) {
	s, err := sessionFrom(c, domain.BackendSQLite)
	if err != nil {
		return nil, err
	}
	// table_info yields cid, name, type, notnull, dflt_value, pk.
	cols, err := firstColumnStrings(ctx, s.conn, fmt.Sprintf("PRAGMA table_info(%s)", ddl.QuoteIdentifier(relation)), 1)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, domain.ErrNotFound("relation %q not found", relation)
	}
	return cols, nil
}
