// Package engine implements the backend drivers that register dataset
// relations, compile query models to SQL and execute them.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"dataframehub/internal/domain"
)

var _ domain.Connection = (*Session)(nil)

// Session is a backend connection pinned to a single database/sql connection
// so temporary views, attachments and loaded extensions persist across calls.
// A Session is not safe for concurrent use; callers serialize access.
type Session struct {
	backend  domain.BackendType
	location string
	db       *sql.DB
	conn     *sql.Conn

	httpfsLoaded bool
}

func openSession(ctx context.Context, backend domain.BackendType, driverName, dsn, location string) (*Session, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s %q: %w", backend, location, err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s %q: %w", backend, location, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("ping %s %q: %w", backend, location, err)
	}
	return &Session{backend: backend, location: location, db: db, conn: conn}, nil
}

// Location returns the location the session was opened with ("" for in-memory).
func (s *Session) Location() string { return s.location }

// Close releases the pinned connection and the underlying database handle.
func (s *Session) Close() error {
	return errors.Join(s.conn.Close(), s.db.Close())
}

func sessionFrom(c domain.Connection, want domain.BackendType) (*Session, error) {
	s, ok := c.(*Session)
	if !ok || s == nil {
		return nil, fmt.Errorf("connection %T is not an engine session", c)
	}
	if s.backend != want {
		return nil, fmt.Errorf("connection belongs to backend %q, not %q", s.backend, want)
	}
	return s, nil
}

// queryAll runs query on conn and materializes every row.
func queryAll(ctx context.Context, conn *sql.Conn, query string) (*domain.ResultSet, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read column types: %w", err)
	}
	types := make([]string, len(colTypes))
	for i, ct := range colTypes {
		types[i] = ct.DatabaseTypeName()
	}

	rs := &domain.ResultSet{Columns: cols, Types: types}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return rs, nil
}

// firstColumnStrings runs query and returns column index col of every row as a string.
func firstColumnStrings(ctx context.Context, conn *sql.Conn, query string, col int) ([]string, error) {
	rs, err := queryAll(ctx, conn, query)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if col >= len(row) {
			return nil, fmt.Errorf("introspection returned %d columns, want > %d", len(row), col)
		}
		switch v := row[col].(type) {
		case string:
			out = append(out, v)
		case []byte:
			out = append(out, string(v))
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out, nil
}

// IsRemotePath reports whether path is read over HTTP(S) rather than from local disk.
func IsRemotePath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// checkLocalFile maps a missing local physical file to NotFoundError.
func checkLocalFile(path string) error {
	if IsRemotePath(path) {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ErrNotFound("physical file %q not found", path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return nil
}
