// Package repository implements domain repositories on the SQLite metastore.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"dataframehub/internal/domain"
)

var _ domain.QueryHistoryRepository = (*QueryHistoryRepo)(nil)

const createdAtLayout = "2006-01-02T15:04:05.000Z"

// QueryHistoryRepo stores query executions. Inserts go through the write
// pool and listings through the read pool.
type QueryHistoryRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewQueryHistoryRepo creates a repository. read may equal write.
func NewQueryHistoryRepo(write, read *sql.DB) *QueryHistoryRepo {
	if read == nil {
		read = write
	}
	return &QueryHistoryRepo{write: write, read: read}
}

// Insert records e, assigning an ID and timestamp when they are unset.
func (r *QueryHistoryRepo) Insert(ctx context.Context, e *domain.QueryHistoryEntry) error {
	if e.ID == "" {
		e.ID = domain.NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.write.ExecContext(ctx, `
		INSERT INTO query_history
			(id, organization, dataset, principal, description, compiled_sql,
			 status, error_message, duration_ms, rows_returned, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Organization, e.Dataset, e.Principal, e.Description, e.CompiledSQL,
		e.Status, e.ErrorMessage, e.DurationMs, e.RowsReturned,
		e.CreatedAt.UTC().Format(createdAtLayout),
	)
	if err != nil {
		return fmt.Errorf("insert query history: %w", err)
	}
	return nil
}

// List returns entries matching filter, newest first, and the total match count.
func (r *QueryHistoryRepo) List(ctx context.Context, filter domain.QueryHistoryFilter) ([]domain.QueryHistoryEntry, int64, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Organization != nil {
		conds = append(conds, "organization = ?")
		args = append(args, *filter.Organization)
	}
	if filter.Dataset != nil {
		conds = append(conds, "dataset = ?")
		args = append(args, *filter.Dataset)
	}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *filter.Status)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.read.QueryRowContext(ctx, "SELECT count(*) FROM query_history"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count query history: %w", err)
	}

	rows, err := r.read.QueryContext(ctx, `
		SELECT id, organization, dataset, principal, description, compiled_sql,
		       status, error_message, duration_ms, rows_returned, created_at
		FROM query_history`+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		append(args, filter.Page.Limit(), filter.Page.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.QueryHistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate query history: %w", err)
	}
	return entries, total, nil
}

// DeleteOlderThan removes entries created before cutoff and returns how many were removed.
func (r *QueryHistoryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.write.ExecContext(ctx,
		"DELETE FROM query_history WHERE created_at < ?", cutoff.UTC().Format(createdAtLayout))
	if err != nil {
		return 0, fmt.Errorf("prune query history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune query history: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (*domain.QueryHistoryEntry, error) {
	var (
		e                             domain.QueryHistoryEntry
		description, compiled, errMsg sql.NullString
		rowsReturned                  sql.NullInt64
		createdAt                     string
	)
	if err := rows.Scan(&e.ID, &e.Organization, &e.Dataset, &e.Principal, &description, &compiled,
		&e.Status, &errMsg, &e.DurationMs, &rowsReturned, &createdAt); err != nil {
		return nil, fmt.Errorf("scan query history: %w", err)
	}
	e.Description = nullStringPtr(description)
	e.CompiledSQL = nullStringPtr(compiled)
	e.ErrorMessage = nullStringPtr(errMsg)
	if rowsReturned.Valid {
		n := rowsReturned.Int64
		e.RowsReturned = &n
	}
	if t, err := time.Parse(createdAtLayout, createdAt); err == nil {
		e.CreatedAt = t
	}
	return &e, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
