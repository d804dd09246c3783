package engine

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataframehub/internal/ddl"
	"dataframehub/internal/domain"
)

var ctx = context.Background()

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeParquet materializes selectSQL into a parquet file under t.TempDir().
func writeParquet(t *testing.T, name, selectSQL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, "COPY ("+selectSQL+") TO "+ddl.QuoteLiteral(path)+" (FORMAT PARQUET)")
	require.NoError(t, err)
	return path
}

func writeText(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const usersSQL = `SELECT * FROM (VALUES
	('Alice', 'a@x.com', 22),
	('Bob', 'b@x.com', 30),
	('Charlie', 'c@x.com', 41)
) AS t(name, email, age)`

func connectDuckDB(t *testing.T) (*DuckDBDriver, domain.Connection) {
	t.Helper()
	d := NewDuckDBDriver(Compiler{Strict: true}, discardLogger())
	conn, err := d.Connect(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return d, conn
}

func TestDuckDBDriver_RegisterAndQuery(t *testing.T) {
	path := writeParquet(t, "users.parquet", usersSQL)
	d, conn := connectDuckDB(t)

	require.NoError(t, d.RegisterRelation(ctx, conn, path, domain.FormatParquet, "users"))

	cols, err := d.IntrospectColumns(ctx, conn, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "email", "age"}, cols)

	query, err := d.Compile(&domain.QueryModel{
		Select:  []string{"name", "email"},
		Where:   "age > 25",
		OrderBy: []string{"name"},
	}, "users")
	require.NoError(t, err)

	rs, err := d.Execute(ctx, conn, query)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "email"}, rs.Columns)
	assert.Equal(t, []string{"VARCHAR", "VARCHAR"}, rs.Types)
	assert.Equal(t, [][]any{{"Bob", "b@x.com"}, {"Charlie", "c@x.com"}}, rs.Rows)
}

func TestDuckDBDriver_ReregistrationReplacesSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "counts.parquet")
	d, conn := connectDuckDB(t)

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	_, err = db.ExecContext(ctx, "COPY (SELECT 1 AS n) TO "+ddl.QuoteLiteral(path)+" (FORMAT PARQUET)")
	require.NoError(t, err)
	require.NoError(t, d.RegisterRelation(ctx, conn, path, domain.FormatParquet, "counts"))

	_, err = db.ExecContext(ctx, "COPY (SELECT * FROM range(5) t(n)) TO "+ddl.QuoteLiteral(path)+" (FORMAT PARQUET)")
	require.NoError(t, err)

	// The table is a snapshot until registered again.
	rs, err := d.Execute(ctx, conn, `SELECT count(*) FROM "counts"`)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rs.Rows[0][0])

	require.NoError(t, d.RegisterRelation(ctx, conn, path, domain.FormatParquet, "counts"))
	rs, err = d.Execute(ctx, conn, `SELECT count(*) FROM "counts"`)
	require.NoError(t, err)
	assert.EqualValues(t, 5, rs.Rows[0][0])
}

func TestDuckDBDriver_MissingFile(t *testing.T) {
	d, conn := connectDuckDB(t)
	err := d.RegisterRelation(ctx, conn, filepath.Join(t.TempDir(), "nope.parquet"), domain.FormatParquet, "users")
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)
}

func TestDuckDBDriver_UnknownRelation(t *testing.T) {
	d, conn := connectDuckDB(t)
	_, err := d.Execute(ctx, conn, `SELECT * FROM "missing"`)
	require.Error(t, err)
	_, err = d.IntrospectColumns(ctx, conn, "missing")
	require.Error(t, err)
}

func TestDuckDBDriver_QueryErrorsAreCompilationErrors(t *testing.T) {
	path := writeParquet(t, "users.parquet", usersSQL)
	d, conn := connectDuckDB(t)
	require.NoError(t, d.RegisterRelation(ctx, conn, path, domain.FormatParquet, "users"))

	tests := []struct {
		name  string
		query string
	}{
		{name: "unknown_column", query: `SELECT salary FROM "users"`},
		{name: "aggregate_with_bare_column", query: `SELECT count(*), name FROM "users"`},
		{name: "parse_error", query: `SELEC name FROM "users"`},
		{name: "unknown_function", query: `SELECT no_such_fn(name) FROM "users"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Execute(ctx, conn, tt.query)
			var ce *domain.CompilationError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
		})
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := d.Execute(cancelled, conn, `SELECT * FROM "users"`)
	require.Error(t, err)
	var ce *domain.CompilationError
	assert.False(t, errors.As(err, &ce), "cancellation is not a caller query error")
}

func TestDuckDBDriver_RejectsForeignConnection(t *testing.T) {
	d, _ := connectDuckDB(t)
	s := NewSQLiteDriver(Compiler{}, discardLogger())
	conn, err := s.Connect(ctx, "")
	require.NoError(t, err)
	defer conn.Close() //nolint:errcheck

	_, err = d.Execute(ctx, conn, "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "belongs to backend")
}

// createSQLiteDB writes a SQLite database with a users table and returns its path.
func createSQLiteDB(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	_, err = db.ExecContext(ctx, `
		CREATE TABLE users (name TEXT, email TEXT, age INTEGER);
		INSERT INTO users VALUES ('Alice', 'a@x.com', 22), ('Bob', 'b@x.com', 30), ('Charlie', 'c@x.com', 41);
	`)
	require.NoError(t, err)
	return path
}

func TestSQLiteDriver_QueryLocation(t *testing.T) {
	path := createSQLiteDB(t, "users.db")
	d := NewSQLiteDriver(Compiler{Strict: true}, discardLogger())

	conn, err := d.Connect(ctx, path)
	require.NoError(t, err)
	defer conn.Close() //nolint:errcheck
	assert.Equal(t, path, conn.Location())

	cols, err := d.IntrospectColumns(ctx, conn, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "email", "age"}, cols)

	query, err := d.Compile(&domain.QueryModel{Select: []string{"name", "age"}, Where: "age < 35", OrderBy: []string{"age DESC"}}, "users")
	require.NoError(t, err)
	rs, err := d.Execute(ctx, conn, query)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, rs.Columns)
	assert.Equal(t, [][]any{{"Bob", int64(30)}, {"Alice", int64(22)}}, rs.Rows)
}

func TestSQLiteDriver_RegisterAttachedFile(t *testing.T) {
	path := createSQLiteDB(t, "source.db")
	d := NewSQLiteDriver(Compiler{}, discardLogger())

	conn, err := d.Connect(ctx, "")
	require.NoError(t, err)
	defer conn.Close() //nolint:errcheck

	// Registering twice exercises the detach/attach cycle.
	for range 2 {
		require.NoError(t, d.RegisterRelation(ctx, conn, path, "", "users"))
	}

	rs, err := d.Execute(ctx, conn, `SELECT count(*) FROM "users"`)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rs.Rows[0][0])

	cols, err := d.IntrospectColumns(ctx, conn, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "email", "age"}, cols)
}

func TestSQLiteDriver_UnknownColumnIsCompilationError(t *testing.T) {
	path := createSQLiteDB(t, "users.db")
	d := NewSQLiteDriver(Compiler{Strict: true}, discardLogger())
	conn, err := d.Connect(ctx, path)
	require.NoError(t, err)
	defer conn.Close() //nolint:errcheck

	_, err = d.Execute(ctx, conn, `SELECT salary FROM "users"`)
	var ce *domain.CompilationError
	require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
	assert.Contains(t, err.Error(), "salary")
}

func TestSQLiteDriver_Errors(t *testing.T) {
	d := NewSQLiteDriver(Compiler{}, discardLogger())

	_, err := d.Connect(ctx, filepath.Join(t.TempDir(), "missing.db"))
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)

	conn, err := d.Connect(ctx, ":memory:")
	require.NoError(t, err)
	defer conn.Close() //nolint:errcheck

	_, err = d.IntrospectColumns(ctx, conn, "ghost")
	require.True(t, errors.As(err, &nf), "got %v", err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(Options{StrictExpressions: true}, discardLogger())
	assert.Equal(t, []domain.BackendType{domain.BackendDuckDB, domain.BackendSQLite}, r.Types())

	d, err := r.Driver(domain.BackendDuckDB)
	require.NoError(t, err)
	assert.Equal(t, domain.BackendDuckDB, d.Type())

	_, err = r.Driver("clickhouse")
	var ub *domain.UnsupportedBackendError
	require.True(t, errors.As(err, &ub), "got %v", err)
	assert.Contains(t, ub.Message, "clickhouse")
}

func TestConvertToParquet(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "rates.csv")
	dest := filepath.Join(dir, "rates.parquet")
	writeText(t, src, "state,rate\nCA,4.8\nNY,4.1\n")

	n, err := ConvertToParquet(ctx, src, domain.FormatCSV, dest)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	d, conn := connectDuckDB(t)
	require.NoError(t, d.RegisterRelation(ctx, conn, dest, domain.FormatParquet, "rates"))
	cols, err := d.IntrospectColumns(ctx, conn, "rates")
	require.NoError(t, err)
	assert.Equal(t, []string{"state", "rate"}, cols)

	_, err = ConvertToParquet(ctx, filepath.Join(dir, "missing.csv"), domain.FormatCSV, dest)
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)
}
