package engine

import (
	"context"
	"database/sql"
	"fmt"

	"dataframehub/internal/ddl"
	"dataframehub/internal/domain"
)

// ConvertToParquet rewrites a CSV, JSON or parquet file as parquet at destPath
// using a throwaway in-memory DuckDB database. It returns the number of rows written.
func ConvertToParquet(ctx context.Context, sourcePath string, format domain.FileFormat, destPath string) (int64, error) {
	if err := checkLocalFile(sourcePath); err != nil {
		return 0, err
	}
	stmt, err := ddl.CopyFileToParquet(sourcePath, format, destPath)
	if err != nil {
		return 0, domain.ErrValidation("%v", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return 0, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return 0, fmt.Errorf("convert %s to parquet: %w", sourcePath, err)
	}

	var n int64
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM read_parquet("+ddl.QuoteLiteral(destPath)+")").Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", destPath, err)
	}
	return n, nil
}
