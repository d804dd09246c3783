package engine

import (
	"errors"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/mattn/go-sqlite3"

	"dataframehub/internal/domain"
)

// callerErrorTypes are DuckDB error classes raised by the query text itself:
// unknown columns or functions, bad syntax, invalid casts, or an aggregate
// mixed with a bare column.
var callerErrorTypes = map[duckdb.ErrorType]bool{
	duckdb.ErrorTypeParser:       true,
	duckdb.ErrorTypeSyntax:       true,
	duckdb.ErrorTypeBinder:       true,
	duckdb.ErrorTypeCatalog:      true,
	duckdb.ErrorTypeConversion:   true,
	duckdb.ErrorTypeMismatchType: true,
}

// classifyDuckDBError turns errors caused by the compiled query into
// CompilationError and returns every other error unchanged.
func classifyDuckDBError(err error) error {
	var de *duckdb.Error
	if errors.As(err, &de) && callerErrorTypes[de.Type] {
		return domain.ErrCompilation("%s", de.Msg)
	}
	return err
}

// classifySQLiteError maps SQLITE_ERROR, the code SQLite uses for
// malformed statements and unknown names, to CompilationError.
func classifySQLiteError(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrError {
		return domain.ErrCompilation("%v", se)
	}
	return err
}
