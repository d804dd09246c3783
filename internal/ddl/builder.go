// Package ddl builds the SQL text used to register, describe and export dataset relations.
package ddl

import (
	"fmt"
	"strings"

	"dataframehub/internal/domain"
)

// ReadFunction returns the DuckDB table function that scans files of the given format.
func ReadFunction(format domain.FileFormat) (string, error) {
	switch strings.ToLower(string(format)) {
	case "parquet", "":
		return "read_parquet", nil
	case "csv":
		return "read_csv_auto", nil
	case "json":
		return "read_json_auto", nil
	default:
		return "", fmt.Errorf("unsupported file format: %q", format)
	}
}

// ReplaceRelationTable returns a DuckDB statement that snapshots a file into a table:
//
//	CREATE OR REPLACE TABLE "relation" AS SELECT * FROM read_parquet('path')
func ReplaceRelationTable(relation, sourcePath string, format domain.FileFormat) (string, error) {
	if relation == "" {
		return "", fmt.Errorf("relation name is required")
	}
	if sourcePath == "" {
		return "", fmt.Errorf("source path is required")
	}
	readFunc, err := ReadFunction(format)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s(%s)",
		QuoteIdentifier(relation),
		readFunc,
		QuoteLiteral(sourcePath),
	), nil
}

// DescribeRelation returns a DESCRIBE statement listing a relation's columns in declaration order.
func DescribeRelation(relation string) (string, error) {
	if relation == "" {
		return "", fmt.Errorf("relation name is required")
	}
	return fmt.Sprintf("DESCRIBE %s", QuoteIdentifier(relation)), nil
}

// CopyFileToParquet returns a DuckDB COPY statement converting a source file to parquet:
//
//	COPY (SELECT * FROM read_csv_auto('in.csv')) TO 'out.parquet' (FORMAT PARQUET)
func CopyFileToParquet(sourcePath string, format domain.FileFormat, destPath string) (string, error) {
	if sourcePath == "" {
		return "", fmt.Errorf("source path is required")
	}
	if destPath == "" {
		return "", fmt.Errorf("destination path is required")
	}
	readFunc, err := ReadFunction(format)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("COPY (SELECT * FROM %s(%s)) TO %s (FORMAT PARQUET)",
		readFunc,
		QuoteLiteral(sourcePath),
		QuoteLiteral(destPath),
	), nil
}

// AttachSQLite returns an ATTACH statement exposing a SQLite database file under alias.
func AttachSQLite(path, alias string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("database path is required")
	}
	if err := ValidateIdentifier(alias); err != nil {
		return "", fmt.Errorf("invalid alias: %w", err)
	}
	return fmt.Sprintf("ATTACH DATABASE %s AS %s", QuoteLiteral(path), QuoteIdentifier(alias)), nil
}

// ReplaceTempView returns the statements that point a temporary view at a table
// of an attached SQLite database.
func ReplaceTempView(relation, alias string) ([]string, error) {
	if relation == "" {
		return nil, fmt.Errorf("relation name is required")
	}
	if err := ValidateIdentifier(alias); err != nil {
		return nil, fmt.Errorf("invalid alias: %w", err)
	}
	return []string{
		fmt.Sprintf("DROP VIEW IF EXISTS temp.%s", QuoteIdentifier(relation)),
		fmt.Sprintf("CREATE TEMP VIEW %s AS SELECT * FROM %s.%s",
			QuoteIdentifier(relation), QuoteIdentifier(alias), QuoteIdentifier(relation)),
	}, nil
}

// InstallHTTPFS loads the DuckDB extension that reads files over HTTP(S).
const InstallHTTPFS = "INSTALL httpfs; LOAD httpfs;"

// DetachSQLite returns a DETACH statement for an attached SQLite database.
func DetachSQLite(alias string) (string, error) {
	if err := ValidateIdentifier(alias); err != nil {
		return "", fmt.Errorf("invalid alias: %w", err)
	}
	return fmt.Sprintf("DETACH DATABASE %s", QuoteIdentifier(alias)), nil
}
