package domain

import (
	"path/filepath"
	"strings"
)

// BackendType identifies the storage engine that serves a dataset.
type BackendType string

// Supported backend types.
const (
	BackendDuckDB BackendType = "duckdb"
	BackendSQLite BackendType = "sqlite"
)

// ParseBackendType normalises a configured backend name. Unknown names are
// returned lower-cased so the driver registry can reject them.
func ParseBackendType(s string) BackendType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "duckdb", "embedded-columnar", "embedded_columnar":
		return BackendDuckDB
	case "sqlite", "sqlite3":
		return BackendSQLite
	default:
		return BackendType(strings.ToLower(strings.TrimSpace(s)))
	}
}

// FileFormat is the on-disk format of a dataset's physical file.
type FileFormat string

// Supported physical file formats.
const (
	FormatParquet FileFormat = "parquet"
	FormatCSV     FileFormat = "csv"
	FormatJSON    FileFormat = "json"
)

// InferFileFormat guesses the file format from the path extension, defaulting to parquet.
func InferFileFormat(path string) FileFormat {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv", ".tsv":
		return FormatCSV
	case ".json", ".ndjson", ".jsonl":
		return FormatJSON
	default:
		return FormatParquet
	}
}

// ColumnSpec is a declared column in a dataset schema.
type ColumnSpec struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// DatasetDescriptor identifies a dataset's backend and physical location.
// It is loaded fresh on every resolution and never cached.
type DatasetDescriptor struct {
	Organization string       `json:"organization"`
	Dataset      string       `json:"dataset"`
	Name         string       `json:"name,omitempty"`
	Description  string       `json:"description,omitempty"`
	BackendType  BackendType  `json:"backend_type"`
	PhysicalFile string       `json:"physical_file,omitempty"`
	Format       FileFormat   `json:"format,omitempty"`
	LogicalTable string       `json:"logical_table,omitempty"`
	Location     string       `json:"location,omitempty"`
	Schema       []ColumnSpec `json:"schema,omitempty"`
}

// RelationName returns the logical table the dataset is queried through.
func (d *DatasetDescriptor) RelationName() string {
	if d.LogicalTable != "" {
		return d.LogicalTable
	}
	return d.Dataset
}

// EffectiveFormat returns the declared format, or the one inferred from the file name.
func (d *DatasetDescriptor) EffectiveFormat() FileFormat {
	if d.Format != "" {
		return d.Format
	}
	return InferFileFormat(d.PhysicalFile)
}

// Key returns the connection cache key for the dataset.
func (d *DatasetDescriptor) Key() string {
	return DatasetKey(d.Organization, d.Dataset)
}

// DatasetKey joins an organization and dataset into "organization/dataset".
func DatasetKey(organization, dataset string) string {
	return organization + "/" + dataset
}

// SplitDatasetKey splits "organization/dataset". ok is false when either part is missing.
func SplitDatasetKey(key string) (organization, dataset string, ok bool) {
	organization, dataset, ok = strings.Cut(key, "/")
	if !ok || organization == "" || dataset == "" {
		return "", "", false
	}
	return organization, dataset, true
}
