package ddl

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxIdentifierLen = 128
	maxTypeNameLen   = 64
)

var (
	identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	// typeNameRe accepts a (possibly multi-word) type name with an optional
	// precision/scale suffix and an optional list marker: INTEGER,
	// VARCHAR(255), DECIMAL(10, 2), TIMESTAMP WITH TIME ZONE, INTEGER[].
	typeNameRe = regexp.MustCompile(`(?i)^[A-Z][A-Z0-9_]*(?: [A-Z][A-Z0-9_]*)*(?:\(\s*\d+\s*(?:,\s*\d+\s*)?\))?(?:\[\])?$`)
)

// ValidateIdentifier reports whether name can be used unquoted as a
// relation, alias or column name.
func ValidateIdentifier(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("name is required")
	case len(name) > maxIdentifierLen:
		return fmt.Errorf("name exceeds %d characters", maxIdentifierLen)
	case !identifierRe.MatchString(name):
		return fmt.Errorf("name %q must match [A-Za-z_][A-Za-z0-9_]*", name)
	}
	return nil
}

// ValidateColumnType reports whether typeName looks like a SQL type
// declaration. Only the shape is checked; the backend decides whether the
// type exists.
func ValidateColumnType(typeName string) error {
	switch {
	case typeName == "":
		return fmt.Errorf("column type is required")
	case len(typeName) > maxTypeNameLen:
		return fmt.Errorf("column type exceeds %d characters", maxTypeNameLen)
	case strings.ContainsAny(typeName, `;'"\`) || strings.Contains(typeName, "--"):
		return fmt.Errorf("column type %q contains invalid characters", typeName)
	case !typeNameRe.MatchString(typeName):
		return fmt.Errorf("column type %q is not a type name", typeName)
	}
	return nil
}

// ValidateColumn checks a declared column. An empty typeName means the
// type is left to the backend.
func ValidateColumn(name, typeName string) error {
	if err := ValidateIdentifier(name); err != nil {
		return fmt.Errorf("column: %w", err)
	}
	if typeName == "" {
		return nil
	}
	if err := ValidateColumnType(typeName); err != nil {
		return fmt.Errorf("column %q: %w", name, err)
	}
	return nil
}

// QuoteIdentifier double-quotes name, doubling embedded quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes value, doubling embedded quotes.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
