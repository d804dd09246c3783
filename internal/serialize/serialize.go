// Package serialize converts backend result values into transport-safe rows.
package serialize

import (
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"dataframehub/internal/domain"
)

// Temporal layouts. Timestamps use RFC 3339 with nanoseconds, trimmed of trailing zeros.
const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04:05.999999999"
	TimestampLayout = time.RFC3339Nano
)

// Row converts one backend row into a domain.Row. types holds the backend
// type name for each column and may be shorter than columns.
func Row(values []any, columns, types []string) (domain.Row, error) {
	if len(values) != len(columns) {
		return domain.Row{}, domain.ErrSchemaMismatch("row has %d values for %d columns", len(values), len(columns))
	}
	out := domain.Row{Columns: columns, Values: make([]any, len(values))}
	for i, v := range values {
		typeName := ""
		if i < len(types) {
			typeName = types[i]
		}
		sv, err := Value(v, typeName)
		if err != nil {
			return domain.Row{}, domain.ErrUnsupportedValue("column %q: %v", columns[i], err)
		}
		out.Values[i] = sv
	}
	return out, nil
}

// Rows converts every row of rs, labelling values with columns. columns
// overrides rs.Columns when non-nil.
func Rows(rs *domain.ResultSet, columns []string) ([]domain.Row, error) {
	if columns == nil {
		columns = rs.Columns
	}
	out := make([]domain.Row, 0, len(rs.Rows))
	for _, values := range rs.Rows {
		row, err := Row(values, columns, rs.Types)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// Value maps a single backend value to its transport form.
func Value(v any, typeName string) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string, bool, int64, uint64:
		return x, nil
	case float64:
		return finite(x), nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint:
		return uint64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float32:
		return finite(float64(x)), nil
	case *big.Int:
		if x == nil {
			return nil, nil
		}
		if x.IsInt64() {
			return x.Int64(), nil
		}
		if x.IsUint64() {
			return x.Uint64(), nil
		}
		return nil, domain.ErrUnsupportedValue("integer %s overflows 64 bits", x.String())
	case duckdb.Decimal:
		return x.Float64(), nil
	case time.Time:
		return formatTemporal(x, typeName), nil
	case [16]byte:
		if strings.EqualFold(typeName, "UUID") {
			return uuid.UUID(x).String(), nil
		}
		return nil, domain.ErrUnsupportedValue("16-byte value of type %q", typeName)
	case []byte:
		if strings.EqualFold(typeName, "UUID") && len(x) == 16 {
			id, err := uuid.FromBytes(x)
			if err != nil {
				return nil, domain.ErrUnsupportedValue("uuid: %v", err)
			}
			return id.String(), nil
		}
		if isTextType(typeName) {
			return string(x), nil
		}
		return nil, domain.ErrUnsupportedValue("binary value of type %q", typeName)
	default:
		return nil, domain.ErrUnsupportedValue("value of Go type %T (backend type %q)", v, typeName)
	}
}

// finite maps NaN and the infinities to nil; JSON has no representation for them.
func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// formatTemporal renders t according to the backend column type. Unknown
// types get the full timestamp form.
func formatTemporal(t time.Time, typeName string) string {
	switch upper := strings.ToUpper(strings.TrimSpace(typeName)); {
	case upper == "DATE":
		return t.Format(DateLayout)
	case upper == "TIME" || upper == "TIMETZ" || strings.HasPrefix(upper, "TIME WITH"):
		return t.Format(TimeLayout)
	default:
		return t.Format(TimestampLayout)
	}
}

func isTextType(typeName string) bool {
	upper := strings.ToUpper(typeName)
	return strings.Contains(upper, "CHAR") || strings.Contains(upper, "TEXT") ||
		strings.Contains(upper, "CLOB") || upper == "STRING"
}
