package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// QueryModel is the backend-agnostic description of a single read query.
//
// Column selection follows a fixed precedence: Select wins outright when
// non-empty, otherwise Measures followed by Dimensions, otherwise all columns.
type QueryModel struct {
	Description string   `json:"description,omitempty"`
	Table       string   `json:"table,omitempty"`
	Select      []string `json:"select,omitempty"`
	Measures    []string `json:"measures,omitempty"`
	Dimensions  []string `json:"dimensions,omitempty"`
	Where       string   `json:"where,omitempty"`
	OrderBy     []string `json:"order_by,omitempty"`
	Limit       *int64   `json:"limit,omitempty"`
}

// EffectiveColumns returns the column list the query selects. A nil result
// means the query selects all columns of the relation.
func (q *QueryModel) EffectiveColumns() []string {
	if len(q.Select) > 0 {
		return append([]string(nil), q.Select...)
	}
	if len(q.Measures) > 0 || len(q.Dimensions) > 0 {
		cols := make([]string, 0, len(q.Measures)+len(q.Dimensions))
		cols = append(cols, q.Measures...)
		return append(cols, q.Dimensions...)
	}
	return nil
}

// IsWildcard reports whether the query selects all columns.
func (q *QueryModel) IsWildcard() bool {
	return len(q.Select) == 0 && len(q.Measures) == 0 && len(q.Dimensions) == 0
}

// Validate performs the structural checks on a query model. The where and
// order_by contents are engine-native and are not interpreted here.
func (q *QueryModel) Validate() error {
	if q.Limit != nil && *q.Limit < 0 {
		return ErrValidation("limit must be non-negative, got %d", *q.Limit)
	}
	for field, entries := range map[string][]string{
		"select":     q.Select,
		"measures":   q.Measures,
		"dimensions": q.Dimensions,
		"order_by":   q.OrderBy,
	} {
		for i, e := range entries {
			if strings.TrimSpace(e) == "" {
				return ErrValidation("%s[%d] must not be empty", field, i)
			}
		}
	}
	return nil
}

// Clone returns a deep copy so callers can mutate Table without affecting the input.
func (q *QueryModel) Clone() *QueryModel {
	c := *q
	c.Select = append([]string(nil), q.Select...)
	c.Measures = append([]string(nil), q.Measures...)
	c.Dimensions = append([]string(nil), q.Dimensions...)
	c.OrderBy = append([]string(nil), q.OrderBy...)
	if q.Limit != nil {
		l := *q.Limit
		c.Limit = &l
	}
	return &c
}

// ParseQueryModel decodes a JSON query model and validates it.
// Absent fields take their defaults (empty lists, no filter, unbounded limit).
func ParseQueryModel(data []byte) (*QueryModel, error) {
	return DecodeQueryModel(bytes.NewReader(data))
}

// DecodeQueryModel reads a JSON query model from r and validates it.
func DecodeQueryModel(r io.Reader) (*QueryModel, error) {
	var q QueryModel
	if err := json.NewDecoder(r).Decode(&q); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrValidation("invalid query model: field %q has the wrong type (%s)", typeErr.Field, typeErr.Value)
		}
		return nil, ErrValidation("invalid query model: %v", err)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}
