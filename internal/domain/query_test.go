package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryModel_EffectiveColumns(t *testing.T) {
	tests := []struct {
		name     string
		q        QueryModel
		want     []string
		wildcard bool
	}{
		{
			name:     "empty_model_is_wildcard",
			q:        QueryModel{},
			want:     nil,
			wildcard: true,
		},
		{
			name: "select_wins_over_measures",
			q:    QueryModel{Select: []string{"a"}, Measures: []string{"b"}, Dimensions: []string{"c"}},
			want: []string{"a"},
		},
		{
			name: "measures_precede_dimensions",
			q:    QueryModel{Measures: []string{"m"}, Dimensions: []string{"d"}},
			want: []string{"m", "d"},
		},
		{
			name: "dimensions_only",
			q:    QueryModel{Dimensions: []string{"state", "date"}},
			want: []string{"state", "date"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.EffectiveColumns())
			assert.Equal(t, tt.wildcard, tt.q.IsWildcard())
		})
	}
}

func TestQueryModel_Validate(t *testing.T) {
	neg := int64(-1)
	zero := int64(0)

	tests := []struct {
		name    string
		q       QueryModel
		wantErr string
	}{
		{name: "empty_ok", q: QueryModel{}},
		{name: "zero_limit_ok", q: QueryModel{Limit: &zero}},
		{name: "negative_limit", q: QueryModel{Limit: &neg}, wantErr: "limit must be non-negative"},
		{name: "blank_select_entry", q: QueryModel{Select: []string{"a", " "}}, wantErr: "select[1] must not be empty"},
		{name: "blank_order_entry", q: QueryModel{OrderBy: []string{""}}, wantErr: "order_by[0] must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
}

func TestParseQueryModel(t *testing.T) {
	t.Run("full_model", func(t *testing.T) {
		q, err := ParseQueryModel([]byte(`{
			"description": "adults",
			"select": ["name", "email"],
			"where": "age > 25",
			"order_by": ["name"],
			"limit": 2,
			"table": "ignored"
		}`))
		require.NoError(t, err)
		assert.Equal(t, "adults", q.Description)
		assert.Equal(t, []string{"name", "email"}, q.Select)
		assert.Equal(t, "age > 25", q.Where)
		assert.Equal(t, []string{"name"}, q.OrderBy)
		require.NotNil(t, q.Limit)
		assert.Equal(t, int64(2), *q.Limit)
		assert.Equal(t, "ignored", q.Table)
	})

	t.Run("absent_fields_default", func(t *testing.T) {
		q, err := ParseQueryModel([]byte(`{}`))
		require.NoError(t, err)
		assert.Empty(t, q.Select)
		assert.Empty(t, q.Where)
		assert.Nil(t, q.Limit)
		assert.True(t, q.IsWildcard())
	})

	t.Run("null_limit_is_unbounded", func(t *testing.T) {
		q, err := ParseQueryModel([]byte(`{"limit": null, "where": null}`))
		require.NoError(t, err)
		assert.Nil(t, q.Limit)
		assert.Empty(t, q.Where)
	})

	t.Run("where_list_rejected", func(t *testing.T) {
		_, err := ParseQueryModel([]byte(`{"where": ["a > 1", "b < 2"]}`))
		require.Error(t, err)
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, err.Error(), "where")
	})

	t.Run("malformed_json", func(t *testing.T) {
		_, err := ParseQueryModel([]byte(`{"select": `))
		require.Error(t, err)
		var ve *ValidationError
		assert.True(t, errors.As(err, &ve))
	})

	t.Run("negative_limit", func(t *testing.T) {
		_, err := ParseQueryModel([]byte(`{"limit": -5}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-negative")
	})
}

func TestQueryModel_Clone(t *testing.T) {
	limit := int64(3)
	q := &QueryModel{Select: []string{"a"}, OrderBy: []string{"a DESC"}, Limit: &limit}
	c := q.Clone()

	c.Select[0] = "b"
	c.Table = "t"
	*c.Limit = 10

	assert.Equal(t, "a", q.Select[0])
	assert.Empty(t, q.Table)
	assert.Equal(t, int64(3), *q.Limit)
}
