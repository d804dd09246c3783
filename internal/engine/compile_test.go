package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataframehub/internal/domain"
)

func limit(n int64) *int64 { return &n }

func TestCompile(t *testing.T) {
	tests := []struct {
		name string
		q    domain.QueryModel
		want string
	}{
		{
			name: "empty_model_selects_everything",
			q:    domain.QueryModel{},
			want: `SELECT * FROM "users"`,
		},
		{
			name: "select_wins_over_measures_and_dimensions",
			q: domain.QueryModel{
				Select:     []string{"name"},
				Measures:   []string{"SUM(age)"},
				Dimensions: []string{"state"},
			},
			want: `SELECT name FROM "users"`,
		},
		{
			name: "measures_before_dimensions",
			q: domain.QueryModel{
				Measures:   []string{"AVG(unemployment_rate)"},
				Dimensions: []string{"state"},
			},
			want: `SELECT AVG(unemployment_rate), state FROM "users"`,
		},
		{
			name: "dimensions_only",
			q:    domain.QueryModel{Dimensions: []string{"state", "date"}},
			want: `SELECT state, date FROM "users"`,
		},
		{
			name: "where_order_limit",
			q: domain.QueryModel{
				Select:  []string{"name", "email"},
				Where:   "age > 25",
				OrderBy: []string{"name"},
				Limit:   limit(2),
			},
			want: `SELECT name, email FROM "users" WHERE age > 25 ORDER BY name LIMIT 2`,
		},
		{
			name: "blank_where_is_omitted",
			q:    domain.QueryModel{Where: "   "},
			want: `SELECT * FROM "users"`,
		},
		{
			name: "multi_key_order",
			q:    domain.QueryModel{OrderBy: []string{"date DESC", "state ASC"}, Limit: limit(60)},
			want: `SELECT * FROM "users" ORDER BY date DESC, state ASC LIMIT 60`,
		},
		{
			name: "limit_zero_is_kept",
			q:    domain.QueryModel{Limit: limit(0)},
			want: `SELECT * FROM "users" LIMIT 0`,
		},
		{
			name: "table_field_is_ignored",
			q:    domain.QueryModel{Table: "other"},
			want: `SELECT * FROM "users"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, strict := range []bool{false, true} {
				got, err := Compiler{Strict: strict}.Compile(&tt.q, "users")
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCompile_QuotesRelation(t *testing.T) {
	got, err := Compiler{}.Compile(&domain.QueryModel{}, `unemployment-"rates"`)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "unemployment-""rates"""`, got)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		q        *domain.QueryModel
		relation string
		check    func(t *testing.T, err error)
	}{
		{
			name:     "nil_model",
			relation: "users",
			check:    isCompilationError,
		},
		{
			name:     "empty_relation",
			q:        &domain.QueryModel{},
			relation: " ",
			check:    isCompilationError,
		},
		{
			name:     "negative_limit",
			q:        &domain.QueryModel{Limit: limit(-1)},
			relation: "users",
			check: func(t *testing.T, err error) {
				var ve *domain.ValidationError
				require.True(t, errors.As(err, &ve), "got %v", err)
			},
		},
		{
			name:     "strict_rejects_stacked_statement",
			q:        &domain.QueryModel{Where: "1=1; DROP TABLE users"},
			relation: "users",
			check:    isCompilationError,
		},
		{
			name:     "strict_rejects_subquery_column",
			q:        &domain.QueryModel{Select: []string{"(SELECT password FROM secrets)"}},
			relation: "users",
			check:    isCompilationError,
		},
		{
			name:     "strict_rejects_bad_order_term",
			q:        &domain.QueryModel{OrderBy: []string{"name -- comment"}},
			relation: "users",
			check:    isCompilationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compiler{Strict: true}.Compile(tt.q, tt.relation)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCompile_PassThroughWhenNotStrict(t *testing.T) {
	got, err := Compiler{}.Compile(&domain.QueryModel{Where: "name = 'x'; SELECT 1"}, "users")
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE name = 'x'; SELECT 1`, got)
}

func TestCompile_Idempotent(t *testing.T) {
	q := &domain.QueryModel{Select: []string{"name"}, Where: "age > 1", OrderBy: []string{"name DESC"}, Limit: limit(3)}
	first, err := Compiler{Strict: true}.Compile(q, "users")
	require.NoError(t, err)
	second, err := Compiler{Strict: true}.Compile(q, "users")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func isCompilationError(t *testing.T, err error) {
	t.Helper()
	var ce *domain.CompilationError
	require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
}
