package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryCmd(t *testing.T) {
	dir := testEnv(t)
	importUsers(t, dir)
	modelFile := writeFile(t, filepath.Join(dir, "model.json"), `{"select":["name","age"],"where":"age > 25","order_by":["age"]}`)

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{
			name: "flags",
			args: []string{"--select", "name", "--order-by", "age DESC", "--limit", "2"},
			want: `[{"name":"Charlie"},{"name":"Bob"}]`,
		},
		{
			name: "measures_and_dimensions",
			args: []string{"--dimension", "name", "--measure", "age * 12 AS months", "--order-by", "age", "--limit", "1"},
			want: `[{"months":264,"name":"Alice"}]`,
		},
		{
			name: "model_file",
			args: []string{"--file", modelFile},
			want: `[{"name":"Bob","age":30},{"name":"Charlie","age":41}]`,
		},
		{
			name: "flags_override_file",
			args: []string{"--file", modelFile, "--limit", "1"},
			want: `[{"name":"Bob","age":30}]`,
		},
		{
			name:  "stdin",
			stdin: `{"select":["email"],"where":"name = 'Alice'"}`,
			args:  []string{"--file", "-"},
			want:  `[{"email":"a@x.com"}]`,
		},
		{
			name: "no_rows",
			args: []string{"--where", "age > 100"},
			want: `[]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"query", "acme", "users", "-o", "json"}, tt.args...)
			res := runCLI(t, tt.stdin, args...)
			require.NoError(t, res.err, res.stderr)
			assert.JSONEq(t, tt.want, res.stdout)
		})
	}
}

func TestQueryCmd_KeepsColumnOrder(t *testing.T) {
	dir := testEnv(t)
	importUsers(t, dir)

	tests := []struct {
		name  string
		args  []string
		first string
		then  string
	}{
		{"select_order", []string{"--select", "age", "--select", "name"}, `"age"`, `"name"`},
		{"measures_before_dimensions", []string{"--dimension", "name", "--measure", "age"}, `"age"`, `"name"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"query", "acme", "users", "--limit", "1", "-o", "json"}, tt.args...)
			res := runCLI(t, "", args...)
			require.NoError(t, res.err)
			assert.Less(t, strings.Index(res.stdout, tt.first), strings.Index(res.stdout, tt.then))
		})
	}
}

func TestQueryCmd_Table(t *testing.T) {
	dir := testEnv(t)
	importUsers(t, dir)

	res := runCLI(t, "", "query", "acme", "users", "--select", "name", "--select", "age", "--order-by", "age", "--show-sql", "-o", "table")
	require.NoError(t, res.err)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"NAME", "AGE"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"Alice", "22"}, strings.Fields(lines[1]))
	assert.Contains(t, res.stderr, "SELECT")
}

func TestQueryCmd_Errors(t *testing.T) {
	dir := testEnv(t)
	importUsers(t, dir)

	tests := []struct {
		name     string
		args     []string
		wantKind string
	}{
		{"unknown_dataset", []string{"query", "acme", "missing"}, "not_found"},
		{"negative_limit", []string{"query", "acme", "users", "--limit=-1"}, "validation"},
		{"bad_model_file", []string{"query", "acme", "users", "--file", "-"}, "validation"},
		{"rejected_expression", []string{"query", "acme", "users", "--where", "1=1; DROP TABLE users"}, "compilation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, "{", tt.args...)
			require.Error(t, res.err)
			assert.Equal(t, tt.wantKind, errorKind(res.err), res.err.Error())
		})
	}

	res := runCLI(t, "", "query", "acme", "users", "--file", filepath.Join(dir, "nope.json"))
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "open query file")
}
