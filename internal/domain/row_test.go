package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_MarshalJSONKeepsColumnOrder(t *testing.T) {
	row := Row{
		Columns: []string{"zeta", "alpha", "mid"},
		Values:  []any{int64(1), "a", nil},
	}

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"a","mid":null}`, string(data))
}

func TestRow_GetAndMap(t *testing.T) {
	row := Row{Columns: []string{"name", "age"}, Values: []any{"Bob", int64(25)}}

	v, ok := row.Get("age")
	require.True(t, ok)
	assert.Equal(t, int64(25), v)

	_, ok = row.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, map[string]any{"name": "Bob", "age": int64(25)}, row.Map())
}

func TestContextPrincipal_CanAccess(t *testing.T) {
	p := ContextPrincipal{Name: "alice", Organizations: []string{"acme"}}
	assert.True(t, p.CanAccess("acme"))
	assert.False(t, p.CanAccess("globex"))

	admin := ContextPrincipal{Name: "root", Organizations: []string{"*"}}
	assert.True(t, admin.CanAccess("globex"))
}
