package db

import (
	"context"
	"path/filepath"
	"testing"
)

// OpenTestStore opens a migrated metastore in t.TempDir() and closes it on cleanup.
func OpenTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "meta.sqlite"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
