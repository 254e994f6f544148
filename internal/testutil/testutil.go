// Package testutil provides shared test helpers for setting up stores and
// inbox directories.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/starford/docket/internal/docservice"
	"github.com/starford/docket/internal/storage"
	"github.com/starford/docket/internal/store"
)

// TestStore creates a fresh store file in a temp dir that is closed on cleanup.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Create(context.Background(), filepath.Join(t.TempDir(), "docket-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// TestService wraps a fresh store in a document service.
func TestService(t *testing.T, opts ...docservice.Option) *docservice.Service {
	t.Helper()
	svc, err := docservice.NewService(TestStore(t), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

// TestInbox creates a temporary inbox directory with a storage.Provider.
func TestInbox(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}
