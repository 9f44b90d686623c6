// Package testutil provides shared test helpers for setting up stores and catalogs.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/jsonvault/internal/index"
	"github.com/starford/jsonvault/internal/storage"
)

// TestDB creates a temporary SQLite catalog that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "jsonvault-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRoots returns synced and private roots inside a temporary directory.
// The roots themselves are not created.
func TestRoots(t *testing.T) storage.Roots {
	t.Helper()
	dir := t.TempDir()
	return storage.Roots{
		Synced:  filepath.Join(dir, "Cloud"),
		Private: filepath.Join(dir, "NoCloud"),
	}
}

// TestStore creates a dual-root store over temporary directories.
func TestStore(t *testing.T) (*storage.Store, storage.Roots) {
	t.Helper()
	roots := TestRoots(t)
	store, err := storage.NewStore(roots)
	if err != nil {
		t.Fatal(err)
	}
	return store, roots
}

// TestMemoryStore creates a dual-tier store held in process memory.
func TestMemoryStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(storage.BackendMemory, TestRoots(t))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
