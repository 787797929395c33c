package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/octohelm/moviedb/internal/database"
	"github.com/octohelm/moviedb/internal/tree"
	"github.com/octohelm/moviedb/pkg/kv"
	_ "github.com/octohelm/moviedb/pkg/kv/pebble"
	"github.com/octohelm/moviedb/pkg/schema"
	. "github.com/octohelm/x/testing"
)

func TempDir(t testing.TB) string {
	dir, err := os.MkdirTemp("", "moviedb")
	Expect(t, err, Be[error](nil))
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
	})
	return dir
}

func NewStore(t testing.TB) kv.Store {
	t.Helper()
	return NewStoreAt(t, TempDir(t))
}

func NewStoreAt(t testing.TB, path string) kv.Store {
	t.Helper()
	s, err := kv.NewStore("pebble", kv.Options{
		Path: path,
	})
	Expect(t, err, Be[error](nil))
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
	})
	return s
}

func NewTree(t testing.TB, namespace tree.Namespace) *tree.Tree {
	t.Helper()
	s := NewStore(t)
	session := s.NewBatchSession("test")
	t.Cleanup(func() {
		_ = session.Close()
	})
	return tree.New(session, namespace)
}

// NewDatabase opens a database on a fresh store, migrated to desc.
func NewDatabase(t testing.TB, desc schema.Database) database.Database {
	t.Helper()
	db, err := database.Open(context.Background(), desc.Name, NewStore(t))
	Expect(t, err, Be[error](nil))
	Expect(t, db.Migrate(context.Background(), desc), Be[error](nil))
	return db
}
