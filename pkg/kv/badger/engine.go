// Package badger registers the "badger" engine backed by dgraph-io/badger.
package badger

import (
	"context"

	"github.com/dgraph-io/badger"
	"github.com/octohelm/moviedb/pkg/kv"
	"github.com/pkg/errors"
)

func init() {
	kv.RegisterEngine("badger", &engine{})
}

type engine struct {
}

func (engine) New(opt kv.Options) (kv.Store, error) {
	path := opt.Path
	if path == "" {
		path = opt.Extra["path"]
	}
	if path == "" {
		return nil, errors.New("engine badger need `path`")
	}
	if path == kv.MemoryPath {
		return nil, errors.New("engine badger does not support in-memory databases")
	}

	db, err := badger.Open(badger.DefaultOptions(path).WithSyncWrites(true))
	if err != nil {
		if kv.IsLockError(err) {
			return nil, errors.Wrap(kv.ErrLocked, err.Error())
		}
		return nil, err
	}

	return &store{db: db}, nil
}

type store struct {
	db *badger.DB
}

func (s *store) NewSnapshotSession(dbName string) kv.Session {
	return &session{txn: s.db.NewTransaction(false)}
}

func (s *store) NewBatchSession(dbName string) kv.Session {
	return &session{txn: s.db.NewTransaction(true), writable: true}
}

func (s *store) Shutdown(ctx context.Context) error {
	return s.db.Close()
}
