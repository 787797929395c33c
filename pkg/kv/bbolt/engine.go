// Package bbolt registers the "bbolt" engine: a single-file B+tree, one bucket per database file.
package bbolt

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/octohelm/moviedb/pkg/kv"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var bucketName = []byte{0}

// lockTimeout bounds how long Open waits on the file lock before reporting kv.ErrLocked.
const lockTimeout = 100 * time.Millisecond

func init() {
	kv.RegisterEngine("bbolt", &engine{})
}

type engine struct {
}

func (engine) New(opt kv.Options) (kv.Store, error) {
	path := opt.Path
	if path == "" {
		path = opt.Extra["path"]
	}
	if path == "" {
		return nil, errors.New("engine bbolt need `path`")
	}
	if path == kv.MemoryPath {
		return nil, errors.New("engine bbolt does not support in-memory databases")
	}

	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(filepath.Join(path, "db.bbolt"), 0o600, &bbolt.Options{Timeout: lockTimeout})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, errors.Wrap(kv.ErrLocked, err.Error())
		}
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &store{db: db}, nil
}

type store struct {
	db *bbolt.DB
}

func (s *store) NewSnapshotSession(dbName string) kv.Session {
	tx, err := s.db.Begin(false)
	return &session{tx: tx, err: err}
}

func (s *store) NewBatchSession(dbName string) kv.Session {
	tx, err := s.db.Begin(true)
	return &session{tx: tx, err: err, writable: true}
}

func (s *store) Shutdown(ctx context.Context) error {
	if err := s.db.Sync(); err != nil {
		logr.FromContextOrDiscard(ctx).Error(err, "Sync")
	}
	return s.db.Close()
}
