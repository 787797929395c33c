// Package leveldb registers the "leveldb" engine backed by syndtr/goleveldb.
package leveldb

import (
	"context"

	"github.com/octohelm/moviedb/pkg/kv"
	"github.com/pkg/errors"
	levelDb "github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

func init() {
	kv.RegisterEngine("leveldb", &engine{})
}

type engine struct {
}

func (engine) New(o kv.Options) (kv.Store, error) {
	path := o.Path
	if path == "" {
		path = o.Extra["path"]
	}
	if path == "" {
		return nil, errors.New("engine leveldb need `path`")
	}

	var (
		db  *levelDb.DB
		err error
	)

	if path == kv.MemoryPath {
		db, err = levelDb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = levelDb.OpenFile(path, &opt.Options{})
	}
	if err != nil {
		if kv.IsLockError(err) {
			return nil, errors.Wrap(kv.ErrLocked, err.Error())
		}
		return nil, errors.Wrapf(err, "failed to open leveldb at %s", path)
	}

	return &store{db: db}, nil
}

type store struct {
	db *levelDb.DB
}

func (s *store) NewSnapshotSession(dbName string) kv.Session {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return &snapshotSession{err: err}
	}
	return &snapshotSession{snap: snap}
}

func (s *store) NewBatchSession(dbName string) kv.Session {
	tr, err := s.db.OpenTransaction()
	if err != nil {
		return &transactionSession{err: err}
	}
	return &transactionSession{tr: tr}
}

func (s *store) Shutdown(ctx context.Context) error {
	return s.db.Close()
}

func rangeOf(start, end []byte) *util.Range {
	if start == nil && end == nil {
		return nil
	}
	return &util.Range{Start: start, Limit: end}
}
