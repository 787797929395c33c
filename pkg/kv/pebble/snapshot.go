package pebble

import (
	"io"

	"github.com/cockroachdb/pebble"
	"github.com/octohelm/moviedb/pkg/kv"
)

var _ kv.Session = (*SnapshotSession)(nil)

// SnapshotSession reads from a point-in-time view of the database.
type SnapshotSession struct {
	Snapshot *pebble.Snapshot
	closed   bool
}

func (s *SnapshotSession) Insert(k, v []byte) error {
	return kv.ErrMethodNotAllowed
}

func (s *SnapshotSession) Put(k, v []byte) error {
	return kv.ErrMethodNotAllowed
}

func (s *SnapshotSession) Delete(k []byte) error {
	return kv.ErrMethodNotAllowed
}

func (s *SnapshotSession) Commit(opts ...kv.CommitOptionFunc) error {
	return kv.ErrMethodNotAllowed
}

func (s *SnapshotSession) Get(k []byte) ([]byte, error) {
	return get(s.Snapshot, k)
}

func (s *SnapshotSession) Exists(k []byte) (bool, error) {
	return exists(s.Snapshot, k)
}

func (s *SnapshotSession) Iterator(start []byte, end []byte) kv.Iterator {
	return s.Snapshot.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
}

func (s *SnapshotSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.Snapshot.Close()
}

type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

func get(r reader, k []byte) ([]byte, error) {
	v, closer, err := r.Get(k)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, kv.ErrKeyNotFound
		}
		return nil, err
	}
	defer closer.Close()

	return kv.Copy(v), nil
}

func exists(r reader, k []byte) (bool, error) {
	_, closer, err := r.Get(k)
	if err != nil {
		if err == pebble.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, closer.Close()
}
