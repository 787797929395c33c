package pebble

import (
	"github.com/cockroachdb/pebble"
	"github.com/octohelm/moviedb/pkg/kv"
	"github.com/pkg/errors"
)

var _ kv.Session = (*BatchSession)(nil)

const (
	// 10MB
	defaultMaxBatchSize = 10 * 1024 * 1024
)

type BatchSession struct {
	DB           *pebble.DB
	Batch        *pebble.Batch
	closed       bool
	maxBatchSize int
}

func (s *BatchSession) Commit(opts ...kv.CommitOptionFunc) error {
	if s.closed {
		return errors.New("already closed")
	}

	w := pebble.Sync

	opt := &kv.CommitOption{}
	for i := range opts {
		opts[i](opt)
	}

	if opt.NoSync {
		w = pebble.NoSync
	}

	err := s.Batch.Commit(w)
	if err != nil {
		return err
	}

	return s.Close()
}

// Close discards uncommitted changes. Closing twice is a no-op.
func (s *BatchSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.Batch.Close()
}

// Get returns a value associated with the given key. If not found, returns ErrKeyNotFound.
func (s *BatchSession) Get(k []byte) ([]byte, error) {
	return get(s.Batch, k)
}

// Exists returns whether a key exists and is visible by the current session.
func (s *BatchSession) Exists(k []byte) (bool, error) {
	return exists(s.Batch, k)
}

func (s *BatchSession) ensureBatchSize() error {
	if s.Batch.Len() < s.maxBatchSize {
		return nil
	}
	return errors.Errorf("batch exceeds %d bytes", s.maxBatchSize)
}

// Insert inserts a key-value pair. If it already exists, it returns ErrKeyAlreadyExists.
func (s *BatchSession) Insert(k, v []byte) error {
	ok, err := s.Exists(k)
	if err != nil {
		return err
	}
	if ok {
		return kv.ErrKeyAlreadyExists
	}
	return s.Put(k, v)
}

// Put stores a key value pair. If it already exists, it overrides it.
func (s *BatchSession) Put(k, v []byte) error {
	if len(k) == 0 {
		return errors.New("cannot store empty key")
	}

	if len(v) == 0 {
		return errors.New("cannot store empty value")
	}

	err := s.Batch.Set(k, v, nil)
	if err != nil {
		return err
	}

	return s.ensureBatchSize()
}

// Delete a record by key. If the key doesn't exist, it doesn't do anything.
func (s *BatchSession) Delete(k []byte) error {
	err := s.Batch.Delete(k, nil)
	if err != nil {
		return err
	}

	return s.ensureBatchSize()
}

func (s *BatchSession) Iterator(start []byte, end []byte) kv.Iterator {
	return s.Batch.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
}
