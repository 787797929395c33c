package leveldb

import (
	"github.com/octohelm/moviedb/pkg/kv"
	"github.com/pkg/errors"
	levelDb "github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var (
	_ kv.Session = (*snapshotSession)(nil)
	_ kv.Session = (*transactionSession)(nil)
)

var syncWrite = &opt.WriteOptions{Sync: true}

type snapshotSession struct {
	snap *levelDb.Snapshot
	err  error
}

func (s *snapshotSession) Insert(k, v []byte) error { return kv.ErrMethodNotAllowed }
func (s *snapshotSession) Put(k, v []byte) error    { return kv.ErrMethodNotAllowed }
func (s *snapshotSession) Delete(k []byte) error    { return kv.ErrMethodNotAllowed }

func (s *snapshotSession) Commit(opts ...kv.CommitOptionFunc) error {
	return kv.ErrMethodNotAllowed
}

func (s *snapshotSession) Get(k []byte) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	v, err := s.snap.Get(k, nil)
	if err != nil {
		if err == levelDb.ErrNotFound {
			return nil, kv.ErrKeyNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *snapshotSession) Exists(k []byte) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.snap.Has(k, nil)
}

func (s *snapshotSession) Iterator(start []byte, end []byte) kv.Iterator {
	if s.err != nil {
		return &errIterator{err: s.err}
	}
	return &iter{Iterator: s.snap.NewIterator(rangeOf(start, end), nil)}
}

func (s *snapshotSession) Close() error {
	if s.snap != nil {
		s.snap.Release()
		s.snap = nil
	}
	return nil
}

// transactionSession holds the database write lock until Commit or Close.
type transactionSession struct {
	tr     *levelDb.Transaction
	err    error
	closed bool
}

func (s *transactionSession) check() error {
	if s.err != nil {
		return s.err
	}
	if s.closed {
		return errors.New("already closed")
	}
	return nil
}

func (s *transactionSession) Get(k []byte) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	v, err := s.tr.Get(k, nil)
	if err != nil {
		if err == levelDb.ErrNotFound {
			return nil, kv.ErrKeyNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *transactionSession) Exists(k []byte) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	return s.tr.Has(k, nil)
}

func (s *transactionSession) Insert(k, v []byte) error {
	ok, err := s.Exists(k)
	if err != nil {
		return err
	}
	if ok {
		return kv.ErrKeyAlreadyExists
	}
	return s.Put(k, v)
}

func (s *transactionSession) Put(k, v []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	if len(v) == 0 {
		return errors.New("cannot store empty value")
	}
	return s.tr.Put(k, v, syncWrite)
}

func (s *transactionSession) Delete(k []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.tr.Delete(k, syncWrite)
}

func (s *transactionSession) Iterator(start []byte, end []byte) kv.Iterator {
	if err := s.check(); err != nil {
		return &errIterator{err: err}
	}
	return &iter{Iterator: s.tr.NewIterator(rangeOf(start, end), nil)}
}

func (s *transactionSession) Commit(opts ...kv.CommitOptionFunc) error {
	if err := s.check(); err != nil {
		return err
	}
	s.closed = true
	return s.tr.Commit()
}

func (s *transactionSession) Close() error {
	if s.err != nil || s.closed {
		return nil
	}
	s.closed = true
	s.tr.Discard()
	return nil
}

type iter struct {
	iterator.Iterator
}

func (it *iter) Close() error {
	it.Release()
	return nil
}

type errIterator struct {
	err error
}

func (it *errIterator) First() bool   { return false }
func (it *errIterator) Next() bool    { return false }
func (it *errIterator) Last() bool    { return false }
func (it *errIterator) Prev() bool    { return false }
func (it *errIterator) Valid() bool   { return false }
func (it *errIterator) Error() error  { return it.err }
func (it *errIterator) Key() []byte   { return nil }
func (it *errIterator) Value() []byte { return nil }
func (it *errIterator) Close() error  { return nil }
