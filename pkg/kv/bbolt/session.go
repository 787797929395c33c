package bbolt

import (
	"bytes"

	"github.com/octohelm/moviedb/pkg/kv"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var _ kv.Session = (*session)(nil)

type session struct {
	tx       *bbolt.Tx
	err      error
	writable bool
	closed   bool
}

func (s *session) bucket() (*bbolt.Bucket, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.closed {
		return nil, errors.New("already closed")
	}
	return s.tx.Bucket(bucketName), nil
}

func (s *session) Get(k []byte) ([]byte, error) {
	b, err := s.bucket()
	if err != nil {
		return nil, err
	}
	v := b.Get(k)
	if v == nil {
		return nil, kv.ErrKeyNotFound
	}
	return kv.Copy(v), nil
}

func (s *session) Exists(k []byte) (bool, error) {
	b, err := s.bucket()
	if err != nil {
		return false, err
	}
	return b.Get(k) != nil, nil
}

func (s *session) Insert(k, v []byte) error {
	ok, err := s.Exists(k)
	if err != nil {
		return err
	}
	if ok {
		return kv.ErrKeyAlreadyExists
	}
	return s.Put(k, v)
}

func (s *session) Put(k, v []byte) error {
	if !s.writable {
		return kv.ErrMethodNotAllowed
	}
	if len(v) == 0 {
		return errors.New("cannot store empty value")
	}
	b, err := s.bucket()
	if err != nil {
		return err
	}
	return b.Put(k, v)
}

func (s *session) Delete(k []byte) error {
	if !s.writable {
		return kv.ErrMethodNotAllowed
	}
	b, err := s.bucket()
	if err != nil {
		return err
	}
	return b.Delete(k)
}

// Commit writes the transaction; bbolt fsyncs on every commit.
func (s *session) Commit(opts ...kv.CommitOptionFunc) error {
	if !s.writable {
		return kv.ErrMethodNotAllowed
	}
	if s.err != nil {
		return s.err
	}
	if s.closed {
		return errors.New("already closed")
	}
	s.closed = true
	return s.tx.Commit()
}

func (s *session) Close() error {
	if s.err != nil || s.closed {
		return nil
	}
	s.closed = true
	return s.tx.Rollback()
}

func (s *session) Iterator(start []byte, end []byte) kv.Iterator {
	b, err := s.bucket()
	if err != nil {
		return &iterator{err: err}
	}
	return &iterator{c: b.Cursor(), start: start, end: end}
}

type iterator struct {
	c          *bbolt.Cursor
	start, end []byte
	k, v       []byte
	err        error
}

func (it *iterator) set(k, v []byte) bool {
	if k == nil ||
		(it.start != nil && bytes.Compare(k, it.start) < 0) ||
		(it.end != nil && bytes.Compare(k, it.end) >= 0) {
		it.k, it.v = nil, nil
		return false
	}
	it.k, it.v = k, v
	return true
}

func (it *iterator) First() bool {
	if it.c == nil {
		return false
	}
	if it.start == nil {
		return it.set(it.c.First())
	}
	return it.set(it.c.Seek(it.start))
}

func (it *iterator) Last() bool {
	if it.c == nil {
		return false
	}
	if it.end == nil {
		return it.set(it.c.Last())
	}
	k, _ := it.c.Seek(it.end)
	if k == nil {
		return it.set(it.c.Last())
	}
	return it.set(it.c.Prev())
}

func (it *iterator) Next() bool {
	if it.c == nil || it.k == nil {
		return false
	}
	return it.set(it.c.Next())
}

func (it *iterator) Prev() bool {
	if it.c == nil || it.k == nil {
		return false
	}
	return it.set(it.c.Prev())
}

func (it *iterator) Valid() bool {
	return it.k != nil
}

func (it *iterator) Error() error {
	return it.err
}

func (it *iterator) Key() []byte {
	return it.k
}

func (it *iterator) Value() []byte {
	return it.v
}

func (it *iterator) Close() error {
	return nil
}
