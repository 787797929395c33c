package badger

import (
	"bytes"

	"github.com/dgraph-io/badger"
	"github.com/octohelm/moviedb/pkg/kv"
	"github.com/pkg/errors"
)

var _ kv.Session = (*session)(nil)

type session struct {
	txn      *badger.Txn
	writable bool
	closed   bool
}

func (s *session) Get(k []byte) ([]byte, error) {
	if s.closed {
		return nil, errors.New("already closed")
	}
	item, err := s.txn.Get(k)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, kv.ErrKeyNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (s *session) Exists(k []byte) (bool, error) {
	_, err := s.Get(k)
	if err != nil {
		if err == kv.ErrKeyNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
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
	if len(k) == 0 {
		return errors.New("cannot store empty key")
	}
	if len(v) == 0 {
		return errors.New("cannot store empty value")
	}
	return s.txn.Set(kv.Copy(k), kv.Copy(v))
}

func (s *session) Delete(k []byte) error {
	if !s.writable {
		return kv.ErrMethodNotAllowed
	}
	err := s.txn.Delete(kv.Copy(k))
	if err != nil && err != badger.ErrKeyNotFound {
		return err
	}
	return nil
}

// Commit writes the transaction, synced because the db is opened with SyncWrites.
func (s *session) Commit(opts ...kv.CommitOptionFunc) error {
	if !s.writable {
		return kv.ErrMethodNotAllowed
	}
	if s.closed {
		return errors.New("already closed")
	}
	s.closed = true
	return s.txn.Commit()
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.txn.Discard()
	return nil
}

// Iterator opens a badger iterator lazily, badger iterators only walk one way.
func (s *session) Iterator(start []byte, end []byte) kv.Iterator {
	return &iterator{txn: s.txn, start: start, end: end}
}

type iterator struct {
	txn        *badger.Txn
	start, end []byte
	it         *badger.Iterator
	reverse    bool
	err        error
}

func (i *iterator) open(reverse bool) {
	_ = i.Close()
	opts := badger.DefaultIteratorOptions
	opts.Reverse = reverse
	i.reverse = reverse
	i.it = i.txn.NewIterator(opts)
}

func (i *iterator) First() bool {
	i.open(false)
	if i.start != nil {
		i.it.Seek(i.start)
	} else {
		i.it.Rewind()
	}
	return i.Valid()
}

func (i *iterator) Last() bool {
	i.open(true)
	if i.end != nil {
		// reverse Seek lands on the largest key <= end, end itself is excluded
		i.it.Seek(i.end)
		if i.it.Valid() && bytes.Equal(i.it.Item().Key(), i.end) {
			i.it.Next()
		}
	} else {
		i.it.Rewind()
	}
	return i.Valid()
}

func (i *iterator) Next() bool {
	if i.it == nil {
		return false
	}
	if i.reverse {
		i.err = errors.New("badger: Next on a reverse iterator")
		return false
	}
	i.it.Next()
	return i.Valid()
}

func (i *iterator) Prev() bool {
	if i.it == nil {
		return false
	}
	if !i.reverse {
		i.err = errors.New("badger: Prev on a forward iterator")
		return false
	}
	i.it.Next()
	return i.Valid()
}

func (i *iterator) Valid() bool {
	if i.it == nil || i.err != nil || !i.it.Valid() {
		return false
	}
	k := i.it.Item().Key()
	if i.start != nil && bytes.Compare(k, i.start) < 0 {
		return false
	}
	if i.end != nil && bytes.Compare(k, i.end) >= 0 {
		return false
	}
	return true
}

func (i *iterator) Error() error {
	return i.err
}

func (i *iterator) Key() []byte {
	return i.it.Item().KeyCopy(nil)
}

func (i *iterator) Value() []byte {
	v, err := i.it.Item().ValueCopy(nil)
	if err != nil {
		i.err = err
		return nil
	}
	return v
}

func (i *iterator) Close() error {
	if i.it != nil {
		i.it.Close()
		i.it = nil
	}
	return nil
}
