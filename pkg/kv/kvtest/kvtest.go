// Package kvtest holds the behaviour every kv engine must share.
package kvtest

import (
	"context"
	"errors"
	"testing"

	"github.com/octohelm/moviedb/pkg/kv"
	. "github.com/octohelm/x/testing"
)

// TempStore opens engine in a fresh temporary directory, shut down on cleanup.
func TempStore(t testing.TB, engine string) kv.Store {
	t.Helper()
	return TempStoreAt(t, engine, t.TempDir())
}

func TempStoreAt(t testing.TB, engine string, path string) kv.Store {
	t.Helper()

	s, err := kv.NewStore(engine, kv.Options{Path: path})
	Expect(t, err, Be[error](nil))

	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
	})
	return s
}

func Run(t *testing.T, newStore func(t testing.TB) kv.Store) {
	t.Run("Given committed keys", func(t *testing.T) {
		s := newStore(t)

		w := s.NewBatchSession("test")
		for _, k := range []string{"a", "b", "c", "d"} {
			Expect(t, w.Put([]byte(k), []byte("v"+k)), Be[error](nil))
		}
		Expect(t, w.Commit(), Be[error](nil))

		t.Run("snapshot could get", func(t *testing.T) {
			r := s.NewSnapshotSession("test")
			defer r.Close()

			v, err := r.Get([]byte("b"))
			Expect(t, err, Be[error](nil))
			Expect(t, string(v), Be("vb"))

			_, err = r.Get([]byte("z"))
			Expect(t, errors.Is(err, kv.ErrKeyNotFound), Be(true))

			ok, err := r.Exists([]byte("c"))
			Expect(t, err, Be[error](nil))
			Expect(t, ok, Be(true))
		})

		t.Run("snapshot rejects writes", func(t *testing.T) {
			r := s.NewSnapshotSession("test")
			defer r.Close()

			Expect(t, errors.Is(r.Put([]byte("x"), []byte("x")), kv.ErrMethodNotAllowed), Be(true))
		})

		t.Run("iterate forward in bounds", func(t *testing.T) {
			r := s.NewSnapshotSession("test")
			defer r.Close()

			Expect(t, collect(t, r.Iterator([]byte("b"), []byte("d")), false), Equal([]string{"b", "c"}))
			Expect(t, collect(t, r.Iterator(nil, nil), false), Equal([]string{"a", "b", "c", "d"}))
		})

		t.Run("iterate backward in bounds", func(t *testing.T) {
			r := s.NewSnapshotSession("test")
			defer r.Close()

			Expect(t, collect(t, r.Iterator([]byte("a"), []byte("c")), true), Equal([]string{"b", "a"}))
			Expect(t, collect(t, r.Iterator(nil, nil), true), Equal([]string{"d", "c", "b", "a"}))
		})

		t.Run("insert conflicts on existing key", func(t *testing.T) {
			w := s.NewBatchSession("test")
			defer w.Close()

			Expect(t, errors.Is(w.Insert([]byte("a"), []byte("x")), kv.ErrKeyAlreadyExists), Be(true))
		})

		t.Run("uncommitted writes are visible in session only", func(t *testing.T) {
			w := s.NewBatchSession("test")
			Expect(t, w.Put([]byte("e"), []byte("ve")), Be[error](nil))

			v, err := w.Get([]byte("e"))
			Expect(t, err, Be[error](nil))
			Expect(t, string(v), Be("ve"))
			Expect(t, w.Close(), Be[error](nil))

			r := s.NewSnapshotSession("test")
			defer r.Close()
			ok, err := r.Exists([]byte("e"))
			Expect(t, err, Be[error](nil))
			Expect(t, ok, Be(false))
		})

		t.Run("delete range", func(t *testing.T) {
			w := s.NewBatchSession("test")
			Expect(t, kv.DeleteRange(w, []byte("b"), []byte("d")), Be[error](nil))
			Expect(t, w.Delete([]byte("missing")), Be[error](nil))
			Expect(t, w.Commit(), Be[error](nil))

			r := s.NewSnapshotSession("test")
			defer r.Close()
			Expect(t, collect(t, r.Iterator(nil, nil), false), Equal([]string{"a", "d"}))
		})
	})
}

func collect(t testing.TB, it kv.Iterator, reverse bool) []string {
	defer it.Close()

	keys := make([]string, 0)
	if !reverse {
		for it.First(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Key()))
		}
	} else {
		for it.Last(); it.Valid(); it.Prev() {
			keys = append(keys, string(it.Key()))
		}
	}
	Expect(t, it.Error(), Be[error](nil))
	return keys
}
