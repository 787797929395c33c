package database_test

import (
	"context"
	"testing"

	"github.com/octohelm/moviedb/internal/database"
	"github.com/octohelm/moviedb/internal/tree"
	"github.com/octohelm/moviedb/pkg/dberr"
	"github.com/octohelm/moviedb/pkg/testutil"
	. "github.com/octohelm/x/testing"
)

func TestIndex(t *testing.T) {
	s := testutil.NewStore(t)

	tx := database.NewTransaction("test", s)
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	t.Run("index name", func(t *testing.T) {
		index := database.NewIndex(tx, "users", &database.IndexInfo{
			Name:      "by_name",
			Namespace: 2,
			KeyPath:   []string{"name"},
		})

		t.Run("When set index", func(t *testing.T) {
			err := index.Set(context.Background(), "hello", 1)
			Expect(t, err, Be[error](nil))

			t.Run("could index", func(t *testing.T) {
				ok, pk, err := index.Exists(context.Background(), "hello")
				Expect(t, err, Be[error](nil))
				Expect(t, ok, Be(true))
				Expect(t, pk, Equal[any](int64(1)))
			})

			t.Run("unique check", func(t *testing.T) {
				Expect(t, index.CheckUnique(context.Background(), "hello", 1), Be[error](nil))

				_, conflict := dberr.IsConflictError(index.CheckUnique(context.Background(), "hello", 2))
				Expect(t, conflict, Be(true))
			})

			t.Run("When delete index", func(t *testing.T) {
				err := index.Delete(context.Background(), "hello", 1)
				Expect(t, err, Be[error](nil))

				t.Run("could not index", func(t *testing.T) {
					ok, _, err := index.Exists(context.Background(), "hello")
					Expect(t, err, Be[error](nil))
					Expect(t, ok, Be(false))
				})
			})
		})

		t.Run("When set indexes", func(t *testing.T) {
			for i := 0; i < 10; i++ {
				err := index.Set(context.Background(), "hello", i)
				Expect(t, err, Be[error](nil))

				err = index.Set(context.Background(), "hello2", i)
				Expect(t, err, Be[error](nil))
			}

			t.Run("could range all ids in primary key order", func(t *testing.T) {
				rng := tree.NewRange(tree.NewKey("hello"), tree.NewKey("hello"), false)
				ids := make([]int64, 0)
				err := index.Range(context.Background(), rng, false, func(key any, pk any) error {
					ids = append(ids, pk.(int64))
					return nil
				})
				Expect(t, err, Be[error](nil))
				Expect(t, ids, Equal([]int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}))
			})

			t.Run("exclusive lower bound skips every entry of the key", func(t *testing.T) {
				rng := tree.NewBoundRange(tree.NewKey("hello"), nil, true, false)
				keys := map[any]int{}
				err := index.Range(context.Background(), rng, false, func(key any, pk any) error {
					keys[key]++
					return nil
				})
				Expect(t, err, Be[error](nil))
				Expect(t, keys, Equal(map[any]int{"hello2": 10}))
			})

			t.Run("truncate", func(t *testing.T) {
				Expect(t, index.Truncate(context.Background()), Be[error](nil))
				ok, _, err := index.Exists(context.Background(), "hello2")
				Expect(t, err, Be[error](nil))
				Expect(t, ok, Be(false))
			})
		})
	})
}
