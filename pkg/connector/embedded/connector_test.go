package embedded_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/octohelm/moviedb/pkg/connector"
	"github.com/octohelm/moviedb/pkg/connector/embedded"
	"github.com/octohelm/moviedb/pkg/dberr"
	"github.com/octohelm/moviedb/pkg/schema"
	"github.com/octohelm/moviedb/pkg/testutil"
	. "github.com/octohelm/x/testing"
)

type Movie struct {
	ID     int64  `json:"id,omitempty"`
	Title  string `json:"title"`
	Rating int    `json:"rating"`
	Phrase string `json:"phrase,omitempty"`
	Review string `json:"review,omitempty"`
}

func moviesSchema(name string, version uint64) schema.Database {
	return schema.Database{
		Name:    name,
		Version: version,
		Stores: []schema.Store{
			{
				Name:          "movies",
				KeyPath:       schema.KeyPath{"id"},
				AutoIncrement: true,
				Indexes: []schema.Index{
					{Name: "by_rating", KeyPath: schema.KeyPaths{{"rating"}}},
				},
			},
		},
	}
}

func open(t testing.TB, desc schema.Database, optFns ...embedded.OptionFunc) embedded.Connector {
	t.Helper()
	c := embedded.New(desc, optFns...)
	Expect(t, c.Initialize(context.Background()), Be[error](nil))
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c
}

func TestScenario(t *testing.T) {
	for _, engine := range []string{"pebble", "bbolt", "leveldb", "badger"} {
		t.Run(engine, func(t *testing.T) {
			ctx := context.Background()
			c := open(t, moviesSchema("scenario", 1), embedded.WithEngine(engine), embedded.WithDir(testutil.TempDir(t)))
			movies := connector.StoreOf[Movie](c, "movies")

			k1, err := movies.Put(ctx, Movie{Title: "HTTYD", Rating: 9, Phrase: "dragons", Review: "great"}, nil)
			Expect(t, err, Be[error](nil))
			Expect(t, k1, Equal[connector.Key](int64(1)))

			k2, err := movies.Put(ctx, Movie{Title: "Meh", Rating: 3, Phrase: "zzz", Review: "boring"}, nil)
			Expect(t, err, Be[error](nil))
			Expect(t, k2, Equal[connector.Key](int64(2)))

			found, err := movies.GetByIndex(ctx, "by_rating", connector.Bound(5, 10, false, false))
			Expect(t, err, Be[error](nil))
			Expect(t, found, Equal([]Movie{{ID: 1, Title: "HTTYD", Rating: 9, Phrase: "dragons", Review: "great"}}))

			Expect(t, movies.Delete(ctx, 1), Be[error](nil))

			all, err := movies.GetAll(ctx)
			Expect(t, err, Be[error](nil))
			Expect(t, all, Equal([]Movie{{ID: 2, Title: "Meh", Rating: 3, Phrase: "zzz", Review: "boring"}}))
		})
	}
}

func TestConnector(t *testing.T) {
	ctx := context.Background()
	c := open(t, moviesSchema("connector", 1), embedded.WithDir(testutil.TempDir(t)))
	movies := connector.StoreOf[Movie](c, "movies")

	Expect(t, c.IsReady(), Be(true))
	Expect(t, c.State(), Be(embedded.StateReady))

	t.Run("generated keys always grow", func(t *testing.T) {
		var last int64
		for i := 0; i < 20; i++ {
			k, err := movies.Put(ctx, Movie{Title: fmt.Sprintf("m%d", i), Rating: i%10 + 1}, nil)
			Expect(t, err, Be[error](nil))
			Expect(t, k.(int64) > last, Be(true))
			last = k.(int64)

			if i%5 == 0 {
				Expect(t, movies.Delete(ctx, k), Be[error](nil))
			}
		}
	})

	t.Run("get after put returns the same value, including overwrite", func(t *testing.T) {
		m := Movie{ID: 100, Title: "Alien", Rating: 8}
		_, err := movies.Put(ctx, m, nil)
		Expect(t, err, Be[error](nil))

		got, ok, err := movies.Get(ctx, 100)
		Expect(t, err, Be[error](nil))
		Expect(t, ok, Be(true))
		Expect(t, got, Equal(m))

		m.Rating = 9
		_, err = movies.Put(ctx, m, nil)
		Expect(t, err, Be[error](nil))

		got, _, _ = movies.Get(ctx, 100)
		Expect(t, got, Equal(m))

		t.Run("generator moved past explicit key", func(t *testing.T) {
			k, err := movies.Put(ctx, Movie{Title: "next"}, nil)
			Expect(t, err, Be[error](nil))
			Expect(t, k, Equal[connector.Key](int64(101)))
		})
	})

	t.Run("missing key is not an error", func(t *testing.T) {
		_, ok, err := movies.Get(ctx, 404)
		Expect(t, err, Be[error](nil))
		Expect(t, ok, Be(false))
	})

	t.Run("getAll follows deletes", func(t *testing.T) {
		all, err := movies.GetAll(ctx)
		Expect(t, err, Be[error](nil))
		n := len(all)

		Expect(t, movies.Delete(ctx, all[0].ID), Be[error](nil))
		all, _ = movies.GetAll(ctx)
		Expect(t, len(all), Be(n-1))

		Expect(t, movies.Delete(ctx, 404), Be[error](nil))
		all, _ = movies.GetAll(ctx)
		Expect(t, len(all), Be(n-1))
	})

	t.Run("index ranges", func(t *testing.T) {
		check := func(q connector.Query) {
			t.Helper()
			r, err := q.Range()
			Expect(t, err, Be[error](nil))

			all, err := movies.GetAll(ctx)
			Expect(t, err, Be[error](nil))

			found, err := movies.GetByIndex(ctx, "by_rating", q)
			Expect(t, err, Be[error](nil))

			expected := 0
			for _, m := range all {
				if in(r, int64(m.Rating)) {
					expected++
				}
			}
			Expect(t, len(found), Be(expected))

			for i := range found {
				Expect(t, in(r, int64(found[i].Rating)), Be(true))
				if i > 0 {
					Expect(t, found[i-1].Rating <= found[i].Rating, Be(true))
				}
			}
		}

		check(connector.Only(3))
		check(connector.Bound(2, 6, true, false))
		check(connector.Bound(2, 6, false, true))
		check(connector.LowerBound(8, true))
		check(connector.UpperBound(4, false))
		check(connector.All())
		check(connector.Bound(11, 20, false, false))

		t.Run("invalid range is an operation error", func(t *testing.T) {
			_, err := movies.GetByIndex(ctx, "by_rating", connector.Bound(6, 2, false, false))
			_, ok := dberr.IsOperationError(err)
			Expect(t, ok, Be(true))
		})

		t.Run("unknown index is an operation error", func(t *testing.T) {
			_, err := movies.GetByIndex(ctx, "by_title", connector.All())
			_, ok := dberr.IsOperationError(err)
			Expect(t, ok, Be(true))
			_, ok = dberr.IsNotFoundError(err)
			Expect(t, ok, Be(true))
		})
	})

	t.Run("clear keeps structure", func(t *testing.T) {
		Expect(t, movies.Clear(ctx), Be[error](nil))

		all, err := movies.GetAll(ctx)
		Expect(t, err, Be[error](nil))
		Expect(t, len(all), Be(0))

		_, err = movies.Put(ctx, Movie{Title: "again", Rating: 7}, nil)
		Expect(t, err, Be[error](nil))

		found, err := movies.GetByIndex(ctx, "by_rating", connector.Only(7))
		Expect(t, err, Be[error](nil))
		Expect(t, len(found), Be(1))
	})

	t.Run("unknown store is an operation error", func(t *testing.T) {
		_, err := c.GetAll(ctx, "nope")
		_, ok := dberr.IsOperationError(err)
		Expect(t, ok, Be(true))

		Expect(t, c.IsReady(), Be(true))
	})

	t.Run("metrics are recorded", func(t *testing.T) {
		b := bytes.NewBuffer(nil)
		embedded.WriteMetrics(b)
		Expect(t, bytes.Contains(b.Bytes(), []byte(`moviedb_connector_operations_total{op="put",store="movies"}`)), Be(true))
	})
}

func in(r connector.KeyRange, v int64) bool {
	if r.Lower != nil {
		l := r.Lower.(int64)
		if v < l || (r.LowerOpen && v == l) {
			return false
		}
	}
	if r.Upper != nil {
		u := r.Upper.(int64)
		if v > u || (r.UpperOpen && v == u) {
			return false
		}
	}
	return true
}

func TestNotInitialized(t *testing.T) {
	ctx := context.Background()
	c := embedded.New(moviesSchema("not-initialized", 1), embedded.WithDir(testutil.TempDir(t)))

	_, err := c.GetAll(ctx, "movies")
	e, ok := dberr.IsNotInitializedError(err)
	Expect(t, ok, Be(true))
	Expect(t, e.Closed, Be(false))

	Expect(t, c.Initialize(ctx), Be[error](nil))
	Expect(t, c.Close(), Be[error](nil))
	Expect(t, c.Close(), Be[error](nil))

	_, err = c.Put(ctx, "movies", Movie{Title: "x"}, nil)
	e, ok = dberr.IsNotInitializedError(err)
	Expect(t, ok, Be(true))
	Expect(t, e.Closed, Be(true))

	_, ok = dberr.IsNotInitializedError(c.Initialize(ctx))
	Expect(t, ok, Be(true))
	Expect(t, c.State(), Be(embedded.StateClosed))
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	c := open(t, moviesSchema("metrics", 1), embedded.WithDir(testutil.TempDir(t)))

	_, err := c.GetAll(ctx, "movies")
	Expect(t, err, Be[error](nil))

	_, err = c.GetAll(ctx, "no-such-store")
	_, ok := dberr.IsOperationError(err)
	Expect(t, ok, Be(true))

	buf := bytes.NewBuffer(nil)
	embedded.WriteMetrics(buf)

	Expect(t, strings.Contains(buf.String(), `moviedb_connector_operations_total{op="getAll",store="movies"}`), Be(true))
	Expect(t, strings.Contains(buf.String(), `store="(unknown)"`), Be(true))
	Expect(t, strings.Contains(buf.String(), "no-such-store"), Be(false))
}

func TestLogging(t *testing.T) {
	lines := make([]string, 0)
	mu := sync.Mutex{}

	l := funcr.New(func(prefix, args string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, args)
	}, funcr.Options{Verbosity: 1})

	c := embedded.New(moviesSchema("logging", 1), embedded.WithDir(testutil.TempDir(t)))
	t.Cleanup(func() {
		_ = c.Close()
	})
	Expect(t, c.Initialize(logr.NewContext(context.Background(), l)), Be[error](nil))

	mu.Lock()
	defer mu.Unlock()

	upgraded := false
	for _, line := range lines {
		Expect(t, strings.Count(line, `"database"=`) <= 1, Be(true))
		if strings.Contains(line, "upgrading") {
			upgraded = true
			Expect(t, strings.Contains(line, `"database"="logging"`), Be(true))
		}
	}
	Expect(t, upgraded, Be(true))
}

func TestConcurrentInitialize(t *testing.T) {
	c := embedded.New(moviesSchema("concurrent", 1), embedded.WithDir(testutil.TempDir(t)))
	t.Cleanup(func() {
		_ = c.Close()
	})

	wg := sync.WaitGroup{}
	errs := make([]error, 10)

	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Initialize(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		Expect(t, err, Be[error](nil))
	}
	Expect(t, c.IsReady(), Be(true))

	t.Run("concurrent writes on one store", func(t *testing.T) {
		wg := sync.WaitGroup{}
		errs := make([]error, 20)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = c.Put(context.Background(), "movies", Movie{Title: fmt.Sprintf("m%d", i), Rating: 5}, nil)
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			Expect(t, err, Be[error](nil))
		}

		all, err := c.GetAll(context.Background(), "movies")
		Expect(t, err, Be[error](nil))
		Expect(t, len(all), Be(20))
	})
}

func TestInvalidSchema(t *testing.T) {
	c := embedded.New(schema.Database{Name: "invalid"})
	_, ok := dberr.IsOpenError(c.Initialize(context.Background()))
	Expect(t, ok, Be(true))

	t.Run("open failures are terminal", func(t *testing.T) {
		_, ok := dberr.IsOpenError(c.Initialize(context.Background()))
		Expect(t, ok, Be(true))
		Expect(t, c.IsReady(), Be(false))
	})
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	dir := testutil.TempDir(t)

	c := embedded.New(moviesSchema("reopen", 1), embedded.WithDir(dir))
	Expect(t, c.Initialize(ctx), Be[error](nil))

	_, err := c.Put(ctx, "movies", Movie{Title: "HTTYD", Rating: 9}, nil)
	Expect(t, err, Be[error](nil))
	Expect(t, c.Close(), Be[error](nil))

	t.Run("same version with an additional store and index", func(t *testing.T) {
		desc := moviesSchema("reopen", 1)
		desc.Stores[0].Indexes = append(desc.Stores[0].Indexes, schema.Index{Name: "by_title", KeyPath: schema.KeyPaths{{"title"}}, Unique: true})
		desc.Stores = append(desc.Stores, schema.Store{Name: "notes"})

		c := open(t, desc, embedded.WithDir(dir))

		found, err := c.GetByIndex(ctx, "movies", "by_title", connector.Only("HTTYD"))
		Expect(t, err, Be[error](nil))
		Expect(t, len(found), Be(1))

		_, err = c.Put(ctx, "notes", "remember", "n1")
		Expect(t, err, Be[error](nil))

		t.Run("unique index rejects duplicates and leaves the store unchanged", func(t *testing.T) {
			_, err := c.Put(ctx, "movies", Movie{Title: "HTTYD", Rating: 1}, nil)
			_, ok := dberr.IsOperationError(err)
			Expect(t, ok, Be(true))
			_, ok = dberr.IsConflictError(err)
			Expect(t, ok, Be(true))

			all, _ := c.GetAll(ctx, "movies")
			Expect(t, len(all), Be(1))
		})

		Expect(t, c.Close(), Be[error](nil))
	})

	t.Run("older version is an open error", func(t *testing.T) {
		c := embedded.New(moviesSchema("reopen", 1), embedded.WithDir(dir))
		Expect(t, c.Initialize(ctx), Be[error](nil))
		Expect(t, c.Close(), Be[error](nil))

		c = embedded.New(moviesSchema("reopen", 2), embedded.WithDir(dir))
		Expect(t, c.Initialize(ctx), Be[error](nil))
		defer c.Close()

		old := embedded.New(moviesSchema("reopen", 1), embedded.WithDir(dir))
		_, ok := dberr.IsVersionError(old.Initialize(ctx))
		Expect(t, ok, Be(true))

		persisted, ok := c.Schema()
		Expect(t, ok, Be(true))
		Expect(t, persisted.Version, Be(uint64(2)))
		Expect(t, len(persisted.Stores), Be(2))
	})
}

func TestBlocked(t *testing.T) {
	ctx := context.Background()

	for _, dir := range []string{"", testutil.TempDir(t)} {
		name := fmt.Sprintf("blocked-%d", time.Now().UnixNano())

		t.Run("dir="+dir, func(t *testing.T) {
			opts := []embedded.OptionFunc{}
			if dir != "" {
				opts = append(opts, embedded.WithDir(dir))
			}

			versionChanged := make(chan uint64, 1)

			v1 := embedded.New(moviesSchema(name, 1), append(opts, embedded.WithOnVersionChange(func(requested uint64) {
				select {
				case versionChanged <- requested:
				default:
				}
			}))...)
			Expect(t, v1.Initialize(ctx), Be[error](nil))

			_, err := v1.Put(ctx, "movies", Movie{Title: "kept", Rating: 5}, nil)
			Expect(t, err, Be[error](nil))

			t.Run("fail if blocked", func(t *testing.T) {
				v2 := embedded.New(moviesSchema(name, 2), append(opts, embedded.WithFailIfBlocked())...)
				err := v2.Initialize(ctx)
				blocked, ok := dberr.IsBlockedError(err)
				Expect(t, ok, Be(true))
				Expect(t, blocked.HeldVersion, Be(uint64(1)))
				Expect(t, v2.IsReady(), Be(false))
				_ = v2.Close()
			})

			t.Run("waits for blocking sessions", func(t *testing.T) {
				blockedCh := make(chan *dberr.BlockedError, 1)

				v2 := embedded.New(moviesSchema(name, 2), append(opts, embedded.WithOnBlocked(func(err *dberr.BlockedError) {
					blockedCh <- err
				}))...)
				defer v2.Close()

				notified := make(chan error, 1)
				v2.NotifyBlocked(func(err error) {
					notified <- err
				})

				done := make(chan error, 1)
				go func() {
					done <- v2.Initialize(ctx)
				}()

				blocked := <-blockedCh
				Expect(t, len(blocked.Sessions), Be(1))
				Expect(t, <-notified != nil, Be(true))
				Expect(t, <-versionChanged, Be(uint64(2)))
				Expect(t, v2.State(), Be(embedded.StateOpening))

				Expect(t, v1.Close(), Be[error](nil))
				Expect(t, <-done, Be[error](nil))
				Expect(t, v2.IsReady(), Be(true))

				all, err := v2.GetAll(ctx, "movies")
				Expect(t, err, Be[error](nil))
				Expect(t, len(all), Be(1))
			})
		})
	}

	t.Run("close abandons a pending open", func(t *testing.T) {
		name := fmt.Sprintf("abandon-%d", time.Now().UnixNano())
		v1 := open(t, moviesSchema(name, 1))

		v2 := embedded.New(moviesSchema(name, 2))
		done := make(chan error, 1)
		go func() {
			done <- v2.Initialize(ctx)
		}()

		for v2.State() != embedded.StateOpening {
			time.Sleep(time.Millisecond)
		}
		Expect(t, v2.Close(), Be[error](nil))

		_, ok := dberr.IsNotInitializedError(<-done)
		Expect(t, ok, Be(true))
		Expect(t, v1.IsReady(), Be(true))
	})
}
