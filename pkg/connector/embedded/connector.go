// Package embedded is a connector on an embedded, versioned KV engine of the process.
package embedded

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"github.com/octohelm/moviedb/internal/database"
	"github.com/octohelm/moviedb/internal/tree"
	"github.com/octohelm/moviedb/pkg/connector"
	"github.com/octohelm/moviedb/pkg/dberr"
	"github.com/octohelm/moviedb/pkg/id"
	_ "github.com/octohelm/moviedb/pkg/kv/badger"
	_ "github.com/octohelm/moviedb/pkg/kv/bbolt"
	_ "github.com/octohelm/moviedb/pkg/kv/leveldb"
	_ "github.com/octohelm/moviedb/pkg/kv/pebble"
	"github.com/octohelm/moviedb/pkg/schema"
	"github.com/pkg/errors"
	"github.com/tevino/abool"
	"golang.org/x/sync/singleflight"
)

type State int

const (
	StateClosed State = iota
	StateOpening
	StateReady
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateReady:
		return "ready"
	}
	return "closed"
}

var (
	_ connector.Connector     = &conn{}
	_ connector.BlockNotifier = &conn{}
)

// Connector is the embedded connector, with its state exposed.
type Connector interface {
	connector.Connector
	connector.BlockNotifier

	State() State
	// Schema returns the persisted structure, once ready.
	Schema() (schema.Database, bool)
}

// New creates a closed connector for desc, Initialize opens it.
func New(desc schema.Database, optFns ...OptionFunc) Connector {
	o := Options{}
	for i := range optFns {
		optFns[i](&o)
	}
	o.setDefaults()

	return &conn{
		desc:    desc,
		opts:    o,
		log:     logr.Discard(),
		opening: abool.New(),
		ready:   abool.New(),
		closed:  abool.New(),
	}
}

type conn struct {
	desc schema.Database
	opts Options

	opening *abool.AtomicBool
	ready   *abool.AtomicBool
	closed  *abool.AtomicBool
	group   singleflight.Group

	// mu guards the fields below, operations hold it for reading while running
	mu      sync.RWMutex
	id      string
	log     logr.Logger
	handle  *handle
	openErr error
	cancel  context.CancelFunc

	blockedMu  sync.Mutex
	onBlocked []func(err error)
}

func (c *conn) State() State {
	switch {
	case c.ready.IsSet():
		return StateReady
	case c.opening.IsSet():
		return StateOpening
	}
	return StateClosed
}

func (c *conn) IsReady() bool {
	return c.ready.IsSet()
}

func (c *conn) NotifyBlocked(fn func(err error)) {
	c.blockedMu.Lock()
	defer c.blockedMu.Unlock()
	c.onBlocked = append(c.onBlocked, fn)
}

func (c *conn) Schema() (schema.Database, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.handle == nil {
		return schema.Database{}, false
	}
	return c.handle.db.Catalog().Schema(c.desc.Name), true
}

func (c *conn) location() (key string, path string) {
	return location(c.opts.Engine, c.opts.Dir, c.desc.Name)
}

func (c *conn) reportBlocked(err *dberr.BlockedError) {
	c.mu.RLock()
	l := c.log
	c.mu.RUnlock()

	l.Info("open blocked", "err", err.Error())

	if c.opts.OnBlocked != nil {
		c.opts.OnBlocked(err)
	}

	c.blockedMu.Lock()
	fns := append([]func(err error){}, c.onBlocked...)
	c.blockedMu.Unlock()

	for _, fn := range fns {
		fn(err)
	}
}

func (c *conn) versionChange(requested uint64) {
	c.log.V(1).Info("newer version requested", "version", requested)
	if c.opts.OnVersionChange != nil {
		c.opts.OnVersionChange(requested)
	}
}

func (c *conn) Initialize(ctx context.Context) error {
	if c.closed.IsSet() {
		return &dberr.NotInitializedError{Database: c.desc.Name, Op: "initialize", Closed: true}
	}
	if c.ready.IsSet() {
		return nil
	}

	_, err, _ := c.group.Do("open", func() (any, error) {
		return nil, c.open(ctx)
	})
	return err
}

func (c *conn) open(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		observe("initialize", "", start, err)
	}()

	c.mu.Lock()
	if c.openErr != nil {
		c.mu.Unlock()
		return c.openErr
	}
	if c.handle != nil {
		c.mu.Unlock()
		return nil
	}
	if c.id == "" {
		sid, err := id.SessionID(id.FromContext(ctx))
		if err != nil {
			c.mu.Unlock()
			return &dberr.OpenError{Database: c.desc.Name, Err: err}
		}
		c.id = sid
	}
	c.log = logr.FromContextOrDiscard(ctx).WithName("connector").WithValues("database", c.desc.Name, "session", c.id)
	if c.closed.IsSet() {
		c.mu.Unlock()
		return &dberr.NotInitializedError{Database: c.desc.Name, Op: "initialize", Closed: true}
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	defer cancel()

	if err := c.desc.Validate(); err != nil {
		return c.fail(&dberr.OpenError{Database: c.desc.Name, Err: err})
	}

	c.opening.Set()
	defer c.opening.UnSet()

	c.log.V(1).Info("opening", "engine", c.opts.Engine, "dir", c.opts.Dir, "version", c.desc.Version)

	h, err := handles.acquire(logr.NewContext(ctx, c.log), c)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancel = nil

	if c.closed.IsSet() {
		if h != nil {
			_ = handles.release(ctx, h, c.id)
		}
		return &dberr.NotInitializedError{Database: c.desc.Name, Op: "initialize", Closed: true}
	}

	if err != nil {
		if _, ok := dberr.IsOpenError(err); ok {
			c.openErr = err
		}
		c.log.Error(err, "open failed")
		return err
	}

	c.handle = h
	c.ready.Set()

	c.log.V(1).Info("ready", "version", h.version)

	return nil
}

func (c *conn) fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
	return err
}

// Close is terminal, a pending Initialize is abandoned.
func (c *conn) Close() error {
	if !c.closed.SetToIf(false, true) {
		return nil
	}

	c.mu.RLock()
	cancel := c.cancel
	c.mu.RUnlock()

	if cancel != nil {
		cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.ready.UnSet()

	h := c.handle
	c.handle = nil

	var result error

	if h != nil {
		if err := handles.release(logr.NewContext(context.Background(), c.log), h, c.id); err != nil {
			result = multierror.Append(result, err)
		}
	}

	c.log.V(1).Info("closed")

	return result
}

func (c *conn) do(ctx context.Context, op string, store string, fn func(db database.Database) error) (err error) {
	start := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	label := c.storeLabel(store)

	defer func() {
		observe(op, label, start, err)
	}()

	if c.handle == nil {
		return &dberr.NotInitializedError{Database: c.desc.Name, Op: op, Closed: c.closed.IsSet()}
	}

	if err := fn(c.handle.db); err != nil {
		c.log.V(1).Info("operation failed", "op", op, "store", store, "err", err.Error())
		return &dberr.OperationError{Op: op, Store: store, Err: err}
	}

	return nil
}

func (c *conn) GetAll(ctx context.Context, store string) (list []connector.Record, err error) {
	err = c.do(ctx, "getAll", store, func(db database.Database) error {
		return database.View(ctx, db, store, func(t database.Table) error {
			list = make([]connector.Record, 0)
			return t.Range(ctx, nil, false, func(pk any, rec database.Record) error {
				raw, err := rec.Marshal()
				if err != nil {
					return err
				}
				list = append(list, raw)
				return nil
			})
		})
	})
	return
}

func (c *conn) Get(ctx context.Context, store string, key connector.Key) (found connector.Record, ok bool, err error) {
	err = c.do(ctx, "get", store, func(db database.Database) error {
		return database.View(ctx, db, store, func(t database.Table) error {
			rec, exists, err := t.Get(ctx, key)
			if err != nil || !exists {
				return err
			}
			raw, err := rec.Marshal()
			if err != nil {
				return err
			}
			found, ok = raw, true
			return nil
		})
	})
	return
}

func (c *conn) Put(ctx context.Context, store string, value any, key connector.Key) (pk connector.Key, err error) {
	err = c.do(ctx, "put", store, func(db database.Database) error {
		return database.Update(ctx, db, store, func(t database.Table) error {
			k, err := t.Put(ctx, recordOf(value), key)
			pk = k
			return err
		})
	})
	return
}

func (c *conn) Delete(ctx context.Context, store string, key connector.Key) error {
	return c.do(ctx, "delete", store, func(db database.Database) error {
		return database.Update(ctx, db, store, func(t database.Table) error {
			return t.Delete(ctx, key)
		})
	})
}

func (c *conn) Clear(ctx context.Context, store string) error {
	return c.do(ctx, "clear", store, func(db database.Database) error {
		return database.Update(ctx, db, store, func(t database.Table) error {
			return t.Truncate(ctx)
		})
	})
}

func (c *conn) GetByIndex(ctx context.Context, store string, index string, query connector.Query) (list []connector.Record, err error) {
	err = c.do(ctx, "getByIndex", store, func(db database.Database) error {
		if query == nil {
			query = connector.All()
		}

		r, err := query.Range()
		if err != nil {
			return err
		}

		return database.View(ctx, db, store, func(t database.Table) error {
			idx, err := t.Index(index)
			if err != nil {
				return err
			}

			list = make([]connector.Record, 0)

			return idx.Range(ctx, treeRange(r), false, func(key any, pk any) error {
				rec, ok, err := t.Get(ctx, pk)
				if err != nil {
					return err
				}
				if !ok {
					return errors.Errorf("index %q points to missing record %v", index, pk)
				}
				raw, err := rec.Marshal()
				if err != nil {
					return err
				}
				list = append(list, raw)
				return nil
			})
		})
	})
	return
}

// unknownStore labels metrics of calls naming a store the database does not have.
const unknownStore = "(unknown)"

// storeLabel keeps the metric series bounded by the declared and persisted stores.
func (c *conn) storeLabel(store string) string {
	if _, ok := c.desc.Store(store); ok {
		return store
	}
	if c.handle != nil {
		if _, ok := c.handle.db.Catalog().Stores[store]; ok {
			return store
		}
	}
	return unknownStore
}

func recordOf(value any) database.Record {
	switch x := value.(type) {
	case connector.Record:
		return database.RecordFromBytes(x)
	case json.RawMessage:
		return database.RecordFromBytes(x)
	}
	return database.RecordFrom(value)
}

func treeRange(r connector.KeyRange) tree.Range {
	var min, max tree.Key
	if r.Lower != nil {
		min = tree.NewKey(r.Lower)
	}
	if r.Upper != nil {
		max = tree.NewKey(r.Upper)
	}
	return tree.NewBoundRange(min, max, r.LowerOpen, r.UpperOpen)
}
