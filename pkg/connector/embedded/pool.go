package embedded

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"github.com/octohelm/moviedb/internal/database"
	"github.com/octohelm/moviedb/pkg/dberr"
	"github.com/octohelm/moviedb/pkg/kv"
	"github.com/pkg/errors"
)

// handles are shared by every connector of the process opening the same engine and path.
var handles = &pool{
	handles: map[string]*handle{},
}

type pool struct {
	mu      sync.Mutex
	handles map[string]*handle
}

type handle struct {
	key     string
	memory  bool
	db      database.Database
	version uint64
	// sessions holding the database, by session id
	sessions map[string]*conn
	// closed and renewed every time a session leaves
	released chan struct{}
}

func (h *handle) sessionIDs() []string {
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// acquire opens (or joins) the database of c, migrated to its schema.
// It waits while sessions at an older version hold the database.
func (p *pool) acquire(ctx context.Context, c *conn) (*handle, error) {
	desc := c.desc
	key, path := c.location()

	reported := false

	report := func(err *dberr.BlockedError) error {
		if c.opts.FailIfBlocked {
			return err
		}
		if !reported {
			reported = true
			c.reportBlocked(err)
		}
		return nil
	}

	for {
		p.mu.Lock()

		h, ok := p.handles[key]

		if !ok {
			s, err := kv.NewStore(c.opts.Engine, kv.Options{Path: path})
			if err != nil {
				p.mu.Unlock()

				if !kv.IsLockError(err) {
					return nil, &dberr.OpenError{Database: desc.Name, Err: err}
				}

				if err := report(&dberr.BlockedError{Database: desc.Name, Version: desc.Version}); err != nil {
					return nil, err
				}

				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(c.opts.PollInterval):
				}
				continue
			}

			db, err := database.Open(ctx, desc.Name, s)
			if err == nil {
				err = db.Migrate(ctx, desc)
			}
			if err != nil {
				_ = s.Shutdown(ctx)
				p.mu.Unlock()
				return nil, &dberr.OpenError{Database: desc.Name, Err: err}
			}

			h = &handle{
				key:      key,
				memory:   path == kv.MemoryPath,
				db:       db,
				version:  desc.Version,
				sessions: map[string]*conn{c.id: c},
				released: make(chan struct{}),
			}
			p.handles[key] = h
			p.mu.Unlock()

			return h, nil
		}

		// same version, or a kept in-memory database nobody holds
		if h.version == desc.Version || len(h.sessions) == 0 {
			if err := h.db.Migrate(ctx, desc); err != nil {
				p.mu.Unlock()
				return nil, &dberr.OpenError{Database: desc.Name, Err: err}
			}
			h.version = h.db.Catalog().Version
			h.sessions[c.id] = c
			p.mu.Unlock()

			return h, nil
		}

		if h.version > desc.Version {
			p.mu.Unlock()
			return nil, &dberr.OpenError{
				Database: desc.Name,
				Err:      &dberr.VersionError{Database: desc.Name, Stored: h.version, Requested: desc.Version},
			}
		}

		blocked := &dberr.BlockedError{
			Database:    desc.Name,
			Version:     desc.Version,
			HeldVersion: h.version,
			Sessions:    h.sessionIDs(),
		}

		holders := make([]*conn, 0, len(h.sessions))
		for _, s := range h.sessions {
			holders = append(holders, s)
		}
		released := h.released

		p.mu.Unlock()

		for _, holder := range holders {
			holder.versionChange(desc.Version)
		}

		if err := report(blocked); err != nil {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-released:
			// sessions changed, report again if still blocked
			reported = false
		}
	}
}

// release removes session id from h, shutting the store down with the last one.
// In-memory databases are kept for later sessions of the process.
func (p *pool) release(ctx context.Context, h *handle, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := h.sessions[id]; !ok {
		return nil
	}

	delete(h.sessions, id)
	close(h.released)
	h.released = make(chan struct{})

	if len(h.sessions) > 0 || h.memory {
		return nil
	}

	delete(p.handles, h.key)

	logr.FromContextOrDiscard(ctx).V(1).Info("store shutdown", "database", h.db.Name())

	return errors.Wrap(h.db.Store().Shutdown(ctx), "shutdown")
}

// shutdown closes every store nobody holds anymore.
func (p *pool) shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result error

	for key, h := range p.handles {
		if len(h.sessions) > 0 {
			continue
		}
		delete(p.handles, key)
		if err := h.db.Store().Shutdown(ctx); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "shutdown %s", key))
		}
	}

	return result
}

// Shutdown releases in-memory databases no connector holds.
// Call it once every connector of the process is closed.
func Shutdown(ctx context.Context) error {
	return handles.shutdown(ctx)
}

func location(engine string, dir string, name string) (key string, path string) {
	if dir == kv.MemoryPath {
		return engine + ":" + kv.MemoryPath + "/" + name, kv.MemoryPath
	}
	path = filepath.Join(dir, name)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return engine + ":" + path, path
}
