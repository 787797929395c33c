package pebble

import (
	"context"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/cockroachdb/pebble"
	"github.com/octohelm/moviedb/pkg/kv"
)

type store struct {
	db     *pebble.DB
	opts   kv.Options
	closed atomic.Bool
}

// Shutdown flushes memtables and closes the db. Calls after the first are no-ops.
func (s *store) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	defer func() {
		if err := s.db.Close(); err != nil {
			logr.FromContextOrDiscard(ctx).Error(err, "Close")
		}
	}()

	// To make sure mem data write to disk
	f, err := s.db.AsyncFlush()
	if err != nil {
		return errors.Wrap(err, "AsyncFlush")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f:
			logr.FromContextOrDiscard(ctx).V(1).Info("Flushed")
			return nil
		}
	}
}

func NewStore(db *pebble.DB, opts kv.Options) kv.Store {
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = defaultMaxBatchSize
	}
	return &store{
		db:   db,
		opts: opts,
	}
}

func (s *store) NewSnapshotSession(dbName string) kv.Session {
	return &SnapshotSession{
		Snapshot: s.db.NewSnapshot(),
	}
}

func (s *store) NewBatchSession(dbName string) kv.Session {
	return &BatchSession{
		DB:           s.db,
		Batch:        s.db.NewIndexedBatch(),
		maxBatchSize: s.opts.MaxBatchSize,
	}
}
