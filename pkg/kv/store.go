package kv

import "context"

type Store interface {
	// NewSnapshotSession returns a read-only session on a point-in-time view.
	NewSnapshotSession(dbName string) Session
	// NewBatchSession returns a read-write session, visible to others after Commit.
	NewBatchSession(dbName string) Session
	Shutdown(ctx context.Context) error
}
