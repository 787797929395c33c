// Package connector defines how application code talks to a persistent store of records,
// independent of the engine behind it.
package connector

import (
	"context"
)

// Connector is a handle on one database.
//
// Every call runs in its own short-lived transaction on a single store.
// Calls made before Initialize succeeded or after Close fail with a dberr.NotInitializedError.
// Engine failures come back as a dberr.OperationError, the connector stays usable.
type Connector interface {
	// Initialize opens the database, migrating it to the declared schema.
	Initialize(ctx context.Context) error
	IsReady() bool

	// GetAll returns every record of store in ascending key order.
	GetAll(ctx context.Context, store string) ([]Record, error)
	// Get returns the record at key, false when there is none.
	Get(ctx context.Context, store string, key Key) (Record, bool, error)
	// Put inserts or replaces value and returns its key.
	// key is nil for stores with in-line or generated keys.
	Put(ctx context.Context, store string, value any, key Key) (Key, error)
	// Delete removes the record at key, deleting a missing key is not an error.
	Delete(ctx context.Context, store string, key Key) error
	// Clear removes every record of store, the store itself is kept.
	Clear(ctx context.Context, store string) error
	// GetByIndex returns the records matching query on index, ordered by index key.
	GetByIndex(ctx context.Context, store string, index string, query Query) ([]Record, error)

	// Close releases the database. It is safe to call at any time and more than once.
	Close() error
}

// BlockNotifier is implemented by connectors reporting an open waiting on other sessions.
type BlockNotifier interface {
	NotifyBlocked(fn func(err error))
}
