package database

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/octohelm/moviedb/pkg/dberr"
	"github.com/octohelm/moviedb/pkg/kv"
	"github.com/octohelm/moviedb/pkg/schema"
	"github.com/pkg/errors"
)

type Database interface {
	Name() string
	Store() kv.Store
	// Catalog returns the last committed catalog.
	Catalog() *Catalog
	// Migrate adds every store and index of desc missing from the catalog and bumps the version,
	// in one transaction committed with sync.
	Migrate(ctx context.Context, desc schema.Database) error
	Begin(optFns ...TransactionOptionFunc) Transaction
	Table(tx Transaction, name string) (Table, error)
	// Lock serializes writers of one store, the returned func unlocks.
	Lock(store string) func()
}

// Open loads the catalog of the database kept in s.
func Open(ctx context.Context, name string, s kv.Store) (Database, error) {
	db := &database{
		name:  name,
		store: s,
	}

	tx := db.Begin(TransactionReadOnly())
	defer tx.Rollback()

	c, err := loadCatalog(tx.Session())
	if err != nil {
		return nil, err
	}
	db.catalog.Store(c)

	return db, nil
}

type database struct {
	name    string
	store   kv.Store
	catalog atomic.Pointer[Catalog]
	locks   sync.Map // map[string]*sync.Mutex
	migrate sync.Mutex
}

func (d *database) Name() string {
	return d.name
}

func (d *database) Store() kv.Store {
	return d.store
}

func (d *database) Catalog() *Catalog {
	return d.catalog.Load()
}

func (d *database) Begin(optFns ...TransactionOptionFunc) Transaction {
	return NewTransaction(d.name, d.store, optFns...)
}

func (d *database) Migrate(ctx context.Context, desc schema.Database) (err error) {
	d.migrate.Lock()
	defer d.migrate.Unlock()

	// writers of existing stores wait, new indexes must see every record
	for _, name := range d.Catalog().StoreNames() {
		defer d.Lock(name)()
	}

	tx := d.Begin()
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := loadCatalog(tx.Session())
	if err != nil {
		return err
	}

	next, changed, err := migrate(ctx, tx, current, desc)
	if err != nil {
		return err
	}

	if !changed {
		d.catalog.Store(current)
		return tx.Rollback()
	}

	tx.On(TransactionEventCommit, func() {
		d.catalog.Store(next)
	})

	return tx.Commit()
}

func (d *database) Table(tx Transaction, name string) (Table, error) {
	info, ok := d.Catalog().Stores[name]
	if !ok {
		return nil, &dberr.NotFoundError{Name: name}
	}
	return NewTable(tx, info), nil
}

func (d *database) Lock(store string) func() {
	mu, _ := d.locks.LoadOrStore(store, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	return mu.(*sync.Mutex).Unlock
}

// Update runs fn in a write transaction on store, committed with sync when fn succeeds.
func Update(ctx context.Context, db Database, store string, fn func(t Table) error) (err error) {
	unlock := db.Lock(store)
	defer unlock()

	tx := db.Begin()
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	t, err := db.Table(tx, store)
	if err != nil {
		return err
	}

	if err := fn(t); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "commit")
}

// View runs fn on a snapshot of store.
func View(ctx context.Context, db Database, store string, fn func(t Table) error) error {
	tx := db.Begin(TransactionReadOnly())
	defer tx.Rollback()

	t, err := db.Table(tx, store)
	if err != nil {
		return err
	}

	return fn(t)
}
