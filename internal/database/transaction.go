package database

import (
	"github.com/octohelm/moviedb/pkg/kv"
	"github.com/pkg/errors"
)

type Transaction interface {
	Session() kv.Session
	ReadOnly() bool

	// Rollback discards the transaction, a no-op once committed or rolled back.
	Rollback() error
	Commit() error
	On(event TransactionEvent, callback func())
}

type TransactionEvent string

var (
	TransactionEventCommit   TransactionEvent = "commit"
	TransactionEventRollback TransactionEvent = "rollback"
)

type TransactionOptionFunc = func(o *transactionOption)

type transactionOption struct {
	readOnly bool
}

func TransactionReadOnly() func(o *transactionOption) {
	return func(o *transactionOption) {
		o.readOnly = true
	}
}

func NewTransaction(dbName string, s kv.Store, optFns ...TransactionOptionFunc) Transaction {
	o := &transactionOption{}

	for i := range optFns {
		optFns[i](o)
	}

	tx := &transaction{
		readOnly: o.readOnly,
		hooks:    map[TransactionEvent][]func(){},
	}

	if o.readOnly {
		tx.session = s.NewSnapshotSession(dbName)
	} else {
		tx.session = s.NewBatchSession(dbName)
	}

	return tx
}

type transaction struct {
	session  kv.Session
	hooks    map[TransactionEvent][]func()
	readOnly bool
	done     bool
}

func (tx *transaction) Session() kv.Session {
	return tx.session
}

func (tx *transaction) ReadOnly() bool {
	return tx.readOnly
}

func (tx *transaction) On(event TransactionEvent, callback func()) {
	tx.hooks[event] = append(tx.hooks[event], callback)
}

func (tx *transaction) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true

	err := tx.session.Close()
	if err != nil {
		return err
	}

	tx.fire(TransactionEventRollback)
	return nil
}

func (tx *transaction) Commit() error {
	if tx.readOnly {
		return errors.New("cannot commit read-only transaction")
	}
	if tx.done {
		return errors.New("transaction already finished")
	}

	err := tx.session.Commit()
	if err != nil {
		return err
	}

	tx.done = true
	_ = tx.session.Close()

	tx.fire(TransactionEventCommit)
	return nil
}

func (tx *transaction) fire(event TransactionEvent) {
	if hooks, ok := tx.hooks[event]; ok {
		for i := len(hooks) - 1; i >= 0; i-- {
			hooks[i]()
		}
	}
}
