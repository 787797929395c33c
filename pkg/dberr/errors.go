package dberr

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

func as[E any](err error) (*E, bool) {
	var target *E
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func IsOpenError(err error) (*OpenError, bool) {
	return as[OpenError](err)
}

// OpenError means the database could not be opened or migrated.
// It is fatal to the connector instance that returned it.
type OpenError struct {
	Database string
	Err      error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open database %q: %s", e.Database, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

func IsBlockedError(err error) (*BlockedError, bool) {
	return as[BlockedError](err)
}

// BlockedError means an open waits for other sessions holding an older version.
type BlockedError struct {
	Database string
	// Version requested by the blocked open.
	Version uint64
	// Version held by the blocking sessions, zero when held by another process.
	HeldVersion uint64
	Sessions    []string
}

func (e *BlockedError) Error() string {
	if e.HeldVersion == 0 {
		return fmt.Sprintf("open database %q at version %d is blocked: locked by another process", e.Database, e.Version)
	}
	return fmt.Sprintf(
		"open database %q at version %d is blocked by %d session(s) at version %d [%s], close them to continue",
		e.Database, e.Version, len(e.Sessions), e.HeldVersion, strings.Join(e.Sessions, ","),
	)
}

func IsNotInitializedError(err error) (*NotInitializedError, bool) {
	return as[NotInitializedError](err)
}

type NotInitializedError struct {
	Database string
	Op       string
	Closed   bool
}

func (e *NotInitializedError) Error() string {
	if e.Closed {
		return fmt.Sprintf("%s on database %q: connector is closed", e.Op, e.Database)
	}
	return fmt.Sprintf("%s on database %q: connector is not initialized", e.Op, e.Database)
}

func IsOperationError(err error) (*OperationError, bool) {
	return as[OperationError](err)
}

// OperationError is the failure of a single call. The connector stays usable.
type OperationError struct {
	Op    string
	Store string
	Err   error
}

func (e *OperationError) Error() string {
	if e.Store == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %s", e.Op, e.Store, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	return as[NotFoundError](err)
}

// NotFoundError names a missing store or index, never a missing record.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%q not found", e.Name)
}

func IsConflictError(err error) (*ConflictError, bool) {
	return as[ConflictError](err)
}

// ConflictError is a unique constraint violation on a store key or a unique index.
type ConflictError struct {
	Name string
	Key  any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%q: key %v already exists", e.Name, e.Key)
}

func IsVersionError(err error) (*VersionError, bool) {
	return as[VersionError](err)
}

// VersionError is an open requesting an older version than the one stored.
type VersionError struct {
	Database  string
	Stored    uint64
	Requested uint64
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("database %q is at version %d, can not open at older version %d", e.Database, e.Stored, e.Requested)
}
