package kv

import (
	"errors"
	"strings"
	"syscall"
)

var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrMethodNotAllowed = errors.New("method is not allowed")
	// ErrLocked is returned by engines when another process (or handle) holds the database lock.
	ErrLocked = errors.New("database is locked by another session")
)

// IsLockError reports whether err means the engine directory is held by someone else.
func IsLockError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrLocked) || errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "lock held by") ||
		strings.Contains(msg, "acquire directory lock") ||
		strings.Contains(msg, "resource temporarily unavailable")
}
