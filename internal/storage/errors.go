package storage

import "errors"

// Sentinel errors shared by all bar and trade store implementations. Both
// stores are append-only: a backtest writes immutable trades and a capture
// session writes immutable bars, so updates are never valid.
var (
	// ErrNotFound is returned when the requested bar range or trade does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a bar or trade whose key
	// already exists. Append-only stores do not allow updates.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails before any
	// write is attempted.
	ErrInvalidInput = errors.New("invalid input")
)
