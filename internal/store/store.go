// Package store declares the console's persisted domain types and the
// repository interfaces the Postgres layer implements.
package store

import "errors"

// Sentinel errors shared by every repository. Handlers map them to HTTP
// statuses with errors.Is.
var (
	// ErrNotFound signals that the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict signals that the mutation lost to the record's current
	// state (already redeemed, not in the required status, duplicate key).
	ErrConflict = errors.New("conflicting record state")
	// ErrInvalid signals a request that fails business validation. Wrap it
	// with the concrete reason.
	ErrInvalid = errors.New("invalid input")
)
