package storage

import "errors"

// Storage errors for the series engine.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. The price store is append-only:
	// overwriting requires an explicit delete followed by an append.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrHistoricalWriteRejected is returned when a write targets a
	// chunk that has already been retired. Dropped history cannot be
	// rewritten.
	ErrHistoricalWriteRejected = errors.New("historical write rejected: chunk has been retired")

	// ErrEmptySeries is returned when metrics are requested over zero
	// points. This is a precondition failure, not an empty result.
	ErrEmptySeries = errors.New("empty series: no points to compute metrics over")

	// ErrPoolExhausted is returned when a pooled connection could not be
	// acquired within the configured timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
