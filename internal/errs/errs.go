// Package errs defines the error kinds reported by the production ledger.
// Callers match them with errors.Is; every returned error wraps exactly one.
package errs

import "errors"

var (
	// ErrInvalidValue marks a numeric or required input that violates a constraint.
	ErrInvalidValue = errors.New("invalid value")
	// ErrInvalidTime marks an instant that could not be parsed or combined.
	ErrInvalidTime = errors.New("invalid time")
	// ErrNotFound marks a missing lookup or deletion target.
	ErrNotFound = errors.New("not found")
	// ErrStorageFailure marks a durable write the store rejected.
	ErrStorageFailure = errors.New("storage failure")
)
