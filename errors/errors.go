// Package errors defines the sentinel error kinds the coordinator, graph,
// and PQ codec return so callers can branch with errors.Is instead of
// string matching, following the operation-kind taxonomy of the core's
// failure semantics.
package errors

import "errors"

var (
	// ErrInvalidDimension is returned when a supplied vector's length
	// differs from the index's configured dimension D.
	ErrInvalidDimension = errors.New("anncore: vector dimension mismatch")

	// ErrAlreadyPresent is returned by Add when the given id already
	// exists in the index. The index is left unmodified.
	ErrAlreadyPresent = errors.New("anncore: id already present")

	// ErrFull is returned by Add when the index is at its configured
	// capacity (Nmax). The index is left unmodified.
	ErrFull = errors.New("anncore: index at capacity")

	// ErrNotFound is returned by Remove when the given id does not exist.
	ErrNotFound = errors.New("anncore: id not found")

	// ErrPQUntrained is returned when Encode or BuildTable is requested
	// before Train has completed. This indicates an internal contract
	// violation by the caller of the codec, not a recoverable condition.
	ErrPQUntrained = errors.New("anncore: product quantizer not trained")

	// ErrPreconditionFailed is returned by Train when the codec has
	// already been trained; codebooks are frozen for the index's
	// lifetime once set.
	ErrPreconditionFailed = errors.New("anncore: product quantizer already trained")

	// ErrEmptySample is returned by Train when given zero samples.
	ErrEmptySample = errors.New("anncore: empty training sample")
)
