// Package errors provides error handling for Helica.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Structured details on ingestion failures
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrRateLimited) {
//	    // back off and retry
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll

	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenDetails = crdb.FlattenDetails
)

// Sentinel errors for the ingestion framework.
// Use these with errors.Is() for type-safe error checking, and wrap them
// with errors.Wrap() to add context while preserving the type.
var (
	// ErrRateLimited indicates the upstream service returned HTTP 429.
	// Retried with exponential backoff; not a circuit-breaker failure on its own.
	ErrRateLimited = New("rate limited by upstream")

	// ErrServer indicates a 5xx response that survived all retries.
	ErrServer = New("upstream server error")

	// ErrClient indicates a non-retryable 4xx response.
	ErrClient = New("upstream client error")

	// ErrTransient indicates a transport-level failure that survived all retries.
	ErrTransient = New("transient network error")

	// ErrCircuitOpen indicates the per-source circuit breaker is open;
	// no network attempt was made.
	ErrCircuitOpen = New("circuit breaker open")

	// ErrPersistence indicates the raw-record artifact could not be written.
	ErrPersistence = New("raw record persistence failed")

	// ErrSourceUnknown indicates a source name outside the configured catalog.
	ErrSourceUnknown = New("unknown ingestion source")
)

// IsRetryable reports whether an error class is worth another attempt.
// Rate-limit, server, and transient errors are retryable; client errors,
// open circuits, and persistence failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return IsAny(err, ErrRateLimited, ErrServer, ErrTransient)
}

// IsCircuitOpen checks if an error is or wraps ErrCircuitOpen.
func IsCircuitOpen(err error) bool {
	return err != nil && Is(err, ErrCircuitOpen)
}

// IsRateLimited checks if an error is or wraps ErrRateLimited.
func IsRateLimited(err error) bool {
	return err != nil && Is(err, ErrRateLimited)
}
