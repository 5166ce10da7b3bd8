package ingest

import (
	"fmt"

	"github.com/helica-bio/helica/errors"
)

// SourceError is the typed failure surfaced by the retry layer and the
// ingestor. It wraps one of the errors package sentinels so callers can
// classify with errors.Is, and carries enough structure for the
// IngestionError embedded in results.
type SourceError struct {
	Source   Source
	Status   int // Last HTTP status, 0 when not applicable
	Attempts int // Attempts consumed before giving up
	Err      error
}

func (e *SourceError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("source %s: %v (status %d after %d attempts)",
			e.Source, e.Err, e.Status, e.Attempts)
	}
	return fmt.Sprintf("source %s: %v (after %d attempts)", e.Source, e.Err, e.Attempts)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// newSourceError builds a SourceError wrapping the given sentinel.
func newSourceError(source Source, sentinel error, status, attempts int, cause error) *SourceError {
	err := sentinel
	if cause != nil {
		err = errors.Wrap(sentinel, cause.Error())
	}
	return &SourceError{
		Source:   source,
		Status:   status,
		Attempts: attempts,
		Err:      err,
	}
}

// circuitOpenError builds the failure used when a run is refused outright.
func circuitOpenError(source Source, failureCount int) *SourceError {
	return &SourceError{
		Source:   source,
		Attempts: 0,
		Err:      errors.Wrapf(errors.ErrCircuitOpen, "%d consecutive failures recorded", failureCount),
	}
}
