package ingest

import (
	"time"
)

// RawRecord is an opaque, source-defined document. The framework never
// inspects its shape; parsing into domain entities happens downstream.
type RawRecord map[string]any

// Status classifies the outcome of one ingestion run.
type Status string

const (
	// StatusCompleted means all fetched records were persisted.
	StatusCompleted Status = "completed"
	// StatusFailed means the run produced no usable outcome.
	StatusFailed Status = "failed"
	// StatusPartial means data landed but some records were skipped or lost.
	StatusPartial Status = "partial"
)

// IngestionError records one failure encountered during a run. Errors are
// collected on the result, never silently discarded at the ingestor level.
type IngestionError struct {
	Message    string         `json:"message"`
	SourceName string         `json:"source_name"`
	Details    map[string]any `json:"details,omitempty"`
}

// NewIngestionError builds an IngestionError from a typed source error,
// preserving its classification in the details map.
func NewIngestionError(err *SourceError) IngestionError {
	details := map[string]any{
		"attempts": err.Attempts,
	}
	if err.Status > 0 {
		details["http_status"] = err.Status
	}
	return IngestionError{
		Message:    err.Error(),
		SourceName: string(err.Source),
		Details:    details,
	}
}

// IngestionResult is the sole output of one SourceIngestor.Run invocation.
// Immutable once returned.
type IngestionResult struct {
	SourceName       string           `json:"source_name"`
	Status           Status           `json:"status"`
	RecordsProcessed int              `json:"records_processed"`
	RecordsFailed    int              `json:"records_failed"`
	RecordsSkipped   int              `json:"records_skipped,omitempty"`
	Data             []RawRecord      `json:"data,omitempty"`
	Provenance       ProvenanceChain  `json:"provenance"`
	Errors           []IngestionError `json:"errors,omitempty"`
	DurationSeconds  float64          `json:"duration_seconds"`
	Timestamp        time.Time        `json:"timestamp"`
}

// Succeeded reports whether the run delivered data (Completed or Partial).
func (r *IngestionResult) Succeeded() bool {
	return r.Status == StatusCompleted || r.Status == StatusPartial
}
