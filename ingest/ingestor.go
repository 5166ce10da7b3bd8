package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/helica-bio/helica/errors"
	"github.com/helica-bio/helica/internal/httpclient"
)

// Priority tags a source for filtered coordinator runs.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityStandard Priority = "standard"
)

// CallContext is handed to the fetch strategy for the duration of one run:
// the leased outbound client plus the retry policy every call must go
// through. The lease is released by Run when the strategy returns.
type CallContext struct {
	Client *httpclient.Client
	Retry  *RetryPolicy
}

// Fetcher is the strategy boundary between the framework and the
// source-specific adapters (ClinVar, PubMed, HPO, UniProt, ...). The
// framework has no knowledge of query syntax, pagination, or payload shape;
// it only asks for a batch of raw records given parameters.
//
// On failure a fetcher may return the records captured so far alongside the
// error; the ingestor keeps them as partial data on the Failed result.
type Fetcher interface {
	FetchRecords(ctx context.Context, call *CallContext, params map[string]any) ([]RawRecord, error)
}

// SkipReporter is an optional Fetcher extension for per-record parse
// isolation: records that fail to parse are skipped with a warning instead
// of failing the batch, and the count is carried on the result.
type SkipReporter interface {
	SkippedRecords() int
}

// VersionReporter is an optional Fetcher extension reporting the upstream
// release label and endpoint for the provenance chain.
type VersionReporter interface {
	SourceVersion() string
	SourceURL() string
}

// IngestorConfig configures one SourceIngestor.
type IngestorConfig struct {
	Source            Source
	AcquiredBy        string // Recorded on the provenance chain; non-empty
	Priority          Priority
	RequestsPerPeriod int           // Rate-limit capacity
	Period            time.Duration // Rate-limit refill window
	MaxRetries        int
	BreakerThreshold  int
}

// SourceIngestor runs one external source's ingestion: circuit-breaker gate,
// rate-limited retried fetching through the pluggable strategy, raw
// persistence, and provenance. Run never returns an error for ordinary fetch
// or persistence failures; every outcome is an IngestionResult.
//
// The limiter and breaker are owned exclusively by this instance. The
// contract assumes at most one in-flight Run per instance; the coordinator
// upholds that by dispatching each ingestor at most once per run.
type SourceIngestor struct {
	source     Source
	acquiredBy string
	priority   Priority
	fetcher    Fetcher
	limiter    *RateLimiter
	breaker    *CircuitBreaker
	retry      *RetryPolicy
	store      RawStore
	clients    *httpclient.Pool
	log        *zap.SugaredLogger
	timeNow    func() time.Time // Injectable for testing
}

// NewSourceIngestor wires an ingestor from its parts.
func NewSourceIngestor(cfg IngestorConfig, fetcher Fetcher, store RawStore, clients *httpclient.Pool, log *zap.SugaredLogger) (*SourceIngestor, error) {
	return NewSourceIngestorWithClock(cfg, fetcher, store, clients, log, time.Now)
}

// NewSourceIngestorWithClock wires an ingestor with an injectable clock (for testing).
func NewSourceIngestorWithClock(cfg IngestorConfig, fetcher Fetcher, store RawStore, clients *httpclient.Pool, log *zap.SugaredLogger, timeNow func() time.Time) (*SourceIngestor, error) {
	if !KnownSource(cfg.Source) {
		return nil, errors.Wrapf(errors.ErrSourceUnknown, "%q", cfg.Source)
	}
	if cfg.AcquiredBy == "" {
		return nil, errors.New("acquiredBy cannot be empty")
	}
	if fetcher == nil {
		return nil, errors.Newf("source %s: fetcher is required", cfg.Source)
	}
	if store == nil {
		return nil, errors.Newf("source %s: raw store is required", cfg.Source)
	}
	if clients == nil {
		return nil, errors.Newf("source %s: client pool is required", cfg.Source)
	}

	period := cfg.Period
	if period <= 0 {
		period = time.Minute
	}
	requests := cfg.RequestsPerPeriod
	if requests < 1 {
		requests = 10
	}
	priority := cfg.Priority
	if priority == "" {
		priority = PriorityStandard
	}

	limiter, err := NewRateLimiterWithClock(requests, period, timeNow)
	if err != nil {
		return nil, errors.Wrapf(err, "source %s: rate limiter", cfg.Source)
	}

	sourceLog := log.With("source", cfg.Source)
	breaker := NewCircuitBreakerWithClock(cfg.BreakerThreshold, timeNow)

	return &SourceIngestor{
		source:     cfg.Source,
		acquiredBy: cfg.AcquiredBy,
		priority:   priority,
		fetcher:    fetcher,
		limiter:    limiter,
		breaker:    breaker,
		retry:      NewRetryPolicy(cfg.Source, cfg.MaxRetries, limiter, breaker, sourceLog),
		store:      store,
		clients:    clients,
		log:        sourceLog,
		timeNow:    timeNow,
	}, nil
}

// Source returns the origin this ingestor serves.
func (si *SourceIngestor) Source() Source {
	return si.source
}

// Priority returns the source's dispatch priority.
func (si *SourceIngestor) Priority() Priority {
	return si.priority
}

// Breaker exposes the circuit breaker for operator reset and inspection.
func (si *SourceIngestor) Breaker() *CircuitBreaker {
	return si.breaker
}

// Limiter exposes the rate limiter for inspection.
func (si *SourceIngestor) Limiter() *RateLimiter {
	return si.limiter
}

// Run executes one ingestion pass. It never returns an error: every failure
// mode, including an already-open circuit breaker, is converted into a
// Failed result so callers have a single uniform contract.
func (si *SourceIngestor) Run(ctx context.Context, params map[string]any) *IngestionResult {
	return si.run(ctx, params, nil)
}

func (si *SourceIngestor) run(ctx context.Context, params map[string]any, progress func(Phase, float64)) *IngestionResult {
	start := si.timeNow()

	emit := func(phase Phase, percent float64) {
		if progress != nil {
			progress(phase, percent)
		}
	}

	prov, err := NewProvenanceWithClock(si.source, si.acquiredBy, si.timeNow)
	if err != nil {
		// Construction validated source and acquiredBy; reaching this means
		// the ingestor was built by hand with bad fields.
		return si.failed(start, prov, nil, 0, &SourceError{
			Source: si.source,
			Err:    err,
		})
	}
	if vr, ok := si.fetcher.(VersionReporter); ok {
		if v := vr.SourceVersion(); v != "" {
			prov = prov.WithSourceVersion(v)
		}
		if u := vr.SourceURL(); u != "" {
			prov = prov.WithSourceURL(u)
		}
	}

	// Fail fast while the breaker is open; no network attempt, and the
	// refusal itself is not recorded as another failure.
	if si.breaker.IsOpen() {
		si.log.Warnw("Circuit breaker open, refusing run",
			"failure_count", si.breaker.FailureCount(),
		)
		emit(PhaseFailed, 100)
		return si.failed(start, prov, nil, 0, circuitOpenError(si.source, si.breaker.FailureCount()))
	}

	// The outbound client lease is scoped to this run and released on every
	// exit path below.
	// Lease acquisition only fails on cancellation; not a source fault.
	client, release, err := si.clients.Acquire(ctx)
	if err != nil {
		emit(PhaseFailed, 100)
		return si.failed(start, prov, nil, 0, newSourceError(si.source, errors.ErrTransient, 0, 0, err))
	}
	defer release()

	emit(PhaseFetching, 10)
	prov = prov.AddProcessingStep("fetch started")

	call := &CallContext{Client: client, Retry: si.retry}
	records, fetchErr := si.fetcher.FetchRecords(ctx, call, params)
	skipped := si.skippedRecords()

	if fetchErr != nil {
		// Failed attempts inside the retry layer have already been counted
		// against the breaker; only strategy-level failures outside it
		// (parse errors, bad parameters) are recorded here.
		var retryErr *SourceError
		if !errors.As(fetchErr, &retryErr) {
			si.breaker.RecordFailure()
		}
		si.log.Errorw("Fetch failed",
			"error", fetchErr,
			"partial_records", len(records),
			"breaker_failures", si.breaker.FailureCount(),
		)
		emit(PhaseFailed, 100)
		return si.failed(start, prov, records, skipped, si.asSourceError(fetchErr))
	}

	prov = prov.AddProcessingStep(fmt.Sprintf("fetched %d records", len(records)))

	emit(PhaseStoring, 70)
	location, persistErr := si.store.Persist(string(si.source), records, si.timeNow())
	if persistErr != nil {
		si.breaker.RecordFailure()
		si.log.Errorw("Raw persistence failed",
			"error", persistErr,
			"records", len(records),
		)
		emit(PhaseFailed, 100)
		return si.failed(start, prov, records, skipped, si.asSourceError(persistErr))
	}

	prov = prov.AddProcessingStep(fmt.Sprintf("persisted %d records to %s", len(records), location))

	status := StatusCompleted
	if skipped > 0 {
		status = StatusPartial
		si.log.Warnw("Records skipped during fetch",
			"skipped", skipped,
			"processed", len(records),
		)
	}

	emit(PhaseCompleted, 100)
	end := si.timeNow()
	return &IngestionResult{
		SourceName:       string(si.source),
		Status:           status,
		RecordsProcessed: len(records),
		RecordsSkipped:   skipped,
		Data:             records,
		Provenance:       prov,
		DurationSeconds:  end.Sub(start).Seconds(),
		Timestamp:        end,
	}
}

// failed builds a Failed result carrying whatever partial data was gathered.
// Records captured before the failure were never persisted, so every partial
// record counts as failed as well as processed.
func (si *SourceIngestor) failed(start time.Time, prov ProvenanceChain, partial []RawRecord, skipped int, srcErr *SourceError) *IngestionResult {
	end := si.timeNow()
	return &IngestionResult{
		SourceName:       string(si.source),
		Status:           StatusFailed,
		RecordsProcessed: len(partial),
		RecordsFailed:    len(partial),
		RecordsSkipped:   skipped,
		Data:             partial,
		Provenance:       prov,
		Errors:           []IngestionError{NewIngestionError(srcErr)},
		DurationSeconds:  end.Sub(start).Seconds(),
		Timestamp:        end,
	}
}

// skippedRecords reads the optional skip counter off the strategy.
func (si *SourceIngestor) skippedRecords() int {
	if sr, ok := si.fetcher.(SkipReporter); ok {
		return sr.SkippedRecords()
	}
	return 0
}

// asSourceError normalizes any error into a *SourceError for the result.
func (si *SourceIngestor) asSourceError(err error) *SourceError {
	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return srcErr
	}
	sentinel := errors.ErrTransient
	if errors.Is(err, errors.ErrPersistence) {
		sentinel = errors.ErrPersistence
	}
	return newSourceError(si.source, sentinel, 0, 0, err)
}
