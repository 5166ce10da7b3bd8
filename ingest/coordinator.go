package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/helica-bio/helica/errors"
)

// CoordinatorResult aggregates one coordinated run across all sources.
// Invariant: CompletedSources + FailedSources == TotalSources, where Partial
// results count as completed.
type CoordinatorResult struct {
	RunID                string                      `json:"run_id"`
	TotalSources         int                         `json:"total_sources"`
	CompletedSources     int                         `json:"completed_sources"`
	FailedSources        int                         `json:"failed_sources"`
	TotalRecords         int                         `json:"total_records"`
	PerSource            map[string]*IngestionResult `json:"per_source"`
	TotalDurationSeconds float64                     `json:"total_duration_seconds"`
}

// Coordinator fans out over many source ingestors with bounded parallelism,
// isolating failures so one source cannot abort the others. It always waits
// for every dispatched source before returning.
type Coordinator struct {
	log *zap.SugaredLogger

	// Injectable for testing
	timeNow func() time.Time
	submit  func(pool *ants.Pool, task func()) error
}

// NewCoordinator creates a coordinator.
func NewCoordinator(log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		log:     log,
		timeNow: time.Now,
		submit: func(pool *ants.Pool, task func()) error {
			return pool.Submit(task)
		},
	}
}

// RunAll executes every ingestor with at most maxConcurrent running
// simultaneously; remaining sources queue until a slot frees. Progress
// events are delivered to onProgress (which may be nil) off the worker
// goroutines, so a slow consumer cannot stall ingestion.
//
// A source's failure lands in its own result slot; the returned error only
// reports coordinator-level problems such as a worker pool that could not
// be created.
func (c *Coordinator) RunAll(ctx context.Context, ingestors []*SourceIngestor, maxConcurrent int, onProgress ProgressFunc) (*CoordinatorResult, error) {
	start := c.timeNow()

	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	// PerSource is keyed by source name; a duplicate would silently collapse
	// two ingestors into one slot and break the aggregation invariant.
	seen := make(map[Source]struct{}, len(ingestors))
	for _, ing := range ingestors {
		if _, dup := seen[ing.Source()]; dup {
			return nil, errors.Newf("duplicate source %q in coordinated run", ing.Source())
		}
		seen[ing.Source()] = struct{}{}
	}

	result := &CoordinatorResult{
		RunID:        uuid.NewString(),
		TotalSources: len(ingestors),
		PerSource:    make(map[string]*IngestionResult, len(ingestors)),
	}

	if len(ingestors) == 0 {
		return result, nil
	}

	pool, err := ants.NewPool(maxConcurrent)
	if err != nil {
		return nil, errors.Wrap(err, "creating ingestion worker pool")
	}
	defer pool.Release()

	dispatcher := newProgressDispatcher(onProgress, c.log)

	c.log.Infow("Coordinated ingestion run starting",
		"run_id", result.RunID,
		"sources", len(ingestors),
		"max_concurrent", maxConcurrent,
	)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, ing := range ingestors {
		ing := ing
		name := string(ing.Source())

		wg.Add(1)
		submitErr := c.submit(pool, func() {
			defer wg.Done()

			dispatcher.emit(name, PhaseStarted, 0)

			res := c.runIsolated(ctx, ing, func(phase Phase, percent float64) {
				dispatcher.emit(name, phase, percent)
			})

			mu.Lock()
			result.PerSource[name] = res
			mu.Unlock()
		})
		if submitErr != nil {
			// Pool refused the task; record the source as failed rather
			// than aborting its siblings. The source still gets its start
			// and terminal progress events.
			wg.Done()
			dispatcher.emit(name, PhaseStarted, 0)
			dispatcher.emit(name, PhaseFailed, 100)
			mu.Lock()
			result.PerSource[name] = ing.failed(c.timeNow(), ProvenanceChain{Source: ing.Source()}, nil, 0,
				newSourceError(ing.Source(), errors.ErrTransient, 0, 0, submitErr))
			mu.Unlock()
		}
	}

	wg.Wait()
	dispatcher.close()

	for _, res := range result.PerSource {
		result.TotalRecords += res.RecordsProcessed
		if res.Succeeded() {
			result.CompletedSources++
		} else {
			result.FailedSources++
		}
	}
	result.TotalDurationSeconds = c.timeNow().Sub(start).Seconds()

	c.log.Infow("Coordinated ingestion run finished",
		"run_id", result.RunID,
		"completed", result.CompletedSources,
		"failed", result.FailedSources,
		"records", result.TotalRecords,
		"duration_seconds", result.TotalDurationSeconds,
	)

	return result, nil
}

// RunCritical runs only the sources tagged PriorityCritical, under the same
// concurrency and aggregation rules.
func (c *Coordinator) RunCritical(ctx context.Context, ingestors []*SourceIngestor, maxConcurrent int, onProgress ProgressFunc) (*CoordinatorResult, error) {
	critical := make([]*SourceIngestor, 0, len(ingestors))
	for _, ing := range ingestors {
		if ing.Priority() == PriorityCritical {
			critical = append(critical, ing)
		}
	}
	c.log.Infow("Critical-only run requested",
		"critical", len(critical),
		"configured", len(ingestors),
	)
	return c.RunAll(ctx, critical, maxConcurrent, onProgress)
}

// runIsolated executes one ingestor and converts a panicking strategy into
// a Failed result so sibling sources keep running.
func (c *Coordinator) runIsolated(ctx context.Context, ing *SourceIngestor, progress func(Phase, float64)) (res *IngestionResult) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("Source ingestor panicked",
				"source", ing.Source(),
				"panic", r,
			)
			res = ing.failed(c.timeNow(), ProvenanceChain{Source: ing.Source()}, nil, 0,
				newSourceError(ing.Source(), errors.ErrTransient, 0, 0, errors.Newf("panic: %v", r)))
			progress(PhaseFailed, 100)
		}
	}()

	return ing.run(ctx, nil, progress)
}
