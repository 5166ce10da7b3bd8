package ingest

import (
	"sync"

	"go.uber.org/zap"
)

// Phase labels a stage of one source's run for progress reporting.
// Open enum: downstream consumers should tolerate new phases.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseFetching  Phase = "fetching"
	PhaseStoring   Phase = "storing"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// ProgressFunc receives progress events. Invoked at least at start and
// completion of each source's run. Fire-and-forget: implementations may be
// slow, the coordinator will not wait on them.
type ProgressFunc func(sourceName string, phase Phase, percent float64)

// progressEvent is one queued callback invocation.
type progressEvent struct {
	source  string
	phase   Phase
	percent float64
}

// progressDispatcher decouples worker goroutines from the caller's progress
// callback. Events go onto a buffered channel drained by a single goroutine;
// when the buffer is full the event is dropped rather than blocking a worker.
type progressDispatcher struct {
	fn      ProgressFunc
	events  chan progressEvent
	done    chan struct{}
	dropped int
	mu      sync.Mutex
	log     *zap.SugaredLogger
}

const progressBufferSize = 64

func newProgressDispatcher(fn ProgressFunc, log *zap.SugaredLogger) *progressDispatcher {
	d := &progressDispatcher{
		fn:     fn,
		events: make(chan progressEvent, progressBufferSize),
		done:   make(chan struct{}),
		log:    log,
	}
	go d.drain()
	return d
}

func (d *progressDispatcher) drain() {
	defer close(d.done)
	for ev := range d.events {
		if d.fn != nil {
			d.fn(ev.source, ev.phase, ev.percent)
		}
	}
}

// emit queues one event without blocking.
func (d *progressDispatcher) emit(source string, phase Phase, percent float64) {
	select {
	case d.events <- progressEvent{source: source, phase: phase, percent: percent}:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
	}
}

// close stops intake and waits for queued events to be delivered.
func (d *progressDispatcher) close() {
	close(d.events)
	<-d.done

	d.mu.Lock()
	dropped := d.dropped
	d.mu.Unlock()
	if dropped > 0 && d.log != nil {
		d.log.Warnw("Progress events dropped by slow consumer", "dropped", dropped)
	}
}
