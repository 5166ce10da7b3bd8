package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helica-bio/helica/errors"
)

// panickingFetcher simulates a badly behaved source adapter.
type panickingFetcher struct{}

func (panickingFetcher) FetchRecords(ctx context.Context, call *CallContext, params map[string]any) ([]RawRecord, error) {
	panic("nil map write in adapter")
}

func coordIngestor(t *testing.T, source Source, priority Priority, fetcher Fetcher) *SourceIngestor {
	t.Helper()
	si, err := NewSourceIngestor(IngestorConfig{
		Source:           source,
		AcquiredBy:       "coordinator-test",
		Priority:         priority,
		MaxRetries:       3,
		BreakerThreshold: 3,
	}, fetcher, NewFileRawStore(t.TempDir()), testPool(t, 4), zap.NewNop().Sugar())
	require.NoError(t, err)
	si.retry.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return si
}

func recordsOf(n int) []RawRecord {
	records := make([]RawRecord, n)
	for i := range records {
		records[i] = RawRecord{"idx": i}
	}
	return records
}

func TestRunAllIsolatesFailingSource(t *testing.T) {
	ingestors := []*SourceIngestor{
		coordIngestor(t, SourceClinVar, PriorityStandard,
			&stubFetcher{outcomes: []stubOutcome{{records: recordsOf(4)}}}),
		coordIngestor(t, SourcePubMed, PriorityStandard,
			&retryFetcher{call: func(ctx context.Context) (int, []byte, error) {
				return 0, nil, errors.New("connection reset by peer")
			}}),
		coordIngestor(t, SourceHPO, PriorityStandard,
			&stubFetcher{outcomes: []stubOutcome{{records: recordsOf(2)}}}),
	}

	coord := NewCoordinator(zap.NewNop().Sugar())
	result, err := coord.RunAll(context.Background(), ingestors, 2, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalSources)
	assert.Equal(t, 2, result.CompletedSources)
	assert.Equal(t, 1, result.FailedSources)
	assert.Equal(t, result.TotalSources, result.CompletedSources+result.FailedSources)
	assert.Equal(t, 6, result.TotalRecords)

	_, parseErr := uuid.Parse(result.RunID)
	assert.NoError(t, parseErr)

	require.Contains(t, result.PerSource, "pubmed")
	assert.Equal(t, StatusFailed, result.PerSource["pubmed"].Status)
	assert.Equal(t, StatusCompleted, result.PerSource["clinvar"].Status)
	assert.Equal(t, StatusCompleted, result.PerSource["hpo"].Status)

	// The failing source's retry attempts were all counted: its breaker
	// opened within the single coordinated run, the others stayed clean.
	assert.Equal(t, 3, ingestors[1].Breaker().FailureCount())
	assert.True(t, ingestors[1].Breaker().IsOpen())
	assert.False(t, ingestors[0].Breaker().IsOpen())
	assert.False(t, ingestors[2].Breaker().IsOpen())
}

func TestRunAllEmpty(t *testing.T) {
	coord := NewCoordinator(zap.NewNop().Sugar())
	result, err := coord.RunAll(context.Background(), nil, 3, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalSources)
	assert.Equal(t, 0, result.CompletedSources)
	assert.Equal(t, 0, result.FailedSources)
	assert.Empty(t, result.PerSource)
}

func TestRunAllClampsConcurrency(t *testing.T) {
	ingestors := []*SourceIngestor{
		coordIngestor(t, SourceClinVar, PriorityStandard,
			&stubFetcher{outcomes: []stubOutcome{{records: recordsOf(1)}}}),
		coordIngestor(t, SourcePubMed, PriorityStandard,
			&stubFetcher{outcomes: []stubOutcome{{records: recordsOf(1)}}}),
	}

	coord := NewCoordinator(zap.NewNop().Sugar())
	result, err := coord.RunAll(context.Background(), ingestors, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.CompletedSources)
}

func TestRunCriticalFilters(t *testing.T) {
	critical1 := coordIngestor(t, SourceClinVar, PriorityCritical,
		&stubFetcher{outcomes: []stubOutcome{{records: recordsOf(3)}}})
	standard := coordIngestor(t, SourcePubMed, PriorityStandard,
		&stubFetcher{outcomes: []stubOutcome{{records: recordsOf(5)}}})
	critical2 := coordIngestor(t, SourceHPO, PriorityCritical,
		&stubFetcher{outcomes: []stubOutcome{{records: recordsOf(2)}}})

	coord := NewCoordinator(zap.NewNop().Sugar())
	result, err := coord.RunCritical(context.Background(),
		[]*SourceIngestor{critical1, standard, critical2}, 2, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalSources)
	assert.Contains(t, result.PerSource, "clinvar")
	assert.Contains(t, result.PerSource, "hpo")
	assert.NotContains(t, result.PerSource, "pubmed")
	assert.Equal(t, 5, result.TotalRecords)
}

func TestRunAllProgressOrdering(t *testing.T) {
	ingestors := []*SourceIngestor{
		coordIngestor(t, SourceClinVar, PriorityStandard,
			&stubFetcher{outcomes: []stubOutcome{{records: recordsOf(1)}}}),
		coordIngestor(t, SourcePubMed, PriorityStandard,
			&stubFetcher{outcomes: []stubOutcome{{err: errors.New("boom")}}}),
	}

	// The dispatcher drains on a single goroutine and RunAll waits for it,
	// so appending without a lock is safe.
	perSource := map[string][]Phase{}
	onProgress := func(source string, phase Phase, percent float64) {
		perSource[source] = append(perSource[source], phase)
	}

	coord := NewCoordinator(zap.NewNop().Sugar())
	_, err := coord.RunAll(context.Background(), ingestors, 2, onProgress)
	require.NoError(t, err)

	require.NotEmpty(t, perSource["clinvar"])
	assert.Equal(t, PhaseStarted, perSource["clinvar"][0])
	assert.Equal(t, PhaseCompleted, perSource["clinvar"][len(perSource["clinvar"])-1])

	require.NotEmpty(t, perSource["pubmed"])
	assert.Equal(t, PhaseStarted, perSource["pubmed"][0])
	assert.Equal(t, PhaseFailed, perSource["pubmed"][len(perSource["pubmed"])-1])
}

func TestRunAllRejectsDuplicateSources(t *testing.T) {
	ingestors := []*SourceIngestor{
		coordIngestor(t, SourceClinVar, PriorityStandard,
			&stubFetcher{outcomes: []stubOutcome{{records: recordsOf(1)}}}),
		coordIngestor(t, SourceClinVar, PriorityStandard,
			&stubFetcher{outcomes: []stubOutcome{{records: recordsOf(1)}}}),
	}

	coord := NewCoordinator(zap.NewNop().Sugar())
	_, err := coord.RunAll(context.Background(), ingestors, 2, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate source")
}

func TestRunAllSubmitFailureReportsSource(t *testing.T) {
	ingestors := []*SourceIngestor{
		coordIngestor(t, SourceClinVar, PriorityStandard,
			&stubFetcher{outcomes: []stubOutcome{{records: recordsOf(1)}}}),
	}

	perSource := map[string][]Phase{}
	onProgress := func(source string, phase Phase, percent float64) {
		perSource[source] = append(perSource[source], phase)
	}

	coord := NewCoordinator(zap.NewNop().Sugar())
	coord.submit = func(pool *ants.Pool, task func()) error {
		return errors.New("worker pool saturated")
	}

	result, err := coord.RunAll(context.Background(), ingestors, 1, onProgress)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FailedSources)
	assert.Equal(t, 0, result.CompletedSources)
	require.Contains(t, result.PerSource, "clinvar")
	assert.Equal(t, StatusFailed, result.PerSource["clinvar"].Status)

	// The refused source still gets its start and terminal events.
	assert.Equal(t, []Phase{PhaseStarted, PhaseFailed}, perSource["clinvar"])
}

func TestRunAllSurvivesPanickingAdapter(t *testing.T) {
	ingestors := []*SourceIngestor{
		coordIngestor(t, SourceClinVar, PriorityStandard, panickingFetcher{}),
		coordIngestor(t, SourceHPO, PriorityStandard,
			&stubFetcher{outcomes: []stubOutcome{{records: recordsOf(2)}}}),
	}

	coord := NewCoordinator(zap.NewNop().Sugar())
	result, err := coord.RunAll(context.Background(), ingestors, 2, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FailedSources)
	assert.Equal(t, 1, result.CompletedSources)
	require.Contains(t, result.PerSource, "clinvar")
	assert.Equal(t, StatusFailed, result.PerSource["clinvar"].Status)
	require.NotEmpty(t, result.PerSource["clinvar"].Errors)
	assert.Contains(t, result.PerSource["clinvar"].Errors[0].Message, "panic")
}
