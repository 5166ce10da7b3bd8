package sources

import (
	"go.uber.org/zap"

	"github.com/helica-bio/helica/errors"
	"github.com/helica-bio/helica/ingest"
	"github.com/helica-bio/helica/internal/httpclient"
)

// AcquiredBy is the operator identity recorded on provenance chains for
// ingestion runs started by this process.
const AcquiredBy = "helica-ingest"

// BuildIngestors wires one SourceIngestor per definition over a shared client
// pool and raw store. Each ingestor gets its own fetcher, rate limiter, and
// circuit breaker.
func BuildIngestors(defs []Definition, store ingest.RawStore, pool *httpclient.Pool, log *zap.SugaredLogger) ([]*ingest.SourceIngestor, error) {
	ingestors := make([]*ingest.SourceIngestor, 0, len(defs))
	for _, def := range defs {
		si, err := ingest.NewSourceIngestor(ingest.IngestorConfig{
			Source:            def.Name,
			AcquiredBy:        AcquiredBy,
			Priority:          def.Priority,
			RequestsPerPeriod: def.RequestsPerPeriod,
			Period:            def.Period,
			MaxRetries:        def.MaxRetries,
			BreakerThreshold:  def.BreakerThreshold,
		}, NewHTTPFetcher(def), store, pool, log)
		if err != nil {
			return nil, errors.Wrapf(err, "building ingestor for %s", def.Name)
		}
		ingestors = append(ingestors, si)
	}
	return ingestors, nil
}
