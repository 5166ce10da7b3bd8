package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/helica-bio/helica/errors"
	"github.com/helica-bio/helica/ingest"
	"github.com/helica-bio/helica/logger"
)

// HTTPFetcher is the generic JSON-over-HTTP fetch strategy shared by every
// catalog source. It knows nothing about source query grammar beyond "append
// the run parameters as a query string"; all calls go through the run's retry
// policy, and per-record parse failures are skipped and counted rather than
// failing the batch.
//
// A fetcher belongs to exactly one ingestor, which runs it at most once at a
// time, so the skip counter and version fields need no locking.
type HTTPFetcher struct {
	endpoint   string
	recordsKey string
	version    string
	skipped    int
	log        *zap.SugaredLogger
}

// NewHTTPFetcher builds the fetcher for one catalog definition.
func NewHTTPFetcher(def Definition) *HTTPFetcher {
	return &HTTPFetcher{
		endpoint:   strings.TrimRight(def.BaseURL, "/") + def.Path,
		recordsKey: def.RecordsKey,
		log:        logger.Named("fetcher").With("source", def.Name),
	}
}

// FetchRecords issues one GET against the source endpoint and parses the
// response into raw records.
func (f *HTTPFetcher) FetchRecords(ctx context.Context, call *ingest.CallContext, params map[string]any) ([]ingest.RawRecord, error) {
	f.skipped = 0

	target, err := f.buildURL(params)
	if err != nil {
		return nil, err
	}

	body, err := call.Retry.Execute(ctx, func(ctx context.Context) (int, []byte, error) {
		resp, err := call.Client.Get(ctx, target)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, errors.Wrap(err, "reading response body")
		}
		if f.version == "" {
			f.version = resp.Header.Get("Last-Modified")
		}
		return resp.StatusCode, payload, nil
	})
	if err != nil {
		return nil, err
	}

	return f.parse(body)
}

// SkippedRecords reports how many records the last fetch dropped as unparseable.
func (f *HTTPFetcher) SkippedRecords() int {
	return f.skipped
}

// SourceVersion reports the upstream release label observed on the last fetch.
func (f *HTTPFetcher) SourceVersion() string {
	return f.version
}

// SourceURL reports the endpoint this fetcher targets.
func (f *HTTPFetcher) SourceURL() string {
	return f.endpoint
}

func (f *HTTPFetcher) buildURL(params map[string]any) (string, error) {
	u, err := url.Parse(f.endpoint)
	if err != nil {
		return "", errors.Wrapf(err, "invalid endpoint %q", f.endpoint)
	}
	q := u.Query()
	q.Set("format", "json")
	for key, value := range params {
		q.Set(key, toQueryValue(value))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parse accepts the two payload shapes the catalog sources produce: a
// top-level JSON array of records, or an object nesting the record list
// under recordsKey. Elements that are not objects are skipped with a
// warning; an object payload with no list is treated as a single record.
func (f *HTTPFetcher) parse(body []byte) ([]ingest.RawRecord, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrap(err, "decoding response payload")
	}

	switch v := payload.(type) {
	case []any:
		return f.collect(v), nil
	case map[string]any:
		if f.recordsKey != "" {
			if list, ok := v[f.recordsKey].([]any); ok {
				return f.collect(list), nil
			}
		}
		return []ingest.RawRecord{ingest.RawRecord(v)}, nil
	default:
		return nil, errors.Newf("unexpected payload shape %T", payload)
	}
}

func (f *HTTPFetcher) collect(list []any) []ingest.RawRecord {
	records := make([]ingest.RawRecord, 0, len(list))
	for i, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			f.skipped++
			f.log.Warnw("Skipping unparseable record", "index", i, "type", fmt.Sprintf("%T", el))
			continue
		}
		records = append(records, ingest.RawRecord(obj))
	}
	return records
}

func toQueryValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, ",")
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	}
}
