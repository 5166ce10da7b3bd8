package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/helica-bio/helica/errors"
)

// artifactTimeLayout names artifacts at whole-second granularity.
// Two runs of the same source within one second collide and overwrite;
// documented limitation, tracked for a monotonic run identifier upstream.
const artifactTimeLayout = "20060102_150405"

// RawStore persists the raw payloads fetched in a run, before any parsing
// or validation touches them.
type RawStore interface {
	// Persist writes one artifact for the run and returns its location.
	Persist(sourceName string, records []RawRecord, timestamp time.Time) (string, error)
}

// rawArtifact is the on-disk shape of one run's payload.
type rawArtifact struct {
	Source    string      `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
	Records   []RawRecord `json:"records"`
}

// FileRawStore writes one JSON artifact per run under a base directory.
type FileRawStore struct {
	dir string
}

// NewFileRawStore creates a store rooted at dir. The directory is created
// on first Persist, not here, so constructing a store is side-effect free.
func NewFileRawStore(dir string) *FileRawStore {
	return &FileRawStore{dir: dir}
}

// Dir returns the artifact directory.
func (s *FileRawStore) Dir() string {
	return s.dir
}

// Persist writes {sourceName}_{YYYYMMDD_HHMMSS}.json containing the source
// name, an RFC 3339 timestamp, and the raw records.
func (s *FileRawStore) Persist(sourceName string, records []RawRecord, timestamp time.Time) (string, error) {
	if sourceName == "" {
		return "", errors.Wrap(errors.ErrPersistence, "source name cannot be empty")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrapf(errors.ErrPersistence, "creating %s: %v", s.dir, err)
	}

	name := sourceName + "_" + timestamp.Format(artifactTimeLayout) + ".json"
	path := filepath.Join(s.dir, name)

	artifact := rawArtifact{
		Source:    sourceName,
		Timestamp: timestamp.Truncate(time.Second),
		Records:   records,
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", errors.Wrapf(errors.ErrPersistence, "marshaling %s artifact: %v", sourceName, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(errors.ErrPersistence, "writing %s: %v", path, err)
	}

	return path, nil
}
