package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRawStorePersist(t *testing.T) {
	dir := t.TempDir()
	store := NewFileRawStore(filepath.Join(dir, "raw"))

	ts := time.Date(2026, 8, 30, 14, 15, 16, 789_000_000, time.UTC)
	records := []RawRecord{
		{"accession": "VCV000012345", "gene": "BRCA1"},
		{"accession": "VCV000067890", "gene": "TP53"},
	}

	location, err := store.Persist("clinvar", records, ts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "raw", "clinvar_20260830_141516.json"), location)

	data, err := os.ReadFile(location)
	require.NoError(t, err)

	var artifact struct {
		Source    string      `json:"source"`
		Timestamp time.Time   `json:"timestamp"`
		Records   []RawRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(data, &artifact))
	assert.Equal(t, "clinvar", artifact.Source)
	assert.Equal(t, ts.Truncate(time.Second), artifact.Timestamp)
	require.Len(t, artifact.Records, 2)
	assert.Equal(t, "BRCA1", artifact.Records[0]["gene"])
}

func TestFileRawStoreSameSecondOverwrites(t *testing.T) {
	store := NewFileRawStore(t.TempDir())
	ts := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	first, err := store.Persist("hpo", []RawRecord{{"id": "HP:0000001"}}, ts)
	require.NoError(t, err)
	second, err := store.Persist("hpo", []RawRecord{{"id": "HP:0000002"}}, ts.Add(500*time.Millisecond))
	require.NoError(t, err)

	// Whole-second naming: the second run lands on the same path.
	assert.Equal(t, first, second)

	data, err := os.ReadFile(second)
	require.NoError(t, err)
	var artifact rawArtifact
	require.NoError(t, json.Unmarshal(data, &artifact))
	require.Len(t, artifact.Records, 1)
	assert.Equal(t, "HP:0000002", artifact.Records[0]["id"])
}

func TestFileRawStoreEmptyRecords(t *testing.T) {
	store := NewFileRawStore(t.TempDir())

	location, err := store.Persist("pubmed", nil, time.Now())
	require.NoError(t, err)
	assert.FileExists(t, location)
}

func TestFileRawStoreRejectsEmptySourceName(t *testing.T) {
	store := NewFileRawStore(t.TempDir())
	_, err := store.Persist("", []RawRecord{{"a": 1}}, time.Now())
	assert.Error(t, err)
}

func TestFileRawStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deeper")
	store := NewFileRawStore(dir)

	_, err := store.Persist("uniprot", []RawRecord{{"entry": "P38398"}}, time.Now())
	require.NoError(t, err)
	assert.DirExists(t, dir)
}
