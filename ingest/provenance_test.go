package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helica-bio/helica/errors"
)

func TestNewProvenanceDefaults(t *testing.T) {
	clock := newMockClock()
	p, err := NewProvenanceWithClock(SourceClinVar, "ingest-daemon", clock.Now)
	require.NoError(t, err)

	assert.Equal(t, SourceClinVar, p.Source)
	assert.Equal(t, "ingest-daemon", p.AcquiredBy)
	assert.Equal(t, clock.Now(), p.AcquiredAt)
	assert.Empty(t, p.ProcessingSteps)
	assert.Nil(t, p.QualityScore)
	assert.Equal(t, ValidationStatusPending, p.ValidationStatus)
}

func TestNewProvenanceValidation(t *testing.T) {
	_, err := NewProvenance(Source("genbank"), "daemon")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSourceUnknown))

	_, err = NewProvenance(SourcePubMed, "")
	assert.Error(t, err)
}

func TestAddProcessingStepImmutable(t *testing.T) {
	orig, err := NewProvenance(SourceHPO, "daemon")
	require.NoError(t, err)

	next := orig.AddProcessingStep("fetched 100 records")

	assert.Empty(t, orig.ProcessingSteps, "original chain must be unchanged")
	require.Len(t, next.ProcessingSteps, 1)
	assert.Equal(t, "fetched 100 records", next.ProcessingSteps[0])

	// Further appends must not alias the intermediate chain's backing array.
	third := next.AddProcessingStep("persisted")
	fourth := next.AddProcessingStep("validated")
	assert.Equal(t, []string{"fetched 100 records", "persisted"}, third.ProcessingSteps)
	assert.Equal(t, []string{"fetched 100 records", "validated"}, fourth.ProcessingSteps)
	assert.Len(t, next.ProcessingSteps, 1)
}

func TestUpdateQualityScore(t *testing.T) {
	orig, err := NewProvenance(SourceUniProt, "daemon")
	require.NoError(t, err)

	next, err := orig.UpdateQualityScore(0.85)
	require.NoError(t, err)
	require.NotNil(t, next.QualityScore)
	assert.InDelta(t, 0.85, *next.QualityScore, 1e-9)
	assert.Nil(t, orig.QualityScore)

	for _, bad := range []float64{-0.01, 1.01, 2} {
		_, err := orig.UpdateQualityScore(bad)
		assert.Error(t, err, "score %g must be rejected", bad)
	}

	// Boundary values are allowed.
	_, err = orig.UpdateQualityScore(0)
	assert.NoError(t, err)
	_, err = orig.UpdateQualityScore(1)
	assert.NoError(t, err)
}

func TestMarkValidated(t *testing.T) {
	orig, err := NewProvenance(SourceOMIM, "curator@helica.bio")
	require.NoError(t, err)

	next := orig.MarkValidated("approved")
	assert.Equal(t, "approved", next.ValidationStatus)
	assert.Equal(t, ValidationStatusPending, orig.ValidationStatus)
}

func TestWithSourceVersionAndURL(t *testing.T) {
	orig, err := NewProvenance(SourceEnsembl, "daemon")
	require.NoError(t, err)

	next := orig.WithSourceVersion("release-115").WithSourceURL("https://rest.ensembl.org")
	assert.Equal(t, "release-115", next.SourceVersion)
	assert.Equal(t, "https://rest.ensembl.org", next.SourceURL)
	assert.Empty(t, orig.SourceVersion)
	assert.Empty(t, orig.SourceURL)
}

func TestKnownSource(t *testing.T) {
	for _, s := range []Source{SourceClinVar, SourcePubMed, SourceHPO, SourceUniProt, SourceEnsembl, SourceOMIM} {
		assert.True(t, KnownSource(s), "%s", s)
	}
	assert.False(t, KnownSource(Source("dbsnp")))
	assert.False(t, KnownSource(Source("")))
}
