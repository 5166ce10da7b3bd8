package ingest

import (
	"time"

	"github.com/helica-bio/helica/errors"
)

// Source identifies an external data origin.
type Source string

// Known origins of curated biomedical data.
const (
	SourceClinVar Source = "clinvar"
	SourcePubMed  Source = "pubmed"
	SourceHPO     Source = "hpo"
	SourceUniProt Source = "uniprot"
	SourceEnsembl Source = "ensembl"
	SourceOMIM    Source = "omim"
)

// KnownSource reports whether s names a configured origin.
func KnownSource(s Source) bool {
	switch s {
	case SourceClinVar, SourcePubMed, SourceHPO, SourceUniProt, SourceEnsembl, SourceOMIM:
		return true
	default:
		return false
	}
}

// ValidationStatusPending is the initial validation status of a chain.
const ValidationStatusPending = "pending"

// ProvenanceChain is the immutable acquisition record attached to every
// ingestion outcome. Mutators return a new chain; the receiver is never
// modified, so a chain captured early in a run stays valid as an audit
// snapshot no matter what later steps do.
type ProvenanceChain struct {
	Source           Source    `json:"source"`
	AcquiredBy       string    `json:"acquired_by"`
	AcquiredAt       time.Time `json:"acquired_at"`
	SourceVersion    string    `json:"source_version,omitempty"`
	SourceURL        string    `json:"source_url,omitempty"`
	ProcessingSteps  []string  `json:"processing_steps"`
	QualityScore     *float64  `json:"quality_score,omitempty"`
	ValidationStatus string    `json:"validation_status"`
}

// NewProvenance creates a chain at the start of a run.
func NewProvenance(source Source, acquiredBy string) (ProvenanceChain, error) {
	return NewProvenanceWithClock(source, acquiredBy, time.Now)
}

// NewProvenanceWithClock creates a chain with an injectable clock (for testing).
func NewProvenanceWithClock(source Source, acquiredBy string, timeNow func() time.Time) (ProvenanceChain, error) {
	if !KnownSource(source) {
		return ProvenanceChain{}, errors.Wrapf(errors.ErrSourceUnknown, "%q", source)
	}
	if acquiredBy == "" {
		return ProvenanceChain{}, errors.New("acquiredBy cannot be empty")
	}

	return ProvenanceChain{
		Source:           source,
		AcquiredBy:       acquiredBy,
		AcquiredAt:       timeNow(),
		ProcessingSteps:  []string{},
		ValidationStatus: ValidationStatusPending,
	}, nil
}

// AddProcessingStep returns a new chain with the step appended.
func (p ProvenanceChain) AddProcessingStep(step string) ProvenanceChain {
	next := p
	next.ProcessingSteps = make([]string, 0, len(p.ProcessingSteps)+1)
	next.ProcessingSteps = append(next.ProcessingSteps, p.ProcessingSteps...)
	next.ProcessingSteps = append(next.ProcessingSteps, step)
	return next
}

// UpdateQualityScore returns a new chain with the score set.
// The score must lie in [0, 1].
func (p ProvenanceChain) UpdateQualityScore(score float64) (ProvenanceChain, error) {
	if score < 0 || score > 1 {
		return ProvenanceChain{}, errors.Newf("quality score must be in [0, 1], got %g", score)
	}
	next := p.copySteps()
	next.QualityScore = &score
	return next, nil
}

// MarkValidated returns a new chain with the validation status set.
func (p ProvenanceChain) MarkValidated(status string) ProvenanceChain {
	next := p.copySteps()
	next.ValidationStatus = status
	return next
}

// WithSourceVersion returns a new chain carrying the upstream release label.
func (p ProvenanceChain) WithSourceVersion(version string) ProvenanceChain {
	next := p.copySteps()
	next.SourceVersion = version
	return next
}

// WithSourceURL returns a new chain carrying the upstream endpoint.
func (p ProvenanceChain) WithSourceURL(url string) ProvenanceChain {
	next := p.copySteps()
	next.SourceURL = url
	return next
}

// copySteps clones the chain with its own steps slice so callers cannot
// alias the original's backing array.
func (p ProvenanceChain) copySteps() ProvenanceChain {
	next := p
	next.ProcessingSteps = make([]string, len(p.ProcessingSteps))
	copy(next.ProcessingSteps, p.ProcessingSteps)
	return next
}
