// Package sources holds the catalog of external biomedical data origins and
// the generic HTTP fetch strategy they share. The catalog carries built-in
// defaults for every known origin; configuration overrides endpoints, rate
// limits, and priorities per source.
package sources

import (
	"sort"
	"time"

	"github.com/helica-bio/helica/config"
	"github.com/helica-bio/helica/errors"
	"github.com/helica-bio/helica/ingest"
)

// Definition is the fully resolved configuration for one source.
type Definition struct {
	Name              ingest.Source
	BaseURL           string
	Path              string // Endpoint path appended to BaseURL
	RecordsKey        string // JSON key nesting the record list, "" for top-level arrays
	Priority          ingest.Priority
	RequestsPerPeriod int
	Period            time.Duration
	MaxRetries        int
	BreakerThreshold  int
}

// defaults is the built-in catalog. ClinVar and HPO are the critical origins:
// variant interpretations and phenotype terms gate curation, the rest enrich.
var defaults = []Definition{
	{
		Name:       ingest.SourceClinVar,
		BaseURL:    "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
		Path:       "/esummary.fcgi",
		RecordsKey: "result",
		Priority:   ingest.PriorityCritical,
	},
	{
		Name:       ingest.SourcePubMed,
		BaseURL:    "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
		Path:       "/esearch.fcgi",
		RecordsKey: "esearchresult",
		Priority:   ingest.PriorityStandard,
	},
	{
		Name:       ingest.SourceHPO,
		BaseURL:    "https://ontology.jax.org/api/hp",
		Path:       "/terms",
		RecordsKey: "terms",
		Priority:   ingest.PriorityCritical,
	},
	{
		Name:       ingest.SourceUniProt,
		BaseURL:    "https://rest.uniprot.org/uniprotkb",
		Path:       "/search",
		RecordsKey: "results",
		Priority:   ingest.PriorityStandard,
	},
	{
		Name:     ingest.SourceEnsembl,
		BaseURL:  "https://rest.ensembl.org",
		Path:     "/overlap/region/human",
		Priority: ingest.PriorityStandard,
	},
	{
		Name:       ingest.SourceOMIM,
		BaseURL:    "https://api.omim.org/api",
		Path:       "/entry/search",
		RecordsKey: "omim",
		Priority:   ingest.PriorityStandard,
	},
}

// Catalog returns the built-in definitions, critical sources first.
func Catalog() []Definition {
	out := make([]Definition, len(defaults))
	copy(out, defaults)
	sortByPriority(out)
	return out
}

// Lookup returns the built-in definition for a source.
func Lookup(name ingest.Source) (Definition, error) {
	for _, def := range defaults {
		if def.Name == name {
			return def, nil
		}
	}
	return Definition{}, errors.Wrapf(errors.ErrSourceUnknown, "%q", name)
}

// FromConfig resolves the enabled definitions: built-in catalog, overlaid
// with the ingest-wide defaults and any per-source settings. Sources the
// configuration names but the catalog does not know are an error, not a
// silent skip.
func FromConfig(cfg *config.Config) ([]Definition, error) {
	for name := range cfg.Sources {
		if !ingest.KnownSource(ingest.Source(name)) {
			return nil, errors.Wrapf(errors.ErrSourceUnknown, "configured source %q", name)
		}
	}

	out := make([]Definition, 0, len(defaults))
	for _, def := range defaults {
		settings := cfg.Sources[string(def.Name)]
		if !settings.IsEnabled() {
			continue
		}

		def.RequestsPerPeriod = cfg.Ingest.RequestsPerPeriod
		def.Period = time.Duration(cfg.Ingest.PeriodSeconds) * time.Second
		def.MaxRetries = cfg.Ingest.MaxRetries
		def.BreakerThreshold = cfg.Ingest.BreakerThreshold

		if settings.BaseURL != "" {
			def.BaseURL = settings.BaseURL
		}
		if settings.Priority != "" {
			def.Priority = ingest.Priority(settings.Priority)
		}
		if settings.RequestsPerPeriod > 0 {
			def.RequestsPerPeriod = settings.RequestsPerPeriod
		}
		if settings.PeriodSeconds > 0 {
			def.Period = time.Duration(settings.PeriodSeconds) * time.Second
		}
		if settings.MaxRetries > 0 {
			def.MaxRetries = settings.MaxRetries
		}
		if settings.BreakerThreshold > 0 {
			def.BreakerThreshold = settings.BreakerThreshold
		}

		out = append(out, def)
	}
	sortByPriority(out)
	return out, nil
}

// sortByPriority orders critical sources ahead of standard ones, names
// alphabetical within a tier, so bounded-concurrency runs start the
// curation-gating origins first.
func sortByPriority(defs []Definition) {
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].Priority != defs[j].Priority {
			return defs[i].Priority == ingest.PriorityCritical
		}
		return defs[i].Name < defs[j].Name
	})
}
