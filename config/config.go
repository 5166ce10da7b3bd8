// Package config provides Helica configuration loading via Viper.
//
// Configuration precedence: defaults -> config file (TOML) -> environment
// variables (HELICA_ prefix, dots replaced by underscores).
package config

// Config represents the core Helica configuration
type Config struct {
	Logging Logging                   `mapstructure:"logging"`
	Ingest  Ingest                    `mapstructure:"ingest"`
	Sources map[string]SourceSettings `mapstructure:"sources"`
}

// Logging configures the global logger
type Logging struct {
	JSON bool `mapstructure:"json"` // JSON output instead of console (default: false)
}

// Ingest configures the ingestion coordinator and per-source defaults
type Ingest struct {
	MaxConcurrent int    `mapstructure:"max_concurrent"` // Simultaneous source ingestors (default: 3)
	RawDataDir    string `mapstructure:"raw_data_dir"`   // Directory for raw record artifacts (default: data/raw)

	// Per-source defaults, applied where the source entry omits a value.
	RequestsPerPeriod int `mapstructure:"requests_per_period"` // Rate-limit capacity (default: 10)
	PeriodSeconds     int `mapstructure:"period_seconds"`      // Rate-limit refill window (default: 60)
	MaxRetries        int `mapstructure:"max_retries"`         // Attempts per outbound call (default: 3)
	BreakerThreshold  int `mapstructure:"breaker_threshold"`   // Consecutive failures before the circuit opens (default: 3)
	HTTPTimeoutSecs   int `mapstructure:"http_timeout_seconds"`
}

// SourceSettings configures one external data source.
// Zero values inherit the Ingest defaults above.
type SourceSettings struct {
	BaseURL           string `mapstructure:"base_url"`
	Priority          string `mapstructure:"priority"` // "critical" or "standard" (default: standard)
	Enabled           *bool  `mapstructure:"enabled"`  // nil = enabled
	RequestsPerPeriod int    `mapstructure:"requests_per_period"`
	PeriodSeconds     int    `mapstructure:"period_seconds"`
	MaxRetries        int    `mapstructure:"max_retries"`
	BreakerThreshold  int    `mapstructure:"breaker_threshold"`
}

// IsEnabled reports whether the source is enabled (nil means enabled).
func (s SourceSettings) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}
