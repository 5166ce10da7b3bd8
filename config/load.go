package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/helica-bio/helica/errors"
)

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the Helica configuration using Viper.
// The result is cached for the lifetime of the process; use Reset in tests.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &cfg
	return globalConfig, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}

	return &cfg, nil
}

// Reset clears the cached configuration (useful for testing).
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// SetDefaults registers default values on a Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.json", false)

	v.SetDefault("ingest.max_concurrent", 3)
	v.SetDefault("ingest.raw_data_dir", "data/raw")
	v.SetDefault("ingest.requests_per_period", 10)
	v.SetDefault("ingest.period_seconds", 60)
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.breaker_threshold", 3)
	v.SetDefault("ingest.http_timeout_seconds", 30)
}

// initViper initializes Viper with configuration sources and defaults.
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("HELICA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	// Project config is optional; defaults and env vars suffice without one.
	v.SetConfigName("helica")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.helica")
	_ = v.ReadInConfig()

	viperInstance = v
	return v
}
