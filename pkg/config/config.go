// Package config provides configuration loading and validation for the value
// provider.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AnimaTow/ftso-v2-value-provider/pkg/aggregator"
)

// Environment overrides for the aggregation parameters. Values that fail to
// parse are ignored and the configured default is kept.
const (
	EnvOutlierFilter    = "VALUE_PROVIDER_OUTLIER_FILTER"
	EnvVolumeWeighting  = "VALUE_PROVIDER_VOLUME_WEIGHTING"
	EnvOutlierThreshold = "VALUE_PROVIDER_OUTLIER_THRESHOLD"
	EnvVolumeLookback   = "VALUE_PROVIDER_VOLUME_LOOKBACK_SEC"
	EnvMaxPriceAge      = "VALUE_PROVIDER_MAX_PRICE_AGE_MS"
)

// Load loads configuration from YAML file and environment variables.
func Load(path string) (*Config, error) {
	// Validate and sanitize path
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	// Read config file
	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in YAML
	expanded := os.ExpandEnv(string(data))

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults
	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.ResolveInterval.ToDuration() == 0 {
		cfg.ResolveInterval = Duration(10 * time.Second)
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// Aggregator converts the aggregation section into the core configuration,
// applying compiled-in defaults for absent fields and environment overrides
// on top. Read once at process start.
func (ac AggregationConfig) Aggregator() aggregator.Config {
	cfg := aggregator.DefaultConfig()

	if ac.OutlierFilter != nil {
		cfg.EnableOutlierFilter = *ac.OutlierFilter
	}
	if ac.VolumeWeighting != nil {
		cfg.EnableVolumeWeighting = *ac.VolumeWeighting
	}
	if ac.OutlierThresholdPercent > 0 {
		cfg.OutlierThresholdPercent = ac.OutlierThresholdPercent
	}
	if ac.VolumeLookback.ToDuration() > 0 {
		cfg.VolumeLookback = ac.VolumeLookback.ToDuration()
	}
	if ac.MaxPriceAge.ToDuration() > 0 {
		cfg.MaxPriceAge = ac.MaxPriceAge.ToDuration()
	}

	applyEnv(&cfg)
	return cfg
}

// applyEnv overlays environment overrides onto the aggregation parameters.
// Malformed values are silently ignored.
func applyEnv(cfg *aggregator.Config) {
	if v, ok := os.LookupEnv(EnvOutlierFilter); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnableOutlierFilter = b
		}
	}
	if v, ok := os.LookupEnv(EnvVolumeWeighting); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnableVolumeWeighting = b
		}
	}
	if v, ok := os.LookupEnv(EnvOutlierThreshold); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.OutlierThresholdPercent = f
		}
	}
	if v, ok := os.LookupEnv(EnvVolumeLookback); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.VolumeLookback = time.Duration(n) * time.Second
		}
	}
	if v, ok := os.LookupEnv(EnvMaxPriceAge); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxPriceAge = time.Duration(n) * time.Millisecond
		}
	}
}
