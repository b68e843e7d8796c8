package config

import (
	"time"

	"github.com/AnimaTow/ftso-v2-value-provider/pkg/market"
)

// Config is the root configuration structure
type Config struct {
	Feeds           []FeedSpec        `yaml:"feeds"`
	Aggregation     AggregationConfig `yaml:"aggregation"`
	ResolveInterval Duration          `yaml:"resolve_interval"`
	Redis           RedisConfig       `yaml:"redis"`
	Metrics         MetricsConfig     `yaml:"metrics"`
	Logging         LoggingConfig     `yaml:"logging"`
}

// FeedSpec configures one feed and its source pairs
type FeedSpec struct {
	Category int                       `yaml:"category"`
	Name     string                    `yaml:"name"`
	Sources  []market.FeedSourceConfig `yaml:"sources"`
}

// AggregationConfig configures the price aggregation parameters.
// The boolean stages are pointers so that an absent key means "enabled".
type AggregationConfig struct {
	OutlierFilter           *bool    `yaml:"outlier_filter"`
	VolumeWeighting         *bool    `yaml:"volume_weighting"`
	OutlierThresholdPercent float64  `yaml:"outlier_threshold_percent"`
	VolumeLookback          Duration `yaml:"volume_lookback"`
	MaxPriceAge             Duration `yaml:"max_price_age"`
}

// RedisConfig configures the optional Redis-backed store
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}

// FeedConfigs converts the configured feed specs into resolver entries.
func (c *Config) FeedConfigs() []market.FeedConfig {
	feeds := make([]market.FeedConfig, 0, len(c.Feeds))
	for _, spec := range c.Feeds {
		feeds = append(feeds, market.FeedConfig{
			Feed:    market.FeedID{Category: spec.Category, Name: spec.Name},
			Sources: spec.Sources,
		})
	}
	return feeds
}
