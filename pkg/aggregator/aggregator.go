// Package aggregator computes a single canonical price per feed from raw
// per-exchange observations.
package aggregator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AnimaTow/ftso-v2-value-provider/pkg/logging"
	"github.com/AnimaTow/ftso-v2-value-provider/pkg/market"
	"github.com/AnimaTow/ftso-v2-value-provider/pkg/metrics"
)

// Defaults for the aggregation parameters.
const (
	DefaultOutlierThresholdPercent = 0.5
	DefaultVolumeLookback          = 3600 * time.Second
	DefaultMaxPriceAge             = 30000 * time.Millisecond
)

// Config holds the aggregation parameters. The zero values for the numeric
// fields are replaced with defaults by New; the booleans are taken as-is.
type Config struct {
	EnableOutlierFilter     bool
	EnableVolumeWeighting   bool
	OutlierThresholdPercent float64
	VolumeLookback          time.Duration
	MaxPriceAge             time.Duration
}

// DefaultConfig returns the compiled-in aggregation parameters: both stages
// enabled, 0.5% outlier threshold, 1h volume lookback, 30s max price age.
func DefaultConfig() Config {
	return Config{
		EnableOutlierFilter:     true,
		EnableVolumeWeighting:   true,
		OutlierThresholdPercent: DefaultOutlierThresholdPercent,
		VolumeLookback:          DefaultVolumeLookback,
		MaxPriceAge:             DefaultMaxPriceAge,
	}
}

// sample is one surviving source price within a single resolution.
type sample struct {
	value      decimal.Decimal
	symbol     string
	exchange   string
	observedAt time.Time
}

// Aggregator resolves canonical feed prices over externally owned stores.
// It holds no mutable state of its own, so concurrent resolutions need no
// coordination.
type Aggregator struct {
	logger       *logging.Logger
	cfg          Config
	resolver     market.ConfigResolver
	observations market.ObservationStore
	volumes      market.VolumeStore

	// now is replaceable in tests.
	now func() time.Time
}

// New creates an aggregator over the given stores. Non-positive numeric
// parameters fall back to defaults.
func New(logger *logging.Logger, cfg Config, resolver market.ConfigResolver, observations market.ObservationStore, volumes market.VolumeStore) *Aggregator {
	if cfg.OutlierThresholdPercent <= 0 {
		cfg.OutlierThresholdPercent = DefaultOutlierThresholdPercent
	}
	if cfg.VolumeLookback <= 0 {
		cfg.VolumeLookback = DefaultVolumeLookback
	}
	if cfg.MaxPriceAge <= 0 {
		cfg.MaxPriceAge = DefaultMaxPriceAge
	}

	return &Aggregator{
		logger:       logger,
		cfg:          cfg,
		resolver:     resolver,
		observations: observations,
		volumes:      volumes,
		now:          time.Now,
	}
}

// ResolvePrice computes the canonical price for a feed. The second return is
// false when no price is available this round (unknown feed, all sources
// stale or absent, or a conversion cycle); that is an expected condition, not
// an error, and is logged at warning level.
func (a *Aggregator) ResolvePrice(ctx context.Context, feed market.FeedID) (decimal.Decimal, bool) {
	return a.resolve(ctx, feed, make(map[market.FeedID]struct{}))
}

// resolve carries the set of feeds on the current resolution path so that a
// misconfigured USDT conversion chain terminates instead of recursing
// forever.
func (a *Aggregator) resolve(ctx context.Context, feed market.FeedID, resolving map[market.FeedID]struct{}) (decimal.Decimal, bool) {
	start := time.Now()
	outcome := metrics.OutcomeNoPrice
	defer func() {
		metrics.RecordResolution(feed.Name, outcome, time.Since(start))
	}()

	if _, onPath := resolving[feed]; onPath {
		a.logger.Warn("Conversion cycle detected, dropping feed from this round",
			"feed", feed.String())
		return decimal.Zero, false
	}
	resolving[feed] = struct{}{}
	defer delete(resolving, feed)

	cfg, ok := a.resolver.ResolveFeedConfig(ctx, feed)
	if !ok {
		a.logger.Warn("Feed not found in configuration", "feed", feed.String())
		return decimal.Zero, false
	}

	samples := a.collectSamples(ctx, cfg, resolving)
	if len(samples) == 0 {
		a.logger.Warn("No fresh prices for feed", "feed", feed.String(),
			"sources", len(cfg.Sources))
		return decimal.Zero, false
	}

	if a.cfg.EnableOutlierFilter {
		samples = a.filterOutliers(feed, samples)
	}

	var price decimal.Decimal
	if a.cfg.EnableVolumeWeighting {
		price = a.weightedAverage(ctx, feed, samples)
	} else {
		price = mean(samples)
	}

	outcome = metrics.OutcomePriced
	return price, true
}

// collectSamples runs the staleness and normalization pass over the feed's
// configured sources. Absent or stale observations are skipped silently;
// USDT-quoted values are converted through the USDT/USD feed and dropped when
// that conversion yields no price.
func (a *Aggregator) collectSamples(ctx context.Context, cfg market.FeedConfig, resolving map[market.FeedID]struct{}) []sample {
	now := a.now()
	samples := make([]sample, 0, len(cfg.Sources))

	for _, src := range cfg.Sources {
		obs, ok := a.observations.LatestObservation(ctx, src.Symbol, src.Exchange)
		if !ok {
			continue
		}
		if !obs.Time.IsZero() && now.Sub(obs.Time) > a.cfg.MaxPriceAge {
			metrics.RecordStaleObservation(src.Exchange)
			a.logger.Debug("Skipping stale observation",
				"feed", cfg.Feed.String(),
				"symbol", src.Symbol,
				"exchange", src.Exchange,
				"age", now.Sub(obs.Time).String())
			continue
		}

		value := obs.Value
		if market.IsStableQuoted(src.Symbol) {
			rate, ok := a.resolve(ctx, market.USDTUSDFeed(), resolving)
			if !ok {
				a.logger.Debug("Dropping source, USDT/USD unavailable",
					"feed", cfg.Feed.String(),
					"symbol", src.Symbol,
					"exchange", src.Exchange)
				continue
			}
			metrics.RecordConversion(src.Exchange)
			value = value.Mul(rate)
		}

		samples = append(samples, sample{
			value:      value,
			symbol:     src.Symbol,
			exchange:   src.Exchange,
			observedAt: obs.Time,
		})
	}

	return samples
}

// mean computes the unweighted arithmetic mean of the sample values.
func mean(samples []sample) decimal.Decimal {
	if len(samples) == 0 {
		return decimal.Zero
	}

	sum := decimal.Zero
	for _, s := range samples {
		sum = sum.Add(s.value)
	}

	return sum.Div(decimal.NewFromInt(int64(len(samples))))
}
