package aggregator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AnimaTow/ftso-v2-value-provider/pkg/market"
	"github.com/AnimaTow/ftso-v2-value-provider/pkg/metrics"
)

// weightedAverage combines samples by volume and freshness:
//
//	result = Σ(value × volume_weight × freshness_weight) / Σ(volume_weight × freshness_weight)
//
// Volume weight is the traded volume over the lookback window, defaulting to
// 1 when unavailable or non-positive. Freshness weight decays linearly from 1
// at age 0 to 0 at max price age, defaulting to 1 when the observation has no
// timestamp. A zero total weight falls back to the unweighted mean.
func (a *Aggregator) weightedAverage(ctx context.Context, feed market.FeedID, samples []sample) decimal.Decimal {
	now := a.now()

	weightedSum := decimal.Zero
	totalWeight := decimal.Zero

	for _, s := range samples {
		weight := a.volumeWeight(ctx, s).Mul(a.freshnessWeight(s, now))
		weightedSum = weightedSum.Add(s.value.Mul(weight))
		totalWeight = totalWeight.Add(weight)
	}

	if totalWeight.IsZero() {
		metrics.RecordZeroWeightFallback(feed.Name)
		a.logger.Warn("Total weight is zero, falling back to simple mean",
			"feed", feed.String(), "samples", len(samples))
		return mean(samples)
	}

	return weightedSum.Div(totalWeight)
}

// volumeWeight is the traded volume for the sample's pair over the configured
// lookback window, or 1 when no usable volume is known.
func (a *Aggregator) volumeWeight(ctx context.Context, s sample) decimal.Decimal {
	volume, ok := a.volumes.VolumeOverWindow(ctx, s.symbol, s.exchange, a.cfg.VolumeLookback)
	if !ok || !volume.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return volume
}

// freshnessWeight is max(0, 1 - age/maxAge), or 1 when the observation
// carries no timestamp.
func (a *Aggregator) freshnessWeight(s sample, now time.Time) decimal.Decimal {
	if s.observedAt.IsZero() {
		return decimal.NewFromInt(1)
	}

	age := now.Sub(s.observedAt)
	if age <= 0 {
		return decimal.NewFromInt(1)
	}

	fraction := float64(age) / float64(a.cfg.MaxPriceAge)
	if fraction >= 1 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(1 - fraction)
}
