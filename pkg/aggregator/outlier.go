package aggregator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/AnimaTow/ftso-v2-value-provider/pkg/market"
	"github.com/AnimaTow/ftso-v2-value-provider/pkg/metrics"
)

// filterOutliers rejects samples whose percent deviation from the median
// exceeds the configured threshold. Filtering never empties the set: when
// every sample would be rejected, the unfiltered set is returned instead.
func (a *Aggregator) filterOutliers(feed market.FeedID, samples []sample) []sample {
	if len(samples) < 2 {
		return samples
	}

	med := median(samples)
	if med.IsZero() {
		// Percent deviation from a zero median is undefined; skip filtering.
		return samples
	}

	threshold := decimal.NewFromFloat(a.cfg.OutlierThresholdPercent)
	hundred := decimal.NewFromInt(100)

	filtered := make([]sample, 0, len(samples))
	for _, s := range samples {
		deviationPct := s.value.Sub(med).Abs().Div(med).Mul(hundred)

		if deviationPct.GreaterThan(threshold) {
			metrics.RecordOutlierRejection(feed.Name)
			a.logger.Debug("Rejecting outlier",
				"feed", feed.String(),
				"exchange", s.exchange,
				"price", s.value.String(),
				"median", med.String(),
				"deviation_pct", deviationPct.String())
			continue
		}

		filtered = append(filtered, s)
	}

	if len(filtered) == 0 {
		a.logger.Warn("All prices rejected as outliers, using unfiltered set",
			"feed", feed.String(), "count", len(samples))
		return samples
	}

	return filtered
}

// median computes the median sample value: the middle value for odd counts,
// the mean of the two middle values for even counts, after ascending sort.
func median(samples []sample) decimal.Decimal {
	n := len(samples)
	if n == 0 {
		return decimal.Zero
	}
	if n == 1 {
		return samples[0].value
	}

	values := make([]decimal.Decimal, n)
	for i, s := range samples {
		values[i] = s.value
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].LessThan(values[j])
	})

	if n%2 == 0 {
		return values[n/2-1].Add(values[n/2]).Div(decimal.NewFromInt(2))
	}
	return values[n/2]
}
