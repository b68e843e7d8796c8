package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnimaTow/ftso-v2-value-provider/pkg/logging"
	"github.com/AnimaTow/ftso-v2-value-provider/pkg/market"
)

// stubVolumes returns fixed volumes per "SYMBOL@EXCHANGE" key.
type stubVolumes map[string]decimal.Decimal

func (v stubVolumes) VolumeOverWindow(_ context.Context, symbol, exchange string, _ time.Duration) (decimal.Decimal, bool) {
	vol, ok := v[symbol+"@"+exchange]
	return vol, ok
}

func newTestAggregator(cfg Config, feeds []market.FeedConfig, obs *market.MemoryObservationStore, vols market.VolumeStore) *Aggregator {
	if vols == nil {
		vols = stubVolumes{}
	}
	return New(logging.NewNoopLogger(), cfg, market.NewMemoryConfigResolver(feeds), obs, vols)
}

func btcFeed() market.FeedID {
	return market.FeedID{Category: market.CategoryCrypto, Name: "BTC/USD"}
}

func feedWithSources(feed market.FeedID, sources ...market.FeedSourceConfig) []market.FeedConfig {
	return []market.FeedConfig{{Feed: feed, Sources: sources}}
}

func TestResolvePrice_FeedNotFound(t *testing.T) {
	agg := newTestAggregator(DefaultConfig(), nil, market.NewMemoryObservationStore(), nil)

	_, ok := agg.ResolvePrice(context.Background(), btcFeed())
	assert.False(t, ok)
}

func TestResolvePrice_UnweightedMean(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableOutlierFilter = false
	cfg.EnableVolumeWeighting = false

	obs := market.NewMemoryObservationStore()
	now := time.Now()
	obs.Put("BTC/USD", "exA", market.Observation{Value: decimal.NewFromInt(100), Time: now})
	obs.Put("BTC/USD", "exB", market.Observation{Value: decimal.NewFromInt(102), Time: now})

	feeds := feedWithSources(btcFeed(),
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exA"},
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exB"},
	)

	agg := newTestAggregator(cfg, feeds, obs, nil)

	price, ok := agg.ResolvePrice(context.Background(), btcFeed())
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(101)), "got %s", price)
}

func TestResolvePrice_Idempotent(t *testing.T) {
	cfg := DefaultConfig()

	obs := market.NewMemoryObservationStore()
	now := time.Now()
	obs.Put("BTC/USD", "exA", market.Observation{Value: decimal.NewFromInt(100), Time: now})
	obs.Put("BTC/USD", "exB", market.Observation{Value: decimal.NewFromInt(101), Time: now})

	feeds := feedWithSources(btcFeed(),
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exA"},
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exB"},
	)

	agg := newTestAggregator(cfg, feeds, obs, nil)
	agg.now = func() time.Time { return now }

	first, ok := agg.ResolvePrice(context.Background(), btcFeed())
	require.True(t, ok)
	second, ok := agg.ResolvePrice(context.Background(), btcFeed())
	require.True(t, ok)

	assert.True(t, first.Equal(second), "%s != %s", first, second)
}

// Scenario: sources at 100, 101 and 200 with a 0.5% threshold. The median is
// 101; 100 deviates 0.990% and 200 deviates 98%, so only 101 survives.
func TestResolvePrice_OutlierFilterBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableVolumeWeighting = false

	obs := market.NewMemoryObservationStore()
	now := time.Now()
	obs.Put("BTC/USD", "exA", market.Observation{Value: decimal.NewFromInt(100), Time: now})
	obs.Put("BTC/USD", "exB", market.Observation{Value: decimal.NewFromInt(101), Time: now})
	obs.Put("BTC/USD", "exC", market.Observation{Value: decimal.NewFromInt(200), Time: now})

	feeds := feedWithSources(btcFeed(),
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exA"},
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exB"},
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exC"},
	)

	agg := newTestAggregator(cfg, feeds, obs, nil)

	price, ok := agg.ResolvePrice(context.Background(), btcFeed())
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(101)), "got %s", price)
}

// Scenario: a USDT-quoted source at 1.0003 with USDT/USD at 0.999 converts to
// exactly 1.0003 * 0.999.
func TestResolvePrice_USDTConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableVolumeWeighting = false

	obs := market.NewMemoryObservationStore()
	now := time.Now()
	obs.Put("XYZ/USDT", "exA", market.Observation{Value: decimal.RequireFromString("1.0003"), Time: now})
	obs.Put("USDT/USD", "exB", market.Observation{Value: decimal.RequireFromString("0.999"), Time: now})

	xyz := market.FeedID{Category: market.CategoryCrypto, Name: "XYZ/USD"}
	feeds := []market.FeedConfig{
		{Feed: xyz, Sources: []market.FeedSourceConfig{{Symbol: "XYZ/USDT", Exchange: "exA"}}},
		{Feed: market.USDTUSDFeed(), Sources: []market.FeedSourceConfig{{Symbol: "USDT/USD", Exchange: "exB"}}},
	}

	agg := newTestAggregator(cfg, feeds, obs, nil)

	price, ok := agg.ResolvePrice(context.Background(), xyz)
	require.True(t, ok)

	expected := decimal.RequireFromString("1.0003").Mul(decimal.RequireFromString("0.999"))
	assert.True(t, price.Sub(expected).Abs().LessThan(decimal.New(1, -9)), "got %s, want %s", price, expected)
}

func TestResolvePrice_DropsSourceWhenConversionUnavailable(t *testing.T) {
	cfg := DefaultConfig()

	obs := market.NewMemoryObservationStore()
	obs.Put("XYZ/USDT", "exA", market.Observation{Value: decimal.NewFromInt(5), Time: time.Now()})

	xyz := market.FeedID{Category: market.CategoryCrypto, Name: "XYZ/USD"}
	feeds := []market.FeedConfig{
		{Feed: xyz, Sources: []market.FeedSourceConfig{{Symbol: "XYZ/USDT", Exchange: "exA"}}},
		// USDT/USD feed intentionally unconfigured.
	}

	agg := newTestAggregator(cfg, feeds, obs, nil)

	_, ok := agg.ResolvePrice(context.Background(), xyz)
	assert.False(t, ok)
}

// Scenario: every observation is older than the max age, so the round yields
// no price.
func TestResolvePrice_AllStale(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPriceAge = 30 * time.Second

	obs := market.NewMemoryObservationStore()
	old := time.Now().Add(-time.Hour)
	obs.Put("BTC/USD", "exA", market.Observation{Value: decimal.NewFromInt(100), Time: old})
	obs.Put("BTC/USD", "exB", market.Observation{Value: decimal.NewFromInt(101), Time: old})

	feeds := feedWithSources(btcFeed(),
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exA"},
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exB"},
	)

	agg := newTestAggregator(cfg, feeds, obs, nil)

	_, ok := agg.ResolvePrice(context.Background(), btcFeed())
	assert.False(t, ok)
}

// Scenario: one source has zero volume and zero freshness, the other positive
// volume and full freshness. The first contributes nothing.
func TestResolvePrice_ZeroWeightSourceExcluded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableOutlierFilter = false
	cfg.MaxPriceAge = 30 * time.Second

	now := time.Now()

	obs := market.NewMemoryObservationStore()
	obs.Put("BTC/USD", "exA", market.Observation{Value: decimal.NewFromInt(100), Time: now.Add(-30 * time.Second)})
	obs.Put("BTC/USD", "exB", market.Observation{Value: decimal.NewFromInt(200), Time: now})

	vols := stubVolumes{
		"BTC/USD@exA": decimal.Zero,
		"BTC/USD@exB": decimal.NewFromInt(5),
	}

	feeds := feedWithSources(btcFeed(),
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exA"},
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exB"},
	)

	agg := newTestAggregator(cfg, feeds, obs, vols)
	agg.now = func() time.Time { return now }

	price, ok := agg.ResolvePrice(context.Background(), btcFeed())
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(200)), "got %s", price)
}

// Scenario: all combined weights collapse to zero, so the result falls back
// to the unweighted mean instead of dividing by zero.
func TestResolvePrice_ZeroTotalWeightFallsBackToMean(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableOutlierFilter = false
	cfg.MaxPriceAge = 30 * time.Second

	now := time.Now()
	atMaxAge := now.Add(-30 * time.Second)

	obs := market.NewMemoryObservationStore()
	obs.Put("BTC/USD", "exA", market.Observation{Value: decimal.NewFromInt(100), Time: atMaxAge})
	obs.Put("BTC/USD", "exB", market.Observation{Value: decimal.NewFromInt(200), Time: atMaxAge})

	feeds := feedWithSources(btcFeed(),
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exA"},
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exB"},
	)

	agg := newTestAggregator(cfg, feeds, obs, nil)
	agg.now = func() time.Time { return now }

	price, ok := agg.ResolvePrice(context.Background(), btcFeed())
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(150)), "got %s", price)
}

// Weighting with every weight equal to one must match the plain mean.
func TestResolvePrice_NeutralWeightsEqualMean(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableOutlierFilter = false

	obs := market.NewMemoryObservationStore()
	// Observations without timestamps get full freshness weight; absent
	// volumes get the neutral volume weight.
	obs.Put("BTC/USD", "exA", market.Observation{Value: decimal.NewFromInt(100)})
	obs.Put("BTC/USD", "exB", market.Observation{Value: decimal.NewFromInt(110)})
	obs.Put("BTC/USD", "exC", market.Observation{Value: decimal.NewFromInt(120)})

	feeds := feedWithSources(btcFeed(),
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exA"},
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exB"},
		market.FeedSourceConfig{Symbol: "BTC/USD", Exchange: "exC"},
	)

	agg := newTestAggregator(cfg, feeds, obs, nil)

	price, ok := agg.ResolvePrice(context.Background(), btcFeed())
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(110)), "got %s", price)
}

// A USDT/USD feed whose own source is USDT-quoted would recurse forever
// without the cycle guard. It must terminate with no price instead.
func TestResolvePrice_ConversionCycleTerminates(t *testing.T) {
	cfg := DefaultConfig()

	obs := market.NewMemoryObservationStore()
	obs.Put("USDT/USDT", "exA", market.Observation{Value: decimal.NewFromInt(1), Time: time.Now()})

	feeds := []market.FeedConfig{
		{Feed: market.USDTUSDFeed(), Sources: []market.FeedSourceConfig{{Symbol: "USDT/USDT", Exchange: "exA"}}},
	}

	agg := newTestAggregator(cfg, feeds, obs, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := agg.ResolvePrice(context.Background(), market.USDTUSDFeed())
		assert.False(t, ok)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("resolution did not terminate")
	}
}
