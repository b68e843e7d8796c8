// Package market defines the feed data model and the contracts the
// aggregation core consumes from the ingestion and configuration layers.
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Feed categories as used by the FTSOv2 feed id encoding.
const (
	CategoryCrypto      = 1
	CategoryForex       = 2
	CategoryCommodities = 3
	CategoryStocks      = 4
)

// FeedID identifies a logical asset price target, e.g. {1, "BTC/USD"}.
type FeedID struct {
	Category int    `yaml:"category" json:"category"`
	Name     string `yaml:"name" json:"name"`
}

func (f FeedID) String() string {
	return fmt.Sprintf("%d:%s", f.Category, f.Name)
}

// USDTUSDFeed is the fixed feed used to convert USDT-quoted prices to USD.
func USDTUSDFeed() FeedID {
	return FeedID{Category: CategoryCrypto, Name: "USDT/USD"}
}

// FeedSourceConfig names one exchange trading pair a feed may draw from.
type FeedSourceConfig struct {
	Symbol   string `yaml:"symbol" json:"symbol"`
	Exchange string `yaml:"exchange" json:"exchange"`
}

// FeedConfig is the resolved source list for a feed. Source order is preserved.
type FeedConfig struct {
	Feed    FeedID
	Sources []FeedSourceConfig
}

// Observation is the latest price reported for a (symbol, exchange) pair.
type Observation struct {
	Value decimal.Decimal
	Time  time.Time
}

// ConfigResolver looks up the static source list for a feed.
type ConfigResolver interface {
	ResolveFeedConfig(ctx context.Context, feed FeedID) (FeedConfig, bool)
}

// ObservationStore exposes the latest observation per (symbol, exchange) pair.
// It is owned and mutated by the ingestion layer; consumers only read.
type ObservationStore interface {
	LatestObservation(ctx context.Context, symbol, exchange string) (Observation, bool)
}

// VolumeStore exposes traded volume per (symbol, exchange) pair over a
// trailing window.
type VolumeStore interface {
	VolumeOverWindow(ctx context.Context, symbol, exchange string, window time.Duration) (decimal.Decimal, bool)
}
