package market

import (
	"strings"
)

// Stablecoin quote suffix handled by USD conversion. Exchanges report e.g.
// "BTC/USDT" or "BTCUSDT"; both forms are recognized.
const stableQuote = "USDT"

// IsStableQuoted reports whether a trading pair symbol is quoted in USDT and
// therefore needs conversion through the USDT/USD feed before aggregation.
func IsStableQuoted(symbol string) bool {
	return strings.HasSuffix(strings.ToUpper(symbol), stableQuote)
}

// NormalizeQuote converts a USDT-quoted pair to its canonical USD form.
// Examples:
//   - BTC/USDT -> BTC/USD
//   - ETHUSDT  -> ETH/USD
//   - BTC/USD  -> BTC/USD (no change)
func NormalizeQuote(symbol string) string {
	upper := strings.ToUpper(symbol)
	if !strings.HasSuffix(upper, stableQuote) {
		return symbol
	}

	base := strings.TrimSuffix(upper, stableQuote)
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		return symbol
	}

	return base + "/USD"
}
