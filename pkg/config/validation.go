package config

import (
	"fmt"
)

// Validate checks the configuration for completeness.
func Validate(cfg *Config) error {
	if len(cfg.Feeds) == 0 {
		return ErrNoFeedsConfigured
	}

	for i, feed := range cfg.Feeds {
		if feed.Name == "" {
			return fmt.Errorf("%w: feed %d", ErrFeedNameRequired, i)
		}
		if len(feed.Sources) == 0 {
			return fmt.Errorf("%w: %s", ErrNoFeedSources, feed.Name)
		}
		for _, src := range feed.Sources {
			if src.Symbol == "" {
				return fmt.Errorf("%w: feed %s", ErrSourceSymbolRequired, feed.Name)
			}
			if src.Exchange == "" {
				return fmt.Errorf("%w: feed %s symbol %s", ErrSourceExchangeRequired, feed.Name, src.Symbol)
			}
		}
	}

	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return ErrRedisAddrRequired
	}

	return nil
}
