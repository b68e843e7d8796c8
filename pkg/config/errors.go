// Package config provides configuration loading and validation for the value
// provider.
package config

import "errors"

var (
	// ErrNoFeedsConfigured indicates that no feeds are configured.
	ErrNoFeedsConfigured = errors.New("at least one feed must be configured")
	// ErrFeedNameRequired indicates that a feed name is missing.
	ErrFeedNameRequired = errors.New("feed name is required")
	// ErrNoFeedSources indicates that a feed has no sources.
	ErrNoFeedSources = errors.New("feed must have at least one source")
	// ErrSourceSymbolRequired indicates that a source symbol is missing.
	ErrSourceSymbolRequired = errors.New("source symbol is required")
	// ErrSourceExchangeRequired indicates that a source exchange is missing.
	ErrSourceExchangeRequired = errors.New("source exchange is required")
	// ErrRedisAddrRequired indicates that the Redis address is missing.
	ErrRedisAddrRequired = errors.New("redis addr must be specified when redis is enabled")
)
