// Package redis implements the market store contracts over keys written by a
// Redis-backed ingestion layer.
//
// Key layout:
//
//	price:<SYMBOL>:<EXCHANGE>   hash with fields "value" and "time" (unix ms)
//	volume:<SYMBOL>:<EXCHANGE>  sorted set, score = unix ms, member = "<ms>:<volume>"
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/AnimaTow/ftso-v2-value-provider/pkg/logging"
	"github.com/AnimaTow/ftso-v2-value-provider/pkg/market"
)

// Store reads observations and volumes from Redis. It never writes; the
// ingestion layer owns the keys. Missing keys and malformed fields are
// reported as absent, never as errors.
type Store struct {
	client *redis.Client
	logger *logging.Logger
}

// Ensure Store implements the consumption contracts.
var (
	_ market.ObservationStore = (*Store)(nil)
	_ market.VolumeStore      = (*Store)(nil)
)

// New creates a Redis-backed store.
func New(logger *logging.Logger, addr, password string, db int) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Store{client: client, logger: logger}
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// LatestObservation implements market.ObservationStore.
func (s *Store) LatestObservation(ctx context.Context, symbol, exchange string) (market.Observation, bool) {
	key := PriceKey(symbol, exchange)

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		s.logger.Debug("HGETALL failed", "key", key, "error", err)
		return market.Observation{}, false
	}
	if len(fields) == 0 {
		return market.Observation{}, false
	}

	value, err := decimal.NewFromString(fields["value"])
	if err != nil {
		s.logger.Debug("Malformed price value", "key", key, "value", fields["value"])
		return market.Observation{}, false
	}

	obs := market.Observation{Value: value}
	if raw, ok := fields["time"]; ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			obs.Time = time.UnixMilli(ms)
		}
	}

	return obs, true
}

// VolumeOverWindow implements market.VolumeStore. It sums volume points whose
// score falls within the trailing window.
func (s *Store) VolumeOverWindow(ctx context.Context, symbol, exchange string, window time.Duration) (decimal.Decimal, bool) {
	key := VolumeKey(symbol, exchange)
	cutoff := time.Now().Add(-window).UnixMilli()

	members, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		s.logger.Debug("ZRANGEBYSCORE failed", "key", key, "error", err)
		return decimal.Zero, false
	}
	if len(members) == 0 {
		return decimal.Zero, false
	}

	total := decimal.Zero
	found := false
	for _, member := range members {
		// Member format: "<ms>:<volume>"; the timestamp prefix keeps
		// duplicate volume values distinct within the set.
		_, raw, ok := strings.Cut(member, ":")
		if !ok {
			continue
		}
		volume, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		total = total.Add(volume)
		found = true
	}

	return total, found
}

// PriceKey returns the hash key for a pair's latest observation.
func PriceKey(symbol, exchange string) string {
	return fmt.Sprintf("price:%s:%s", strings.ToUpper(symbol), strings.ToUpper(exchange))
}

// VolumeKey returns the sorted-set key for a pair's volume points.
func VolumeKey(symbol, exchange string) string {
	return fmt.Sprintf("volume:%s:%s", strings.ToUpper(symbol), strings.ToUpper(exchange))
}
