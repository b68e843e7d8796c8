package market

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryConfigResolver resolves feeds against a static in-memory list.
type MemoryConfigResolver struct {
	feeds map[FeedID]FeedConfig
}

// NewMemoryConfigResolver builds a resolver from a static feed list.
func NewMemoryConfigResolver(configs []FeedConfig) *MemoryConfigResolver {
	feeds := make(map[FeedID]FeedConfig, len(configs))
	for _, cfg := range configs {
		feeds[cfg.Feed] = cfg
	}
	return &MemoryConfigResolver{feeds: feeds}
}

// ResolveFeedConfig implements ConfigResolver.
func (r *MemoryConfigResolver) ResolveFeedConfig(_ context.Context, feed FeedID) (FeedConfig, bool) {
	cfg, ok := r.feeds[feed]
	return cfg, ok
}

type pairKey struct {
	symbol   string
	exchange string
}

// MemoryObservationStore keeps the latest observation per (symbol, exchange)
// pair. Writers are the ingestion side; readers are aggregation calls.
type MemoryObservationStore struct {
	mu     sync.RWMutex
	latest map[pairKey]Observation
}

// NewMemoryObservationStore creates an empty observation store.
func NewMemoryObservationStore() *MemoryObservationStore {
	return &MemoryObservationStore{latest: make(map[pairKey]Observation)}
}

// Put records the latest observation for a pair, replacing any previous one.
func (s *MemoryObservationStore) Put(symbol, exchange string, obs Observation) {
	s.mu.Lock()
	s.latest[pairKey{symbol, exchange}] = obs
	s.mu.Unlock()
}

// LatestObservation implements ObservationStore.
func (s *MemoryObservationStore) LatestObservation(_ context.Context, symbol, exchange string) (Observation, bool) {
	s.mu.RLock()
	obs, ok := s.latest[pairKey{symbol, exchange}]
	s.mu.RUnlock()
	return obs, ok
}

// volumePoint is one traded-volume report at a point in time.
type volumePoint struct {
	volume decimal.Decimal
	stamp  time.Time
}

// MemoryVolumeStore keeps a rolling window of traded-volume points per
// (symbol, exchange) pair and answers trailing-window sums over it.
type MemoryVolumeStore struct {
	mu        sync.RWMutex
	retention time.Duration
	points    map[pairKey][]volumePoint
}

// NewMemoryVolumeStore creates a volume store that retains points for the
// given duration. Queries with a longer window only see retained points.
func NewMemoryVolumeStore(retention time.Duration) *MemoryVolumeStore {
	return &MemoryVolumeStore{
		retention: retention,
		points:    make(map[pairKey][]volumePoint),
	}
}

// Add records traded volume for a pair at the given time and prunes points
// that have aged out of the retention window.
func (s *MemoryVolumeStore) Add(symbol, exchange string, volume decimal.Decimal, stamp time.Time) {
	key := pairKey{symbol, exchange}

	s.mu.Lock()
	s.points[key] = append(s.points[key], volumePoint{volume: volume, stamp: stamp})
	s.points[key] = trimOldPoints(s.points[key], stamp.Add(-s.retention))
	s.mu.Unlock()
}

// VolumeOverWindow implements VolumeStore. It sums volume points newer than
// now-window. Returns false when no points fall inside the window.
func (s *MemoryVolumeStore) VolumeOverWindow(_ context.Context, symbol, exchange string, window time.Duration) (decimal.Decimal, bool) {
	cutoff := time.Now().Add(-window)

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	found := false
	for _, p := range s.points[pairKey{symbol, exchange}] {
		if p.stamp.After(cutoff) {
			total = total.Add(p.volume)
			found = true
		}
	}

	return total, found
}

// trimOldPoints removes points at or before the cutoff, in place.
func trimOldPoints(points []volumePoint, cutoff time.Time) []volumePoint {
	n := 0
	for _, p := range points {
		if p.stamp.After(cutoff) {
			points[n] = p
			n++
		}
	}
	return points[:n]
}
