package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weatherdash/proxy/internal/clock"
	"github.com/weatherdash/proxy/internal/models"
	"github.com/weatherdash/proxy/internal/store"
)

// keyPrefix namespaces every record key so unrelated data in a shared store
// never collides with cache entries.
const keyPrefix = "weatherapp:"

// LastForecastKey is the fixed logical key updated on every successful live
// fetch, independent of the coordinate-keyed entry. It backs the explicit
// "load last forecast" action, which bypasses coordinates entirely.
const LastForecastKey = "lastForecast"

// FreshnessCache wraps a RecordStore with age-based hit/miss decisions.
// It is advisory: callers choose per request whether to consult it, and a
// miss always falls through to a live fetch followed by Put.
type FreshnessCache struct {
	store      store.RecordStore
	clock      clock.Clock
	precision  int
	strictSkew bool
}

// Option adjusts cache behavior.
type Option func(*FreshnessCache)

// WithStrictClockSkew makes IsFresh treat a future savedAt as stale instead
// of fresh. Off by default; a skewed-back clock then serves the record
// rather than refetching.
func WithStrictClockSkew() Option {
	return func(c *FreshnessCache) { c.strictSkew = true }
}

// New creates a FreshnessCache over s. precision is the number of decimal
// places coordinates are rounded to when building forecast keys.
func New(s store.RecordStore, clk clock.Clock, precision int, opts ...Option) *FreshnessCache {
	c := &FreshnessCache{
		store:     s,
		clock:     clk,
		precision: precision,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForecastKey builds the coordinate cache key. Rounding to 3 decimals means
// requests within roughly 111 meters share an entry.
func (c *FreshnessCache) ForecastKey(lat, lon float64) string {
	return fmt.Sprintf("forecast:%.*f,%.*f", c.precision, lat, c.precision, lon)
}

// Get reads the record for key. Storage errors, including a record that no
// longer parses, read as a miss; they never propagate to the caller. The
// write path will simply overwrite a corrupt record on the next success.
func (c *FreshnessCache) Get(ctx context.Context, key string) (models.CacheRecord, bool) {
	rec, ok, err := c.store.Get(ctx, keyPrefix+key)
	if err != nil || !ok {
		return models.CacheRecord{}, false
	}
	return rec, true
}

// Put writes a new record for key with savedAt taken from the cache clock,
// unconditionally overwriting any existing record.
func (c *FreshnessCache) Put(ctx context.Context, key string, payload json.RawMessage) error {
	rec := models.CacheRecord{
		SavedAt: c.clock.Now().UnixMilli(),
		Payload: payload,
	}
	if err := c.store.Put(ctx, keyPrefix+key, rec); err != nil {
		return fmt.Errorf("put record %s: %w", key, err)
	}
	return nil
}

// IsFresh reports whether a record saved at savedAt (epoch milliseconds) is
// usable without refetching. A negative age from clock skew reads as fresh
// unless WithStrictClockSkew was set.
func (c *FreshnessCache) IsFresh(savedAt int64, maxAgeMinutes int) bool {
	age := c.clock.Now().UnixMilli() - savedAt
	if age < 0 {
		return !c.strictSkew
	}
	return age <= int64(maxAgeMinutes)*60_000
}
