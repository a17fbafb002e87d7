// Package dashboard is the client side of the weather dashboard: a
// freshness-gated forecast cache over a durable record store, the fixed
// "last forecast" record, and the AI-summary dedupe gate. It talks to the
// proxy's same-origin API, never to the upstreams directly.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/weatherdash/proxy/internal/cache"
	"github.com/weatherdash/proxy/internal/models"
	"github.com/weatherdash/proxy/internal/observability"
	"github.com/weatherdash/proxy/internal/summary"
)

// ProxyAPI is the proxy surface the dashboard consumes.
type ProxyAPI interface {
	CitySuggestions(ctx context.Context, q string, limit int) ([]models.CitySuggestion, error)
	Forecast(ctx context.Context, lat, lon float64) (json.RawMessage, error)
	Summarize(ctx context.Context, reading models.WeatherReading) (string, error)
}

// Client orchestrates forecast retrieval and summary generation.
type Client struct {
	api           ProxyAPI
	cache         *cache.FreshnessCache
	gate          *summary.Gate
	logger        *zap.Logger
	maxAgeMinutes int
	group         singleflight.Group
}

// NewClient creates a dashboard client. maxAgeMinutes is the freshness
// threshold for cached forecasts.
func NewClient(api ProxyAPI, c *cache.FreshnessCache, maxAgeMinutes int, logger *zap.Logger) *Client {
	return &Client{
		api:           api,
		cache:         c,
		gate:          summary.NewGate(),
		logger:        logger,
		maxAgeMinutes: maxAgeMinutes,
	}
}

// Forecast returns the forecast payload for the coordinates. When useCache
// is set and a fresh record exists, it is served without a fetch. A miss or
// stale record falls through to a live fetch, which writes both the
// coordinate-keyed record and the fixed last-forecast record. Concurrent
// fetches for the same key are coalesced. The returned bool reports whether
// the payload came from cache.
func (c *Client) Forecast(ctx context.Context, lat, lon float64, useCache bool) (json.RawMessage, bool, error) {
	key := c.cache.ForecastKey(lat, lon)

	if useCache {
		if rec, ok := c.cache.Get(ctx, key); ok && c.cache.IsFresh(rec.SavedAt, c.maxAgeMinutes) {
			observability.CacheHitsTotal.Inc()
			c.logger.Debug("forecast cache hit", zap.String("key", key))
			return rec.Payload, true, nil
		}
		// Only a consulted cache counts as a miss; bypasses stay out of the
		// hit/miss ratio.
		observability.CacheMissesTotal.Inc()
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		payload, err := c.api.Forecast(ctx, lat, lon)
		if err != nil {
			return nil, err
		}
		if putErr := c.cache.Put(ctx, key, payload); putErr != nil {
			c.logger.Warn("cache put failed", zap.String("key", key), zap.Error(putErr))
		}
		if putErr := c.cache.Put(ctx, cache.LastForecastKey, payload); putErr != nil {
			c.logger.Warn("last-forecast put failed", zap.Error(putErr))
		}
		return payload, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("fetch forecast %s: %w", key, err)
	}
	return v.(json.RawMessage), false, nil
}

// LastForecast loads the record behind the explicit "load last forecast"
// action. No freshness check applies; the user asked for whatever was saved
// last, however old.
func (c *Client) LastForecast(ctx context.Context) (json.RawMessage, bool) {
	rec, ok := c.cache.Get(ctx, cache.LastForecastKey)
	if !ok || len(rec.Payload) == 0 {
		return nil, false
	}
	return rec.Payload, true
}

// CitySuggestions relays the geocoding lookup.
func (c *Client) CitySuggestions(ctx context.Context, q string, limit int) ([]models.CitySuggestion, error) {
	return c.api.CitySuggestions(ctx, q, limit)
}

// Summarize asks for an AI summary of the reading unless its fingerprint
// matches the last one issued. The returned bool reports whether a request
// was made; a suppressed call returns ("", false, nil).
func (c *Client) Summarize(ctx context.Context, reading models.WeatherReading) (string, bool, error) {
	if !c.gate.ShouldGenerate(reading) {
		observability.SummarySuppressedTotal.Inc()
		c.logger.Debug("summary suppressed, weather unchanged")
		return "", false, nil
	}
	text, err := c.api.Summarize(ctx, reading)
	if err != nil {
		return "", true, fmt.Errorf("generate summary: %w", err)
	}
	return text, true, nil
}
