package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/weatherdash/proxy/internal/models"
	"github.com/weatherdash/proxy/internal/observability"
)

// OpenWeatherClient calls the geocoding and forecast endpoints. No gating
// applies here; the proxy's only job on these routes is credential injection
// and response relay.
type OpenWeatherClient struct {
	apiKey      string
	geoURL      string
	forecastURL string
	client      *http.Client
}

// NewOpenWeatherClient creates a client for the geocoding and forecast
// upstreams. An empty apiKey is not a constructor error: each call fails
// closed with ErrMissingCredential instead, so the process can start with a
// logged warning.
func NewOpenWeatherClient(apiKey, geoURL, forecastURL string, timeout time.Duration) *OpenWeatherClient {
	return &OpenWeatherClient{
		apiKey:      apiKey,
		geoURL:      geoURL,
		forecastURL: forecastURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// HasCredential reports whether an API key is configured. Used by the
// health handler.
func (c *OpenWeatherClient) HasCredential() bool {
	return c.apiKey != ""
}

// geoResult mirrors the fields of one upstream geocoding entry the proxy
// relays; everything else is dropped.
type geoResult struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// CitySuggestions queries the geocoding upstream for q and maps results to
// the relayed suggestion shape. Always returns a non-nil slice on success.
func (c *OpenWeatherClient) CitySuggestions(ctx context.Context, q string, limit int) ([]models.CitySuggestion, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("appid", c.apiKey)

	body, err := c.get(ctx, c.geoURL+"?"+params.Encode(), "geocoding")
	if err != nil {
		return nil, err
	}

	var results []geoResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("parse geocoding response: %w", err)
	}

	suggestions := make([]models.CitySuggestion, 0, len(results))
	for _, r := range results {
		suggestions = append(suggestions, models.CitySuggestion{
			Name:    r.Name,
			Country: r.Country,
			State:   r.State,
			Lat:     r.Lat,
			Lon:     r.Lon,
		})
	}
	return suggestions, nil
}

// Forecast fetches the forecast for the coordinates and returns the upstream
// body verbatim. The payload is opaque to the proxy; the dashboard caches it
// as-is.
func (c *OpenWeatherClient) Forecast(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("units", "metric")
	params.Set("appid", c.apiKey)

	return c.get(ctx, c.forecastURL+"?"+params.Encode(), "forecast")
}

// get performs the upstream GET, recording metrics, and returns the body on
// 2xx or an UpstreamError carrying the upstream status and body otherwise.
func (c *OpenWeatherClient) get(ctx context.Context, rawURL, upstream string) (json.RawMessage, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(upstream, "error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(upstream, "error").Inc()
		observability.UpstreamCallDuration.WithLabelValues(upstream).Observe(duration)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	observability.UpstreamCallsTotal.WithLabelValues(upstream, statusLabel(resp.StatusCode)).Inc()
	observability.UpstreamCallDuration.WithLabelValues(upstream).Observe(duration)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

func statusLabel(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
