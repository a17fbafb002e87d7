package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream call rate by provider (geocoding, forecast, gemini). Watch for: error vs success ratio.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency per call. Watch for: p95 > 2s (upstream degradation), p99 > 5s (timeout risk).
	UpstreamCallDuration *prometheus.HistogramVec

	// Forecast cache hits and misses in the dashboard client.
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Summary requests suppressed by the dedupe gate. Each one is an upstream call avoided.
	SummarySuppressedTotal prometheus.Counter

	// 429s from the per-client sliding window on the metered route.
	RateLimitDeniedTotal prometheus.Counter

	// 429s from the daily quota on the metered route. Kept separate from
	// rate denials; the two denial reasons are never conflated.
	QuotaDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream API calls by provider",
		},
		[]string{"upstream", "status"},
	)
	UpstreamCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamCallDurationSeconds",
			Help:    "Upstream API latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"upstream"},
	)
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecastCacheHitsTotal",
			Help: "Fresh forecast records served without an upstream fetch",
		},
	)
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecastCacheMissesTotal",
			Help: "Forecast lookups that fell through to a live fetch",
		},
	)
	SummarySuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "summarySuppressedTotal",
			Help: "Summary requests suppressed by the dedupe gate (unchanged weather)",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Requests denied by the per-client sliding window (429)",
		},
	)
	QuotaDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quotaDeniedTotal",
			Help: "Requests denied by the daily quota (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamCallDuration,
		CacheHitsTotal, CacheMissesTotal,
		SummarySuppressedTotal,
		RateLimitDeniedTotal, QuotaDeniedTotal,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
