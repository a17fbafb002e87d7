package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/weatherdash/proxy/internal/admission"
	"github.com/weatherdash/proxy/internal/client"
	"github.com/weatherdash/proxy/internal/models"
	"github.com/weatherdash/proxy/internal/observability"
	"github.com/weatherdash/proxy/internal/validation"
)

// GeoForecastAPI is the upstream surface for the pass-through routes.
type GeoForecastAPI interface {
	CitySuggestions(ctx context.Context, q string, limit int) ([]models.CitySuggestion, error)
	Forecast(ctx context.Context, lat, lon float64) (json.RawMessage, error)
	HasCredential() bool
}

// SummaryAPI is the metered generative upstream.
type SummaryAPI interface {
	GenerateSummary(ctx context.Context, reading models.WeatherReading) (string, error)
	HasCredential() bool
}

// Limits holds the request-shaping knobs the handlers consult.
type Limits struct {
	CityQueryMinLen  int
	CityQueryMaxLen  int
	SuggestionsLimit int // default when the caller omits limit
	SuggestionsMax   int // hard cap on caller-supplied limit
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	geo     GeoForecastAPI
	gen     SummaryAPI
	limiter *admission.WindowRateLimiter
	quota   *admission.QuotaTracker
	limits  Limits
	logger  *zap.Logger

	// storePing, when set, is called by the health handler to check record
	// store reachability.
	storePing func() error

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	geo GeoForecastAPI,
	gen SummaryAPI,
	limiter *admission.WindowRateLimiter,
	quota *admission.QuotaTracker,
	limits Limits,
	logger *zap.Logger,
	storePing func() error,
) *Handler {
	return &Handler{
		geo:       geo,
		gen:       gen,
		limiter:   limiter,
		quota:     quota,
		limits:    limits,
		logger:    logger,
		storePing: storePing,
	}
}

// GetCitySuggestions handles GET /api/citySuggestions. Pass-through with
// credential injection; no gating.
func (h *Handler) GetCitySuggestions(w http.ResponseWriter, r *http.Request) {
	q, err := validation.ValidateCityQuery(r.URL.Query().Get("q"), h.limits.CityQueryMinLen, h.limits.CityQueryMaxLen)
	if err != nil {
		writeError(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	limit := h.limits.SuggestionsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if h.limits.SuggestionsMax > 0 && limit > h.limits.SuggestionsMax {
		limit = h.limits.SuggestionsMax
	}

	suggestions, err := h.geo.CitySuggestions(r.Context(), q, limit)
	if err != nil {
		h.writeUpstreamError(w, r, err, "OpenWeather geocoding failed")
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

// GetForecast handles GET /api/forecast. The upstream body is relayed
// verbatim; the proxy never interprets it.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := validation.ParseCoords(r.URL.Query().Get("lat"), r.URL.Query().Get("lon"))
	if err != nil {
		writeError(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	payload, err := h.geo.Forecast(r.Context(), lat, lon)
	if err != nil {
		h.writeUpstreamError(w, r, err, "OpenWeather forecast failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

type summaryRequest struct {
	Weather *models.WeatherReading `json:"weather"`
}

type summaryResponse struct {
	Text string `json:"text"`
}

// PostGeminiWeather handles POST /api/geminiWeather, the metered route.
// Admission order is fixed: sliding window first, then daily quota, then the
// upstream call. The two denial reasons produce distinct 429 bodies. A slot
// spent on a failed upstream call is not refunded.
func (h *Handler) PostGeminiWeather(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Weather == nil {
		writeError(w, http.StatusBadRequest, map[string]string{"error": "Missing weather payload"})
		return
	}

	clientID := admission.Identify(r)

	if !h.limiter.Admit(clientID) {
		observability.RateLimitDeniedTotal.Inc()
		if logger := loggerFromContext(r.Context()); logger != nil {
			logger.Debug("window limiter denied", zap.String("client", clientID))
		}
		writeError(w, http.StatusTooManyRequests, map[string]string{
			"error": "Rate limit reached. Try again in a few minutes.",
			"hint":  "Summary requests are limited per client; wait for the window to clear.",
		})
		return
	}

	decision := h.quota.Consume(clientID)
	if !decision.Allowed {
		observability.QuotaDeniedTotal.Inc()
		if logger := loggerFromContext(r.Context()); logger != nil {
			logger.Debug("daily quota exhausted", zap.String("client", clientID))
		}
		writeError(w, http.StatusTooManyRequests, map[string]string{
			"error": "out of tries for today",
			"hint":  "The daily allowance resets at midnight UTC. Try again tomorrow.",
		})
		return
	}

	text, err := h.gen.GenerateSummary(r.Context(), *req.Weather)
	if err != nil {
		h.writeUpstreamError(w, r, err, "Gemini request failed")
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Text: text})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health. Credentials are re-checked per call rather
// than cached at startup; a key added to the environment shows up on the
// next probe.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "weather-dash-proxy",
		"checks":    result.checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) computeHealthStatus() healthResult {
	checks := make(map[string]string)
	status := "healthy"
	reason := ""

	if h.geo.HasCredential() {
		checks["openweatherKey"] = "configured"
	} else {
		checks["openweatherKey"] = "missing"
		status, reason = "degraded", "missing_credential"
	}
	if h.gen.HasCredential() {
		checks["geminiKey"] = "configured"
	} else {
		checks["geminiKey"] = "missing"
		status, reason = "degraded", "missing_credential"
	}
	if h.storePing != nil {
		if h.storePing() == nil {
			checks["recordStore"] = "healthy"
		} else {
			checks["recordStore"] = "unhealthy"
			status, reason = "degraded", "record_store_unreachable"
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	return healthResult{status: status, statusCode: code, reason: reason, checks: checks}
}

// writeUpstreamError maps a client-layer error onto the relayed response: a
// missing credential fails closed with a 500, a non-2xx upstream answer is
// relayed with its status and body, a timeout surfaces as 504.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error, what string) {
	if logger := loggerFromContext(r.Context()); logger != nil {
		logger.Debug("upstream error", zap.String("route", r.URL.Path), zap.Error(err))
	}

	var upErr *client.UpstreamError
	switch {
	case errors.Is(err, client.ErrMissingCredential):
		writeError(w, http.StatusInternalServerError, map[string]string{"error": "Server missing upstream API key"})
	case errors.As(err, &upErr):
		writeJSON(w, upErr.StatusCode, map[string]interface{}{
			"error":   what,
			"details": upErr.Body,
		})
	case errors.Is(err, client.ErrUpstreamTimeout):
		writeError(w, http.StatusGatewayTimeout, map[string]string{"error": "Upstream timeout", "details": err.Error()})
	default:
		writeError(w, http.StatusInternalServerError, map[string]string{"error": "Server error", "details": err.Error()})
	}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a flat error body ({"error": ..., "hint": ...}), the
// shape the dashboard parses.
func writeError(w http.ResponseWriter, status int, body map[string]string) {
	writeJSON(w, status, body)
}

// loggerFromContext extracts the correlation-scoped logger if middleware
// installed one.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return nil
}
