package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TestCorrelationIDMiddleware_Generated verifies a missing correlation ID is
// generated and echoed in the response header.
func TestCorrelationIDMiddleware_Generated(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v, ok := r.Context().Value("correlation_id").(string); ok {
			seen = v
		}
	})
	handler := CorrelationIDMiddleware(zap.NewNop())(next)

	r := httptest.NewRequest("GET", "/api/forecast", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if seen == "" {
		t.Fatal("no correlation ID placed in the request context")
	}
	if got := w.Header().Get("X-Correlation-ID"); got != seen {
		t.Errorf("response header = %q, want %q", got, seen)
	}
}

// TestCorrelationIDMiddleware_Propagated verifies a caller-supplied ID is
// kept rather than replaced.
func TestCorrelationIDMiddleware_Propagated(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := CorrelationIDMiddleware(zap.NewNop())(next)

	r := httptest.NewRequest("GET", "/api/forecast", nil)
	r.Header.Set("X-Correlation-ID", "abc-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if got := w.Header().Get("X-Correlation-ID"); got != "abc-123" {
		t.Errorf("response header = %q, want the caller's ID", got)
	}
}

// TestGlobalRateLimitMiddleware verifies exhausting the process-wide bucket
// yields a flat 429 and spares the handler.
func TestGlobalRateLimitMiddleware(t *testing.T) {
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })
	handler := GlobalRateLimitMiddleware(rate.NewLimiter(rate.Limit(0.001), 1))(next)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest("GET", "/api/forecast", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest("GET", "/api/forecast", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse denial body: %v", err)
	}
	if body.Error != "Too many requests" {
		t.Errorf("denial error = %q, want %q", body.Error, "Too many requests")
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

// TestGlobalRateLimitMiddleware_NilDisables verifies a nil limiter is a
// pass-through.
func TestGlobalRateLimitMiddleware_NilDisables(t *testing.T) {
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })
	handler := GlobalRateLimitMiddleware(nil)(next)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/forecast", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 with limiter disabled", w.Code)
		}
	}
	if calls != 5 {
		t.Errorf("handler calls = %d, want 5", calls)
	}
}

// TestGetRoute verifies metric route labels stay low-cardinality outside the
// known surface.
func TestGetRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/api/forecast", "/api/forecast"},
		{"/api/citySuggestions", "/api/citySuggestions"},
		{"/favicon.ico", "other"},
		{"/", "other"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", tt.path, nil)
		if got := getRoute(r); got != tt.want {
			t.Errorf("getRoute(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
