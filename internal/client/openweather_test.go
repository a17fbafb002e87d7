package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestOpenWeatherClient_CitySuggestions verifies the upstream query carries
// the injected credential and that results map to the relayed shape with
// empty-string defaults.
func TestOpenWeatherClient_CitySuggestions(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("appid"); got != "test-key" {
			t.Errorf("appid = %q, want test-key", got)
		}
		if got := r.URL.Query().Get("q"); got != "Toronto" {
			t.Errorf("q = %q, want Toronto", got)
		}
		if got := r.URL.Query().Get("limit"); got != "3" {
			t.Errorf("limit = %q, want 3", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"Toronto","country":"CA","state":"Ontario","lat":43.651,"lon":-79.347},{"lat":1,"lon":2}]`))
	}))
	defer upstream.Close()

	c := NewOpenWeatherClient("test-key", upstream.URL, upstream.URL, 2*time.Second)
	suggestions, err := c.CitySuggestions(context.Background(), "Toronto", 3)
	if err != nil {
		t.Fatalf("CitySuggestions() error = %v", err)
	}
	if len(suggestions) != 2 {
		t.Fatalf("CitySuggestions() len = %d, want 2", len(suggestions))
	}
	if suggestions[0].Name != "Toronto" || suggestions[0].Country != "CA" || suggestions[0].State != "Ontario" {
		t.Errorf("CitySuggestions()[0] = %+v, want Toronto/CA/Ontario", suggestions[0])
	}
	if suggestions[1].Name != "" || suggestions[1].Country != "" || suggestions[1].State != "" {
		t.Errorf("CitySuggestions()[1] = %+v, want empty-string defaults", suggestions[1])
	}
}

// TestOpenWeatherClient_Forecast verifies the upstream body is returned
// verbatim and metric units are requested.
func TestOpenWeatherClient_Forecast(t *testing.T) {
	const body = `{"cod":"200","list":[{"main":{"temp":21.4}}]}`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("units"); got != "metric" {
			t.Errorf("units = %q, want metric", got)
		}
		if got := r.URL.Query().Get("lat"); got != "43.651" {
			t.Errorf("lat = %q, want 43.651", got)
		}
		_, _ = w.Write([]byte(body))
	}))
	defer upstream.Close()

	c := NewOpenWeatherClient("test-key", upstream.URL, upstream.URL, 2*time.Second)
	payload, err := c.Forecast(context.Background(), 43.651, -79.347)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if string(payload) != body {
		t.Errorf("Forecast() = %s, want verbatim upstream body", payload)
	}
}

// TestOpenWeatherClient_MissingCredential verifies both routes fail closed
// without an upstream call when no key is configured.
func TestOpenWeatherClient_MissingCredential(t *testing.T) {
	called := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer upstream.Close()

	c := NewOpenWeatherClient("", upstream.URL, upstream.URL, 2*time.Second)

	if _, err := c.Forecast(context.Background(), 1, 2); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("Forecast() error = %v, want ErrMissingCredential", err)
	}
	if _, err := c.CitySuggestions(context.Background(), "x", 3); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("CitySuggestions() error = %v, want ErrMissingCredential", err)
	}
	if called {
		t.Error("upstream was called despite missing credential")
	}
}

// TestOpenWeatherClient_UpstreamErrorRelayed verifies a non-2xx upstream
// response surfaces as an UpstreamError carrying status and body.
func TestOpenWeatherClient_UpstreamErrorRelayed(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"cod":401,"message":"Invalid API key"}`))
	}))
	defer upstream.Close()

	c := NewOpenWeatherClient("bad-key", upstream.URL, upstream.URL, 2*time.Second)
	_, err := c.Forecast(context.Background(), 1, 2)

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("Forecast() error = %v, want *UpstreamError", err)
	}
	if upErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", upErr.StatusCode)
	}
	if string(upErr.Body) != `{"cod":401,"message":"Invalid API key"}` {
		t.Errorf("Body = %s, want upstream body verbatim", upErr.Body)
	}
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Error("UpstreamError does not unwrap to ErrUpstreamFailure")
	}
}

// TestOpenWeatherClient_Timeout verifies a slow upstream surfaces as
// ErrUpstreamTimeout rather than hanging the caller.
func TestOpenWeatherClient_Timeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer upstream.Close()

	c := NewOpenWeatherClient("test-key", upstream.URL, upstream.URL, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Forecast(ctx, 1, 2)
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Errorf("Forecast() error = %v, want ErrUpstreamTimeout", err)
	}
}
