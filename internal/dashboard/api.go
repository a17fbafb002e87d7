package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/weatherdash/proxy/internal/models"
)

// APIClient is the HTTP implementation of ProxyAPI, pointed at a running
// proxy instance.
type APIClient struct {
	base   string
	client *http.Client
}

// NewAPIClient creates a client for the proxy at base (e.g.
// "http://localhost:5050").
func NewAPIClient(base string, timeout time.Duration) *APIClient {
	return &APIClient{
		base: base,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// apiError is the proxy's flat error body. The hint, when present, is
// appended to the message shown to the user.
type apiError struct {
	Error string `json:"error"`
	Hint  string `json:"hint"`
}

// CitySuggestions calls GET /api/citySuggestions.
func (a *APIClient) CitySuggestions(ctx context.Context, q string, limit int) ([]models.CitySuggestion, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("limit", strconv.Itoa(limit))

	body, err := a.do(ctx, http.MethodGet, "/api/citySuggestions?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var suggestions []models.CitySuggestion
	if err := json.Unmarshal(body, &suggestions); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}
	return suggestions, nil
}

// Forecast calls GET /api/forecast and returns the body verbatim.
func (a *APIClient) Forecast(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	return a.do(ctx, http.MethodGet, "/api/forecast?"+params.Encode(), nil)
}

// Summarize calls POST /api/geminiWeather.
func (a *APIClient) Summarize(ctx context.Context, reading models.WeatherReading) (string, error) {
	payload, err := json.Marshal(map[string]models.WeatherReading{"weather": reading})
	if err != nil {
		return "", fmt.Errorf("encode weather payload: %w", err)
	}

	body, err := a.do(ctx, http.MethodPost, "/api/geminiWeather", payload)
	if err != nil {
		return "", err
	}
	var resp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse summary response: %w", err)
	}
	return resp.Text, nil
}

func (a *APIClient) do(ctx context.Context, method, path string, payload []byte) (json.RawMessage, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxy request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg := apiErr.Error
			if apiErr.Hint != "" {
				msg += " " + apiErr.Hint
			}
			return nil, fmt.Errorf("%s", msg)
		}
		return nil, fmt.Errorf("proxy returned status %d", resp.StatusCode)
	}
	return body, nil
}
