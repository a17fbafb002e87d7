package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/weatherdash/proxy/internal/models"
	"github.com/weatherdash/proxy/internal/observability"
)

// promptTemplate is the fixed, server-controlled prompt. Only the four
// weather fields are interpolated; caller-supplied free text never reaches
// the upstream prompt.
const promptTemplate = `You are a helpful weather assistant.

Current conditions:
Temperature: %d°C
Feels like: %d°C
Weather: %s
Wind speed: %g m/s

Respond EXACTLY in this format:

Summary:
<Summarize the weather in 1 sentence. Do not exactly repeat the input data.>

<Suggest an activity or two to do in this weather. Keep it brief.>

<Suggest what to bring (e.g., clothing, accessories) in this weather. Keep it brief.>

Sound cheerful!`

// GeminiClient calls the generative-text upstream for weather summaries.
// The route is metered and cost-bearing, so calls run through a circuit
// breaker: a misbehaving upstream stops burning money quickly.
type GeminiClient struct {
	apiKey  string
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// BreakerConfig tunes the upstream circuit breaker. Disabled when
// ConsecutiveFailures is zero.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// NewGeminiClient creates a client for the generative upstream. As with the
// geocoding client, a missing key defers to per-request fail-closed.
func NewGeminiClient(apiKey, apiURL string, timeout time.Duration, breakerCfg BreakerConfig, logger *zap.Logger) *GeminiClient {
	c := &GeminiClient{
		apiKey: apiKey,
		url:    apiURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
	if breakerCfg.ConsecutiveFailures > 0 {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "gemini",
			Timeout: breakerCfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerCfg.ConsecutiveFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				if logger != nil {
					logger.Warn("circuit breaker state change",
						zap.String("breaker", name),
						zap.String("from", from.String()),
						zap.String("to", to.String()))
				}
			},
		})
	}
	return c
}

// HasCredential reports whether an API key is configured.
func (c *GeminiClient) HasCredential() bool {
	return c.apiKey != ""
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateSummary asks the upstream for a summary of the reading. Returns
// the generated text, or "" with no error when the upstream answered 2xx
// with no candidates.
func (c *GeminiClient) GenerateSummary(ctx context.Context, reading models.WeatherReading) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingCredential
	}

	prompt := fmt.Sprintf(promptTemplate,
		int(math.Round(reading.Temp)),
		int(math.Round(reading.FeelsLike)),
		reading.Description,
		reading.WindSpeed)

	if c.breaker == nil {
		return c.call(ctx, prompt)
	}
	text, err := c.breaker.Execute(func() (interface{}, error) {
		return c.call(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: circuit breaker open", ErrUpstreamFailure)
		}
		return "", err
	}
	return text.(string), nil
}

func (c *GeminiClient) call(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues("gemini", "error").Inc()
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues("gemini", "error").Inc()
		observability.UpstreamCallDuration.WithLabelValues("gemini").Observe(duration)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	observability.UpstreamCallsTotal.WithLabelValues("gemini", statusLabel(resp.StatusCode)).Inc()
	observability.UpstreamCallDuration.WithLabelValues("gemini").Observe(duration)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: body}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
