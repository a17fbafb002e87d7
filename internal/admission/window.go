package admission

import (
	"sync"
	"time"

	"github.com/weatherdash/proxy/internal/clock"
)

// WindowRateLimiter bounds each client to at most limit admissions within
// any trailing window of the configured duration. It runs ahead of the
// quota check on the metered route, capping burst rate regardless of the
// daily allowance. Same restart semantics as QuotaTracker: process-memory
// only, single instance.
type WindowRateLimiter struct {
	mu      sync.Mutex
	clock   clock.Clock
	limit   int
	window  time.Duration
	history map[string][]time.Time
}

// NewWindowRateLimiter creates a limiter admitting limit requests per client
// within a trailing window.
func NewWindowRateLimiter(clk clock.Clock, limit int, window time.Duration) *WindowRateLimiter {
	return &WindowRateLimiter{
		clock:   clk,
		limit:   limit,
		window:  window,
		history: make(map[string][]time.Time),
	}
}

// Admit reports whether a request from clientID is within the window bound,
// recording its timestamp when admitted. Expired timestamps are pruned on
// access.
func (l *WindowRateLimiter) Admit(clientID string) bool {
	now := l.clock.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.history[clientID]
	pruned := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	if len(pruned) >= l.limit {
		l.history[clientID] = pruned
		return false
	}
	l.history[clientID] = append(pruned, now)
	return true
}
