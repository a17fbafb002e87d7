package http

import (
	"context"
	"sync/atomic"
	"time"
)

// InFlightTracker counts requests currently inside the handler chain.
// Shutdown polls it to drain before closing the record store.
type InFlightTracker struct {
	count atomic.Int64
}

// Increment records a request entering the handler chain.
func (t *InFlightTracker) Increment() {
	t.count.Add(1)
}

// Decrement records a request leaving the handler chain.
func (t *InFlightTracker) Decrement() {
	t.count.Add(-1)
}

// Count returns the current in-flight count.
func (t *InFlightTracker) Count() int64 {
	return t.count.Load()
}

// WaitForZero polls every checkInterval until the count reaches zero or ctx
// is done.
func (t *InFlightTracker) WaitForZero(ctx context.Context, checkInterval time.Duration) error {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		if t.Count() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// globalInFlightTracker backs MetricsMiddleware and the shutdown drain.
var globalInFlightTracker = &InFlightTracker{}

// InFlightCount returns the number of requests currently being served.
func InFlightCount() int64 {
	return globalInFlightTracker.Count()
}

// WaitForInFlight blocks until in-flight requests reach zero or ctx is done.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	return globalInFlightTracker.WaitForZero(ctx, checkInterval)
}
