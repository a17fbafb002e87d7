package admission

import (
	"sync"

	"github.com/weatherdash/proxy/internal/clock"
)

// dayKeyFormat is the UTC calendar-day key; the unit of quota reset.
const dayKeyFormat = "2006-01-02"

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool
	Remaining int
}

type quotaEntry struct {
	day   string
	count int
}

// QuotaTracker enforces a fixed per-client daily allowance for the metered
// route. Day rollover is lazy: the stored day key is compared against the
// current UTC day on each consume, never swept in the background. State is
// process-memory only; a restart resets every client's quota. Entries for
// inactive clients linger until that client's next rollover check, an
// accepted unbounded-but-slow growth at this deployment scale.
type QuotaTracker struct {
	mu      sync.Mutex
	clock   clock.Clock
	limit   int
	entries map[string]quotaEntry
}

// NewQuotaTracker creates a tracker allowing limit requests per client per
// UTC calendar day.
func NewQuotaTracker(clk clock.Clock, limit int) *QuotaTracker {
	return &QuotaTracker{
		clock:   clk,
		limit:   limit,
		entries: make(map[string]quotaEntry),
	}
}

// Consume performs the check-and-increment for clientID as a single atomic
// step. A denial does not mutate state beyond the lazy day reset.
func (q *QuotaTracker) Consume(clientID string) Decision {
	day := q.clock.Now().UTC().Format(dayKeyFormat)

	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[clientID]
	if !ok || e.day != day {
		e = quotaEntry{day: day}
	}
	if e.count >= q.limit {
		q.entries[clientID] = e
		return Decision{Allowed: false, Remaining: 0}
	}
	e.count++
	q.entries[clientID] = e
	return Decision{Allowed: true, Remaining: q.limit - e.count}
}
