package summary

import (
	"fmt"
	"math"
	"sync"

	"github.com/weatherdash/proxy/internal/models"
)

// Gate suppresses a summary request when the current reading fingerprints
// the same as the last one issued. Purely an optimization against redundant
// billed calls; a genuinely new fingerprint is never blocked.
type Gate struct {
	mu   sync.Mutex
	last string
}

// NewGate returns a Gate with no issued fingerprint.
func NewGate() *Gate {
	return &Gate{}
}

// Fingerprint composes a key that is stable under floating-point noise:
// temperature, feels-like, and wind speed round to integers, the description
// is taken verbatim. Two readings with equal fingerprints are "the same
// weather".
func Fingerprint(r models.WeatherReading) string {
	return fmt.Sprintf("%d|%d|%s|%d",
		int(math.Round(r.Temp)),
		int(math.Round(r.FeelsLike)),
		r.Description,
		int(math.Round(r.WindSpeed)))
}

// ShouldGenerate reports whether a summary call is warranted for r. The new
// fingerprint is recorded before the call is known to succeed, so a failed
// generation does not retry on unchanged weather; only a new reading
// unblocks it.
func (g *Gate) ShouldGenerate(r models.WeatherReading) bool {
	fp := Fingerprint(r)
	g.mu.Lock()
	defer g.mu.Unlock()
	if fp == g.last {
		return false
	}
	g.last = fp
	return true
}
