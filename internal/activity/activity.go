// Package activity keeps the in-process social activity score of each
// instrument. Scores are not persisted; a restart starts from zero.
package activity

import (
	"fmt"
	"sync"

	"github.com/cogmarket/market-engine/internal/model"
)

// Tracker holds one non-negative score per registered symbol.
type Tracker struct {
	mu     sync.Mutex
	scores map[string]float64
}

// New creates a Tracker for symbols.
func New(symbols ...string) *Tracker {
	t := &Tracker{scores: make(map[string]float64, len(symbols))}
	for _, s := range symbols {
		t.scores[s] = 0
	}
	return t
}

// Register starts tracking symbol. Registering twice keeps the score.
func (t *Tracker) Register(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.scores[symbol]; !ok {
		t.scores[symbol] = 0
	}
}

// Increment adds one to the score. Unknown symbols are ignored and
// reported with false.
func (t *Tracker) Increment(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.scores[symbol]; !ok {
		return false
	}
	t.scores[symbol]++
	return true
}

// Score returns the current score, 0 for unknown symbols.
func (t *Tracker) Score(symbol string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scores[symbol]
}

// DecayAll multiplies every score by factor, which must lie in (0, 1).
func (t *Tracker) DecayAll(factor float64) error {
	if factor <= 0 || factor >= 1 {
		return fmt.Errorf("%w: decay factor %v outside (0, 1)", model.ErrInvalidInput, factor)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for s, v := range t.scores {
		t.scores[s] = v * factor
	}
	return nil
}

// ResetAll zeroes every score.
func (t *Tracker) ResetAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for s := range t.scores {
		t.scores[s] = 0
	}
}

// Snapshot returns a copy of all scores.
func (t *Tracker) Snapshot() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.scores))
	for s, v := range t.scores {
		out[s] = v
	}
	return out
}
