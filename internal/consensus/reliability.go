package consensus

import (
	"sort"
	"sync"

	"github.com/ducminhle1904/genome-consensus-bot/internal/regime"
)

// ReliabilityConfig bounds the per-strategy, per-regime reliability scores
type ReliabilityConfig struct {
	Initial float64 `yaml:"initial" default:"0.5" validate:"gtefield=Min,ltefield=Max"`
	Min     float64 `yaml:"min" default:"0.1" validate:"gte=0"`
	Max     float64 `yaml:"max" default:"0.9" validate:"lte=1,gtfield=Min"`
	Step    float64 `yaml:"step" default:"0.02" validate:"gt=0"`
}

// DefaultReliabilityConfig returns the standard bounds
func DefaultReliabilityConfig() ReliabilityConfig {
	return ReliabilityConfig{Initial: 0.5, Min: 0.1, Max: 0.9, Step: 0.02}
}

// ReliabilityTracker scores each strategy separately per market regime.
// Wins nudge a score up by Step, losses nudge it down; scores stay in [Min, Max].
type ReliabilityTracker struct {
	cfg    ReliabilityConfig
	mu     sync.RWMutex
	scores map[regime.Regime]map[int]float64
}

// NewReliabilityTracker creates a tracker with every score at cfg.Initial
func NewReliabilityTracker(cfg ReliabilityConfig) *ReliabilityTracker {
	return &ReliabilityTracker{cfg: cfg, scores: make(map[regime.Regime]map[int]float64)}
}

// Get returns the reliability of strategyID in r
func (t *ReliabilityTracker) Get(strategyID int, r regime.Regime) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.scores[r][strategyID]; ok {
		return s
	}
	return t.cfg.Initial
}

// Record applies one trade outcome to every strategy that contributed to it
func (t *ReliabilityTracker) Record(strategyIDs []int, r regime.Regime, win bool) {
	delta := -t.cfg.Step
	if win {
		delta = t.cfg.Step
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	byID, ok := t.scores[r]
	if !ok {
		byID = make(map[int]float64)
		t.scores[r] = byID
	}
	for _, id := range strategyIDs {
		cur, ok := byID[id]
		if !ok {
			cur = t.cfg.Initial
		}
		byID[id] = t.clamp(cur + delta)
	}
}

func (t *ReliabilityTracker) clamp(v float64) float64 {
	if v < t.cfg.Min {
		return t.cfg.Min
	}
	if v > t.cfg.Max {
		return t.cfg.Max
	}
	return v
}

// Snapshot returns a copy of every recorded score. Strategies never updated
// in a regime are absent and read as Initial.
func (t *ReliabilityTracker) Snapshot() map[regime.Regime]map[int]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[regime.Regime]map[int]float64, len(t.scores))
	for r, byID := range t.scores {
		cp := make(map[int]float64, len(byID))
		for id, s := range byID {
			cp[id] = s
		}
		out[r] = cp
	}
	return out
}

// Restore replaces all scores, clamping each into bounds
func (t *ReliabilityTracker) Restore(snapshot map[regime.Regime]map[int]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scores = make(map[regime.Regime]map[int]float64, len(snapshot))
	for r, byID := range snapshot {
		cp := make(map[int]float64, len(byID))
		for id, s := range byID {
			cp[id] = t.clamp(s)
		}
		t.scores[r] = cp
	}
}

// Top returns up to k strategy IDs with the highest reliability in r, ties broken by ID
func (t *ReliabilityTracker) Top(r regime.Regime, k int) []int {
	t.mu.RLock()
	ids := make([]int, 0, len(t.scores[r]))
	for id := range t.scores[r] {
		ids = append(ids, id)
	}
	scores := t.scores[r]
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	t.mu.RUnlock()
	if len(ids) > k {
		ids = ids[:k]
	}
	return ids
}
