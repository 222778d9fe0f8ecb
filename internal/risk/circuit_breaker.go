package risk

import (
	"sync"
	"time"
)

const hourKeyLayout = "2006-01-02T15"

// breakerEpsilon absorbs float accumulation error when summing hourly losses
const breakerEpsilon = 1e-9

// HourKey buckets t into its UTC calendar hour
func HourKey(t time.Time) string {
	return t.UTC().Format(hourKeyLayout)
}

// CircuitBreaker sums realized-loss fractions per (group, calendar hour) and
// trips once the current hour's sum reaches the threshold.
type CircuitBreaker struct {
	threshold float64

	mu     sync.Mutex
	losses map[string]map[string]float64 // group -> hour key -> loss fraction
	trips  map[string]int
}

// NewCircuitBreaker creates a breaker tripping at threshold (e.g. 0.05 for 5%)
func NewCircuitBreaker(threshold float64) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		losses:    make(map[string]map[string]float64),
		trips:     make(map[string]int),
	}
}

// RecordLoss adds a realized loss, given as a positive fraction of bankroll.
// It returns true when this loss tripped the breaker.
func (cb *CircuitBreaker) RecordLoss(group string, lossFraction float64, now time.Time) bool {
	if lossFraction <= 0 {
		return false
	}
	key := HourKey(now)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	byHour, ok := cb.losses[group]
	if !ok {
		byHour = make(map[string]float64)
		cb.losses[group] = byHour
	}
	for k := range byHour {
		if k != key {
			delete(byHour, k)
		}
	}

	wasActive := cb.active(byHour[key])
	byHour[key] += lossFraction
	if !wasActive && cb.active(byHour[key]) {
		cb.trips[group]++
		return true
	}
	return false
}

// Check reports whether group's breaker is active for the hour containing now
func (cb *CircuitBreaker) Check(group string, now time.Time) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.active(cb.losses[group][HourKey(now)])
}

// Loss returns the accumulated loss fraction for group in the hour containing now
func (cb *CircuitBreaker) Loss(group string, now time.Time) float64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.losses[group][HourKey(now)]
}

// Reset clears group's loss table
func (cb *CircuitBreaker) Reset(group string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	delete(cb.losses, group)
}

// Trips returns how many times each group has tripped
func (cb *CircuitBreaker) Trips() map[string]int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	out := make(map[string]int, len(cb.trips))
	for g, n := range cb.trips {
		out[g] = n
	}
	return out
}

func (cb *CircuitBreaker) active(loss float64) bool {
	return loss+breakerEpsilon >= cb.threshold
}
