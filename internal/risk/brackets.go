package risk

import (
	"math"
	"sort"
)

// Comparison operators for a bracket
const (
	OpGreater      = "gt"
	OpGreaterEqual = "gte"
	OpLess         = "lt"
	OpLessEqual    = "lte"
)

// Bracket multiplies risk by Multiplier when the factor compares true against Threshold
type Bracket struct {
	Op         string  `yaml:"op" json:"op" validate:"oneof=gt gte lt lte"`
	Threshold  float64 `yaml:"threshold" json:"threshold"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier" validate:"gt=0"`
}

func (b Bracket) matches(v float64) bool {
	switch b.Op {
	case OpGreater:
		return v > b.Threshold
	case OpGreaterEqual:
		return v >= b.Threshold
	case OpLess:
		return v < b.Threshold
	case OpLessEqual:
		return v <= b.Threshold
	default:
		return false
	}
}

// Adjustment is a named bracket table. The first matching bracket wins; no match means ×1.
type Adjustment struct {
	Name     string
	Brackets []Bracket
}

// Multiplier returns the adjustment for v. A NaN or infinite factor gets the
// table's most conservative multiplier.
func (a Adjustment) Multiplier(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return a.conservative()
	}
	for _, b := range a.Brackets {
		if b.matches(v) {
			return b.Multiplier
		}
	}
	return 1
}

func (a Adjustment) conservative() float64 {
	m := 1.0
	for _, b := range a.Brackets {
		if b.Multiplier < m {
			m = b.Multiplier
		}
	}
	return m
}

// Adjustment names, also used as keys in Decision.Adjustments
const (
	AdjVolatility        = "volatility"
	AdjConfidence        = "confidence"
	AdjRecentPerformance = "recent_performance"
	AdjCorrelation       = "correlation"
	AdjDrawdown          = "drawdown"
	AdjConsecutiveLosses = "consecutive_losses"
)

// DefaultAdjustments returns the standard bracket tables
func DefaultAdjustments() map[string][]Bracket {
	return map[string][]Bracket{
		// ATR as a fraction of price
		AdjVolatility: {
			{Op: OpGreater, Threshold: 0.05, Multiplier: 0.6},
			{Op: OpGreater, Threshold: 0.03, Multiplier: 0.8},
			{Op: OpLess, Threshold: 0.01, Multiplier: 1.1},
		},
		// 0-100
		AdjConfidence: {
			{Op: OpGreaterEqual, Threshold: 80, Multiplier: 1.3},
			{Op: OpGreaterEqual, Threshold: 60, Multiplier: 1.1},
			{Op: OpLess, Threshold: 40, Multiplier: 0.7},
		},
		// trailing-window ROI as a fraction
		AdjRecentPerformance: {
			{Op: OpLess, Threshold: -0.10, Multiplier: 0.5},
			{Op: OpLess, Threshold: 0, Multiplier: 0.8},
			{Op: OpGreater, Threshold: 0.10, Multiplier: 1.2},
		},
		AdjCorrelation: {
			{Op: OpGreater, Threshold: 0.8, Multiplier: 0.5},
			{Op: OpGreater, Threshold: 0.6, Multiplier: 0.75},
		},
		// fraction below peak bankroll
		AdjDrawdown: {
			{Op: OpGreater, Threshold: 0.20, Multiplier: 0.4},
			{Op: OpGreater, Threshold: 0.10, Multiplier: 0.7},
		},
		AdjConsecutiveLosses: {
			{Op: OpGreaterEqual, Threshold: 5, Multiplier: 0.3},
			{Op: OpGreaterEqual, Threshold: 3, Multiplier: 0.6},
		},
	}
}

func buildAdjustments(overrides map[string][]Bracket) []Adjustment {
	tables := DefaultAdjustments()
	for name, brackets := range overrides {
		if _, known := tables[name]; known && len(brackets) > 0 {
			tables[name] = brackets
		}
	}
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Adjustment, 0, len(names))
	for _, name := range names {
		out = append(out, Adjustment{Name: name, Brackets: tables[name]})
	}
	return out
}
