// Package consensus merges the pool signals a genome listens to into one
// directional decision. Output depends only on the signals, the genome and
// the reliability table, never on wall-clock time or randomness.
package consensus

import (
	"math"
	"sort"

	"github.com/ducminhle1904/genome-consensus-bot/internal/genome"
	"github.com/ducminhle1904/genome-consensus-bot/internal/pool"
	"github.com/ducminhle1904/genome-consensus-bot/internal/regime"
	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// Config controls outlier rejection
type Config struct {
	ZThreshold float64 `yaml:"z_threshold" default:"2.0" validate:"gt=0"`
	// outlier rejection is skipped below this many directional signals
	MinSample   int               `yaml:"min_sample" default:"3" validate:"min=2"`
	Reliability ReliabilityConfig `yaml:"reliability"`
}

// DefaultConfig returns the standard combiner settings
func DefaultConfig() Config {
	return Config{ZThreshold: 2.0, MinSample: 3, Reliability: DefaultReliabilityConfig()}
}

// Rejection reasons for a collapsed decision
const (
	ReasonNoSignals       = "no_signals"
	ReasonTie             = "tie"
	ReasonTooFewSignals   = "too_few_signals"
	ReasonTooManyOpposing = "too_many_opposing"
	ReasonLowConfidence   = "low_confidence"
)

// Decision is the per-genome consensus for one symbol. It is derived every cycle and never persisted.
type Decision struct {
	Symbol                 string          `json:"symbol"`
	Direction              types.Direction `json:"direction"`
	Confidence             float64         `json:"confidence"`
	ConsensusLevel         float64         `json:"consensus_level"`
	ContributingStrategies []int           `json:"contributing_strategies,omitempty"`
	OpposingStrategies     []int           `json:"opposing_strategies,omitempty"`
	Outliers               []int           `json:"outliers,omitempty"`
	Regime                 regime.Regime   `json:"regime"`

	// Candidate is the arg-max direction before consensus rules were applied
	Candidate types.Direction `json:"candidate"`
	Rejected  string          `json:"rejected,omitempty"`
}

// Tradeable reports whether the decision calls for a position
func (d Decision) Tradeable() bool {
	return d.Direction == types.DirectionLong || d.Direction == types.DirectionShort
}

// Combiner is shared by all genomes; per-genome state lives in the genome itself
type Combiner struct {
	cfg         Config
	reliability *ReliabilityTracker
}

// NewCombiner creates a combiner reading reliability from tracker
func NewCombiner(cfg Config, tracker *ReliabilityTracker) *Combiner {
	if tracker == nil {
		tracker = NewReliabilityTracker(cfg.Reliability)
	}
	return &Combiner{cfg: cfg, reliability: tracker}
}

// Reliability exposes the tracker the combiner weights with
func (c *Combiner) Reliability() *ReliabilityTracker { return c.reliability }

// Combine merges signals for symbol into a decision for genome g in regime r
func (c *Combiner) Combine(g *genome.Genome, symbol string, signals []pool.PoolSignal, r regime.Regime) Decision {
	d := Decision{Symbol: symbol, Direction: types.DirectionNeutral, Candidate: types.DirectionNeutral, Regime: r}

	filtered := make([]pool.PoolSignal, 0, len(signals))
	for _, s := range signals {
		if s.Symbol == symbol && g.Listens(s.StrategyID) {
			filtered = append(filtered, s)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].StrategyID < filtered[j].StrategyID })
	if len(filtered) == 0 {
		d.Rejected = ReasonNoSignals
		return d
	}

	surviving, outliers := c.rejectOutliers(filtered)
	d.Outliers = outliers

	var long, short float64
	for _, s := range surviving {
		score := g.Weight(s.StrategyID) * c.reliability.Get(s.StrategyID, r) * s.Strength
		switch s.Direction {
		case types.DirectionLong:
			long += score
		case types.DirectionShort:
			short += score
		}
	}
	// NEUTRAL signals carry zero strength so the neutral bucket never scores
	total := long + short
	if total <= 0 {
		d.Rejected = ReasonNoSignals
		return d
	}
	if long == short {
		d.Rejected = ReasonTie
		return d
	}

	candidate, maxScore := types.DirectionLong, long
	if short > long {
		candidate, maxScore = types.DirectionShort, short
	}
	d.Candidate = candidate

	var contributing, opposing []int
	for _, s := range surviving {
		switch s.Direction {
		case candidate:
			contributing = append(contributing, s.StrategyID)
		case candidate.Opposite():
			opposing = append(opposing, s.StrategyID)
		}
	}
	confidence := maxScore / total
	level := float64(len(contributing)) / float64(len(filtered))

	rules := g.ConsensusRules
	switch {
	case len(contributing) < rules.MinSignals:
		d.Rejected = ReasonTooFewSignals
		return d
	case len(opposing) > rules.MaxOpposing:
		d.Rejected = ReasonTooManyOpposing
		return d
	case confidence < rules.MinStrength:
		d.Rejected = ReasonLowConfidence
		return d
	}

	d.Direction = candidate
	d.Confidence = confidence
	d.ConsensusLevel = level
	d.ContributingStrategies = contributing
	d.OpposingStrategies = opposing
	return d
}

// rejectOutliers drops directional signals whose robust z-score of strength
// exceeds the threshold. The z-score uses median and MAD, so a single extreme
// value in a small sample cannot hide itself by inflating the spread.
func (c *Combiner) rejectOutliers(signals []pool.PoolSignal) ([]pool.PoolSignal, []int) {
	strengths := make([]float64, 0, len(signals))
	for _, s := range signals {
		if s.Direction != types.DirectionNeutral {
			strengths = append(strengths, s.Strength)
		}
	}
	if len(strengths) < c.cfg.MinSample {
		return signals, nil
	}

	scale := robustScale(strengths)
	if scale == 0 {
		return signals, nil
	}
	med := median(strengths)

	kept := make([]pool.PoolSignal, 0, len(signals))
	var dropped []int
	for _, s := range signals {
		if s.Direction != types.DirectionNeutral && math.Abs(s.Strength-med)/scale > c.cfg.ZThreshold {
			dropped = append(dropped, s.StrategyID)
			continue
		}
		kept = append(kept, s)
	}
	return kept, dropped
}

// robustScale estimates the standard deviation as 1.4826·MAD, falling back
// to 1.2533·mean absolute deviation when more than half the values coincide.
func robustScale(values []float64) float64 {
	med := median(values)
	dev := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		dev[i] = math.Abs(v - med)
		sum += dev[i]
	}
	if mad := median(dev); mad > 0 {
		return 1.4826 * mad
	}
	return 1.2533 * sum / float64(len(values))
}

func median(values []float64) float64 {
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	n := len(s)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
