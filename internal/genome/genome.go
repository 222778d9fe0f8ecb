// Package genome defines the evolvable parameter set of an agent: which pool
// strategies it listens to, how it weights them, its consensus rules, and
// the risk and betting parameters it trades with.
package genome

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"
)

// Bounds on genes. Values outside are clamped, never rejected.
const (
	MinWeight     = 0.0
	MaxWeight     = 2.0
	MinLeverage   = 1
	MaxLeverage   = 125
	MinMultiplier = 0.05
	MaxMultiplier = 10.0
)

// ConsensusRules gate a consensus decision
type ConsensusRules struct {
	MinSignals  int     `json:"min_signals"`
	MaxOpposing int     `json:"max_opposing"`
	MinStrength float64 `json:"min_strength"` // minimum confidence in [0,1]
}

// RiskParams scale the risk manager's stop and target distances
type RiskParams struct {
	TPMultiplier       float64 `json:"tp_multiplier"`
	SLMultiplier       float64 `json:"sl_multiplier"`
	TrailingMultiplier float64 `json:"trailing_multiplier"`
	Leverage           int     `json:"leverage"`
}

// BettingParams split the allowed position size: Layer1 is always used,
// Layer2 is added in proportion to decision confidence.
type BettingParams struct {
	Layer1 float64 `json:"layer1"`
	Layer2 float64 `json:"layer2"`
}

// Fraction of the allowed position size to use at confidence in [0,1]
func (b BettingParams) Fraction(confidence float64) float64 {
	if math.IsNaN(confidence) || confidence < 0 {
		confidence = 0
	}
	return math.Min(1, b.Layer1+b.Layer2*math.Min(confidence, 1))
}

// Genome is immutable once an agent owns it. Breeding produces new genomes.
type Genome struct {
	ID              string         `json:"id"`
	Generation      int            `json:"generation"`
	ParentIDs       []string       `json:"parent_ids,omitempty"`
	StrategyMask    []bool         `json:"strategy_mask"`
	StrategyWeights []float64      `json:"strategy_weights"`
	ConsensusRules  ConsensusRules `json:"consensus_rules"`
	RiskParams      RiskParams     `json:"risk_params"`
	BettingParams   BettingParams  `json:"betting_params"`
}

// NewID returns a fresh genome identifier
func NewID() string {
	return uuid.NewString()
}

// Random creates a generation-0 genome with n strategy genes
func Random(n int, rng *rand.Rand) *Genome {
	g := &Genome{
		ID:              NewID(),
		StrategyMask:    make([]bool, n),
		StrategyWeights: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		g.StrategyMask[i] = rng.Float64() < 0.5
		g.StrategyWeights[i] = rng.Float64() * MaxWeight
	}
	g.ConsensusRules = ConsensusRules{
		MinSignals:  1 + rng.Intn(4),
		MaxOpposing: rng.Intn(4),
		MinStrength: 0.3 + rng.Float64()*0.4,
	}
	g.RiskParams = RiskParams{
		TPMultiplier:       1.5 + rng.Float64()*2.5,
		SLMultiplier:       0.5 + rng.Float64()*1.5,
		TrailingMultiplier: 0.5 + rng.Float64()*1.5,
		Leverage:           1 + rng.Intn(20),
	}
	g.BettingParams = BettingParams{
		Layer1: 0.3 + rng.Float64()*0.7,
		Layer2: rng.Float64() * 0.5,
	}
	g.Clamp()
	return g
}

// N returns the number of strategy genes
func (g *Genome) N() int { return len(g.StrategyMask) }

// ActiveCount returns how many strategies the genome listens to
func (g *Genome) ActiveCount() int {
	n := 0
	for _, on := range g.StrategyMask {
		if on {
			n++
		}
	}
	return n
}

// Listens reports whether strategy id is enabled in the mask
func (g *Genome) Listens(id int) bool {
	return id >= 0 && id < len(g.StrategyMask) && g.StrategyMask[id]
}

// Weight returns the weight of strategy id, 0 when out of range
func (g *Genome) Weight(id int) float64 {
	if id < 0 || id >= len(g.StrategyWeights) {
		return 0
	}
	return g.StrategyWeights[id]
}

// Clone returns a deep copy with the same ID
func (g *Genome) Clone() *Genome {
	cp := *g
	cp.ParentIDs = append([]string(nil), g.ParentIDs...)
	cp.StrategyMask = append([]bool(nil), g.StrategyMask...)
	cp.StrategyWeights = append([]float64(nil), g.StrategyWeights...)
	return &cp
}

// Clamp forces every gene into its legal range. NaN weights become 0.
func (g *Genome) Clamp() {
	n := len(g.StrategyMask)
	for i := range g.StrategyWeights {
		g.StrategyWeights[i] = clampFloat(g.StrategyWeights[i], MinWeight, MaxWeight, MinWeight)
	}

	g.ConsensusRules.MinSignals = clampInt(g.ConsensusRules.MinSignals, 1, max(1, n))
	g.ConsensusRules.MaxOpposing = clampInt(g.ConsensusRules.MaxOpposing, 0, n)
	g.ConsensusRules.MinStrength = clampFloat(g.ConsensusRules.MinStrength, 0, 1, 0.5)

	g.RiskParams.TPMultiplier = clampFloat(g.RiskParams.TPMultiplier, MinMultiplier, MaxMultiplier, 2)
	g.RiskParams.SLMultiplier = clampFloat(g.RiskParams.SLMultiplier, MinMultiplier, MaxMultiplier, 1)
	g.RiskParams.TrailingMultiplier = clampFloat(g.RiskParams.TrailingMultiplier, MinMultiplier, MaxMultiplier, 1)
	g.RiskParams.Leverage = clampInt(g.RiskParams.Leverage, MinLeverage, MaxLeverage)

	g.BettingParams.Layer1 = clampFloat(g.BettingParams.Layer1, 0.05, 1, 0.5)
	g.BettingParams.Layer2 = clampFloat(g.BettingParams.Layer2, 0, 1, 0)
}

// Validate checks the structural invariants Clamp cannot repair
func (g *Genome) Validate(n int) error {
	if g.ID == "" {
		return fmt.Errorf("genome has no id")
	}
	if len(g.StrategyMask) != n || len(g.StrategyWeights) != n {
		return fmt.Errorf("genome %s has %d mask bits and %d weights, want %d",
			g.ID, len(g.StrategyMask), len(g.StrategyWeights), n)
	}
	for i, w := range g.StrategyWeights {
		if math.IsNaN(w) || w < MinWeight || w > MaxWeight {
			return fmt.Errorf("genome %s weight %d out of range: %v", g.ID, i, w)
		}
	}
	if g.RiskParams.Leverage < MinLeverage || g.RiskParams.Leverage > MaxLeverage {
		return fmt.Errorf("genome %s leverage out of range: %d", g.ID, g.RiskParams.Leverage)
	}
	if g.RiskParams.TPMultiplier <= 0 || g.RiskParams.SLMultiplier <= 0 || g.RiskParams.TrailingMultiplier <= 0 {
		return fmt.Errorf("genome %s has non-positive risk multiplier", g.ID)
	}
	return nil
}

func clampFloat(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
