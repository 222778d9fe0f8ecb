package genome

import (
	"math"
	"math/rand"
)

// MutationConfig controls per-gene mutation
type MutationConfig struct {
	Probability float64 `yaml:"probability" default:"0.1" validate:"gte=0,lte=1"`
	Sigma       float64 `yaml:"sigma" default:"0.2" validate:"gt=0"`
}

// Crossover produces a child of a and b: uniform crossover of mask bits and a
// blended average, with a random blend factor per gene, of every continuous gene.
// The child has a new ID and generation max(parents)+1.
func Crossover(a, b *Genome, rng *rand.Rand) *Genome {
	n := a.N()
	if b.N() < n {
		n = b.N()
	}
	child := &Genome{
		ID:              NewID(),
		Generation:      max(a.Generation, b.Generation) + 1,
		ParentIDs:       []string{a.ID, b.ID},
		StrategyMask:    make([]bool, n),
		StrategyWeights: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		if rng.Float64() < 0.5 {
			child.StrategyMask[i] = a.StrategyMask[i]
		} else {
			child.StrategyMask[i] = b.StrategyMask[i]
		}
		child.StrategyWeights[i] = blend(a.StrategyWeights[i], b.StrategyWeights[i], rng)
	}

	child.ConsensusRules = ConsensusRules{
		MinSignals:  int(math.Round(blend(float64(a.ConsensusRules.MinSignals), float64(b.ConsensusRules.MinSignals), rng))),
		MaxOpposing: int(math.Round(blend(float64(a.ConsensusRules.MaxOpposing), float64(b.ConsensusRules.MaxOpposing), rng))),
		MinStrength: blend(a.ConsensusRules.MinStrength, b.ConsensusRules.MinStrength, rng),
	}
	child.RiskParams = RiskParams{
		TPMultiplier:       blend(a.RiskParams.TPMultiplier, b.RiskParams.TPMultiplier, rng),
		SLMultiplier:       blend(a.RiskParams.SLMultiplier, b.RiskParams.SLMultiplier, rng),
		TrailingMultiplier: blend(a.RiskParams.TrailingMultiplier, b.RiskParams.TrailingMultiplier, rng),
		Leverage:           int(math.Round(blend(float64(a.RiskParams.Leverage), float64(b.RiskParams.Leverage), rng))),
	}
	child.BettingParams = BettingParams{
		Layer1: blend(a.BettingParams.Layer1, b.BettingParams.Layer1, rng),
		Layer2: blend(a.BettingParams.Layer2, b.BettingParams.Layer2, rng),
	}
	child.Clamp()
	return child
}

func blend(x, y float64, rng *rand.Rand) float64 {
	alpha := rng.Float64()
	return alpha*x + (1-alpha)*y
}

// Mutate perturbs g in place. Each gene mutates independently with cfg.Probability:
// mask bits flip, continuous genes get Gaussian noise scaled by cfg.Sigma and their range.
func Mutate(g *Genome, cfg MutationConfig, rng *rand.Rand) {
	p := cfg.Probability
	hit := func() bool { return rng.Float64() < p }
	noise := func(scale float64) float64 { return rng.NormFloat64() * cfg.Sigma * scale }

	for i := range g.StrategyMask {
		if hit() {
			g.StrategyMask[i] = !g.StrategyMask[i]
		}
		if hit() {
			g.StrategyWeights[i] += noise(MaxWeight - MinWeight)
		}
	}

	if hit() {
		g.ConsensusRules.MinSignals += int(math.Round(noise(4)))
	}
	if hit() {
		g.ConsensusRules.MaxOpposing += int(math.Round(noise(4)))
	}
	if hit() {
		g.ConsensusRules.MinStrength += noise(1)
	}
	if hit() {
		g.RiskParams.TPMultiplier += noise(g.RiskParams.TPMultiplier)
	}
	if hit() {
		g.RiskParams.SLMultiplier += noise(g.RiskParams.SLMultiplier)
	}
	if hit() {
		g.RiskParams.TrailingMultiplier += noise(g.RiskParams.TrailingMultiplier)
	}
	if hit() {
		g.RiskParams.Leverage += int(math.Round(noise(float64(g.RiskParams.Leverage))))
	}
	if hit() {
		g.BettingParams.Layer1 += noise(1)
	}
	if hit() {
		g.BettingParams.Layer2 += noise(1)
	}
	g.Clamp()
}

// Offspring breeds and mutates a child from two parents
func Offspring(a, b *Genome, cfg MutationConfig, rng *rand.Rand) *Genome {
	child := Crossover(a, b, rng)
	Mutate(child, cfg, rng)
	return child
}

// CloneAsChild copies src under a new ID, recording src as the only parent
func CloneAsChild(src *Genome) *Genome {
	cp := src.Clone()
	cp.ID = NewID()
	cp.ParentIDs = []string{src.ID}
	return cp
}
