package genome

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const n = 30

func assertInvariants(t *testing.T, g *Genome) {
	t.Helper()
	require.NoError(t, g.Validate(n))
	require.Len(t, g.StrategyMask, n)
	require.Len(t, g.StrategyWeights, n)
	for _, w := range g.StrategyWeights {
		assert.GreaterOrEqual(t, w, 0.0)
		assert.LessOrEqual(t, w, 2.0)
	}
	assert.GreaterOrEqual(t, g.RiskParams.Leverage, 1)
	assert.LessOrEqual(t, g.RiskParams.Leverage, 125)
	assert.Greater(t, g.RiskParams.TPMultiplier, 0.0)
	assert.Greater(t, g.RiskParams.SLMultiplier, 0.0)
	assert.Greater(t, g.RiskParams.TrailingMultiplier, 0.0)
}

func TestRandom_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		g := Random(n, rng)
		assertInvariants(t, g)
		assert.Zero(t, g.Generation)
		assert.NotEmpty(t, g.ID)
	}
}

func TestCrossoverAndMutate_PreserveInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cfg := MutationConfig{Probability: 0.5, Sigma: 1.5}

	a, b := Random(n, rng), Random(n, rng)
	b.Generation = 3
	for i := 0; i < 200; i++ {
		child := Offspring(a, b, cfg, rng)
		assertInvariants(t, child)
		assert.Equal(t, 4, child.Generation)
		assert.Equal(t, []string{a.ID, b.ID}, child.ParentIDs)
		assert.NotEqual(t, a.ID, child.ID)
	}
}

func TestCrossover_GenesComeFromParents(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a, b := Random(n, rng), Random(n, rng)
	child := Crossover(a, b, rng)

	for i := 0; i < n; i++ {
		assert.True(t, child.StrategyMask[i] == a.StrategyMask[i] || child.StrategyMask[i] == b.StrategyMask[i])
		lo := math.Min(a.StrategyWeights[i], b.StrategyWeights[i])
		hi := math.Max(a.StrategyWeights[i], b.StrategyWeights[i])
		assert.GreaterOrEqual(t, child.StrategyWeights[i], lo-1e-12)
		assert.LessOrEqual(t, child.StrategyWeights[i], hi+1e-12)
	}
}

func TestMutate_ZeroProbabilityIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	g := Random(n, rng)
	before := g.Clone()
	Mutate(g, MutationConfig{Probability: 0, Sigma: 1}, rng)
	assert.Equal(t, before, g)
}

func TestClamp(t *testing.T) {
	g := &Genome{
		ID:              "x",
		StrategyMask:    make([]bool, n),
		StrategyWeights: make([]float64, n),
		RiskParams:      RiskParams{TPMultiplier: -1, SLMultiplier: math.NaN(), TrailingMultiplier: 50, Leverage: 500},
		ConsensusRules:  ConsensusRules{MinSignals: 0, MaxOpposing: -2, MinStrength: 3},
	}
	g.StrategyWeights[0] = 5
	g.StrategyWeights[1] = -1
	g.StrategyWeights[2] = math.NaN()

	g.Clamp()
	assertInvariants(t, g)
	assert.Equal(t, 2.0, g.StrategyWeights[0])
	assert.Equal(t, 0.0, g.StrategyWeights[1])
	assert.Equal(t, 0.0, g.StrategyWeights[2])
	assert.Equal(t, 125, g.RiskParams.Leverage)
	assert.Equal(t, MinMultiplier, g.RiskParams.TPMultiplier)
	assert.Equal(t, MaxMultiplier, g.RiskParams.TrailingMultiplier)
	assert.Equal(t, 1, g.ConsensusRules.MinSignals)
	assert.Equal(t, 0, g.ConsensusRules.MaxOpposing)
	assert.Equal(t, 1.0, g.ConsensusRules.MinStrength)
}

func TestValidate_LengthMismatch(t *testing.T) {
	g := &Genome{ID: "x", StrategyMask: make([]bool, n), StrategyWeights: make([]float64, n-1),
		RiskParams: RiskParams{TPMultiplier: 1, SLMultiplier: 1, TrailingMultiplier: 1, Leverage: 1}}
	assert.Error(t, g.Validate(n))
}

func TestCloneAsChild(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	src := Random(n, rng)
	cp := CloneAsChild(src)
	assert.NotEqual(t, src.ID, cp.ID)
	assert.Equal(t, []string{src.ID}, cp.ParentIDs)
	assert.Equal(t, src.StrategyWeights, cp.StrategyWeights)

	cp.StrategyWeights[0] = 1.234
	assert.NotEqual(t, 1.234, src.StrategyWeights[0])
}

func TestFitness(t *testing.T) {
	tests := []struct {
		name    string
		returns []float64
		window  int
		want    FitnessBreakdown
	}{
		{"empty", nil, 0, FitnessBreakdown{}},
		{"all zero", []float64{0, 0, 0}, 0, FitnessBreakdown{}},
		{
			// mean 0.02, std 0, no losses
			"constant gains", []float64{0.02, 0.02}, 0,
			FitnessBreakdown{Sharpe: 0, ProfitFactor: MaxProfitFactor, Consistency: 1, Fitness: 0},
		},
		{
			// mean 0.01, std 0.03, PF 0.08/0.04, mean|r| 0.03
			"mixed", []float64{0.04, -0.02, 0.04, -0.02}, 0,
			FitnessBreakdown{Sharpe: 1.0 / 3, ProfitFactor: 0.08 / 0.04, Consistency: 0, Fitness: 0},
		},
		{
			// trailing window drops the first loss: [0.01, 0.03], mean 0.02, std 0.01
			"window", []float64{-0.5, 0.01, 0.03}, 2,
			FitnessBreakdown{Sharpe: 2, ProfitFactor: MaxProfitFactor, Consistency: 0.5, Fitness: 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.returns, tt.window)
			assert.InDelta(t, tt.want.Sharpe, got.Sharpe, 1e-9)
			assert.InDelta(t, tt.want.ProfitFactor, got.ProfitFactor, 1e-9)
			assert.InDelta(t, tt.want.Consistency, got.Consistency, 1e-9)
			assert.InDelta(t, tt.want.Fitness, got.Fitness, 1e-9)
			assert.Equal(t, got.Fitness, Fitness(tt.returns, tt.window))
		})
	}
}

func TestBettingParams_Fraction(t *testing.T) {
	b := BettingParams{Layer1: 0.4, Layer2: 0.5}
	assert.InDelta(t, 0.4, b.Fraction(0), 1e-12)
	assert.InDelta(t, 0.65, b.Fraction(0.5), 1e-12)
	assert.InDelta(t, 0.9, b.Fraction(2), 1e-12)
	assert.InDelta(t, 0.4, b.Fraction(math.NaN()), 1e-12)
	assert.Equal(t, 1.0, BettingParams{Layer1: 0.8, Layer2: 0.8}.Fraction(1))
}
