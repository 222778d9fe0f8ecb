package genome

import "math"

// MaxProfitFactor caps the profit factor of a history with gains and no losses
const MaxProfitFactor = 10.0

// FitnessBreakdown holds the components of a fitness score
type FitnessBreakdown struct {
	Sharpe       float64 `json:"sharpe"`
	ProfitFactor float64 `json:"profit_factor"`
	Consistency  float64 `json:"consistency"`
	Fitness      float64 `json:"fitness"`
}

// Fitness scores the trailing window of per-trade returns as sharpe × profitFactor × consistency.
// A window <= 0 uses the whole history.
func Fitness(returns []float64, window int) float64 {
	return Evaluate(returns, window).Fitness
}

// Evaluate computes the fitness components over the trailing window
func Evaluate(returns []float64, window int) FitnessBreakdown {
	r := trailing(returns, window)
	if len(r) == 0 {
		return FitnessBreakdown{}
	}

	mean, std := meanStd(r)
	fb := FitnessBreakdown{
		Sharpe:       sharpe(mean, std),
		ProfitFactor: profitFactor(r),
		Consistency:  consistency(r, std),
	}
	fb.Fitness = fb.Sharpe * fb.ProfitFactor * fb.Consistency
	if math.IsNaN(fb.Fitness) || math.IsInf(fb.Fitness, 0) {
		fb.Fitness = 0
	}
	return fb
}

func trailing(returns []float64, window int) []float64 {
	if window <= 0 || len(returns) <= window {
		return returns
	}
	return returns[len(returns)-window:]
}

func meanStd(r []float64) (float64, float64) {
	sum := 0.0
	for _, v := range r {
		sum += v
	}
	mean := sum / float64(len(r))
	variance := 0.0
	for _, v := range r {
		variance += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(variance / float64(len(r)))
}

func sharpe(mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return mean / std
}

func profitFactor(r []float64) float64 {
	gains, losses := 0.0, 0.0
	for _, v := range r {
		if v > 0 {
			gains += v
		} else {
			losses -= v
		}
	}
	switch {
	case gains == 0 && losses == 0:
		return 0
	case losses == 0:
		return MaxProfitFactor
	default:
		return math.Min(gains/losses, MaxProfitFactor)
	}
}

func consistency(r []float64, std float64) float64 {
	absSum := 0.0
	for _, v := range r {
		absSum += math.Abs(v)
	}
	meanAbs := absSum / float64(len(r))
	if meanAbs == 0 {
		return 0
	}
	c := 1 - std/meanAbs
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
