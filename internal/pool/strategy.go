package pool

import (
	"math"

	"github.com/ducminhle1904/genome-consensus-bot/internal/indicators"
	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// Strategy is a fixed signal generator. Implementations must be pure functions of the window.
type Strategy interface {
	ID() int
	Name() string
	MinCandles() int
	Evaluate(window []types.OHLCV) (types.Direction, float64, error)
}

type evalFunc func(window []types.OHLCV) (types.Direction, float64, error)

type funcStrategy struct {
	id         int
	name       string
	minCandles int
	eval       evalFunc
}

func (s *funcStrategy) ID() int         { return s.id }
func (s *funcStrategy) Name() string    { return s.name }
func (s *funcStrategy) MinCandles() int { return s.minCandles }

func (s *funcStrategy) Evaluate(window []types.OHLCV) (types.Direction, float64, error) {
	if len(window) < s.minCandles {
		return types.DirectionNeutral, 0, indicators.ErrInsufficientData
	}
	return s.eval(window)
}

// Descriptor is a read-only view of a registered strategy
type Descriptor struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	MinCandles int    `json:"min_candles"`
}

// scaled maps |x| onto [0,100] where full is the magnitude that earns 100
func scaled(x, full float64) float64 {
	if full <= 0 || math.IsNaN(x) {
		return 0
	}
	return clampStrength(math.Abs(x) / full * 100)
}

func clampStrength(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

func neutral() (types.Direction, float64, error) {
	return types.DirectionNeutral, 0, nil
}

// sign maps a signed score onto a direction with strength scaled by full
func sign(score, full float64) (types.Direction, float64, error) {
	switch {
	case anyNaN(score):
		return types.DirectionNeutral, 0, indicators.ErrInsufficientData
	case score > 0:
		return types.DirectionLong, scaled(score, full), nil
	case score < 0:
		return types.DirectionShort, scaled(score, full), nil
	default:
		return neutral()
	}
}
