package pool

import (
	"time"

	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// Size is the number of strategies in the bank. Genome masks and weights are sized to it.
const Size = 30

// PoolSignal is one strategy's call for one symbol
type PoolSignal struct {
	StrategyID int             `json:"strategy_id"`
	Symbol     string          `json:"symbol"`
	Direction  types.Direction `json:"direction"`
	Strength   float64         `json:"strength"` // 0-100
	Timestamp  time.Time       `json:"timestamp"`
}

// Neutral returns a zero-strength NEUTRAL signal
func Neutral(strategyID int, symbol string, ts time.Time) PoolSignal {
	return PoolSignal{
		StrategyID: strategyID,
		Symbol:     symbol,
		Direction:  types.DirectionNeutral,
		Strength:   0,
		Timestamp:  ts,
	}
}
