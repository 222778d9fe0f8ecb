package portfolio

import (
	"fmt"

	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// LeverageCalculator converts between notional, margin and liquidation prices
type LeverageCalculator struct {
	minLeverage float64
	maxLeverage float64
	// fraction of margin lost before liquidation, leaving room for fees
	liquidationBuffer float64
}

// NewLeverageCalculator creates a calculator bounded to [1, 125]
func NewLeverageCalculator() *LeverageCalculator {
	return &LeverageCalculator{minLeverage: 1, maxLeverage: 125, liquidationBuffer: 0.9}
}

func (c *LeverageCalculator) bound(leverage float64) float64 {
	if leverage < c.minLeverage {
		return c.minLeverage
	}
	if leverage > c.maxLeverage {
		return c.maxLeverage
	}
	return leverage
}

// RequiredMargin is notional / leverage; non-positive leverage requires the full notional
//
// Example: $100 position with 10x leverage = $10 margin required
func (c *LeverageCalculator) RequiredMargin(notional, leverage float64) float64 {
	if leverage <= 0 {
		return notional
	}
	return notional / c.bound(leverage)
}

// MaxNotional is margin × leverage
func (c *LeverageCalculator) MaxNotional(margin, leverage float64) float64 {
	if margin <= 0 || leverage <= 0 {
		return 0
	}
	return margin * c.bound(leverage)
}

// Validate rejects leverage outside the calculator's bounds
func (c *LeverageCalculator) Validate(leverage float64) error {
	if leverage < c.minLeverage || leverage > c.maxLeverage {
		return fmt.Errorf("leverage %.2f outside [%.0f, %.0f]", leverage, c.minLeverage, c.maxLeverage)
	}
	return nil
}

// LiquidationPrice approximates where a leveraged position is force-closed.
// Unleveraged positions have no liquidation price and return 0.
func (c *LeverageCalculator) LiquidationPrice(entry, leverage float64, side types.Side) float64 {
	if leverage <= 1 || entry <= 0 {
		return 0
	}
	move := 1 / c.bound(leverage) * c.liquidationBuffer
	if side == types.SideLong {
		return entry * (1 - move)
	}
	return entry * (1 + move)
}

// Liquidated reports whether price has crossed the liquidation price of a position
func (c *LeverageCalculator) Liquidated(entry, price, leverage float64, side types.Side) bool {
	liq := c.LiquidationPrice(entry, leverage, side)
	if liq == 0 {
		return false
	}
	if side == types.SideLong {
		return price <= liq
	}
	return price >= liq
}
