package bybit

import (
	"context"
	"fmt"
	"math"
	"strconv"
)

// Instrument holds the lot-size rules for a symbol
type Instrument struct {
	Symbol      string
	MinQty      float64
	MaxQty      float64
	QtyStep     float64
	MaxLeverage float64
}

type instrumentResult struct {
	List []struct {
		Symbol         string `json:"symbol"`
		LeverageFilter struct {
			MaxLeverage string `json:"maxLeverage"`
		} `json:"leverageFilter"`
		LotSizeFilter struct {
			MaxOrderQty string `json:"maxOrderQty"`
			MinOrderQty string `json:"minOrderQty"`
			QtyStep     string `json:"qtyStep"`
		} `json:"lotSizeFilter"`
	} `json:"list"`
}

// instrument returns cached lot-size rules, fetching them on first use
func (c *Client) instrument(ctx context.Context, symbol string) (*Instrument, error) {
	c.mu.RLock()
	inst, ok := c.instruments[symbol]
	c.mu.RUnlock()
	if ok {
		return inst, nil
	}

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}
	if err := c.limiter.wait(ctx); err != nil {
		return nil, throttled("instrument_info", err)
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	if err != nil {
		return nil, classify("instrument_info", err)
	}
	var ir instrumentResult
	if err := decode(result, &ir); err != nil {
		return nil, classify("instrument_info", err)
	}
	for _, item := range ir.List {
		if item.Symbol != symbol {
			continue
		}
		inst = &Instrument{
			Symbol:      item.Symbol,
			MinQty:      parseFloat64(item.LotSizeFilter.MinOrderQty),
			MaxQty:      parseFloat64(item.LotSizeFilter.MaxOrderQty),
			QtyStep:     parseFloat64(item.LotSizeFilter.QtyStep),
			MaxLeverage: parseFloat64(item.LeverageFilter.MaxLeverage),
		}
		c.mu.Lock()
		c.instruments[symbol] = inst
		c.mu.Unlock()
		return inst, nil
	}
	return nil, classify("instrument_info", &APIError{Code: ErrCodeSymbolNotFound, Message: fmt.Sprintf("instrument %s not found", symbol)})
}

// AdjustQuantity rounds qty down to the lot step and caps it at MaxQty.
// It returns ok=false when the result falls below MinQty.
func (inst *Instrument) AdjustQuantity(qty float64) (float64, bool) {
	if inst.MaxQty > 0 && qty > inst.MaxQty {
		qty = inst.MaxQty
	}
	if inst.QtyStep > 0 {
		steps := math.Floor(qty/inst.QtyStep + 1e-9)
		qty = steps * inst.QtyStep
		precision := int(math.Max(0, math.Ceil(-math.Log10(inst.QtyStep))))
		multiplier := math.Pow(10, float64(precision))
		qty = math.Round(qty*multiplier) / multiplier
	}
	if qty <= 0 || qty < inst.MinQty {
		return 0, false
	}
	return qty, true
}

func formatQty(qty float64) string {
	return strconv.FormatFloat(qty, 'f', -1, 64)
}
