package bybit

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ducminhle1904/genome-consensus-bot/internal/exchange"
	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// OrderSide represents the side of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

type orderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// sideFor maps a position side to the order side that opens (or closes) it
func sideFor(s types.Side, opening bool) OrderSide {
	if (s == types.SideLong) == opening {
		return OrderSideBuy
	}
	return OrderSideSell
}

// PlaceOrder opens a position with a market order. Lot-size and leverage
// problems come back as unsuccessful results.
func (c *Client) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	inst, err := c.instrument(ctx, req.Symbol)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	qty, ok := inst.AdjustQuantity(req.Quantity)
	if !ok {
		return exchange.OrderResult{Message: fmt.Sprintf("quantity %g below minimum %g for %s", req.Quantity, inst.MinQty, req.Symbol)}, nil
	}

	lev := req.Leverage
	if inst.MaxLeverage > 0 && float64(lev) > inst.MaxLeverage {
		lev = int(inst.MaxLeverage)
	}
	if err := c.setLeverage(ctx, req.Symbol, lev); err != nil {
		return exchange.OrderResult{}, err
	}

	return c.marketOrder(ctx, req.Symbol, sideFor(req.Side, true), qty, false, req.ClientID)
}

// ClosePosition sends a reduce-only market order against the open side
func (c *Client) ClosePosition(ctx context.Context, req exchange.CloseRequest) (exchange.OrderResult, error) {
	inst, err := c.instrument(ctx, req.Symbol)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	qty, ok := inst.AdjustQuantity(req.Quantity)
	if !ok {
		return exchange.OrderResult{Message: fmt.Sprintf("quantity %g below minimum %g for %s", req.Quantity, inst.MinQty, req.Symbol)}, nil
	}
	return c.marketOrder(ctx, req.Symbol, sideFor(req.Side, false), qty, true, "")
}

func (c *Client) marketOrder(ctx context.Context, symbol string, side OrderSide, qty float64, reduceOnly bool, linkID string) (exchange.OrderResult, error) {
	params := map[string]interface{}{
		"category":  c.category,
		"symbol":    symbol,
		"side":      string(side),
		"orderType": "Market",
		"qty":       formatQty(qty),
	}
	if reduceOnly {
		params["reduceOnly"] = true
	}
	if linkID != "" {
		params["orderLinkId"] = linkID
	}

	if err := c.limiter.wait(ctx); err != nil {
		return exchange.OrderResult{}, throttled("place_order", err)
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return exchange.OrderResult{}, classify("place_order", err)
	}
	var or orderResult
	if err := decode(result, &or); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && !IsRetryableError(err) {
			return exchange.OrderResult{Message: apiErr.Error()}, nil
		}
		return exchange.OrderResult{}, classify("place_order", err)
	}
	c.log.Trade("%s %s %s qty=%s order=%s reduceOnly=%t", c.GetEnvironment(), side, symbol, formatQty(qty), or.OrderID, reduceOnly)
	return exchange.OrderResult{Success: true, OrderID: or.OrderID}, nil
}

// setLeverage sets leverage once per symbol value; "not modified" counts as success
func (c *Client) setLeverage(ctx context.Context, symbol string, leverage int) error {
	c.mu.RLock()
	current := c.leverage[symbol]
	c.mu.RUnlock()
	if current == leverage {
		return nil
	}

	lev := strconv.Itoa(leverage)
	params := map[string]interface{}{
		"category":     c.category,
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}
	if err := c.limiter.wait(ctx); err != nil {
		return throttled("set_leverage", err)
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).SetPositionLeverage(ctx)
	if err != nil {
		return classify("set_leverage", err)
	}
	if err := decode(result, nil); err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != ErrCodeLeverageNotModified {
			return classify("set_leverage", err)
		}
	}

	c.mu.Lock()
	c.leverage[symbol] = leverage
	c.mu.Unlock()
	return nil
}

var _ exchange.Exchange = (*Client)(nil)
