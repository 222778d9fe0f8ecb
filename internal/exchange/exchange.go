// Package exchange defines the narrow market-data and order interfaces the
// engine consumes, plus retry and paper-trading implementations.
package exchange

import (
	"context"

	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// MarketData supplies candles and prices
type MarketData interface {
	// GetCandles returns up to limit candles, oldest first
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// OrderRequest opens a position
type OrderRequest struct {
	Symbol   string
	Side     types.Side
	Quantity float64
	Leverage int
	// Price is the reference mark used by simulated fills
	Price    float64
	ClientID string
}

// CloseRequest closes a position previously opened with PlaceOrder
type CloseRequest struct {
	Symbol   string
	Side     types.Side // side of the open position
	Quantity float64
	Price    float64
	OrderID  string
}

// OrderResult is the adapter's answer. A rejected order is Success=false with
// a Message, not an error; errors are transport failures.
type OrderResult struct {
	Success   bool    `json:"success"`
	OrderID   string  `json:"orderId,omitempty"`
	Message   string  `json:"message,omitempty"`
	FillPrice float64 `json:"fillPrice,omitempty"`
}

// OrderExecutor places and closes orders
type OrderExecutor interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	ClosePosition(ctx context.Context, req CloseRequest) (OrderResult, error)
}

// Exchange is a venue that provides both
type Exchange interface {
	MarketData
	OrderExecutor
	Name() string
}
