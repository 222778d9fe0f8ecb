package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// PaperConfig controls simulated fills
type PaperConfig struct {
	SlippageBps float64 `yaml:"slippage_bps" default:"2" validate:"gte=0"`
}

// PaperFill is one simulated execution
type PaperFill struct {
	OrderID  string
	Symbol   string
	Side     types.Side
	Quantity float64
	Price    float64
	Close    bool
}

// PaperExecutor fills every order at the reference price plus slippage.
// When a request carries no price it asks prices for the current one.
type PaperExecutor struct {
	cfg    PaperConfig
	prices MarketData
	log    *logger.Logger

	mu    sync.Mutex
	fills []PaperFill
}

// NewPaperExecutor creates a paper executor. prices may be nil when every
// request carries a price.
func NewPaperExecutor(cfg PaperConfig, prices MarketData, log *logger.Logger) *PaperExecutor {
	return &PaperExecutor{cfg: cfg, prices: prices, log: log.With("paper")}
}

func (p *PaperExecutor) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if req.Quantity <= 0 {
		return OrderResult{Message: fmt.Sprintf("invalid quantity %g", req.Quantity)}, nil
	}
	price, err := p.reference(ctx, req.Symbol, req.Price)
	if err != nil {
		return OrderResult{}, err
	}
	fill := p.slip(price, req.Side, true)
	return p.record(PaperFill{Symbol: req.Symbol, Side: req.Side, Quantity: req.Quantity, Price: fill}), nil
}

func (p *PaperExecutor) ClosePosition(ctx context.Context, req CloseRequest) (OrderResult, error) {
	if req.Quantity <= 0 {
		return OrderResult{Message: fmt.Sprintf("invalid quantity %g", req.Quantity)}, nil
	}
	price, err := p.reference(ctx, req.Symbol, req.Price)
	if err != nil {
		return OrderResult{}, err
	}
	fill := p.slip(price, req.Side, false)
	return p.record(PaperFill{Symbol: req.Symbol, Side: req.Side, Quantity: req.Quantity, Price: fill, Close: true}), nil
}

// Fills returns every simulated execution so far
func (p *PaperExecutor) Fills() []PaperFill {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PaperFill(nil), p.fills...)
}

func (p *PaperExecutor) reference(ctx context.Context, symbol string, price float64) (float64, error) {
	if price > 0 {
		return price, nil
	}
	if p.prices == nil {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return p.prices.GetCurrentPrice(ctx, symbol)
}

// slip moves the price against the trader: buys fill higher, sells lower
func (p *PaperExecutor) slip(price float64, side types.Side, opening bool) float64 {
	buying := (side == types.SideLong) == opening
	adj := price * p.cfg.SlippageBps / 10000
	if buying {
		return price + adj
	}
	return price - adj
}

func (p *PaperExecutor) record(f PaperFill) OrderResult {
	f.OrderID = "paper-" + uuid.NewString()
	p.mu.Lock()
	p.fills = append(p.fills, f)
	p.mu.Unlock()
	p.log.Debug("filled %s %s %.6f @ %.4f close=%t", f.Symbol, f.Side, f.Quantity, f.Price, f.Close)
	return OrderResult{Success: true, OrderID: f.OrderID, FillPrice: f.Price}
}
