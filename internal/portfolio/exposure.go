// Package portfolio guards open exposure: every prospective position is
// checked against position-count, total, per-symbol, per-direction and
// correlation ceilings before it may be opened.
package portfolio

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// Config holds exposure ceilings. Exposure ceilings are percentages of bankroll.
type Config struct {
	MaxPositions            int     `yaml:"max_positions" default:"10" validate:"min=1"`
	MaxTotalExposure        float64 `yaml:"max_total_exposure" default:"60" validate:"gt=0"`
	MaxExposurePerSymbol    float64 `yaml:"max_exposure_per_symbol" default:"30" validate:"gt=0"`
	MaxExposurePerDirection float64 `yaml:"max_exposure_per_direction" default:"45" validate:"gt=0"`
	MaxCorrelation          float64 `yaml:"max_correlation" default:"0.8" validate:"gte=0,lte=1"`

	// symmetric pairwise correlations; missing pairs count as uncorrelated
	Correlations map[string]map[string]float64 `yaml:"correlations"`
}

// DefaultConfig returns the standard ceilings
func DefaultConfig() Config {
	return Config{
		MaxPositions:            10,
		MaxTotalExposure:        60,
		MaxExposurePerSymbol:    30,
		MaxExposurePerDirection: 45,
		MaxCorrelation:          0.8,
		Correlations:            DefaultCorrelations(),
	}
}

// DefaultCorrelations is a static table of major-pair correlations
func DefaultCorrelations() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"BTCUSDT": {"ETHUSDT": 0.85, "SOLUSDT": 0.75, "BNBUSDT": 0.7, "XRPUSDT": 0.65},
		"ETHUSDT": {"SOLUSDT": 0.8, "BNBUSDT": 0.7, "XRPUSDT": 0.6},
		"SOLUSDT": {"BNBUSDT": 0.6},
	}
}

// Rejection reasons, checked in this order
const (
	ReasonMaxPositions      = "max_positions"
	ReasonTotalExposure     = "total_exposure"
	ReasonSymbolExposure    = "symbol_exposure"
	ReasonDirectionExposure = "direction_exposure"
	ReasonCorrelation       = "correlation"
	ReasonInvalidNotional   = "invalid_notional"
)

// Position is one open entry in the ledger
type Position struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	Side       types.Side `json:"side"`
	Quantity   float64    `json:"quantity"`
	EntryPrice float64    `json:"entry_price"`
	MarkPrice  float64    `json:"mark_price"`
}

// Notional is the marked value of the position
func (p Position) Notional() float64 {
	return p.Quantity * p.MarkPrice
}

// Check is the outcome of CanOpen
type Check struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Status is a point-in-time exposure snapshot
type Status struct {
	Bankroll         float64                `json:"bankroll"`
	OpenPositions    int                    `json:"open_positions"`
	TotalNotional    float64                `json:"total_notional"`
	TotalExposurePct float64                `json:"total_exposure_pct"`
	BySymbolPct      map[string]float64     `json:"by_symbol_pct"`
	ByDirectionPct   map[types.Side]float64 `json:"by_direction_pct"`
	Positions        []Position             `json:"positions"`
}

// ExposureLedger is the table of open positions for one deployment environment.
// Add and Remove are the only places open positions change.
type ExposureLedger struct {
	cfg Config

	mu        sync.RWMutex
	bankroll  float64
	positions map[string]*Position
}

// NewExposureLedger creates an empty ledger. Until a positive bankroll is set, CanOpen allows everything.
func NewExposureLedger(cfg Config) *ExposureLedger {
	return &ExposureLedger{cfg: cfg, positions: make(map[string]*Position)}
}

// SetBankroll sets the baseline exposure percentages are measured against
func (l *ExposureLedger) SetBankroll(bankroll float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bankroll = bankroll
}

// CanOpen runs the ordered checks for a prospective position, stopping at the first failure
func (l *ExposureLedger) CanOpen(symbol string, side types.Side, notional float64) Check {
	if math.IsNaN(notional) || notional <= 0 {
		return Check{Reason: ReasonInvalidNotional, Detail: fmt.Sprintf("notional %v", notional)}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.bankroll <= 0 {
		return Check{Allowed: true, Detail: "no bankroll baseline, exposure checks bypassed"}
	}

	if len(l.positions) >= l.cfg.MaxPositions {
		return Check{Reason: ReasonMaxPositions, Detail: fmt.Sprintf("%d open", len(l.positions))}
	}

	var total, bySymbol, byDirection float64
	for _, p := range l.positions {
		n := p.Notional()
		total += n
		if p.Symbol == symbol {
			bySymbol += n
		}
		if p.Side == side {
			byDirection += n
		}
	}

	if pct := l.percent(total + notional); pct > l.cfg.MaxTotalExposure {
		return Check{Reason: ReasonTotalExposure, Detail: fmt.Sprintf("%.2f%% > %.2f%%", pct, l.cfg.MaxTotalExposure)}
	}
	if pct := l.percent(bySymbol + notional); pct > l.cfg.MaxExposurePerSymbol {
		return Check{Reason: ReasonSymbolExposure, Detail: fmt.Sprintf("%s %.2f%% > %.2f%%", symbol, pct, l.cfg.MaxExposurePerSymbol)}
	}
	if pct := l.percent(byDirection + notional); pct > l.cfg.MaxExposurePerDirection {
		return Check{Reason: ReasonDirectionExposure, Detail: fmt.Sprintf("%s %.2f%% > %.2f%%", side, pct, l.cfg.MaxExposurePerDirection)}
	}
	if corr := l.correlationLocked(symbol, side); corr > l.cfg.MaxCorrelation {
		return Check{Reason: ReasonCorrelation, Detail: fmt.Sprintf("%.2f > %.2f", corr, l.cfg.MaxCorrelation)}
	}
	return Check{Allowed: true}
}

// percent is computed as value·100/bankroll so round ceilings compare exactly
func (l *ExposureLedger) percent(value float64) float64 {
	return value * 100 / l.bankroll
}

// Correlation returns the highest static correlation between symbol and any
// open position on the same side in another symbol
func (l *ExposureLedger) Correlation(symbol string, side types.Side) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.correlationLocked(symbol, side)
}

func (l *ExposureLedger) correlationLocked(symbol string, side types.Side) float64 {
	best := 0.0
	for _, p := range l.positions {
		if p.Side != side || p.Symbol == symbol {
			continue
		}
		if c := l.pairCorrelation(symbol, p.Symbol); c > best {
			best = c
		}
	}
	return best
}

func (l *ExposureLedger) pairCorrelation(a, b string) float64 {
	if c, ok := l.cfg.Correlations[a][b]; ok {
		return c
	}
	if c, ok := l.cfg.Correlations[b][a]; ok {
		return c
	}
	return 0
}

// Add records an opened position
func (l *ExposureLedger) Add(p Position) error {
	if p.ID == "" {
		return fmt.Errorf("position has no id")
	}
	if p.Quantity <= 0 || p.EntryPrice <= 0 {
		return fmt.Errorf("position %s has invalid quantity %v or price %v", p.ID, p.Quantity, p.EntryPrice)
	}
	if p.MarkPrice <= 0 {
		p.MarkPrice = p.EntryPrice
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.positions[p.ID]; exists {
		return fmt.Errorf("position %s already open", p.ID)
	}
	l.positions[p.ID] = &p
	return nil
}

// Remove deletes a closed position, returning it
func (l *ExposureLedger) Remove(id string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[id]
	if !ok {
		return Position{}, false
	}
	delete(l.positions, id)
	return *p, true
}

// UpdatePrice re-marks every open position in symbol
func (l *ExposureLedger) UpdatePrice(symbol string, price float64) {
	if price <= 0 || math.IsNaN(price) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.positions {
		if p.Symbol == symbol {
			p.MarkPrice = price
		}
	}
}

// Get returns an open position by ID
func (l *ExposureLedger) Get(id string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[id]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Status returns an exposure snapshot with positions sorted by ID
func (l *ExposureLedger) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Status{
		Bankroll:       l.bankroll,
		OpenPositions:  len(l.positions),
		BySymbolPct:    make(map[string]float64),
		ByDirectionPct: make(map[types.Side]float64),
		Positions:      make([]Position, 0, len(l.positions)),
	}
	bySymbol := make(map[string]float64)
	byDirection := make(map[types.Side]float64)
	for _, p := range l.positions {
		n := p.Notional()
		s.TotalNotional += n
		bySymbol[p.Symbol] += n
		byDirection[p.Side] += n
		s.Positions = append(s.Positions, *p)
	}
	sort.Slice(s.Positions, func(i, j int) bool { return s.Positions[i].ID < s.Positions[j].ID })

	if l.bankroll > 0 {
		s.TotalExposurePct = l.percent(s.TotalNotional)
		for sym, n := range bySymbol {
			s.BySymbolPct[sym] = l.percent(n)
		}
		for side, n := range byDirection {
			s.ByDirectionPct[side] = l.percent(n)
		}
	}
	return s
}
