package population

import (
	"time"

	"github.com/ducminhle1904/genome-consensus-bot/internal/genome"
	"github.com/ducminhle1904/genome-consensus-bot/internal/regime"
	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// Position is an agent's virtual position in one symbol
type Position struct {
	ID               string        `json:"id"`
	Symbol           string        `json:"symbol"`
	Side             types.Side    `json:"side"`
	Quantity         float64       `json:"quantity"`
	EntryPrice       float64       `json:"entry_price"`
	Leverage         int           `json:"leverage"`
	StopLoss         float64       `json:"stop_loss"`
	TakeProfit       float64       `json:"take_profit"`
	TrailingDistance float64       `json:"trailing_distance"` // fraction of price
	BestPrice        float64       `json:"best_price"`        // most favourable mark since entry
	Contributing     []int         `json:"contributing"`
	Regime           regime.Regime `json:"regime"`
	OrderID          string        `json:"order_id,omitempty"`
	OpenedAt         time.Time     `json:"opened_at"`
}

// Notional at the entry price
func (p *Position) Notional() float64 {
	return p.Quantity * p.EntryPrice
}

// PnL is the unrealized profit at price
func (p *Position) PnL(price float64) float64 {
	if p.Side == types.SideShort {
		return (p.EntryPrice - price) * p.Quantity
	}
	return (price - p.EntryPrice) * p.Quantity
}

// Agent owns one genome and its trading record
type Agent struct {
	ID                string               `json:"id"`
	GroupID           string               `json:"group_id"`
	Genome            *genome.Genome       `json:"genome"`
	Bankroll          float64              `json:"bankroll"`
	InitialBankroll   float64              `json:"initial_bankroll"`
	PeakBankroll      float64              `json:"peak_bankroll"`
	Trades            int                  `json:"trades"`
	Wins              int                  `json:"wins"`
	Losses            int                  `json:"losses"`
	ConsecutiveLosses int                  `json:"consecutive_losses"`
	Fitness           float64              `json:"fitness"`
	PnLHistory        []float64            `json:"pnl_history"` // per-trade return on bankroll
	Alive             bool                 `json:"alive"`
	BornAt            time.Time            `json:"born_at"`
	Positions         map[string]*Position `json:"positions"`
}

func newAgent(groupID string, g *genome.Genome, bankroll float64, now time.Time) *Agent {
	return &Agent{
		ID:              g.ID,
		GroupID:         groupID,
		Genome:          g,
		Bankroll:        bankroll,
		InitialBankroll: bankroll,
		PeakBankroll:    bankroll,
		Alive:           true,
		BornAt:          now,
		Positions:       make(map[string]*Position),
	}
}

// RecordTrade applies a realized pnl and returns the trade's return on bankroll
func (a *Agent) RecordTrade(pnl float64) float64 {
	before := a.Bankroll
	a.Bankroll += pnl
	a.Trades++

	ret := 0.0
	if before > 0 {
		ret = pnl / before
	}
	a.PnLHistory = append(a.PnLHistory, ret)

	if pnl > 0 {
		a.Wins++
		a.ConsecutiveLosses = 0
	} else {
		a.Losses++
		a.ConsecutiveLosses++
	}
	if a.Bankroll > a.PeakBankroll {
		a.PeakBankroll = a.Bankroll
	}
	return ret
}

// Dead reports whether the bankroll is exhausted
func (a *Agent) Dead() bool {
	return a.Bankroll <= 0
}

// WinRate is wins / trades, 0 with no trades
func (a *Agent) WinRate() float64 {
	if a.Trades == 0 {
		return 0
	}
	return float64(a.Wins) / float64(a.Trades)
}

// Drawdown is the fraction below peak bankroll
func (a *Agent) Drawdown() float64 {
	if a.PeakBankroll <= 0 {
		return 0
	}
	dd := (a.PeakBankroll - a.Bankroll) / a.PeakBankroll
	if dd < 0 {
		return 0
	}
	return dd
}

// RecentROI compounds the last window trade returns
func (a *Agent) RecentROI(window int) float64 {
	h := a.PnLHistory
	if window > 0 && len(h) > window {
		h = h[len(h)-window:]
	}
	growth := 1.0
	for _, r := range h {
		growth *= 1 + r
	}
	return growth - 1
}

// UpdateFitness recomputes fitness over the trailing window
func (a *Agent) UpdateFitness(window int) float64 {
	a.Fitness = genome.Fitness(a.PnLHistory, window)
	return a.Fitness
}

// OpenSymbols lists symbols with an open position, sorted
func (a *Agent) OpenSymbols() []string {
	out := make([]string, 0, len(a.Positions))
	for s := range a.Positions {
		out = append(out, s)
	}
	sortStrings(out)
	return out
}

// Group is an ordered set of agents sharing a generation counter
type Group struct {
	ID         string    `json:"id"`
	Generation int       `json:"generation"`
	AgentIDs   []string  `json:"agent_ids"`
	Deaths     int       `json:"deaths"` // since the last breeding step
	LastBred   time.Time `json:"last_bred"`
	// Fitness is the mean fitness of the live members, filled by Arena.Groups
	Fitness float64 `json:"-"`
}
