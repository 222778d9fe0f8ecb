package scheduler

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/ducminhle1904/genome-consensus-bot/internal/consensus"
	engerrors "github.com/ducminhle1904/genome-consensus-bot/internal/errors"
	"github.com/ducminhle1904/genome-consensus-bot/internal/exchange"
	"github.com/ducminhle1904/genome-consensus-bot/internal/indicators"
	"github.com/ducminhle1904/genome-consensus-bot/internal/monitoring"
	"github.com/ducminhle1904/genome-consensus-bot/internal/notifications"
	"github.com/ducminhle1904/genome-consensus-bot/internal/population"
	"github.com/ducminhle1904/genome-consensus-bot/internal/portfolio"
	"github.com/ducminhle1904/genome-consensus-bot/internal/regime"
	"github.com/ducminhle1904/genome-consensus-bot/internal/risk"
	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// Exit reasons
const (
	ExitStopLoss     = "stop_loss"
	ExitTakeProfit   = "take_profit"
	ExitTrailingStop = "trailing_stop"
	ExitLiquidation  = "liquidation"
	ExitAgentDeath   = "agent_death"
)

// exitReason checks a position against price, moving its best price first.
// The trailing stop only arms once the position has been in profit.
func (e *Engine) exitReason(p *population.Position, price float64) string {
	if p.Side == types.SideShort {
		if p.BestPrice == 0 || price < p.BestPrice {
			p.BestPrice = price
		}
	} else if price > p.BestPrice {
		p.BestPrice = price
	}

	if e.leverage.Liquidated(p.EntryPrice, price, float64(p.Leverage), p.Side) {
		return ExitLiquidation
	}

	long := p.Side != types.SideShort
	switch {
	case long && p.StopLoss > 0 && price <= p.StopLoss,
		!long && p.StopLoss > 0 && price >= p.StopLoss:
		return ExitStopLoss
	case long && p.TakeProfit > 0 && price >= p.TakeProfit,
		!long && p.TakeProfit > 0 && price <= p.TakeProfit:
		return ExitTakeProfit
	}

	if p.TrailingDistance <= 0 {
		return ""
	}
	if long && p.BestPrice > p.EntryPrice && price <= p.BestPrice*(1-p.TrailingDistance) {
		return ExitTrailingStop
	}
	if !long && p.BestPrice < p.EntryPrice && price >= p.BestPrice*(1+p.TrailingDistance) {
		return ExitTrailingStop
	}
	return ""
}

// manageExits closes every position in symbol whose exit has triggered.
// Exits run before entries and are never throttled by the circuit breaker.
func (e *Engine) manageExits(ctx context.Context, symbol string, price float64) error {
	for _, ag := range e.arena.Agents() {
		p, ok := ag.Positions[symbol]
		if !ok {
			continue
		}
		reason := e.exitReason(p, price)
		if reason == "" {
			continue
		}
		if !e.closePosition(ctx, ag, p, price, reason) {
			continue
		}
		if ag.Dead() {
			if err := e.handleDeath(ctx, ag); err != nil {
				return err
			}
		}
	}
	return nil
}

// closePosition sends the close order and settles the trade. It returns false
// when the order did not go through; the position stays open for the next cycle.
func (e *Engine) closePosition(ctx context.Context, ag *population.Agent, p *population.Position, price float64, reason string) bool {
	req := exchange.CloseRequest{
		Symbol:   p.Symbol,
		Side:     p.Side,
		Quantity: p.Quantity,
		Price:    price,
		OrderID:  p.OrderID,
	}
	res, err := exchange.Retry(ctx, e.cfg.Retry, "scheduler", "close_position", e.log,
		func(ctx context.Context) (exchange.OrderResult, error) {
			return e.orders.ClosePosition(ctx, req)
		})
	if err != nil {
		monitoring.RecordOrder("close", "error")
		e.recordError(err, "close_position")
		e.log.Warning("close %s %s for %s failed: %v", p.Side, p.Symbol, ag.ID, err)
		return false
	}
	if !res.Success {
		monitoring.RecordOrder("close", "rejected")
		e.log.Warning("close %s %s for %s rejected: %s", p.Side, p.Symbol, ag.ID, res.Message)
		return false
	}
	monitoring.RecordOrder("close", reason)

	fill := price
	if res.FillPrice > 0 {
		fill = res.FillPrice
	}
	pnl := p.PnL(fill)
	if reason == ExitLiquidation && p.Leverage > 0 {
		pnl = -p.Notional() / float64(p.Leverage)
	}

	// the breaker measures losses against the whole group's capital
	capital := e.arena.GroupBankroll(ag.GroupID)
	ag.RecordTrade(pnl)
	e.combiner.Reliability().Record(p.Contributing, p.Regime, pnl > 0)
	delete(ag.Positions, p.Symbol)
	e.ledger.Remove(p.ID)

	e.log.Trade("closed %s %s for %s at %.4f (%s): pnl %.2f, bankroll %.2f",
		p.Side, p.Symbol, ag.ID, fill, reason, pnl, ag.Bankroll)

	if pnl < 0 && capital > 0 && e.risk.RecordLoss(ag.GroupID, -pnl/capital) {
		monitoring.RecordBreakerTrip(ag.GroupID)
		e.alert(notifications.LevelWarning,
			fmt.Sprintf("circuit breaker tripped for %s in %s", ag.GroupID, e.cfg.Environment))
	}
	return true
}

// handleDeath flattens a dead agent's remaining positions at their last mark
// and replaces it with a bred offspring.
func (e *Engine) handleDeath(ctx context.Context, ag *population.Agent) error {
	for _, symbol := range ag.OpenSymbols() {
		p := ag.Positions[symbol]
		mark := e.marks[symbol]
		if mark <= 0 {
			mark = p.EntryPrice
		}
		if !e.closePosition(ctx, ag, p, mark, ExitAgentDeath) {
			// retired regardless; the ledger must not keep its exposure
			e.ledger.Remove(p.ID)
			delete(ag.Positions, symbol)
		}
	}

	child, err := e.arena.HandleDeath(ctx, ag.ID, e.rng)
	if err != nil {
		return engerrors.NewPersistenceError("scheduler", "handle_death", err).
			WithContext("agent", ag.ID)
	}
	monitoring.RecordDeath(ag.GroupID)
	e.alert(notifications.LevelInfo,
		fmt.Sprintf("agent %s died in %s after %d trades; replaced by %s", ag.ID, ag.GroupID, ag.Trades, child.ID))
	return nil
}

// openEntries opens positions for agents whose decision is tradeable and who
// hold nothing in symbol yet.
func (e *Engine) openEntries(ctx context.Context, symbol string, price float64, window []types.OHLCV,
	reg regime.Regime, decisions map[string]consensus.Decision) {

	vol, err := indicators.ATRPercent(window, e.cfg.VolatilityPeriod)
	if err != nil {
		vol = math.NaN()
	}

	roiWindow := e.arena.Config().FitnessWindow
	for _, ag := range e.arena.Agents() {
		d, ok := decisions[ag.ID]
		if !ok || !d.Tradeable() {
			continue
		}
		if _, held := ag.Positions[symbol]; held || ag.Bankroll <= 0 {
			continue
		}
		side, _ := types.SideFor(d.Direction)
		g := ag.Genome

		rd := e.risk.Size(ag.GroupID, risk.Factors{
			Volatility:        vol,
			Confidence:        d.Confidence * 100,
			RecentROI:         ag.RecentROI(roiWindow),
			Correlation:       e.ledger.Correlation(symbol, side),
			Drawdown:          ag.Drawdown(),
			ConsecutiveLosses: ag.ConsecutiveLosses,
			Bankroll:          ag.Bankroll,
			MaxLeverage:       g.RiskParams.Leverage,
			SLMultiplier:      g.RiskParams.SLMultiplier,
			TPMultiplier:      g.RiskParams.TPMultiplier,
		})
		notional := rd.MaxPositionSize * g.BettingParams.Fraction(d.Confidence)
		if notional <= 0 || math.IsNaN(notional) {
			continue
		}

		check := e.ledger.CanOpen(symbol, side, notional)
		if !check.Allowed {
			monitoring.RecordOrder("open", check.Reason)
			e.log.Debug("%s %s for %s blocked: %s %s", side, symbol, ag.ID, check.Reason, check.Detail)
			continue
		}

		e.open(ctx, ag, symbol, side, price, notional, rd, reg, d)
	}
}

func (e *Engine) open(ctx context.Context, ag *population.Agent, symbol string, side types.Side, price, notional float64,
	rd risk.Decision, reg regime.Regime, d consensus.Decision) {

	req := exchange.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Quantity: notional / price,
		Leverage: rd.LeverageLimit,
		Price:    price,
		ClientID: uuid.NewString(),
	}
	res, err := exchange.Retry(ctx, e.cfg.Retry, "scheduler", "place_order", e.log,
		func(ctx context.Context) (exchange.OrderResult, error) {
			return e.orders.PlaceOrder(ctx, req)
		})
	if err != nil {
		monitoring.RecordOrder("open", "error")
		e.recordError(err, "place_order")
		e.log.Warning("open %s %s for %s failed: %v", side, symbol, ag.ID, err)
		return
	}
	if !res.Success {
		monitoring.RecordOrder("open", "rejected")
		e.log.Warning("open %s %s for %s rejected: %s", side, symbol, ag.ID, res.Message)
		return
	}

	fill := price
	if res.FillPrice > 0 {
		fill = res.FillPrice
	}
	p := &population.Position{
		ID:               req.ClientID,
		Symbol:           symbol,
		Side:             side,
		Quantity:         req.Quantity,
		EntryPrice:       fill,
		Leverage:         rd.LeverageLimit,
		TrailingDistance: rd.StopLossDistance * ag.Genome.RiskParams.TrailingMultiplier,
		BestPrice:        fill,
		Contributing:     append([]int(nil), d.ContributingStrategies...),
		Regime:           reg,
		OrderID:          res.OrderID,
		OpenedAt:         e.now(),
	}
	if side == types.SideShort {
		p.StopLoss = fill * (1 + rd.StopLossDistance)
		p.TakeProfit = fill * (1 - rd.TakeProfitDistance)
	} else {
		p.StopLoss = fill * (1 - rd.StopLossDistance)
		p.TakeProfit = fill * (1 + rd.TakeProfitDistance)
	}

	if err := e.ledger.Add(ledgerPosition(p)); err != nil {
		e.log.Error("ledger rejected %s for %s, unwinding: %v", p.ID, ag.ID, err)
		if _, cerr := e.orders.ClosePosition(ctx, exchange.CloseRequest{
			Symbol: symbol, Side: side, Quantity: p.Quantity, Price: fill, OrderID: res.OrderID,
		}); cerr != nil {
			e.log.LogError("unwind failed", cerr)
		}
		return
	}
	ag.Positions[symbol] = p
	monitoring.RecordOrder("open", "filled")
	e.log.Trade("opened %s %s for %s: qty %.6f at %.4f, lev %dx, conf %.2f, SL %.4f TP %.4f",
		side, symbol, ag.ID, p.Quantity, fill, p.Leverage, d.Confidence, p.StopLoss, p.TakeProfit)
}

func ledgerPosition(p *population.Position) portfolio.Position {
	return portfolio.Position{
		ID:         p.ID,
		Symbol:     p.Symbol,
		Side:       p.Side,
		Quantity:   p.Quantity,
		EntryPrice: p.EntryPrice,
		MarkPrice:  p.EntryPrice,
	}
}

func (e *Engine) recordError(err error, op string) {
	ee := engerrors.CategorizeError(err, "scheduler", op)
	e.errStats.RecordError(ee)
	monitoring.RecordError(string(ee.Category))
}

func (e *Engine) alert(level, message string) {
	if err := e.notifier.SendAlert(level, message); err != nil {
		e.log.Warning("alert not delivered: %v", err)
	}
}
