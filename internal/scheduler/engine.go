// Package scheduler drives the population: evaluation cycles, breeding and
// champion propagation, plus the cron loop that runs them.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ducminhle1904/genome-consensus-bot/internal/champion"
	"github.com/ducminhle1904/genome-consensus-bot/internal/consensus"
	engerrors "github.com/ducminhle1904/genome-consensus-bot/internal/errors"
	"github.com/ducminhle1904/genome-consensus-bot/internal/exchange"
	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
	"github.com/ducminhle1904/genome-consensus-bot/internal/monitoring"
	"github.com/ducminhle1904/genome-consensus-bot/internal/notifications"
	"github.com/ducminhle1904/genome-consensus-bot/internal/pool"
	"github.com/ducminhle1904/genome-consensus-bot/internal/population"
	"github.com/ducminhle1904/genome-consensus-bot/internal/portfolio"
	"github.com/ducminhle1904/genome-consensus-bot/internal/regime"
	"github.com/ducminhle1904/genome-consensus-bot/internal/risk"
	"github.com/ducminhle1904/genome-consensus-bot/internal/storage"
	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// Config is the per-environment engine configuration
type Config struct {
	Environment      string
	Symbols          []string
	Interval         string
	CandleLimit      int
	VolatilityPeriod int
	BreedingInterval time.Duration
	Retry            exchange.RetryConfig
}

// Deps are the collaborators an Engine owns. Market, Orders, Pool, Arena and
// Store are required; the rest get defaults.
type Deps struct {
	Market     exchange.MarketData
	Orders     exchange.OrderExecutor
	Pool       *pool.Pool
	Regimes    *regime.Tracker
	Combiner   *consensus.Combiner
	Risk       *risk.Manager
	Ledger     *portfolio.ExposureLedger
	Arena      *population.Arena
	Propagator *champion.Propagator
	Store      storage.Store
	Notifier   notifications.Notifier
	Health     *monitoring.HealthChecker
	Rand       *rand.Rand
	Log        *logger.Logger
}

// Engine runs the evaluation cycle for one environment. Every job holds the
// engine lock, so ledger and agent state have a single writer.
type Engine struct {
	cfg        Config
	market     exchange.MarketData
	orders     exchange.OrderExecutor
	pool       *pool.Pool
	regimes    *regime.Tracker
	combiner   *consensus.Combiner
	risk       *risk.Manager
	ledger     *portfolio.ExposureLedger
	leverage   *portfolio.LeverageCalculator
	arena      *population.Arena
	propagator *champion.Propagator
	store      storage.Store
	notifier   notifications.Notifier
	health     *monitoring.HealthChecker
	rng        *rand.Rand
	log        *logger.Logger
	now        func() time.Time

	mu           sync.Mutex
	marks        map[string]float64
	errStats     *engerrors.ErrorStats
	cycles       int
	lastCycle    time.Time
	lastDuration time.Duration
	lastSync     time.Time
}

// statusTopStrategies is how many reliable strategies Status lists per regime
const statusTopStrategies = 5

// Status is a point-in-time summary of the engine
type Status struct {
	Environment       string                   `json:"environment"`
	Cycles            int                      `json:"cycles"`
	LastCycle         time.Time                `json:"last_cycle"`
	LastCycleDuration time.Duration            `json:"last_cycle_duration"`
	LastChampionSync  time.Time                `json:"last_champion_sync"`
	Exposure          portfolio.Status         `json:"exposure"`
	Breakers          map[string]bool          `json:"breakers"`
	BreakerLoss       map[string]float64       `json:"breaker_loss"`
	Regimes           map[string]regime.Regime `json:"regimes"`
	TopStrategies     map[regime.Regime][]int  `json:"top_strategies"`
	Population        population.Stats         `json:"population"`
	Health            *monitoring.HealthStatus `json:"health,omitempty"`
	ErrorRates        map[string]float64       `json:"error_rates,omitempty"`
}

// NewEngine validates deps and builds an engine
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	switch {
	case deps.Market == nil:
		return nil, engerrors.NewConfigurationError("scheduler", "new_engine", "market data is required")
	case deps.Orders == nil:
		return nil, engerrors.NewConfigurationError("scheduler", "new_engine", "order executor is required")
	case deps.Pool == nil:
		return nil, engerrors.NewConfigurationError("scheduler", "new_engine", "signal pool is required")
	case deps.Arena == nil:
		return nil, engerrors.NewConfigurationError("scheduler", "new_engine", "population arena is required")
	case deps.Store == nil:
		return nil, engerrors.NewConfigurationError("scheduler", "new_engine", "store is required")
	case len(cfg.Symbols) == 0:
		return nil, engerrors.NewConfigurationError("scheduler", "new_engine", "at least one symbol is required")
	}

	log := deps.Log.With("scheduler")
	if cfg.Environment == "" {
		cfg.Environment = "paper"
	}
	if cfg.Interval == "" {
		cfg.Interval = "5"
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = 200
	}
	if cfg.VolatilityPeriod <= 0 {
		cfg.VolatilityPeriod = 14
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialInterval == 0 {
		cfg.Retry = exchange.DefaultRetryConfig()
	}

	e := &Engine{
		cfg:        cfg,
		market:     exchange.WithRetry(deps.Market, cfg.Retry, deps.Log),
		orders:     deps.Orders,
		pool:       deps.Pool,
		regimes:    deps.Regimes,
		combiner:   deps.Combiner,
		risk:       deps.Risk,
		ledger:     deps.Ledger,
		leverage:   portfolio.NewLeverageCalculator(),
		arena:      deps.Arena,
		propagator: deps.Propagator,
		store:      deps.Store,
		notifier:   deps.Notifier,
		health:     deps.Health,
		rng:        deps.Rand,
		log:        log,
		now:        time.Now,
		marks:      make(map[string]float64),
		errStats:   engerrors.NewErrorStats(50),
	}
	if e.regimes == nil {
		e.regimes = regime.NewTracker(regime.DefaultConfig())
	}
	if e.combiner == nil {
		e.combiner = consensus.NewCombiner(consensus.DefaultConfig(), nil)
	}
	if e.risk == nil {
		e.risk = risk.NewManager(risk.DefaultConfig(), deps.Log)
	}
	if e.ledger == nil {
		e.ledger = portfolio.NewExposureLedger(portfolio.DefaultConfig())
	}
	if e.propagator == nil {
		e.propagator = champion.NewPropagator(nil, deps.Store, deps.Log)
	}
	if e.notifier == nil {
		e.notifier = notifications.NewLogNotifier(deps.Log)
	}
	if e.health == nil {
		e.health = monitoring.NewHealthChecker(time.Hour, 3)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e, nil
}

// WithClock replaces the engine's clock
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Arena exposes the population
func (e *Engine) Arena() *population.Arena { return e.arena }

// Ledger exposes the exposure ledger
func (e *Engine) Ledger() *portfolio.ExposureLedger { return e.ledger }

// Environment is the deployment environment this engine trades for
func (e *Engine) Environment() string { return e.cfg.Environment }

// EvaluateCycle runs the pool once over window and returns every live agent's
// consensus decision for symbol, keyed by agent ID.
func (e *Engine) EvaluateCycle(ctx context.Context, symbol string, window []types.OHLCV) map[string]consensus.Decision {
	decisions, _ := e.evaluate(ctx, symbol, window)
	return decisions
}

func (e *Engine) evaluate(ctx context.Context, symbol string, window []types.OHLCV) (map[string]consensus.Decision, regime.Regime) {
	signals := e.pool.Evaluate(ctx, symbol, window)
	reg := e.regimes.Update(symbol, window)

	out := make(map[string]consensus.Decision)
	for _, ag := range e.arena.Agents() {
		d := e.combiner.Combine(ag.Genome, symbol, signals, reg)
		out[ag.ID] = d
		monitoring.RecordDecision(symbol, string(d.Direction))
	}
	return out, reg
}

// RunCycle evaluates every configured symbol once. A failing symbol is logged
// and skipped; only persistence failures are returned.
func (e *Engine) RunCycle(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	e.ledger.SetBankroll(e.totalBankroll())

	failed := 0
	for _, symbol := range e.cfg.Symbols {
		if ctx.Err() != nil {
			e.log.Warning("cycle interrupted before %s", symbol)
			break
		}
		if err := e.cycleSymbol(ctx, symbol); err != nil {
			if engerrors.IsCategory(err, engerrors.ErrorCategoryPersistence) {
				e.health.CycleFailed(err)
				return err
			}
			failed++
			ee := engerrors.CategorizeError(err, "scheduler", "cycle")
			e.errStats.RecordError(ee)
			monitoring.RecordSymbolFailure(symbol, string(ee.Category))
			monitoring.RecordError(string(ee.Category))
			e.log.Warning("skipping %s this cycle: %v", symbol, err)
		}
	}

	// fitness first so quota breeding ranks on this cycle's trades
	e.arena.RecomputeFitness()
	bred, err := e.breedDueGroups(ctx, 0)
	if err == nil && bred > 0 {
		err = e.saveStateLocked(ctx)
	}
	if err != nil {
		e.health.CycleFailed(err)
		return err
	}

	stats := e.arena.Stats()
	monitoring.SetFitness(stats.BestFitness, stats.AverageFitness)
	monitoring.SetExposure(e.cfg.Environment, e.ledger.Status().TotalExposurePct)

	e.cycles++
	e.lastCycle = e.now()
	e.lastDuration = e.lastCycle.Sub(start)
	monitoring.ObserveCycle(e.lastDuration.Seconds())

	if failed == len(e.cfg.Symbols) {
		e.health.CycleFailed(fmt.Errorf("all %d symbols failed", failed))
	} else {
		e.health.CycleSucceeded()
	}
	e.log.Status("cycle %d done in %s: %d agents, %d open positions, %d/%d symbols failed",
		e.cycles, e.lastDuration.Round(time.Millisecond), stats.Agents, stats.OpenPositions, failed, len(e.cfg.Symbols))
	return nil
}

func (e *Engine) cycleSymbol(ctx context.Context, symbol string) error {
	window, err := e.market.GetCandles(ctx, symbol, e.cfg.Interval, e.cfg.CandleLimit)
	if err != nil {
		return err
	}
	price := types.LastClose(window)
	if price <= 0 {
		return engerrors.NewDataInsufficientError("scheduler", "get_candles",
			fmt.Sprintf("no usable candles for %s", symbol))
	}
	e.marks[symbol] = price
	e.ledger.UpdatePrice(symbol, price)

	decisions, reg := e.evaluate(ctx, symbol, window)

	if err := e.manageExits(ctx, symbol, price); err != nil {
		return err
	}
	e.openEntries(ctx, symbol, price, window, reg, decisions)
	return nil
}

func (e *Engine) totalBankroll() float64 {
	total := 0.0
	for _, ag := range e.arena.Agents() {
		if ag.Bankroll > 0 {
			total += ag.Bankroll
		}
	}
	return total
}

// Status summarises the engine for health endpoints and reports
func (e *Engine) Status() Status {
	e.mu.Lock()
	st := Status{
		Environment:       e.cfg.Environment,
		Cycles:            e.cycles,
		LastCycle:         e.lastCycle,
		LastCycleDuration: e.lastDuration,
		LastChampionSync:  e.lastSync,
		ErrorRates:        make(map[string]float64),
	}
	for cat := range e.errStats.ErrorsByCategory {
		st.ErrorRates[string(cat)] = e.errStats.GetErrorRate(cat)
	}
	e.mu.Unlock()

	st.Exposure = e.ledger.Status()
	st.Regimes = e.regimes.Current()
	st.Population = e.arena.Stats()
	st.TopStrategies = make(map[regime.Regime][]int)
	for _, r := range st.Regimes {
		if _, ok := st.TopStrategies[r]; !ok {
			st.TopStrategies[r] = e.combiner.Reliability().Top(r, statusTopStrategies)
		}
	}
	st.Breakers = make(map[string]bool)
	st.BreakerLoss = make(map[string]float64)
	for _, g := range e.arena.Groups() {
		st.Breakers[g.ID] = e.risk.CheckCircuitBreaker(g.ID)
		st.BreakerLoss[g.ID] = e.risk.HourlyLoss(g.ID)
	}
	hs := e.health.Status()
	st.Health = &hs
	return st
}
