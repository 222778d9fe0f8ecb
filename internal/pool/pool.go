package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// DefaultWorkers bounds concurrent strategy evaluations per symbol
const DefaultWorkers = 8

// Pool runs the immutable strategy bank over a candle window
type Pool struct {
	strategies []Strategy
	workers    int
	log        *logger.Logger
}

// New builds a pool over the given strategies. Strategy IDs must equal their position.
func New(strategies []Strategy, workers int, log *logger.Logger) (*Pool, error) {
	for i, s := range strategies {
		if s.ID() != i {
			return nil, fmt.Errorf("strategy %q has id %d at position %d", s.Name(), s.ID(), i)
		}
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	cp := make([]Strategy, len(strategies))
	copy(cp, strategies)
	return &Pool{strategies: cp, workers: workers, log: log.With("pool")}, nil
}

// NewDefault builds a pool over DefaultBank
func NewDefault(workers int, log *logger.Logger) *Pool {
	p, err := New(DefaultBank(), workers, log)
	if err != nil {
		panic(err)
	}
	return p
}

// Len returns the number of strategies
func (p *Pool) Len() int { return len(p.strategies) }

// Strategies describes the registered strategies in ID order
func (p *Pool) Strategies() []Descriptor {
	out := make([]Descriptor, len(p.strategies))
	for i, s := range p.strategies {
		out[i] = Descriptor{ID: s.ID(), Name: s.Name(), MinCandles: s.MinCandles()}
	}
	return out
}

// Evaluate returns exactly one signal per strategy, in strategy ID order.
// Strategies that fail, panic or lack data contribute a NEUTRAL signal with strength 0.
// Signals carry the timestamp of the last candle so the result depends only on the window.
func (p *Pool) Evaluate(ctx context.Context, symbol string, window []types.OHLCV) []PoolSignal {
	var ts time.Time
	if len(window) > 0 {
		ts = window[len(window)-1].Timestamp
	}

	signals := make([]PoolSignal, len(p.strategies))
	var wg sync.WaitGroup
	workerChan := make(chan struct{}, p.workers)

	for i, s := range p.strategies {
		if ctx.Err() != nil {
			signals[i] = Neutral(s.ID(), symbol, ts)
			continue
		}
		wg.Add(1)
		go func(slot int, strat Strategy) {
			defer wg.Done()

			workerChan <- struct{}{}
			defer func() { <-workerChan }()

			signals[slot] = p.run(strat, symbol, window, ts)
		}(i, s)
	}

	wg.Wait()
	return signals
}

func (p *Pool) run(s Strategy, symbol string, window []types.OHLCV, ts time.Time) (sig PoolSignal) {
	sig = Neutral(s.ID(), symbol, ts)
	defer func() {
		if r := recover(); r != nil {
			p.log.Warning("strategy %s panicked on %s: %v", s.Name(), symbol, r)
			sig = Neutral(s.ID(), symbol, ts)
		}
	}()

	dir, strength, err := s.Evaluate(window)
	if err != nil {
		return sig
	}
	if dir != types.DirectionLong && dir != types.DirectionShort {
		return sig
	}
	strength = clampStrength(strength)
	if strength == 0 {
		return sig
	}
	sig.Direction = dir
	sig.Strength = strength
	return sig
}
