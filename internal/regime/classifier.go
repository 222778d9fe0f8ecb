package regime

import (
	"fmt"
	"sync"

	"github.com/ducminhle1904/genome-consensus-bot/internal/indicators"
	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// Classifier maps a candle window onto a Regime. It holds no state.
type Classifier struct {
	cfg Config
}

// NewClassifier creates a classifier with the given thresholds
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// MinCandles is the shortest window Classify accepts
func (c *Classifier) MinCandles() int {
	need := 2*c.cfg.ADXPeriod + 1
	if n := c.cfg.EMAPeriod + c.cfg.SlopeLookback; n > need {
		need = n
	}
	if n := c.cfg.ATRPeriod + 1; n > need {
		need = n
	}
	return need
}

// Classify returns the regime of the window. Volatility wins over trend, trend over calm.
func (c *Classifier) Classify(window []types.OHLCV) (Regime, *Metrics, error) {
	if len(window) < c.MinCandles() {
		return Default, nil, fmt.Errorf("classify regime: need %d candles, have %d: %w",
			c.MinCandles(), len(window), indicators.ErrInsufficientData)
	}

	m, err := c.metrics(window)
	if err != nil {
		return Default, nil, fmt.Errorf("classify regime: %w", err)
	}

	switch {
	case m.ATRPercent >= c.cfg.VolatileATR:
		return Volatile, m, nil
	case m.ADX >= c.cfg.ADXTrendThreshold && m.EMASlope > 0 && m.PlusDI > m.MinusDI:
		return TrendingBull, m, nil
	case m.ADX >= c.cfg.ADXTrendThreshold && m.EMASlope < 0 && m.MinusDI > m.PlusDI:
		return TrendingBear, m, nil
	case m.ATRPercent <= c.cfg.CalmATR:
		return Calm, m, nil
	default:
		return Ranging, m, nil
	}
}

func (c *Classifier) metrics(window []types.OHLCV) (*Metrics, error) {
	adx, err := indicators.ADX(window, c.cfg.ADXPeriod)
	if err != nil {
		return nil, err
	}
	ema, err := indicators.EMA(types.Closes(window), c.cfg.EMAPeriod)
	if err != nil {
		return nil, err
	}
	atrPct, err := indicators.ATRPercent(window, c.cfg.ATRPeriod)
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		ADX:        indicators.Last(adx.ADX),
		PlusDI:     indicators.Last(adx.PlusDI),
		MinusDI:    indicators.Last(adx.MinusDI),
		EMASlope:   indicators.Slope(ema, c.cfg.SlopeLookback),
		ATRPercent: atrPct,
	}
	if last := indicators.Last(ema); last > 0 {
		m.EMADist = (types.LastClose(window) - last) / last
	}
	return m, nil
}

// Tracker applies per-symbol hysteresis on top of a Classifier:
// a new regime replaces the current one only after ConfirmationBars consecutive classifications.
type Tracker struct {
	classifier *Classifier
	confirm    int

	mu      sync.Mutex
	current map[string]Regime
	pending map[string]Regime
	count   map[string]int
}

// NewTracker creates a tracker over the given thresholds
func NewTracker(cfg Config) *Tracker {
	confirm := cfg.ConfirmationBars
	if confirm < 1 {
		confirm = 1
	}
	return &Tracker{
		classifier: NewClassifier(cfg),
		confirm:    confirm,
		current:    make(map[string]Regime),
		pending:    make(map[string]Regime),
		count:      make(map[string]int),
	}
}

// Update classifies the window and returns the confirmed regime for symbol.
// Insufficient data keeps the previous regime (or Default for a new symbol).
func (t *Tracker) Update(symbol string, window []types.OHLCV) Regime {
	detected, _, err := t.classifier.Classify(window)

	t.mu.Lock()
	defer t.mu.Unlock()

	cur, known := t.current[symbol]
	if err != nil {
		if !known {
			return Default
		}
		return cur
	}
	if !known {
		t.current[symbol] = detected
		return detected
	}
	if detected == cur {
		delete(t.pending, symbol)
		t.count[symbol] = 0
		return cur
	}

	if t.pending[symbol] != detected {
		t.pending[symbol] = detected
		t.count[symbol] = 0
	}
	t.count[symbol]++
	if t.count[symbol] >= t.confirm {
		t.current[symbol] = detected
		delete(t.pending, symbol)
		t.count[symbol] = 0
		return detected
	}
	return cur
}

// Current returns the confirmed regime per symbol
func (t *Tracker) Current() map[string]Regime {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Regime, len(t.current))
	for k, v := range t.current {
		out[k] = v
	}
	return out
}
