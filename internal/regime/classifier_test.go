package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

func candles(closes []float64, halfRange func(c float64) float64) []types.OHLCV {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		h := halfRange(c)
		out[i] = types.OHLCV{Open: c, High: c + h, Low: c - h, Close: c, Volume: 100, Timestamp: base.Add(time.Duration(i) * time.Hour)}
	}
	return out
}

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestClassify(t *testing.T) {
	fixed := func(v float64) func(float64) float64 { return func(float64) float64 { return v } }

	zigzag := make([]float64, 120)
	pattern := []float64{100, 102, 100, 98}
	for i := range zigzag {
		zigzag[i] = pattern[i%4]
	}

	tests := []struct {
		name   string
		window []types.OHLCV
		want   Regime
	}{
		{"steady uptrend", candles(linear(120, 100, 1), fixed(0.5)), TrendingBull},
		{"steady downtrend", candles(linear(120, 300, -1), fixed(0.5)), TrendingBear},
		{"wide ranges", candles(zigzag, func(c float64) float64 { return c * 0.05 }), Volatile},
		{"flat tape", candles(linear(120, 100, 0), fixed(0.2)), Calm},
		{"choppy sideways", candles(zigzag, fixed(0.5)), Ranging},
	}

	c := NewClassifier(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, m, err := c.Classify(tt.window)
			require.NoError(t, err)
			require.NotNil(t, m)
			assert.Equal(t, tt.want, got, "metrics: %+v", *m)
		})
	}
}

func TestClassify_InsufficientData(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	got, _, err := c.Classify(candles(linear(10, 100, 1), func(float64) float64 { return 1 }))
	assert.Error(t, err)
	assert.Equal(t, Default, got)
}

func TestTracker_Hysteresis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfirmationBars = 2
	tr := NewTracker(cfg)

	up := candles(linear(120, 100, 1), func(float64) float64 { return 0.5 })
	flat := candles(linear(120, 100, 0), func(float64) float64 { return 0.2 })

	assert.Equal(t, TrendingBull, tr.Update("BTCUSDT", up))
	// first contrary reading is not enough
	assert.Equal(t, TrendingBull, tr.Update("BTCUSDT", flat))
	assert.Equal(t, Calm, tr.Update("BTCUSDT", flat))

	// short window keeps the confirmed regime
	assert.Equal(t, Calm, tr.Update("BTCUSDT", flat[:5]))
	assert.Equal(t, Default, tr.Update("ETHUSDT", flat[:5]))

	assert.Equal(t, map[string]Regime{"BTCUSDT": Calm}, tr.Current())
}

func TestRegimeValid(t *testing.T) {
	for _, r := range All() {
		assert.True(t, r.Valid())
	}
	assert.False(t, Regime("SIDEWAYS").Valid())
}
