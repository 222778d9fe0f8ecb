package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendingCandles(n int, start, step float64) []types.OHLCV {
	data := make([]types.OHLCV, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := start + step*float64(i)
		data[i] = types.OHLCV{
			Open:      c - step/2,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return data
}

func TestSMA(t *testing.T) {
	out, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-12)
	assert.InDelta(t, 4.0, out[4], 1e-12)

	_, err = SMA([]float64{1, 2}, 3)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestEMA_SeededWithSMA(t *testing.T) {
	out, err := EMA([]float64{2, 4, 6, 8}, 3)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, out[2], 1e-12)
	// alpha = 0.5
	assert.InDelta(t, 6.0, out[3], 1e-12)
}

func TestRSI_Extremes(t *testing.T) {
	rising := types.Closes(trendingCandles(30, 100, 1))
	out, err := RSI(rising, 14)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, Last(out), 1e-9)

	falling := types.Closes(trendingCandles(30, 200, -1))
	out, err = RSI(falling, 14)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, Last(out), 1e-9)

	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 50
	}
	out, err = RSI(flat, 14)
	require.NoError(t, err)
	assert.Equal(t, 50.0, Last(out))
}

func TestMACD_PositiveInUptrend(t *testing.T) {
	closes := types.Closes(trendingCandles(60, 100, 0.5))
	res, err := MACD(closes, 12, 26, 9)
	require.NoError(t, err)
	assert.Greater(t, Last(res.MACD), 0.0)
	assert.False(t, math.IsNaN(Last(res.Histogram)))
}

func TestBollinger_Symmetric(t *testing.T) {
	closes := types.Closes(trendingCandles(40, 100, 0.3))
	res, err := Bollinger(closes, 20, 2)
	require.NoError(t, err)
	up := Last(res.Upper) - Last(res.Middle)
	down := Last(res.Middle) - Last(res.Lower)
	assert.InDelta(t, up, down, 1e-9)
	assert.Greater(t, up, 0.0)
}

func TestATR_ConstantRange(t *testing.T) {
	data := trendingCandles(30, 100, 0)
	out, err := ATR(data, 14)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, Last(out), 1e-9)

	pct, err := ATRPercent(data, 14)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, pct, 1e-9)
}

func TestADX_StrongTrend(t *testing.T) {
	data := trendingCandles(80, 100, 2)
	res, err := ADX(data, 14)
	require.NoError(t, err)
	assert.Greater(t, Last(res.ADX), 25.0)
	assert.Greater(t, Last(res.PlusDI), Last(res.MinusDI))
}

func TestSuperTrend_DirectionFollowsTrend(t *testing.T) {
	_, dir, err := SuperTrend(trendingCandles(60, 100, 1), 10, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, dir[len(dir)-1])

	_, dir, err = SuperTrend(trendingCandles(60, 300, -2), 10, 3)
	require.NoError(t, err)
	assert.Equal(t, -1, dir[len(dir)-1])
}

func TestDonchian_ExcludesCurrentBar(t *testing.T) {
	data := trendingCandles(30, 100, 1)
	res, err := Donchian(data, 20)
	require.NoError(t, err)
	assert.Greater(t, data[len(data)-1].Close, Last(res.Upper)-1)
	assert.InDelta(t, data[len(data)-2].High, Last(res.Upper), 1e-9)
}

func TestHullMA_TracksLinearSeries(t *testing.T) {
	closes := types.Closes(trendingCandles(40, 100, 1))
	out, err := HullMA(closes, 16)
	require.NoError(t, err)
	sma, err := SMA(closes, 16)
	require.NoError(t, err)
	last := closes[len(closes)-1]
	// a 16 bar SMA lags a unit-slope line by 7.5, the Hull MA by under one bar
	assert.InDelta(t, last, Last(out), 1.0)
	assert.Greater(t, math.Abs(last-Last(sma)), 7.0)
}

func TestInsufficientData(t *testing.T) {
	short := trendingCandles(5, 100, 1)
	_, err := ADX(short, 14)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, _, err = Stochastic(short, 14, 3, 3)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = MFI(short, 14)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
