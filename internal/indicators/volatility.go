package indicators

import (
	"math"

	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

func highestHigh(data []types.OHLCV) float64 {
	hi := math.Inf(-1)
	for _, c := range data {
		hi = math.Max(hi, c.High)
	}
	return hi
}

func lowestLow(data []types.OHLCV) float64 {
	lo := math.Inf(1)
	for _, c := range data {
		lo = math.Min(lo, c.Low)
	}
	return lo
}

// TrueRange returns the true range series. The first value uses high-low only.
func TrueRange(data []types.OHLCV) []float64 {
	out := make([]float64, len(data))
	for i, c := range data {
		if i == 0 {
			out[i] = c.High - c.Low
			continue
		}
		prev := data[i-1].Close
		out[i] = math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prev), math.Abs(c.Low-prev)))
	}
	return out
}

// ATR computes Wilder's average true range
func ATR(data []types.OHLCV, period int) ([]float64, error) {
	if period <= 0 || len(data) <= period {
		return nil, ErrInsufficientData
	}
	tr := TrueRange(data)
	out := nanSeries(len(data))
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	prev := sum / float64(period)
	out[period] = prev
	for i := period + 1; i < len(data); i++ {
		prev = (prev*float64(period-1) + tr[i]) / float64(period)
		out[i] = prev
	}
	return out, nil
}

// ATRPercent returns the latest ATR as a fraction of the latest close
func ATRPercent(data []types.OHLCV, period int) (float64, error) {
	atr, err := ATR(data, period)
	if err != nil {
		return 0, err
	}
	last := types.LastClose(data)
	if last <= 0 {
		return 0, ErrInsufficientData
	}
	return Last(atr) / last, nil
}

// BandsResult holds an upper/middle/lower channel
type BandsResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger computes Bollinger bands around an SMA
func Bollinger(values []float64, period int, stdDev float64) (*BandsResult, error) {
	mid, err := SMA(values, period)
	if err != nil {
		return nil, err
	}
	res := &BandsResult{Upper: nanSeries(len(values)), Middle: mid, Lower: nanSeries(len(values))}
	for i := period - 1; i < len(values); i++ {
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mid[i]
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		res.Upper[i] = mid[i] + stdDev*sd
		res.Lower[i] = mid[i] - stdDev*sd
	}
	return res, nil
}

// Keltner computes Keltner channels: EMA(close) +/- multiplier*ATR
func Keltner(data []types.OHLCV, period int, multiplier float64) (*BandsResult, error) {
	mid, err := EMA(types.Closes(data), period)
	if err != nil {
		return nil, err
	}
	atr, err := ATR(data, period)
	if err != nil {
		return nil, err
	}
	res := &BandsResult{Upper: nanSeries(len(data)), Middle: mid, Lower: nanSeries(len(data))}
	for i := range data {
		if math.IsNaN(mid[i]) || math.IsNaN(atr[i]) {
			continue
		}
		res.Upper[i] = mid[i] + multiplier*atr[i]
		res.Lower[i] = mid[i] - multiplier*atr[i]
	}
	return res, nil
}

// Donchian computes the highest high / lowest low channel over the prior period bars.
// The current bar is excluded so a close above Upper is a breakout.
func Donchian(data []types.OHLCV, period int) (*BandsResult, error) {
	if len(data) <= period {
		return nil, ErrInsufficientData
	}
	res := &BandsResult{Upper: nanSeries(len(data)), Middle: nanSeries(len(data)), Lower: nanSeries(len(data))}
	for i := period; i < len(data); i++ {
		hi, lo := highestHigh(data[i-period:i]), lowestLow(data[i-period:i])
		res.Upper[i] = hi
		res.Lower[i] = lo
		res.Middle[i] = (hi + lo) / 2
	}
	return res, nil
}

// SuperTrend returns the trend line and direction (+1 up, -1 down)
func SuperTrend(data []types.OHLCV, period int, multiplier float64) (line []float64, dir []int, err error) {
	atr, err := ATR(data, period)
	if err != nil {
		return nil, nil, err
	}
	line = nanSeries(len(data))
	dir = make([]int, len(data))
	var finalUpper, finalLower float64
	for i := period; i < len(data); i++ {
		hl2 := (data[i].High + data[i].Low) / 2
		basicUpper := hl2 + multiplier*atr[i]
		basicLower := hl2 - multiplier*atr[i]
		if i == period {
			finalUpper, finalLower = basicUpper, basicLower
			dir[i] = 1
			line[i] = finalLower
			continue
		}
		prevClose := data[i-1].Close
		if basicUpper < finalUpper || prevClose > finalUpper {
			finalUpper = basicUpper
		}
		if basicLower > finalLower || prevClose < finalLower {
			finalLower = basicLower
		}
		switch {
		case dir[i-1] == 1 && data[i].Close < finalLower:
			dir[i] = -1
		case dir[i-1] == -1 && data[i].Close > finalUpper:
			dir[i] = 1
		default:
			dir[i] = dir[i-1]
		}
		if dir[i] == 1 {
			line[i] = finalLower
		} else {
			line[i] = finalUpper
		}
	}
	return line, dir, nil
}
