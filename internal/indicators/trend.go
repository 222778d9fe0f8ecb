package indicators

import (
	"math"

	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// ADXResult holds ADX with its directional indicators
type ADXResult struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// ADX computes Wilder's average directional index
func ADX(data []types.OHLCV, period int) (*ADXResult, error) {
	if period <= 0 || len(data) < 2*period+1 {
		return nil, ErrInsufficientData
	}
	n := len(data)
	tr := TrueRange(data)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := data[i].High - data[i-1].High
		down := data[i-1].Low - data[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	res := &ADXResult{ADX: nanSeries(n), PlusDI: nanSeries(n), MinusDI: nanSeries(n)}
	var trS, pS, mS float64
	for i := 1; i <= period; i++ {
		trS += tr[i]
		pS += plusDM[i]
		mS += minusDM[i]
	}
	dx := nanSeries(n)
	for i := period; i < n; i++ {
		if i > period {
			trS = trS - trS/float64(period) + tr[i]
			pS = pS - pS/float64(period) + plusDM[i]
			mS = mS - mS/float64(period) + minusDM[i]
		}
		if trS == 0 {
			res.PlusDI[i], res.MinusDI[i], dx[i] = 0, 0, 0
			continue
		}
		pdi := 100 * pS / trS
		mdi := 100 * mS / trS
		res.PlusDI[i], res.MinusDI[i] = pdi, mdi
		if pdi+mdi == 0 {
			dx[i] = 0
		} else {
			dx[i] = 100 * math.Abs(pdi-mdi) / (pdi + mdi)
		}
	}

	sum := 0.0
	for i := period; i < 2*period; i++ {
		sum += dx[i]
	}
	prev := sum / float64(period)
	res.ADX[2*period-1] = prev
	for i := 2 * period; i < n; i++ {
		prev = (prev*float64(period-1) + dx[i]) / float64(period)
		res.ADX[i] = prev
	}
	return res, nil
}

// Aroon returns Aroon up and down in [0, 100]
func Aroon(data []types.OHLCV, period int) (up, down []float64, err error) {
	if len(data) <= period {
		return nil, nil, ErrInsufficientData
	}
	up, down = nanSeries(len(data)), nanSeries(len(data))
	for i := period; i < len(data); i++ {
		hiIdx, loIdx := i-period, i-period
		for j := i - period; j <= i; j++ {
			if data[j].High >= data[hiIdx].High {
				hiIdx = j
			}
			if data[j].Low <= data[loIdx].Low {
				loIdx = j
			}
		}
		up[i] = float64(period-(i-hiIdx)) / float64(period) * 100
		down[i] = float64(period-(i-loIdx)) / float64(period) * 100
	}
	return up, down, nil
}

// Slope returns the relative change of a series over lookback bars
func Slope(series []float64, lookback int) float64 {
	last, prev := Last(series), LastN(series, lookback)
	if math.IsNaN(last) || math.IsNaN(prev) || prev == 0 {
		return 0
	}
	return (last - prev) / prev
}

// OBV computes on-balance volume
func OBV(data []types.OHLCV) ([]float64, error) {
	if len(data) < 2 {
		return nil, ErrInsufficientData
	}
	out := make([]float64, len(data))
	for i := 1; i < len(data); i++ {
		switch {
		case data[i].Close > data[i-1].Close:
			out[i] = out[i-1] + data[i].Volume
		case data[i].Close < data[i-1].Close:
			out[i] = out[i-1] - data[i].Volume
		default:
			out[i] = out[i-1]
		}
	}
	return out, nil
}

// RollingVWAP computes a volume-weighted average price over the last period bars
func RollingVWAP(data []types.OHLCV, period int) ([]float64, error) {
	if len(data) < period {
		return nil, ErrInsufficientData
	}
	out := nanSeries(len(data))
	for i := period - 1; i < len(data); i++ {
		pv, vol := 0.0, 0.0
		for j := i - period + 1; j <= i; j++ {
			tp := (data[j].High + data[j].Low + data[j].Close) / 3
			pv += tp * data[j].Volume
			vol += data[j].Volume
		}
		if vol == 0 {
			continue
		}
		out[i] = pv / vol
	}
	return out, nil
}

// Midpoint returns (highest high + lowest low)/2 over the last period bars, as used by Ichimoku lines
func Midpoint(data []types.OHLCV, period int) ([]float64, error) {
	if len(data) < period {
		return nil, ErrInsufficientData
	}
	out := nanSeries(len(data))
	for i := period - 1; i < len(data); i++ {
		out[i] = (highestHigh(data[i-period+1:i+1]) + lowestLow(data[i-period+1:i+1])) / 2
	}
	return out, nil
}
