package indicators

import (
	"math"

	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// RSI computes Wilder's relative strength index
func RSI(values []float64, period int) ([]float64, error) {
	if period <= 0 || len(values) <= period {
		return nil, ErrInsufficientData
	}
	out := nanSeries(len(values))

	gain, loss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		g, l := 0.0, 0.0
		if change > 0 {
			g = change
		} else {
			l = -change
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDResult holds the MACD line, signal line and histogram
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes moving average convergence/divergence
func MACD(values []float64, fast, slow, signal int) (*MACDResult, error) {
	if fast >= slow || len(values) < slow+signal {
		return nil, ErrInsufficientData
	}
	fastEMA, err := EMA(values, fast)
	if err != nil {
		return nil, err
	}
	slowEMA, err := EMA(values, slow)
	if err != nil {
		return nil, err
	}
	line := nanSeries(len(values))
	for i := slow - 1; i < len(values); i++ {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig, err := emaSkipNaN(line, signal)
	if err != nil {
		return nil, err
	}
	hist := nanSeries(len(values))
	for i := range values {
		if !math.IsNaN(line[i]) && !math.IsNaN(sig[i]) {
			hist[i] = line[i] - sig[i]
		}
	}
	return &MACDResult{MACD: line, Signal: sig, Histogram: hist}, nil
}

// Stochastic computes %K (smoothed by smoothK) and %D
func Stochastic(data []types.OHLCV, kPeriod, smoothK, dPeriod int) (k, d []float64, err error) {
	if len(data) < kPeriod+smoothK+dPeriod {
		return nil, nil, ErrInsufficientData
	}
	raw := nanSeries(len(data))
	for i := kPeriod - 1; i < len(data); i++ {
		hi, lo := highestHigh(data[i-kPeriod+1:i+1]), lowestLow(data[i-kPeriod+1:i+1])
		if hi == lo {
			raw[i] = 50
			continue
		}
		raw[i] = (data[i].Close - lo) / (hi - lo) * 100
	}
	k, err = smaSkipNaN(raw, smoothK)
	if err != nil {
		return nil, nil, err
	}
	d, err = smaSkipNaN(k, dPeriod)
	if err != nil {
		return nil, nil, err
	}
	return k, d, nil
}

func smaSkipNaN(values []float64, period int) ([]float64, error) {
	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	tail, err := SMA(values[start:], period)
	if err != nil {
		return nil, err
	}
	out := nanSeries(len(values))
	copy(out[start:], tail)
	return out, nil
}

// StochRSI applies the stochastic formula to RSI values
func StochRSI(values []float64, rsiPeriod, stochPeriod int) ([]float64, error) {
	rsi, err := RSI(values, rsiPeriod)
	if err != nil {
		return nil, err
	}
	if len(values) < rsiPeriod+stochPeriod+1 {
		return nil, ErrInsufficientData
	}
	out := nanSeries(len(values))
	for i := rsiPeriod + stochPeriod - 1; i < len(values); i++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for j := i - stochPeriod + 1; j <= i; j++ {
			lo = math.Min(lo, rsi[j])
			hi = math.Max(hi, rsi[j])
		}
		if hi == lo {
			out[i] = 50
			continue
		}
		out[i] = (rsi[i] - lo) / (hi - lo) * 100
	}
	return out, nil
}

// WilliamsR computes Williams %R in [-100, 0]
func WilliamsR(data []types.OHLCV, period int) ([]float64, error) {
	if len(data) < period {
		return nil, ErrInsufficientData
	}
	out := nanSeries(len(data))
	for i := period - 1; i < len(data); i++ {
		hi, lo := highestHigh(data[i-period+1:i+1]), lowestLow(data[i-period+1:i+1])
		if hi == lo {
			out[i] = -50
			continue
		}
		out[i] = (hi - data[i].Close) / (hi - lo) * -100
	}
	return out, nil
}

// CCI computes the commodity channel index
func CCI(data []types.OHLCV, period int) ([]float64, error) {
	if len(data) < period {
		return nil, ErrInsufficientData
	}
	tp := make([]float64, len(data))
	for i, c := range data {
		tp[i] = (c.High + c.Low + c.Close) / 3
	}
	out := nanSeries(len(data))
	for i := period - 1; i < len(data); i++ {
		window := tp[i-period+1 : i+1]
		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)
		dev := 0.0
		for _, v := range window {
			dev += math.Abs(v - mean)
		}
		dev /= float64(period)
		if dev == 0 {
			out[i] = 0
			continue
		}
		out[i] = (tp[i] - mean) / (0.015 * dev)
	}
	return out, nil
}

// MFI computes the money flow index
func MFI(data []types.OHLCV, period int) ([]float64, error) {
	if len(data) <= period {
		return nil, ErrInsufficientData
	}
	tp := make([]float64, len(data))
	for i, c := range data {
		tp[i] = (c.High + c.Low + c.Close) / 3
	}
	out := nanSeries(len(data))
	for i := period; i < len(data); i++ {
		pos, neg := 0.0, 0.0
		for j := i - period + 1; j <= i; j++ {
			flow := tp[j] * data[j].Volume
			switch {
			case tp[j] > tp[j-1]:
				pos += flow
			case tp[j] < tp[j-1]:
				neg += flow
			}
		}
		switch {
		case neg == 0 && pos == 0:
			out[i] = 50
		case neg == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+pos/neg)
		}
	}
	return out, nil
}

// ROC computes the rate of change in percent
func ROC(values []float64, period int) ([]float64, error) {
	if len(values) <= period {
		return nil, ErrInsufficientData
	}
	out := nanSeries(len(values))
	for i := period; i < len(values); i++ {
		if values[i-period] == 0 {
			continue
		}
		out[i] = (values[i] - values[i-period]) / values[i-period] * 100
	}
	return out, nil
}

// Momentum computes the raw price difference over period
func Momentum(values []float64, period int) ([]float64, error) {
	if len(values) <= period {
		return nil, ErrInsufficientData
	}
	out := nanSeries(len(values))
	for i := period; i < len(values); i++ {
		out[i] = values[i] - values[i-period]
	}
	return out, nil
}

// TRIX computes the one-period percent change of a triple-smoothed EMA
func TRIX(values []float64, period int) ([]float64, error) {
	if len(values) < 3*period {
		return nil, ErrInsufficientData
	}
	e1, err := EMA(values, period)
	if err != nil {
		return nil, err
	}
	e2, err := emaSkipNaN(e1, period)
	if err != nil {
		return nil, err
	}
	e3, err := emaSkipNaN(e2, period)
	if err != nil {
		return nil, err
	}
	out := nanSeries(len(values))
	for i := 1; i < len(values); i++ {
		if math.IsNaN(e3[i]) || math.IsNaN(e3[i-1]) || e3[i-1] == 0 {
			continue
		}
		out[i] = (e3[i] - e3[i-1]) / e3[i-1] * 100
	}
	return out, nil
}
