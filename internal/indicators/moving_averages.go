// Package indicators holds pure technical-analysis series functions.
// Every function takes a full window and returns a series aligned to it;
// leading values that cannot be computed are NaN.
package indicators

import (
	"errors"
	"math"
)

// ErrInsufficientData is returned when a window is shorter than an indicator needs
var ErrInsufficientData = errors.New("insufficient data for indicator calculation")

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Last returns the final value of a series, or NaN when empty
func Last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// LastN returns the value n steps back from the end (0 = last)
func LastN(series []float64, n int) float64 {
	idx := len(series) - 1 - n
	if idx < 0 {
		return math.NaN()
	}
	return series[idx]
}

// SMA computes the simple moving average
func SMA(values []float64, period int) ([]float64, error) {
	if period <= 0 || len(values) < period {
		return nil, ErrInsufficientData
	}
	out := nanSeries(len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out, nil
}

// EMA computes the exponential moving average seeded with the SMA of the first period values
func EMA(values []float64, period int) ([]float64, error) {
	if period <= 0 || len(values) < period {
		return nil, ErrInsufficientData
	}
	out := nanSeries(len(values))
	alpha := 2.0 / float64(period+1)

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	prev := sum / float64(period)
	out[period-1] = prev
	for i := period; i < len(values); i++ {
		prev = values[i]*alpha + prev*(1-alpha)
		out[i] = prev
	}
	return out, nil
}

// emaSkipNaN runs an EMA over a series that starts with NaN padding
func emaSkipNaN(values []float64, period int) ([]float64, error) {
	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	tail, err := EMA(values[start:], period)
	if err != nil {
		return nil, err
	}
	out := nanSeries(len(values))
	copy(out[start:], tail)
	return out, nil
}

// WMA computes the linearly weighted moving average
func WMA(values []float64, period int) ([]float64, error) {
	if period <= 0 || len(values) < period {
		return nil, ErrInsufficientData
	}
	out := nanSeries(len(values))
	denom := float64(period*(period+1)) / 2
	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		for j := 0; j < period; j++ {
			sum += values[i-period+1+j] * float64(j+1)
		}
		out[i] = sum / denom
	}
	return out, nil
}

// HullMA computes the Hull moving average: WMA(2*WMA(n/2) - WMA(n), sqrt(n))
func HullMA(values []float64, period int) ([]float64, error) {
	half := period / 2
	sqrtP := int(math.Round(math.Sqrt(float64(period))))
	if half < 1 || sqrtP < 1 || len(values) < period+sqrtP {
		return nil, ErrInsufficientData
	}
	wHalf, err := WMA(values, half)
	if err != nil {
		return nil, err
	}
	wFull, err := WMA(values, period)
	if err != nil {
		return nil, err
	}
	diff := make([]float64, 0, len(values)-period+1)
	for i := period - 1; i < len(values); i++ {
		diff = append(diff, 2*wHalf[i]-wFull[i])
	}
	hull, err := WMA(diff, sqrtP)
	if err != nil {
		return nil, err
	}
	out := nanSeries(len(values))
	copy(out[period-1:], hull)
	return out, nil
}
