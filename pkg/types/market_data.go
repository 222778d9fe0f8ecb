package types

import "time"

// OHLCV is a single candle. Windows are ordered oldest first.
type OHLCV struct {
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Ticker is the latest traded price for a symbol
type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// Direction is the directional call of a signal or decision
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// Opposite returns the opposing direction. NEUTRAL has no opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return DirectionNeutral
	}
}

// Side is the side of an open position or order
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// SideFor maps a tradeable direction onto a position side.
func SideFor(d Direction) (Side, bool) {
	switch d {
	case DirectionLong:
		return SideLong, true
	case DirectionShort:
		return SideShort, true
	default:
		return "", false
	}
}

// Closes extracts close prices from a window
func Closes(data []OHLCV) []float64 {
	out := make([]float64, len(data))
	for i, c := range data {
		out[i] = c.Close
	}
	return out
}

// LastClose returns the most recent close, or 0 for an empty window
func LastClose(data []OHLCV) float64 {
	if len(data) == 0 {
		return 0
	}
	return data[len(data)-1].Close
}
