package domain

import "time"

// Bar represents a single OHLC price bar.
type Bar struct {
	Time   time.Time // Open time of the bar
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64 // Tick volume, 0 when the terminal does not report it
}

// Tick is the latest quote for a symbol.
type Tick struct {
	Time time.Time
	Bid  float64
	Ask  float64
}

// Closes extracts the close prices of bars, preserving order.
func Closes(bars []*Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
