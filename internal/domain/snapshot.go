package domain

import "time"

// IndicatorSnapshot holds the latest bar's close and indicator values together with
// the entry decision taken on them.
type IndicatorSnapshot struct {
	BarTime time.Time
	Close   float64
	SMA     float64
	RSI     float64
	Signal  Signal
}
