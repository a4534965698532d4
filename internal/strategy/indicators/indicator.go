package indicators

import (
	"context"

	"forexbot/internal/domain"
)

// Indicator represents a technical indicator that can be calculated from price data
type Indicator interface {
	// Calculate computes the indicator value for the latest bar
	Calculate(ctx context.Context, bars []*domain.Bar) (float64, error)

	// RequiredDataPoints returns the minimum number of bars needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of bars needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

// Value is one point of an indicator series. Valid is false until enough data exists,
// so an absent value is never mistaken for a stale prior one.
type Value struct {
	Value float64
	Valid bool
}

// Latest returns the last point of a series.
func Latest(series []Value) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	last := series[len(series)-1]
	return last.Value, last.Valid
}
