package indicators

import (
	"context"
	"fmt"

	"forexbot/internal/domain"
	"forexbot/internal/ports"
)

// RSIConfig holds configuration for the RSI indicator
type RSIConfig struct {
	IndicatorConfig
	Overbought float64
	Oversold   float64
}

// RSI implements the Relative Strength Index indicator
type RSI struct {
	BaseIndicator
	config RSIConfig
}

var _ Indicator = (*RSI)(nil)

// NewRSI creates a new RSI indicator instance
func NewRSI(config RSIConfig) *RSI {
	return &RSI{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (r *RSI) Name() string {
	return "RSI"
}

// RequiredDataPoints returns period+1: period price changes need one extra bar.
func (r *RSI) RequiredDataPoints() int {
	return r.Config.Period + 1
}

// Calculate computes the RSI of the latest bar
func (r *RSI) Calculate(ctx context.Context, bars []*domain.Bar) (float64, error) {
	v, ok := Latest(RSISeries(domain.Closes(bars), r.Config.Period))
	if !ok {
		return 0, fmt.Errorf("RSI(%d) over %d bars: %w", r.Config.Period, len(bars), ports.ErrInsufficientData)
	}
	return v, nil
}

// IsOverbought reports whether value is strictly above the overbought threshold
func (r *RSI) IsOverbought(value float64) bool {
	return value > r.config.Overbought
}

// IsOversold reports whether value is strictly below the oversold threshold
func (r *RSI) IsOversold(value float64) bool {
	return value < r.config.Oversold
}

// RSISeries computes the trailing-average RSI at every index.
//
// For each index i >= period, gain is the mean of the positive price changes among the
// last period changes and loss the mean magnitude of the negative ones. A zero loss
// saturates the RSI to 100, the flat case included. Indices before period are not valid.
func RSISeries(closes []float64, period int) []Value {
	out := make([]Value, len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	// changes[i] is closes[i] - closes[i-1]; changes[0] is unused.
	changes := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		changes[i] = closes[i] - closes[i-1]
	}

	for i := period; i < len(closes); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			if changes[j] > 0 {
				gain += changes[j]
			} else {
				loss -= changes[j]
			}
		}
		gain /= float64(period)
		loss /= float64(period)
		out[i] = Value{Value: rsiFromAverages(gain, loss), Valid: true}
	}
	return out
}

func rsiFromAverages(gain, loss float64) float64 {
	if loss == 0 {
		return 100
	}
	rs := gain / loss
	rsi := 100 - (100 / (1 + rs))

	// Ensure RSI is within bounds
	if rsi > 100 {
		rsi = 100
	} else if rsi < 0 {
		rsi = 0
	}
	return rsi
}
