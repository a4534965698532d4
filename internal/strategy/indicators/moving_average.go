package indicators

import (
	"context"
	"fmt"

	"github.com/markcheno/go-talib"

	"forexbot/internal/domain"
	"forexbot/internal/ports"
)

// SMA implements the simple moving average of closes.
type SMA struct {
	BaseIndicator
}

var _ Indicator = (*SMA)(nil)

// NewSMA creates a new simple moving average indicator instance
func NewSMA(config IndicatorConfig) *SMA {
	return &SMA{BaseIndicator: BaseIndicator{Config: config}}
}

// Name returns the name of the indicator
func (m *SMA) Name() string {
	return "SMA"
}

// Calculate computes the moving average of the latest bar
func (m *SMA) Calculate(ctx context.Context, bars []*domain.Bar) (float64, error) {
	v, ok := Latest(SMASeries(domain.Closes(bars), m.Config.Period))
	if !ok {
		return 0, fmt.Errorf("SMA(%d) over %d bars: %w", m.Config.Period, len(bars), ports.ErrInsufficientData)
	}
	return v, nil
}

// SMASeries computes the simple moving average of closes at every index.
// Indices before period-1 are not valid.
func SMASeries(closes []float64, period int) []Value {
	if period <= 0 || len(closes) < period {
		return make([]Value, len(closes))
	}
	raw := talib.Sma(closes, period)

	// talib zero-fills its lookback prefix.
	out := make([]Value, len(raw))
	for i := period - 1; i < len(raw); i++ {
		out[i] = Value{Value: raw[i], Valid: true}
	}
	return out
}
