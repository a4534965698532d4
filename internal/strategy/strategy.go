package strategy

import (
	"context"
	"fmt"

	"forexbot/internal/domain"
	"forexbot/internal/ports"
	"forexbot/internal/strategy/indicators"
)

// Config holds parameters for the trading strategy.
type Config struct {
	SMAPeriod     int     // e.g., 50
	RSIPeriod     int     // e.g., 14
	RSIOverbought float64 // e.g., 70.0
	RSIOversold   float64 // e.g., 30.0
}

// Strategy implements the SMA trend filter with RSI pullback entries:
// buy oversold dips above the average, sell overbought rallies below it.
type Strategy struct {
	cfg    Config
	trend  indicators.Indicator
	rsi    *indicators.RSI
	logger ports.Logger
}

// New creates a new Strategy instance.
func New(cfg Config, logger ports.Logger) (*Strategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if cfg.SMAPeriod <= 0 || cfg.RSIPeriod <= 0 {
		return nil, fmt.Errorf("strategy periods must be positive")
	}
	if cfg.RSIOversold >= cfg.RSIOverbought {
		return nil, fmt.Errorf("RSI oversold threshold must be below overbought threshold")
	}
	sma := indicators.NewSMA(indicators.IndicatorConfig{Period: cfg.SMAPeriod})
	rsi := indicators.NewRSI(indicators.RSIConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: cfg.RSIPeriod},
		Overbought:      cfg.RSIOverbought,
		Oversold:        cfg.RSIOversold,
	})
	return &Strategy{cfg: cfg, trend: sma, rsi: rsi, logger: logger}, nil
}

// RequiredDataPoints returns the minimum number of bars for both latest values to exist.
func (s *Strategy) RequiredDataPoints() int {
	if s.rsi.RequiredDataPoints() > s.trend.RequiredDataPoints() {
		return s.rsi.RequiredDataPoints()
	}
	return s.trend.RequiredDataPoints()
}

// Evaluate computes SMA and RSI over the whole window and decides on the latest bar only.
// It returns ports.ErrInsufficientData when either latest value is absent.
func (s *Strategy) Evaluate(ctx context.Context, bars []*domain.Bar) (*domain.IndicatorSnapshot, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars to evaluate: %w", ports.ErrInsufficientData)
	}
	sma, err := s.trend.Calculate(ctx, bars)
	if err != nil {
		return nil, err
	}
	rsi, err := s.rsi.Calculate(ctx, bars)
	if err != nil {
		return nil, err
	}

	last := bars[len(bars)-1]
	snap := &domain.IndicatorSnapshot{
		BarTime: last.Time,
		Close:   last.Close,
		SMA:     sma,
		RSI:     rsi,
	}
	snap.Signal = s.Decide(snap.Close, snap.SMA, snap.RSI)

	s.logger.Debug(ctx, "Indicators evaluated", map[string]interface{}{
		"barTime": snap.BarTime,
		"close":   snap.Close,
		"sma":     snap.SMA,
		"rsi":     snap.RSI,
		"signal":  snap.Signal,
	})
	return snap, nil
}

// Decide is the entry rule on one snapshot: BUY iff close > sma and rsi is below the
// oversold threshold, SELL iff close < sma and rsi is above the overbought threshold.
func (s *Strategy) Decide(close, sma, rsi float64) domain.Signal {
	// BUY is checked first and wins any tie.
	if close > sma && s.rsi.IsOversold(rsi) {
		return domain.SignalBuy
	}
	if close < sma && s.rsi.IsOverbought(rsi) {
		return domain.SignalSell
	}
	return domain.SignalNone
}
