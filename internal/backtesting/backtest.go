package backtesting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forexbot/internal/domain"
	"forexbot/internal/ports"
	"forexbot/internal/risk"
)

// Close reasons recorded on a Trade.
const (
	ReasonStopLoss   = "stop_loss"
	ReasonTakeProfit = "take_profit"
	ReasonEndOfData  = "end_of_data"
)

// Config holds configuration for backtesting
type Config struct {
	Symbol         string
	InitialBalance float64
	Spread         float64 // Ask minus bid in price units; bars are bid prices
	Info           domain.SymbolInfo
	Risk           risk.Config
}

// Trade is one simulated position from entry to exit.
type Trade struct {
	Direction  domain.Direction
	Volume     float64
	EntryPrice float64
	ExitPrice  float64
	StopLoss   float64
	TakeProfit float64
	EntryTime  time.Time
	ExitTime   time.Time
	Profit     float64
	Reason     string
}

// Backtest replays bars through the strategy, the position sizing and the daily loss
// circuit breaker, using each bar's time as the clock. Entries fill at the bar close.
// Open positions exit when a later bar's range crosses the stop or the target; when a
// bar touches both, the stop wins. Positions still open after the last bar are closed
// at its close.
func Backtest(ctx context.Context, strategy ports.Strategy, bars []*domain.Bar, config Config) (*Result, error) {
	if config.InitialBalance <= 0 {
		return nil, fmt.Errorf("initial balance must be positive: %w", ports.ErrInvalidRequest)
	}
	if len(bars) < strategy.RequiredDataPoints() {
		return nil, fmt.Errorf("%d bars, strategy needs %d: %w", len(bars), strategy.RequiredDataPoints(), ports.ErrInsufficientData)
	}

	manager, err := risk.NewManager(config.Risk, bars[0].Time)
	if err != nil {
		return nil, fmt.Errorf("invalid risk configuration: %w", err)
	}

	balance := config.InitialBalance
	var open, closed []*Trade
	var deals []*domain.Deal
	limitSkips := 0

	closeTrade := func(t *Trade, exit float64, reason string, at time.Time) {
		t.ExitPrice = exit
		t.ExitTime = at
		t.Reason = reason
		t.Profit = risk.Profit(t.Direction, t.EntryPrice, exit, t.Volume, &config.Info)
		balance += t.Profit
		closed = append(closed, t)
		deals = append(deals, &domain.Deal{
			Symbol: config.Symbol,
			Type:   dealType(t.Direction),
			Magic:  config.Risk.Magic,
			Volume: t.Volume,
			Price:  exit,
			Profit: t.Profit,
			Time:   at,
		})
	}

	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := bar.Time

		remaining := open[:0]
		for _, t := range open {
			if exit, reason, ok := exitOnBar(t, bar, config.Spread); ok {
				closeTrade(t, exit, reason, now)
			} else {
				remaining = append(remaining, t)
			}
		}
		open = remaining

		_, limitReached := manager.CheckSession(now)
		if limitReached {
			limitSkips++
		} else if i+1 >= strategy.RequiredDataPoints() {
			t, err := enter(ctx, strategy, manager, bars[:i+1], balance, config)
			if err != nil {
				return nil, err
			}
			if t != nil {
				open = append(open, t)
			}
		}

		manager.RecomputeDailyLoss(dealsSince(deals, risk.StartOfDay(now)))
	}

	last := bars[len(bars)-1]
	for _, t := range open {
		exit := last.Close
		if t.Direction == domain.Sell {
			exit += config.Spread
		}
		closeTrade(t, exit, ReasonEndOfData, last.Time)
	}

	result := AnalyzePerformance(closed, config.InitialBalance)
	result.LimitSkips = limitSkips
	return result, nil
}

// enter evaluates the strategy on history and opens a position when it signals.
func enter(ctx context.Context, strategy ports.Strategy, manager *risk.Manager, history []*domain.Bar, balance float64, config Config) (*Trade, error) {
	snap, err := strategy.Evaluate(ctx, history)
	if errors.Is(err, ports.ErrInsufficientData) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	direction, ok := snap.Signal.Direction()
	if !ok {
		return nil, nil
	}

	bar := history[len(history)-1]
	lot, err := manager.PositionSize(balance, &config.Info)
	if err != nil {
		return nil, fmt.Errorf("failed to size position: %w", err)
	}
	tick := &domain.Tick{Time: bar.Time, Bid: bar.Close, Ask: bar.Close + config.Spread}
	req, err := manager.BuildOrder(config.Symbol, direction, lot, tick, &config.Info)
	if err != nil {
		return nil, err
	}
	return &Trade{
		Direction:  direction,
		Volume:     req.Volume,
		EntryPrice: req.Price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		EntryTime:  bar.Time,
	}, nil
}

// exitOnBar reports whether bar crossed t's stop or target. Buys exit on the bid, sells on the ask.
func exitOnBar(t *Trade, bar *domain.Bar, spread float64) (float64, string, bool) {
	if t.Direction == domain.Buy {
		switch {
		case bar.Low <= t.StopLoss:
			return t.StopLoss, ReasonStopLoss, true
		case bar.High >= t.TakeProfit:
			return t.TakeProfit, ReasonTakeProfit, true
		}
		return 0, "", false
	}
	switch {
	case bar.High+spread >= t.StopLoss:
		return t.StopLoss, ReasonStopLoss, true
	case bar.Low+spread <= t.TakeProfit:
		return t.TakeProfit, ReasonTakeProfit, true
	}
	return 0, "", false
}

func dealType(d domain.Direction) domain.DealType {
	if d == domain.Sell {
		return domain.DealSell
	}
	return domain.DealBuy
}

func dealsSince(deals []*domain.Deal, from time.Time) []*domain.Deal {
	var out []*domain.Deal
	for _, d := range deals {
		if !d.Time.Before(from) {
			out = append(out, d)
		}
	}
	return out
}
