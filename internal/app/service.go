package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forexbot/config"
	"forexbot/internal/domain"
	"forexbot/internal/metrics"
	"forexbot/internal/ports"
	"forexbot/internal/risk"
)

// Outcome classifies how one loop iteration ended.
type Outcome string

const (
	OutcomeLimitReached     Outcome = "limit_reached"
	OutcomeInsufficientData Outcome = "insufficient_data"
	OutcomeNoSignal         Outcome = "no_signal"
	OutcomeOrderPlaced      Outcome = "order_placed"
	OutcomeOrderRejected    Outcome = "order_rejected"
	OutcomeOrderFailed      Outcome = "order_failed"
)

// IterationResult records what one iteration observed and did.
type IterationResult struct {
	Time              time.Time
	Reset             bool
	Outcome           Outcome
	Balance           float64
	Snapshot          *domain.IndicatorSnapshot
	Lot               float64
	Request           *domain.TradeRequest
	Result            *domain.OrderResult
	DailyRealizedLoss float64
}

// TradingService runs the polling loop: reset check, loss-limit check, fetch, decide,
// size, execute, recompute the daily loss, sleep.
type TradingService struct {
	cfg      *config.Config
	logger   ports.Logger
	terminal ports.BrokerTerminal
	strategy ports.Strategy
	risk     *risk.Manager
	journal  ports.OrderJournal
	now      func() time.Time
}

// NewTradingService creates a new application service instance.
func NewTradingService(
	cfg *config.Config,
	logger ports.Logger,
	terminal ports.BrokerTerminal,
	strat ports.Strategy,
	journal ports.OrderJournal,
) (*TradingService, error) {
	if cfg == nil || logger == nil || terminal == nil || strat == nil || journal == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	if cfg.LoopInterval <= 0 {
		return nil, fmt.Errorf("configuration LoopInterval must be positive")
	}
	if cfg.CallTimeout <= 0 {
		return nil, fmt.Errorf("configuration CallTimeout must be positive")
	}
	if cfg.BarCount < strat.RequiredDataPoints() {
		return nil, fmt.Errorf("configuration BarCount %d is below the strategy requirement %d", cfg.BarCount, strat.RequiredDataPoints())
	}

	riskMgr, err := risk.NewManager(cfg.RiskConfig(), time.Now())
	if err != nil {
		return nil, fmt.Errorf("invalid risk configuration: %w", err)
	}

	return &TradingService{
		cfg:      cfg,
		logger:   logger,
		terminal: terminal,
		strategy: strat,
		risk:     riskMgr,
		journal:  journal,
		now:      time.Now,
	}, nil
}

// State returns a copy of the session state.
func (s *TradingService) State() risk.SessionState {
	return s.risk.State()
}

// Start connects, selects the symbol and runs iterations until the context is cancelled,
// a signal arrives or an iteration fails fatally. The terminal is always disconnected.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...", map[string]interface{}{"symbol": s.cfg.Symbol})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	// --- Initialization Steps ---
	callCtx, callCancel := s.callContext(ctx)
	err := s.terminal.Connect(callCtx)
	callCancel()
	if err != nil {
		s.logger.Error(ctx, err, "Terminal initialization failed")
		return fmt.Errorf("failed to connect terminal: %w", err)
	}
	defer s.disconnect()

	callCtx, callCancel = s.callContext(ctx)
	err = s.terminal.SelectSymbol(callCtx, s.cfg.Symbol)
	callCancel()
	if err != nil {
		s.logger.Error(ctx, err, "Failed to select symbol", map[string]interface{}{"symbol": s.cfg.Symbol})
		return fmt.Errorf("failed to select symbol %s: %w", s.cfg.Symbol, err)
	}

	s.logger.Info(ctx, "Starting live trading loop", map[string]interface{}{
		"symbol":   s.cfg.Symbol,
		"interval": s.cfg.LoopInterval.String(),
	})

	// --- Main Loop ---
	for {
		if _, err := s.RunIteration(ctx, s.now()); err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Error(ctx, err, "Fatal iteration error, shutting down")
			return err
		}
		if !sleep(ctx, s.cfg.LoopInterval) {
			break
		}
	}

	s.logger.Info(ctx, "Trading Service stopped.")
	return nil
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *TradingService) disconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CallTimeout)
	defer cancel()
	if err := s.terminal.Disconnect(ctx); err != nil {
		s.logger.Error(ctx, err, "Failed to disconnect terminal")
	}
}

// callContext bounds one terminal call by the configured timeout.
func (s *TradingService) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.CallTimeout)
}

// RunIteration performs one pass of the loop at time now. A returned error is fatal: the
// account, market data, symbol metadata or quote could not be fetched. Everything else is
// reported through the IterationResult.
func (s *TradingService) RunIteration(ctx context.Context, now time.Time) (*IterationResult, error) {
	res := &IterationResult{Time: now}

	reset, limitReached := s.risk.CheckSession(now)
	res.Reset = reset
	if reset {
		s.logger.Info(ctx, "Daily loss reset", map[string]interface{}{"date": risk.StartOfDay(now).Format("2006-01-02")})
	}

	if limitReached {
		s.logger.Warn(ctx, "Max daily loss reached. Skipping trade.", map[string]interface{}{
			"dailyMaxLoss":      s.cfg.DailyMaxLoss,
			"dailyRealizedLoss": s.risk.State().DailyRealizedLoss,
		})
		res.Outcome = OutcomeLimitReached
	} else if err := s.trade(ctx, res); err != nil {
		metrics.IterationsTotal.WithLabelValues("fatal").Inc()
		return nil, err
	}

	res.DailyRealizedLoss = s.recomputeDailyLoss(ctx, now)
	metrics.IterationsTotal.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

// trade runs the fetch, decide, size and execute steps.
func (s *TradingService) trade(ctx context.Context, res *IterationResult) error {
	op := "trade"

	callCtx, cancel := s.callContext(ctx)
	account, err := s.terminal.AccountInfo(callCtx)
	cancel()
	if err != nil {
		s.logger.Error(ctx, err, op+": Failed to get account info")
		return fmt.Errorf("failed to get account info: %w", err)
	}
	res.Balance = account.Balance
	metrics.AccountBalance.Set(account.Balance)

	callCtx, cancel = s.callContext(ctx)
	bars, err := s.terminal.PriceHistory(callCtx, s.cfg.Symbol, s.cfg.Timeframe, s.cfg.BarCount)
	cancel()
	if err != nil {
		s.logger.Error(ctx, err, op+": Failed to get market data")
		return fmt.Errorf("failed to get market data: %w", err)
	}

	snap, err := s.strategy.Evaluate(ctx, bars)
	if err != nil && !errors.Is(err, ports.ErrInsufficientData) {
		return fmt.Errorf("failed to evaluate strategy: %w", err)
	}
	res.Snapshot = snap

	callCtx, cancel = s.callContext(ctx)
	info, err := s.terminal.SymbolInfo(callCtx, s.cfg.Symbol)
	cancel()
	if err != nil {
		s.logger.Error(ctx, err, op+": Failed to get symbol info")
		return fmt.Errorf("failed to get symbol info: %w", err)
	}
	callCtx, cancel = s.callContext(ctx)
	tick, err := s.terminal.LatestTick(callCtx, s.cfg.Symbol)
	cancel()
	if err != nil {
		s.logger.Error(ctx, err, op+": Failed to get tick")
		return fmt.Errorf("failed to get tick: %w", err)
	}

	lot, err := s.risk.PositionSize(account.Balance, info)
	if err != nil {
		s.logger.Error(ctx, err, op+": Unusable symbol metadata for sizing", map[string]interface{}{
			"tickSize":  info.TickSize,
			"tickValue": info.TickValue,
		})
		return fmt.Errorf("failed to size position: %w", err)
	}
	res.Lot = lot

	if snap == nil {
		s.logger.Info(ctx, "Not enough bars for indicators. No trade.", map[string]interface{}{
			"bars":     len(bars),
			"required": s.strategy.RequiredDataPoints(),
		})
		res.Outcome = OutcomeInsufficientData
		return nil
	}

	direction, ok := snap.Signal.Direction()
	if !ok {
		s.logger.Info(ctx, "No trade conditions met.", map[string]interface{}{
			"close": snap.Close,
			"sma":   snap.SMA,
			"rsi":   snap.RSI,
		})
		res.Outcome = OutcomeNoSignal
		return nil
	}

	s.execute(ctx, res, direction, lot, tick, info)
	return nil
}

// execute builds and submits the order once. Failures here are logged, never fatal.
func (s *TradingService) execute(ctx context.Context, res *IterationResult, direction domain.Direction, lot float64, tick *domain.Tick, info *domain.SymbolInfo) {
	op := "execute"

	req, err := s.risk.BuildOrder(s.cfg.Symbol, direction, lot, tick, info)
	if err != nil {
		s.logger.Error(ctx, err, op+": Failed to build trade request")
		res.Outcome = OutcomeOrderFailed
		return
	}
	res.Request = req

	callCtx, cancel := s.callContext(ctx)
	result, err := s.terminal.SubmitOrder(callCtx, req)
	cancel()

	entry := &ports.JournalEntry{Time: s.now(), Request: *req}
	fields := map[string]interface{}{
		"direction":  req.Direction,
		"volume":     req.Volume,
		"price":      req.Price,
		"stopLoss":   req.StopLoss,
		"takeProfit": req.TakeProfit,
	}
	switch {
	case err != nil:
		entry.Err = err.Error()
		res.Outcome = OutcomeOrderFailed
		s.logger.Error(ctx, err, "Trade failed: order submission error", fields)
		metrics.OrdersTotal.WithLabelValues(string(req.Direction), "ERROR").Inc()
	case !result.Succeeded():
		entry.Result = *result
		res.Result = result
		res.Outcome = OutcomeOrderRejected
		fields["code"] = result.Code
		fields["message"] = result.Message
		s.logger.Warn(ctx, "Trade failed", fields)
		metrics.OrdersTotal.WithLabelValues(string(req.Direction), result.Code).Inc()
	default:
		entry.Result = *result
		res.Result = result
		res.Outcome = OutcomeOrderPlaced
		fields["ticket"] = result.Ticket
		s.logger.Info(ctx, "Trade placed", fields)
		metrics.OrdersTotal.WithLabelValues(string(req.Direction), result.Code).Inc()
	}

	if err := s.journal.RecordOrder(ctx, entry); err != nil {
		s.logger.Error(ctx, err, op+": Failed to journal order")
	}
}

// recomputeDailyLoss replaces the accumulator with the tagged losses closed since local
// midnight. When the deals cannot be fetched the previous value is kept.
func (s *TradingService) recomputeDailyLoss(ctx context.Context, now time.Time) float64 {
	callCtx, cancel := s.callContext(ctx)
	deals, err := s.terminal.ClosedDeals(callCtx, risk.StartOfDay(now), now)
	cancel()

	var loss float64
	if err != nil {
		loss = s.risk.State().DailyRealizedLoss
		s.logger.Error(ctx, err, "Failed to fetch closed deals, keeping previous daily loss", map[string]interface{}{
			"dailyRealizedLoss": loss,
		})
	} else {
		loss = s.risk.RecomputeDailyLoss(deals)
	}

	s.logger.Info(ctx, "Current daily loss", map[string]interface{}{
		"dailyRealizedLoss": math.Round(loss*100) / 100,
		"dailyMaxLoss":      s.cfg.DailyMaxLoss,
	})
	metrics.DailyRealizedLoss.Set(loss)
	return loss
}
