package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forexbot/config"
	"forexbot/internal/domain"
	"forexbot/internal/ports"
	"forexbot/internal/risk"
)

// Mock implementations
type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockStrategy struct {
	snapshot *domain.IndicatorSnapshot
	err      error
	calls    int
}

func (m *mockStrategy) RequiredDataPoints() int {
	return 51
}

func (m *mockStrategy) Evaluate(ctx context.Context, bars []*domain.Bar) (*domain.IndicatorSnapshot, error) {
	m.calls++
	return m.snapshot, m.err
}

type mockTerminal struct {
	connectErr, selectErr                    error
	accountErr, historyErr, infoErr, tickErr error
	submitErr, dealsErr                      error

	balance float64
	info    domain.SymbolInfo
	tick    domain.Tick
	result  *domain.OrderResult
	deals   []*domain.Deal

	calls     map[string]int
	submitted []*domain.TradeRequest
	dealsFrom time.Time
	dealsTo   time.Time
}

func newMockTerminal() *mockTerminal {
	return &mockTerminal{
		balance: 10000,
		info:    domain.SymbolInfo{Symbol: "EUR_USD", Digits: 5, Point: 0.00001, TickSize: 0.1, TickValue: 1},
		tick:    domain.Tick{Bid: 1.10500, Ask: 1.10520},
		result:  &domain.OrderResult{Code: domain.ResultDone, Ticket: "6357", Price: 1.10520},
		calls:   make(map[string]int),
	}
}

func (m *mockTerminal) Connect(ctx context.Context) error {
	m.calls["Connect"]++
	return m.connectErr
}

func (m *mockTerminal) SelectSymbol(ctx context.Context, symbol string) error {
	m.calls["SelectSymbol"]++
	return m.selectErr
}

func (m *mockTerminal) AccountInfo(ctx context.Context) (*domain.Account, error) {
	m.calls["AccountInfo"]++
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("terminal call without deadline")
	}
	if m.accountErr != nil {
		return nil, m.accountErr
	}
	return &domain.Account{Balance: m.balance, Currency: "USD"}, nil
}

func (m *mockTerminal) PriceHistory(ctx context.Context, symbol, timeframe string, count int) ([]*domain.Bar, error) {
	m.calls["PriceHistory"]++
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	return make([]*domain.Bar, count), nil
}

func (m *mockTerminal) SymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	m.calls["SymbolInfo"]++
	if m.infoErr != nil {
		return nil, m.infoErr
	}
	info := m.info
	return &info, nil
}

func (m *mockTerminal) LatestTick(ctx context.Context, symbol string) (*domain.Tick, error) {
	m.calls["LatestTick"]++
	if m.tickErr != nil {
		return nil, m.tickErr
	}
	tick := m.tick
	return &tick, nil
}

func (m *mockTerminal) SubmitOrder(ctx context.Context, req *domain.TradeRequest) (*domain.OrderResult, error) {
	m.calls["SubmitOrder"]++
	m.submitted = append(m.submitted, req)
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return m.result, nil
}

func (m *mockTerminal) ClosedDeals(ctx context.Context, from, to time.Time) ([]*domain.Deal, error) {
	m.calls["ClosedDeals"]++
	m.dealsFrom, m.dealsTo = from, to
	if m.dealsErr != nil {
		return nil, m.dealsErr
	}
	return m.deals, nil
}

func (m *mockTerminal) Disconnect(ctx context.Context) error {
	m.calls["Disconnect"]++
	return nil
}

type mockJournal struct {
	entries []*ports.JournalEntry
	err     error
}

func (m *mockJournal) RecordOrder(ctx context.Context, entry *ports.JournalEntry) error {
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockJournal) RecentOrders(ctx context.Context, limit int) ([]*ports.JournalEntry, error) {
	return m.entries, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Symbol:          "EUR_USD",
		Timeframe:       "M5",
		BarCount:        100,
		StopLossPips:    5,
		TakeProfitPips:  10,
		RiskPercent:     1,
		MagicNumber:     123456,
		MinLot:          0.01,
		DeviationPoints: 5,
		OrderComment:    "Risk-Managed Algo Trade",
		LoopInterval:    5 * time.Millisecond,
		CallTimeout:     time.Second,
		DailyMaxLoss:    50,
		DailyResetHour:  0,
		Instrument:      config.Instrument{Symbol: "EUR_USD", PipFactor: 10, LotUnits: 100000},
	}
}

func buySnapshot() *domain.IndicatorSnapshot {
	return &domain.IndicatorSnapshot{Close: 1.1050, SMA: 1.1020, RSI: 25, Signal: domain.SignalBuy}
}

// testNow is mid-morning on a fixed day; the session is started on the same day.
var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.Local)

type fixture struct {
	svc      *TradingService
	terminal *mockTerminal
	strategy *mockStrategy
	journal  *mockJournal
	logger   *mockLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		terminal: newMockTerminal(),
		strategy: &mockStrategy{snapshot: &domain.IndicatorSnapshot{Close: 1.1, SMA: 1.1, RSI: 50, Signal: domain.SignalNone}},
		journal:  &mockJournal{},
		logger:   &mockLogger{},
	}
	svc, err := NewTradingService(testConfig(), f.logger, f.terminal, f.strategy, f.journal)
	require.NoError(t, err)
	svc.now = func() time.Time { return testNow }
	f.svc = svc
	seedSession(t, svc, testNow, 0)
	return f
}

// seedSession starts the daily session on day's date with loss already realized.
func seedSession(t *testing.T, svc *TradingService, day time.Time, loss float64) {
	t.Helper()
	m, err := risk.NewManager(svc.cfg.RiskConfig(), day)
	require.NoError(t, err)
	if loss > 0 {
		m.RecomputeDailyLoss([]*domain.Deal{{Type: domain.DealBuy, Magic: svc.cfg.MagicNumber, Profit: -loss}})
	}
	svc.risk = m
}

func TestNewTradingService(t *testing.T) {
	logger := &mockLogger{}
	terminal := newMockTerminal()
	strat := &mockStrategy{}
	journal := &mockJournal{}

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		nilDep  bool
		wantErr bool
	}{
		{name: "valid"},
		{name: "missing dependency", nilDep: true, wantErr: true},
		{name: "bar count below strategy requirement", mutate: func(c *config.Config) { c.BarCount = 50 }, wantErr: true},
		{name: "zero loop interval", mutate: func(c *config.Config) { c.LoopInterval = 0 }, wantErr: true},
		{name: "zero call timeout", mutate: func(c *config.Config) { c.CallTimeout = 0 }, wantErr: true},
		{name: "invalid stop loss", mutate: func(c *config.Config) { c.StopLossPips = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			var svc *TradingService
			var err error
			if tt.nilDep {
				svc, err = NewTradingService(cfg, logger, nil, strat, journal)
			} else {
				svc, err = NewTradingService(cfg, logger, terminal, strat, journal)
			}
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestRunIteration_BuyScenario(t *testing.T) {
	f := newFixture(t)
	f.strategy.snapshot = buySnapshot()
	f.terminal.deals = []*domain.Deal{
		{Type: domain.DealSell, Magic: 123456, Profit: -12.5},
		{Type: domain.DealBuy, Magic: 123456, Profit: 40},
		{Type: domain.DealBuy, Magic: 1, Profit: -99},
	}

	res, err := f.svc.RunIteration(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, OutcomeOrderPlaced, res.Outcome)
	assert.Equal(t, 10000.0, res.Balance)
	assert.Equal(t, 2.0, res.Lot)
	require.Len(t, f.terminal.submitted, 1)

	req := f.terminal.submitted[0]
	assert.Equal(t, domain.Buy, req.Direction)
	assert.Equal(t, "EUR_USD", req.Symbol)
	assert.Equal(t, 2.0, req.Volume)
	assert.Equal(t, 1.10520, req.Price)
	assert.InDelta(t, 1.10520-5*10*0.00001, req.StopLoss, 1e-9)
	assert.InDelta(t, 1.10520+10*10*0.00001, req.TakeProfit, 1e-9)
	assert.Equal(t, int64(123456), req.Magic)
	assert.Equal(t, domain.FillImmediateOrCancel, req.FillPolicy)
	assert.Equal(t, domain.TimeGoodTillCancelled, req.TimeInForce)

	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, "6357", f.journal.entries[0].Result.Ticket)
	assert.Empty(t, f.journal.entries[0].Err)
	assert.Contains(t, f.logger.infoMsgs, "Trade placed")

	assert.Equal(t, 12.5, res.DailyRealizedLoss)
	assert.Equal(t, 12.5, f.svc.State().DailyRealizedLoss)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local), f.terminal.dealsFrom)
	assert.Equal(t, testNow, f.terminal.dealsTo)
}

func TestRunIteration_SellScenario(t *testing.T) {
	f := newFixture(t)
	f.strategy.snapshot = &domain.IndicatorSnapshot{Close: 1.0990, SMA: 1.1020, RSI: 75, Signal: domain.SignalSell}

	res, err := f.svc.RunIteration(context.Background(), testNow)
	require.NoError(t, err)
	require.Len(t, f.terminal.submitted, 1)

	req := f.terminal.submitted[0]
	assert.Equal(t, domain.Sell, req.Direction)
	assert.Equal(t, 1.10500, req.Price)
	assert.InDelta(t, 1.10550, req.StopLoss, 1e-9)
	assert.InDelta(t, 1.10400, req.TakeProfit, 1e-9)
	assert.Equal(t, OutcomeOrderPlaced, res.Outcome)
}

func TestRunIteration_NoSignal(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.RunIteration(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoSignal, res.Outcome)
	assert.Zero(t, f.terminal.calls["SubmitOrder"])
	assert.Empty(t, f.journal.entries)
	assert.Equal(t, 1, f.terminal.calls["ClosedDeals"])
	assert.Contains(t, f.logger.infoMsgs, "No trade conditions met.")
}

func TestRunIteration_InsufficientDataIsSoft(t *testing.T) {
	f := newFixture(t)
	f.strategy.snapshot = nil
	f.strategy.err = fmt.Errorf("SMA(50) absent: %w", ports.ErrInsufficientData)

	res, err := f.svc.RunIteration(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficientData, res.Outcome)
	assert.Zero(t, f.terminal.calls["SubmitOrder"])
	assert.Equal(t, 1, f.terminal.calls["ClosedDeals"])
}

func TestRunIteration_LossLimitSkipsTrading(t *testing.T) {
	f := newFixture(t)
	f.strategy.snapshot = buySnapshot()
	seedSession(t, f.svc, testNow, 60)
	f.terminal.deals = []*domain.Deal{
		{Type: domain.DealBuy, Magic: 123456, Profit: -30},
		{Type: domain.DealSell, Magic: 123456, Profit: -35},
	}

	res, err := f.svc.RunIteration(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, OutcomeLimitReached, res.Outcome)
	for _, call := range []string{"AccountInfo", "PriceHistory", "SymbolInfo", "LatestTick", "SubmitOrder"} {
		assert.Zero(t, f.terminal.calls[call], call)
	}
	assert.Zero(t, f.strategy.calls)
	assert.Equal(t, 1, f.terminal.calls["ClosedDeals"], "accumulator is still recomputed")
	assert.Equal(t, 65.0, res.DailyRealizedLoss)
	assert.Contains(t, f.logger.warnMsgs, "Max daily loss reached. Skipping trade.")
}

func TestRunIteration_FatalFetches(t *testing.T) {
	boom := fmt.Errorf("fetch: %w", ports.ErrFetchFailed)
	tests := []struct {
		name string
		set  func(m *mockTerminal)
	}{
		{"account info", func(m *mockTerminal) { m.accountErr = boom }},
		{"price history", func(m *mockTerminal) { m.historyErr = boom }},
		{"symbol info", func(m *mockTerminal) { m.infoErr = boom }},
		{"latest tick", func(m *mockTerminal) { m.tickErr = boom }},
		{"unusable symbol info", func(m *mockTerminal) { m.info.TickSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.strategy.snapshot = buySnapshot()
			tt.set(f.terminal)

			res, err := f.svc.RunIteration(context.Background(), testNow)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Zero(t, f.terminal.calls["SubmitOrder"])
			assert.Zero(t, f.terminal.calls["ClosedDeals"])
		})
	}
}

func TestRunIteration_OrderFailuresAreNotFatal(t *testing.T) {
	t.Run("rejected", func(t *testing.T) {
		f := newFixture(t)
		f.strategy.snapshot = buySnapshot()
		f.terminal.result = &domain.OrderResult{Code: "INSUFFICIENT_MARGIN", Message: "Insufficient margin"}

		res, err := f.svc.RunIteration(context.Background(), testNow)
		require.NoError(t, err)
		assert.Equal(t, OutcomeOrderRejected, res.Outcome)
		assert.Equal(t, 1, f.terminal.calls["SubmitOrder"], "no retry")
		require.Len(t, f.journal.entries, 1)
		assert.Equal(t, "INSUFFICIENT_MARGIN", f.journal.entries[0].Result.Code)
		assert.Contains(t, f.logger.warnMsgs, "Trade failed")
		assert.Equal(t, 1, f.terminal.calls["ClosedDeals"])
	})

	t.Run("transport error", func(t *testing.T) {
		f := newFixture(t)
		f.strategy.snapshot = buySnapshot()
		f.terminal.submitErr = fmt.Errorf("submit: %w", ports.ErrConnectionFailed)
		f.journal.err = errors.New("disk full")

		res, err := f.svc.RunIteration(context.Background(), testNow)
		require.NoError(t, err)
		assert.Equal(t, OutcomeOrderFailed, res.Outcome)
		assert.Equal(t, 1, f.terminal.calls["SubmitOrder"], "no retry")
		require.Len(t, f.journal.entries, 1)
		assert.Contains(t, f.journal.entries[0].Err, "submit")
		assert.Contains(t, f.logger.errorMsgs, "execute: Failed to journal order")
	})
}

func TestRunIteration_ClosedDealsFailureKeepsPreviousLoss(t *testing.T) {
	f := newFixture(t)
	seedSession(t, f.svc, testNow, 20)
	f.terminal.dealsErr = fmt.Errorf("deals: %w", ports.ErrFetchFailed)

	res, err := f.svc.RunIteration(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.DailyRealizedLoss)
	assert.Equal(t, 20.0, f.svc.State().DailyRealizedLoss)
}

func TestRunIteration_NoDealsMeansZeroLoss(t *testing.T) {
	f := newFixture(t)
	seedSession(t, f.svc, testNow, 20)

	res, err := f.svc.RunIteration(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.DailyRealizedLoss)
}

func TestRunIteration_DailyResetOncePerDay(t *testing.T) {
	f := newFixture(t)
	yesterday := testNow.AddDate(0, 0, -1)
	seedSession(t, f.svc, yesterday, 60)
	f.terminal.deals = []*domain.Deal{{Type: domain.DealBuy, Magic: 123456, Profit: -5}}

	afterMidnight := risk.StartOfDay(testNow).Add(5 * time.Minute)
	res, err := f.svc.RunIteration(context.Background(), afterMidnight)
	require.NoError(t, err)
	assert.True(t, res.Reset)
	assert.NotEqual(t, OutcomeLimitReached, res.Outcome, "reset happens before the limit check")
	assert.Equal(t, 1, f.terminal.calls["AccountInfo"])

	res, err = f.svc.RunIteration(context.Background(), afterMidnight.Add(5*time.Minute))
	require.NoError(t, err)
	assert.False(t, res.Reset)
	assert.Equal(t, 5.0, f.svc.State().DailyRealizedLoss)
}

func TestStart_InitFailures(t *testing.T) {
	t.Run("connect", func(t *testing.T) {
		f := newFixture(t)
		f.terminal.connectErr = fmt.Errorf("connect: %w", ports.ErrConnectionFailed)

		err := f.svc.Start(context.Background())
		assert.ErrorIs(t, err, ports.ErrConnectionFailed)
		assert.Zero(t, f.terminal.calls["SelectSymbol"])
		assert.Zero(t, f.terminal.calls["AccountInfo"])
	})

	t.Run("select symbol", func(t *testing.T) {
		f := newFixture(t)
		f.terminal.selectErr = fmt.Errorf("select: %w", ports.ErrSymbolUnavailable)

		err := f.svc.Start(context.Background())
		assert.ErrorIs(t, err, ports.ErrSymbolUnavailable)
		assert.Equal(t, 1, f.terminal.calls["Disconnect"])
		assert.Zero(t, f.terminal.calls["AccountInfo"])
	})
}

func TestStart_FatalFetchStopsLoop(t *testing.T) {
	f := newFixture(t)
	f.terminal.historyErr = fmt.Errorf("history: %w", ports.ErrFetchFailed)

	err := f.svc.Start(context.Background())
	assert.ErrorIs(t, err, ports.ErrFetchFailed)
	assert.Equal(t, 1, f.terminal.calls["PriceHistory"])
	assert.Equal(t, 1, f.terminal.calls["Disconnect"])
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := f.svc.Start(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, f.terminal.calls["AccountInfo"], 2, "loop iterates between sleeps")
	assert.Equal(t, 1, f.terminal.calls["Disconnect"])
	assert.Contains(t, f.logger.infoMsgs, "Trading Service stopped.")
}
