package risk

import (
	"fmt"
	"sync"
	"time"

	"forexbot/internal/domain"
)

// Config holds configuration for risk management
type Config struct {
	RiskPercent     float64 // Percent of balance risked per trade
	StopLossPips    float64
	TakeProfitPips  float64
	PipFactor       float64 // Points per pip
	MinLot          float64
	DeviationPoints float64
	Magic           int64
	Comment         string
	DailyMaxLoss    float64
	DailyResetHour  int
}

// Manager applies position sizing, order pricing and the daily loss circuit breaker.
// The session state is guarded so that it can be read while the loop runs.
type Manager struct {
	config Config

	mu    sync.Mutex
	state SessionState
}

// NewManager creates a risk manager whose session starts on the day of now.
func NewManager(config Config, now time.Time) (*Manager, error) {
	if config.StopLossPips <= 0 || config.TakeProfitPips <= 0 {
		return nil, fmt.Errorf("stop loss and take profit pips must be positive")
	}
	if config.DailyResetHour < 0 || config.DailyResetHour > 23 {
		return nil, fmt.Errorf("daily reset hour %d out of range", config.DailyResetHour)
	}
	if config.MinLot <= 0 {
		config.MinLot = DefaultMinLot
	}
	return &Manager{config: config, state: *NewSessionState(now)}, nil
}

// CheckSession runs the daily reset and then the loss limit check.
func (m *Manager) CheckSession(now time.Time) (reset, limitReached bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reset = m.state.ResetIfDue(now, m.config.DailyResetHour)
	return reset, m.state.LimitReached(m.config.DailyMaxLoss)
}

// RecomputeDailyLoss replaces the accumulator with the realized loss of deals and returns it.
func (m *Manager) RecomputeDailyLoss(deals []*domain.Deal) float64 {
	loss := RealizedLoss(deals, m.config.Magic)
	m.mu.Lock()
	m.state.DailyRealizedLoss = loss
	m.mu.Unlock()
	return loss
}

// State returns a copy of the session state.
func (m *Manager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PositionSize calculates the lot size for the configured risk.
func (m *Manager) PositionSize(balance float64, info *domain.SymbolInfo) (float64, error) {
	if info == nil {
		return 0, fmt.Errorf("symbol info is required")
	}
	return LotSize(balance, m.config.RiskPercent, m.config.StopLossPips, info.TickValue, info.TickSize, m.config.MinLot)
}

// BuildOrder prices a market order for direction at the current tick.
func (m *Manager) BuildOrder(symbol string, direction domain.Direction, volume float64, tick *domain.Tick, info *domain.SymbolInfo) (*domain.TradeRequest, error) {
	return BuildTradeRequest(OrderParams{
		Symbol:         symbol,
		Direction:      direction,
		Volume:         volume,
		Tick:           tick,
		Info:           info,
		StopLossPips:   m.config.StopLossPips,
		TakeProfitPips: m.config.TakeProfitPips,
		PipFactor:      m.config.PipFactor,
		DeviationPts:   m.config.DeviationPoints,
		Magic:          m.config.Magic,
		Comment:        m.config.Comment,
	})
}
