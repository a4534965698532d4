// Package paper implements a simulated ports.BrokerTerminal: market data comes from a real
// terminal, fills and closed deals are simulated locally.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"forexbot/internal/domain"
	"forexbot/internal/id"
	"forexbot/internal/ports"
	"forexbot/internal/risk"
)

// ResultBoundsViolation is returned when the fill price moved beyond the order's deviation.
const ResultBoundsViolation = "BOUNDS_VIOLATION"

// Config holds configuration for the paper terminal.
type Config struct {
	Market       ports.BrokerTerminal // Source of bars, ticks and symbol metadata
	Deals        ports.DealRepository
	Logger       ports.Logger
	StartBalance float64
	Currency     string
	Now          func() time.Time // Clock for fills without a tick time, defaults to time.Now
}

type position struct {
	ticket     string
	symbol     string
	direction  domain.Direction
	volume     float64
	entry      float64
	stopLoss   float64
	takeProfit float64
	magic      int64
	info       domain.SymbolInfo
}

// Broker fills market orders at the market terminal's quotes and closes them when a
// later quote crosses the stop-loss or take-profit.
type Broker struct {
	market       ports.BrokerTerminal
	deals        ports.DealRepository
	logger       ports.Logger
	startBalance float64
	currency     string
	now          func() time.Time

	mu        sync.Mutex
	positions []*position
}

var _ ports.BrokerTerminal = (*Broker)(nil)

// New creates a paper terminal.
func New(cfg Config) (*Broker, error) {
	if cfg.Market == nil {
		return nil, fmt.Errorf("market terminal is required for paper trading")
	}
	if cfg.Deals == nil {
		return nil, fmt.Errorf("deal repository is required for paper trading")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for paper trading")
	}
	if cfg.StartBalance <= 0 {
		return nil, fmt.Errorf("start balance must be positive: %w", ports.ErrConfigurationError)
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Broker{
		market:       cfg.Market,
		deals:        cfg.Deals,
		logger:       cfg.Logger,
		startBalance: cfg.StartBalance,
		currency:     currency,
		now:          now,
	}, nil
}

// Connect connects the market terminal.
func (b *Broker) Connect(ctx context.Context) error {
	if err := b.market.Connect(ctx); err != nil {
		return err
	}
	b.logger.Info(ctx, "Paper trading enabled", map[string]interface{}{"startBalance": b.startBalance})
	return nil
}

// SelectSymbol selects the symbol on the market terminal.
func (b *Broker) SelectSymbol(ctx context.Context, symbol string) error {
	return b.market.SelectSymbol(ctx, symbol)
}

// AccountInfo reports the start balance plus every booked deal's profit.
func (b *Broker) AccountInfo(ctx context.Context) (*domain.Account, error) {
	total, err := b.deals.TotalProfit(ctx)
	if err != nil {
		return nil, fmt.Errorf("AccountInfo failed: %w: %w", ports.ErrFetchFailed, err)
	}
	balance := decimal.NewFromFloat(b.startBalance).Add(decimal.NewFromFloat(total))
	return &domain.Account{ID: "paper", Currency: b.currency, Balance: balance.InexactFloat64()}, nil
}

// PriceHistory delegates to the market terminal.
func (b *Broker) PriceHistory(ctx context.Context, symbol, timeframe string, count int) ([]*domain.Bar, error) {
	return b.market.PriceHistory(ctx, symbol, timeframe, count)
}

// SymbolInfo delegates to the market terminal.
func (b *Broker) SymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	return b.market.SymbolInfo(ctx, symbol)
}

// LatestTick returns the market quote after settling open positions against it.
func (b *Broker) LatestTick(ctx context.Context, symbol string) (*domain.Tick, error) {
	tick, err := b.market.LatestTick(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := b.settle(ctx, symbol, tick); err != nil {
		return nil, err
	}
	return tick, nil
}

// SubmitOrder fills a market order at the current ask (BUY) or bid (SELL).
func (b *Broker) SubmitOrder(ctx context.Context, req *domain.TradeRequest) (*domain.OrderResult, error) {
	tick, err := b.LatestTick(ctx, req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("SubmitOrder failed: %w", err)
	}
	info, err := b.market.SymbolInfo(ctx, req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("SubmitOrder failed: %w", err)
	}

	var fill float64
	switch req.Direction {
	case domain.Buy:
		fill = tick.Ask
	case domain.Sell:
		fill = tick.Bid
	default:
		return nil, fmt.Errorf("SubmitOrder failed: unknown direction %q: %w", req.Direction, ports.ErrInvalidRequest)
	}
	if req.Volume <= 0 {
		return nil, fmt.Errorf("SubmitOrder failed: volume %v: %w", req.Volume, ports.ErrInvalidRequest)
	}

	if req.Deviation > 0 {
		slip := decimal.NewFromFloat(fill).Sub(decimal.NewFromFloat(req.Price)).Abs()
		if slip.GreaterThan(decimal.NewFromFloat(req.Deviation)) {
			b.logger.Warn(ctx, "Paper order outside deviation", map[string]interface{}{
				"requested": req.Price,
				"market":    fill,
			})
			return &domain.OrderResult{Code: ResultBoundsViolation, Message: "price moved beyond deviation"}, nil
		}
	}

	pos := &position{
		ticket:     id.New(),
		symbol:     req.Symbol,
		direction:  req.Direction,
		volume:     req.Volume,
		entry:      fill,
		stopLoss:   req.StopLoss,
		takeProfit: req.TakeProfit,
		magic:      req.Magic,
		info:       *info,
	}
	b.mu.Lock()
	b.positions = append(b.positions, pos)
	b.mu.Unlock()

	b.logger.Info(ctx, "Paper order filled", map[string]interface{}{
		"ticket":    pos.ticket,
		"direction": pos.direction,
		"volume":    pos.volume,
		"price":     fill,
	})
	return &domain.OrderResult{Code: domain.ResultDone, Ticket: pos.ticket, Price: fill}, nil
}

// ClosedDeals settles open positions at the current quote and returns booked deals in [from, to].
func (b *Broker) ClosedDeals(ctx context.Context, from, to time.Time) ([]*domain.Deal, error) {
	for _, symbol := range b.openSymbols() {
		tick, err := b.market.LatestTick(ctx, symbol)
		if err != nil {
			b.logger.Warn(ctx, "Could not settle paper positions", map[string]interface{}{"symbol": symbol, "error": err.Error()})
			continue
		}
		if err := b.settle(ctx, symbol, tick); err != nil {
			return nil, err
		}
	}
	return b.deals.DealsBetween(ctx, from, to)
}

// Disconnect disconnects the market terminal. Open paper positions are kept.
func (b *Broker) Disconnect(ctx context.Context) error {
	if n := b.openPositions(); n > 0 {
		b.logger.Info(ctx, "Paper positions left open", map[string]interface{}{"count": n})
	}
	return b.market.Disconnect(ctx)
}

// openPositions returns the number of simulated open positions.
func (b *Broker) openPositions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.positions)
}

func (b *Broker) openSymbols() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[string]bool)
	var symbols []string
	for _, p := range b.positions {
		if !seen[p.symbol] {
			seen[p.symbol] = true
			symbols = append(symbols, p.symbol)
		}
	}
	return symbols
}

// settle closes every position on symbol whose stop-loss or take-profit the tick crossed.
// Longs are closed against the bid and shorts against the ask.
func (b *Broker) settle(ctx context.Context, symbol string, tick *domain.Tick) error {
	at := tick.Time
	if at.IsZero() {
		at = b.now()
	}

	b.mu.Lock()
	var closed []*domain.Deal
	open := b.positions[:0]
	for _, p := range b.positions {
		if p.symbol != symbol {
			open = append(open, p)
			continue
		}
		exit, ok := p.exitPrice(tick)
		if !ok {
			open = append(open, p)
			continue
		}
		closed = append(closed, p.deal(exit, at))
	}
	b.positions = open
	b.mu.Unlock()

	for _, d := range closed {
		if err := b.deals.SaveDeal(ctx, d); err != nil {
			return fmt.Errorf("failed to book paper deal %s: %w", d.Ticket, err)
		}
		b.logger.Info(ctx, "Paper position closed", map[string]interface{}{
			"ticket": d.Ticket,
			"price":  d.Price,
			"profit": d.Profit,
		})
	}
	return nil
}

func (p *position) exitPrice(tick *domain.Tick) (float64, bool) {
	if p.direction == domain.Buy {
		if p.stopLoss > 0 && tick.Bid <= p.stopLoss {
			return p.stopLoss, true
		}
		if p.takeProfit > 0 && tick.Bid >= p.takeProfit {
			return p.takeProfit, true
		}
		return 0, false
	}
	if p.stopLoss > 0 && tick.Ask >= p.stopLoss {
		return p.stopLoss, true
	}
	if p.takeProfit > 0 && tick.Ask <= p.takeProfit {
		return p.takeProfit, true
	}
	return 0, false
}

// deal books the close of p at exit.
func (p *position) deal(exit float64, at time.Time) *domain.Deal {
	dealType := domain.DealBuy
	if p.direction == domain.Sell {
		dealType = domain.DealSell
	}
	return &domain.Deal{
		Ticket: p.ticket,
		Symbol: p.symbol,
		Type:   dealType,
		Magic:  p.magic,
		Volume: p.volume,
		Price:  exit,
		Profit: risk.Profit(p.direction, p.entry, exit, p.volume, &p.info),
		Time:   at,
	}
}
