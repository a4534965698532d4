package ports

import (
	"context"
	"time"

	"forexbot/internal/domain"
)

// BrokerTerminal defines the trading terminal capability the trading loop consumes.
// This abstraction keeps the decision and risk logic independent of any real terminal session.
type BrokerTerminal interface {
	// Connect opens the terminal session and verifies credentials.
	Connect(ctx context.Context) error

	// SelectSymbol makes the symbol available for market data and trading.
	SelectSymbol(ctx context.Context, symbol string) error

	// AccountInfo retrieves the current account balance.
	AccountInfo(ctx context.Context) (*domain.Account, error)

	// PriceHistory retrieves the latest count completed bars, ordered oldest first.
	PriceHistory(ctx context.Context, symbol, timeframe string, count int) ([]*domain.Bar, error)

	// SymbolInfo retrieves point, tick size and tick value for the symbol.
	SymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error)

	// LatestTick retrieves the current bid/ask.
	LatestTick(ctx context.Context, symbol string) (*domain.Tick, error)

	// SubmitOrder sends a market order once. A rejected order is reported through
	// OrderResult.Code, not as an error; errors mean the request never got an answer.
	SubmitOrder(ctx context.Context, req *domain.TradeRequest) (*domain.OrderResult, error)

	// ClosedDeals retrieves deals closed within [from, to].
	ClosedDeals(ctx context.Context, from, to time.Time) ([]*domain.Deal, error)

	// Disconnect releases the terminal session.
	Disconnect(ctx context.Context) error
}
