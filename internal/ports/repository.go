package ports

import (
	"context"
	"time"

	"forexbot/internal/domain"
)

// DealRepository stores closed deals booked by a simulated terminal.
type DealRepository interface {
	// SaveDeal persists a closed deal.
	SaveDeal(ctx context.Context, deal *domain.Deal) error
	// DealsBetween returns deals closed within [from, to], oldest first.
	DealsBetween(ctx context.Context, from, to time.Time) ([]*domain.Deal, error)
	// TotalProfit sums the profit of every stored deal.
	TotalProfit(ctx context.Context) (float64, error)
}

// JournalEntry is one submitted order together with the terminal's answer.
type JournalEntry struct {
	ID      string
	Time    time.Time
	Request domain.TradeRequest
	Result  domain.OrderResult
	Err     string // Transport error, empty when the terminal answered
}

// OrderJournal records every order submission for later inspection.
type OrderJournal interface {
	// RecordOrder appends a journal entry. The entry ID is assigned when empty.
	RecordOrder(ctx context.Context, entry *JournalEntry) error
	// RecentOrders returns the most recent entries, newest first, up to limit.
	RecentOrders(ctx context.Context, limit int) ([]*JournalEntry, error)
}
