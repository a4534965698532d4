package domain

import "time"

// DealType classifies a closed-deal record.
type DealType string

const (
	DealBuy     DealType = "BUY"
	DealSell    DealType = "SELL"
	DealBalance DealType = "BALANCE" // Deposits, withdrawals, financing adjustments
)

// Deal is a historical closed-deal record, read-only for the trading loop.
type Deal struct {
	Ticket string
	Symbol string
	Type   DealType
	Magic  int64 // Strategy tag the deal was opened with, 0 when untagged
	Volume float64
	Price  float64 // Close price
	Profit float64 // Realized profit/loss in account currency
	Time   time.Time
}

// IsTrade reports whether the deal is a buy or sell leg rather than a balance operation.
func (d *Deal) IsTrade() bool {
	return d.Type == DealBuy || d.Type == DealSell
}
