package domain

// ResultDone is the only result code that means the order was accepted and filled.
const ResultDone = "DONE"

// TradeRequest is a market order with attached stop-loss and take-profit prices.
// It is built once per decision and submitted once.
type TradeRequest struct {
	Symbol      string
	Direction   Direction
	Volume      float64 // Lot size
	Price       float64 // Expected entry (ask for BUY, bid for SELL)
	StopLoss    float64
	TakeProfit  float64
	Deviation   float64 // Maximum accepted slippage, in price units
	Magic       int64   // Strategy tag
	Comment     string
	TimeInForce TimeInForce
	FillPolicy  FillPolicy
}

// OrderResult is the broker's answer to a submitted TradeRequest.
type OrderResult struct {
	Code    string // ResultDone on success, broker-supplied code otherwise
	Ticket  string // Order/trade identifier assigned by the broker
	Price   float64
	Message string
}

// Succeeded reports whether the order was filled.
func (r *OrderResult) Succeeded() bool {
	return r != nil && r.Code == ResultDone
}
