package domain

// Direction represents the side of an order (BUY or SELL).
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Opposite returns the side that closes a position opened with d.
func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}

// Signal is the outcome of the entry decision for one snapshot.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalNone Signal = "NONE"
)

// Direction maps a trade signal onto the order side. ok is false for SignalNone.
func (s Signal) Direction() (d Direction, ok bool) {
	switch s {
	case SignalBuy:
		return Buy, true
	case SignalSell:
		return Sell, true
	default:
		return "", false
	}
}

// FillPolicy is the broker fill qualifier of a market order.
type FillPolicy string

const (
	FillImmediateOrCancel FillPolicy = "IOC"
	FillOrKill            FillPolicy = "FOK"
)

// TimeInForce is the broker time qualifier attached to an order and its SL/TP legs.
type TimeInForce string

const (
	TimeGoodTillCancelled TimeInForce = "GTC"
	TimeDay               TimeInForce = "DAY"
)
