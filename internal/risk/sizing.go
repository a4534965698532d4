package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"forexbot/internal/domain"
	"forexbot/internal/ports"
)

// DefaultMinLot is the smallest volume ever submitted.
const DefaultMinLot = 0.01

// lotPlaces is the number of decimals a lot size is rounded to.
const lotPlaces = 2

// LotSize returns the volume that risks riskPercent of balance over stopLossPips.
//
//	risk_money        = balance * riskPercent / 100
//	pip_value_per_lot = tickValue / tickSize
//	lot               = round(risk_money / (stopLossPips * pip_value_per_lot), 2)
//
// Rounding is half away from zero. The result is floored to minLot and never capped.
func LotSize(balance, riskPercent, stopLossPips, tickValue, tickSize, minLot float64) (float64, error) {
	if tickSize <= 0 {
		return 0, fmt.Errorf("tick size must be positive, got %v: %w", tickSize, ports.ErrInvalidRequest)
	}
	if tickValue <= 0 {
		return 0, fmt.Errorf("tick value must be positive, got %v: %w", tickValue, ports.ErrInvalidRequest)
	}
	if stopLossPips <= 0 {
		return 0, fmt.Errorf("stop loss pips must be positive, got %v: %w", stopLossPips, ports.ErrInvalidRequest)
	}
	if minLot <= 0 {
		minLot = DefaultMinLot
	}

	riskMoney := decimal.NewFromFloat(balance).
		Mul(decimal.NewFromFloat(riskPercent)).
		Div(decimal.NewFromInt(100))
	pipValuePerLot := decimal.NewFromFloat(tickValue).Div(decimal.NewFromFloat(tickSize))
	riskPerLot := decimal.NewFromFloat(stopLossPips).Mul(pipValuePerLot)

	lot := riskMoney.Div(riskPerLot).Round(lotPlaces)
	floor := decimal.NewFromFloat(minLot)
	if lot.LessThan(floor) {
		lot = floor
	}
	return lot.InexactFloat64(), nil
}

// OrderParams carries everything needed to price one market order.
type OrderParams struct {
	Symbol         string
	Direction      domain.Direction
	Volume         float64
	Tick           *domain.Tick
	Info           *domain.SymbolInfo
	StopLossPips   float64
	TakeProfitPips float64
	PipFactor      float64 // Points per pip for this instrument
	DeviationPts   float64 // Accepted slippage, in points
	Magic          int64
	Comment        string
}

// BuildTradeRequest prices a market order from the current tick.
// BUY enters at the ask with the stop below and the target above; SELL mirrors it at the bid.
func BuildTradeRequest(p OrderParams) (*domain.TradeRequest, error) {
	if p.Tick == nil || p.Info == nil {
		return nil, fmt.Errorf("tick and symbol info are required: %w", ports.ErrInvalidRequest)
	}
	if p.Info.Point <= 0 {
		return nil, fmt.Errorf("point must be positive, got %v: %w", p.Info.Point, ports.ErrInvalidRequest)
	}
	if p.Volume <= 0 {
		return nil, fmt.Errorf("volume must be positive, got %v: %w", p.Volume, ports.ErrInvalidRequest)
	}
	pipFactor := p.PipFactor
	if pipFactor <= 0 {
		pipFactor = 10
	}

	point := decimal.NewFromFloat(p.Info.Point)
	pip := point.Mul(decimal.NewFromFloat(pipFactor))
	slDist := pip.Mul(decimal.NewFromFloat(p.StopLossPips))
	tpDist := pip.Mul(decimal.NewFromFloat(p.TakeProfitPips))

	var entry, sl, tp decimal.Decimal
	switch p.Direction {
	case domain.Buy:
		entry = decimal.NewFromFloat(p.Tick.Ask)
		sl = entry.Sub(slDist)
		tp = entry.Add(tpDist)
	case domain.Sell:
		entry = decimal.NewFromFloat(p.Tick.Bid)
		sl = entry.Add(slDist)
		tp = entry.Sub(tpDist)
	default:
		return nil, fmt.Errorf("unknown direction %q: %w", p.Direction, ports.ErrInvalidRequest)
	}

	if p.Info.Digits > 0 {
		places := int32(p.Info.Digits)
		sl = sl.Round(places)
		tp = tp.Round(places)
	}

	return &domain.TradeRequest{
		Symbol:      p.Symbol,
		Direction:   p.Direction,
		Volume:      p.Volume,
		Price:       entry.InexactFloat64(),
		StopLoss:    sl.InexactFloat64(),
		TakeProfit:  tp.InexactFloat64(),
		Deviation:   point.Mul(decimal.NewFromFloat(p.DeviationPts)).InexactFloat64(),
		Magic:       p.Magic,
		Comment:     p.Comment,
		TimeInForce: domain.TimeGoodTillCancelled,
		FillPolicy:  domain.FillImmediateOrCancel,
	}, nil
}

// Profit returns the realized profit of volume lots opened at entry and closed at exit:
// the move in points times the per-point value of one lot times the volume, rounded to cents.
func Profit(direction domain.Direction, entry, exit, volume float64, info *domain.SymbolInfo) float64 {
	if info == nil || info.Point <= 0 {
		return 0
	}
	move := decimal.NewFromFloat(exit).Sub(decimal.NewFromFloat(entry))
	if direction == domain.Sell {
		move = move.Neg()
	}
	return move.Div(decimal.NewFromFloat(info.Point)).
		Mul(decimal.NewFromFloat(info.TickValue)).
		Mul(decimal.NewFromFloat(volume)).
		Round(2).
		InexactFloat64()
}
