package risk

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forexbot/internal/domain"
	"forexbot/internal/ports"
)

func TestLotSize(t *testing.T) {
	tests := []struct {
		name        string
		balance     float64
		riskPercent float64
		slPips      float64
		tickValue   float64
		tickSize    float64
		want        float64
	}{
		{name: "reference scenario", balance: 10000, riskPercent: 1, slPips: 5, tickValue: 1, tickSize: 0.1, want: 2.00},
		{name: "rounds half away from zero", balance: 1005, riskPercent: 1, slPips: 2, tickValue: 1, tickSize: 1, want: 5.03},
		{name: "rounds to two places", balance: 10000, riskPercent: 1, slPips: 3, tickValue: 1, tickSize: 0.1, want: 3.33},
		{name: "floored to min lot", balance: 100, riskPercent: 0.1, slPips: 50, tickValue: 1, tickSize: 0.1, want: 0.01},
		{name: "zero risk money", balance: 0, riskPercent: 1, slPips: 5, tickValue: 1, tickSize: 0.1, want: 0.01},
		{name: "negative balance", balance: -500, riskPercent: 1, slPips: 5, tickValue: 1, tickSize: 0.1, want: 0.01},
		{name: "no maximum", balance: 1e7, riskPercent: 5, slPips: 1, tickValue: 1, tickSize: 0.1, want: 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lot, err := LotSize(tt.balance, tt.riskPercent, tt.slPips, tt.tickValue, tt.tickSize, DefaultMinLot)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, lot, 1e-9)
		})
	}
}

func TestLotSize_InvalidInputs(t *testing.T) {
	tests := []struct {
		name                        string
		slPips, tickValue, tickSize float64
	}{
		{"zero tick size", 5, 1, 0},
		{"negative tick size", 5, 1, -0.1},
		{"zero tick value", 5, 0, 0.1},
		{"zero stop loss", 0, 1, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LotSize(10000, 1, tt.slPips, tt.tickValue, tt.tickSize, DefaultMinLot)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ports.ErrInvalidRequest))
		})
	}
}

func TestLotSize_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		balance := rng.Float64() * 100000
		riskPercent := rng.Float64() * 5
		slPips := 1 + rng.Float64()*50
		tickValue := 0.5 + rng.Float64()*2
		tickSize := 0.1

		base, err := LotSize(balance, riskPercent, slPips, tickValue, tickSize, DefaultMinLot)
		require.NoError(t, err)
		require.GreaterOrEqual(t, base, DefaultMinLot)

		wider, err := LotSize(balance, riskPercent, slPips+rng.Float64()*20, tickValue, tickSize, DefaultMinLot)
		require.NoError(t, err)
		require.LessOrEqual(t, wider, base, "lot must not grow with a wider stop")

		richer, err := LotSize(balance+rng.Float64()*10000, riskPercent, slPips, tickValue, tickSize, DefaultMinLot)
		require.NoError(t, err)
		require.GreaterOrEqual(t, richer, base, "lot must not shrink with a larger balance")
	}
}

func eurusdInfo() *domain.SymbolInfo {
	return &domain.SymbolInfo{Symbol: "EUR_USD", Digits: 5, Point: 0.00001, TickSize: 0.1, TickValue: 1}
}

func TestBuildTradeRequest(t *testing.T) {
	tick := &domain.Tick{Bid: 1.10500, Ask: 1.10520}

	t.Run("buy enters at ask", func(t *testing.T) {
		req, err := BuildTradeRequest(OrderParams{
			Symbol: "EUR_USD", Direction: domain.Buy, Volume: 2, Tick: tick, Info: eurusdInfo(),
			StopLossPips: 5, TakeProfitPips: 10, PipFactor: 10, DeviationPts: 5,
			Magic: 123456, Comment: "Risk-Managed Algo Trade",
		})
		require.NoError(t, err)
		assert.Equal(t, 1.10520, req.Price)
		assert.InDelta(t, 1.10520-5*10*0.00001, req.StopLoss, 1e-9)
		assert.InDelta(t, 1.10520+10*10*0.00001, req.TakeProfit, 1e-9)
		assert.InDelta(t, 0.00005, req.Deviation, 1e-12)
		assert.Equal(t, int64(123456), req.Magic)
		assert.Equal(t, "Risk-Managed Algo Trade", req.Comment)
		assert.Equal(t, domain.FillImmediateOrCancel, req.FillPolicy)
		assert.Equal(t, domain.TimeGoodTillCancelled, req.TimeInForce)
		assert.Equal(t, 2.0, req.Volume)
	})

	t.Run("sell enters at bid", func(t *testing.T) {
		req, err := BuildTradeRequest(OrderParams{
			Symbol: "EUR_USD", Direction: domain.Sell, Volume: 0.5, Tick: tick, Info: eurusdInfo(),
			StopLossPips: 5, TakeProfitPips: 10, PipFactor: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, 1.10500, req.Price)
		assert.InDelta(t, 1.10550, req.StopLoss, 1e-9)
		assert.InDelta(t, 1.10400, req.TakeProfit, 1e-9)
	})

	t.Run("pip factor from instrument", func(t *testing.T) {
		info := &domain.SymbolInfo{Symbol: "USD_JPY", Digits: 3, Point: 0.001, TickSize: 0.1, TickValue: 1000}
		req, err := BuildTradeRequest(OrderParams{
			Symbol: "USD_JPY", Direction: domain.Buy, Volume: 1, Tick: &domain.Tick{Bid: 150.100, Ask: 150.120}, Info: info,
			StopLossPips: 5, TakeProfitPips: 10, PipFactor: 1,
		})
		require.NoError(t, err)
		assert.InDelta(t, 150.115, req.StopLoss, 1e-9)
		assert.InDelta(t, 150.130, req.TakeProfit, 1e-9)
	})

	t.Run("invalid inputs", func(t *testing.T) {
		_, err := BuildTradeRequest(OrderParams{Direction: domain.Buy, Volume: 1, Info: eurusdInfo()})
		assert.True(t, errors.Is(err, ports.ErrInvalidRequest))

		_, err = BuildTradeRequest(OrderParams{Direction: "HOLD", Volume: 1, Tick: tick, Info: eurusdInfo()})
		assert.True(t, errors.Is(err, ports.ErrInvalidRequest))

		_, err = BuildTradeRequest(OrderParams{Direction: domain.Buy, Volume: 0, Tick: tick, Info: eurusdInfo()})
		assert.True(t, errors.Is(err, ports.ErrInvalidRequest))
	})
}

func TestProfit(t *testing.T) {
	info := eurusdInfo()
	tests := []struct {
		name      string
		direction domain.Direction
		entry     float64
		exit      float64
		volume    float64
		want      float64
	}{
		{"buy stopped out", domain.Buy, 1.10520, 1.10470, 2, -100},
		{"buy target hit", domain.Buy, 1.10520, 1.10620, 2, 200},
		{"sell target hit", domain.Sell, 1.10500, 1.10400, 1, 100},
		{"sell stopped out", domain.Sell, 1.10500, 1.10550, 0.5, -25},
		{"flat", domain.Buy, 1.1, 1.1, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Profit(tt.direction, tt.entry, tt.exit, tt.volume, info))
		})
	}
	assert.Zero(t, Profit(domain.Buy, 1, 2, 1, nil))
}
