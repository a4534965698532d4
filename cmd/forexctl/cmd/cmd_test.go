package cmd

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forexbot/config"
	"forexbot/internal/adapters/sqlite"
	"forexbot/internal/domain"
	"forexbot/internal/ports"
	"forexbot/internal/utils"
)

func setEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("OANDA_TOKEN", "token")
	t.Setenv("OANDA_ACCOUNT_ID", "101-001-1-001")
	t.Setenv("DB_PATH", filepath.Join(dir, "forexbot.db"))
	t.Setenv("SMA_PERIOD", "3")
	t.Setenv("RSI_PERIOD", "2")
	t.Setenv("BAR_COUNT", "10")
	t.Setenv("LOG_LEVEL", "ERROR")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestBacktestCommand(t *testing.T) {
	dir := setEnv(t)

	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	bars := make([]*domain.Bar, 200)
	for i := range bars {
		c := 1.1 + 0.002*math.Sin(float64(i)/5)
		bars[i] = &domain.Bar{Time: start.Add(time.Duration(i) * 5 * time.Minute), Open: c, High: c + 0.0003, Low: c - 0.0003, Close: c}
	}
	path := filepath.Join(dir, "bars.csv")
	require.NoError(t, utils.WriteBarsToCSV(bars, path))

	out, err := run(t, "backtest", "--in", path, "--spread", "2", "--trades")
	require.NoError(t, err)
	assert.Contains(t, out, "Backtest EUR_USD over 200 bars")
	assert.Contains(t, out, "Trades:")
	assert.Contains(t, out, "Max drawdown:")

	_, err = run(t, "backtest")
	assert.Error(t, err)

	_, err = run(t, "backtest", "--in", filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	_, err = run(t, "backtest", "--in", path, "--quote-rate", "0")
	assert.EqualError(t, err, "--quote-rate must be positive")
}

func TestJournalCommand(t *testing.T) {
	dir := setEnv(t)

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: filepath.Join(dir, "forexbot.db"), Logger: ports.NopLogger{}})
	require.NoError(t, err)
	require.NoError(t, repo.RecordOrder(context.Background(), &ports.JournalEntry{
		Time:    time.Now(),
		Request: domain.TradeRequest{Symbol: "EUR_USD", Direction: domain.Buy, Volume: 2, Price: 1.1052, StopLoss: 1.1047, TakeProfit: 1.1062},
		Result:  domain.OrderResult{Code: domain.ResultDone, Ticket: "6357"},
	}))
	require.NoError(t, repo.Close())

	out, err := run(t, "journal", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "TICKET")
	assert.Contains(t, out, "BUY")
	assert.Contains(t, out, "DONE")
	assert.Contains(t, out, "6357")
}

func TestFetchBarsRequiresOut(t *testing.T) {
	setEnv(t)
	_, err := run(t, "fetch-bars")
	assert.EqualError(t, err, "missing --out")
}

func TestSymbolInfo(t *testing.T) {
	info := symbolInfo("EUR_USD", config.Instrument{PipFactor: 10, LotUnits: 100000}, 5, 1)
	assert.InDelta(t, 0.00001, info.Point, 1e-12)
	assert.InDelta(t, 0.1, info.TickSize, 1e-12)
	assert.InDelta(t, 1.0, info.TickValue, 1e-9)
	assert.InDelta(t, 10.0, info.PipValuePerLot(), 1e-9)

	// JPY-quoted pair on a USD account at 150 JPY/USD.
	jpy := symbolInfo("USD_JPY", config.Instrument{PipFactor: 10, LotUnits: 100000}, 3, 1.0/150)
	assert.InDelta(t, 0.001, jpy.Point, 1e-12)
	assert.InDelta(t, 100.0/150, jpy.TickValue, 1e-9)
	assert.InDelta(t, 1000.0/150, jpy.PipValuePerLot(), 1e-9)
}

func TestOptimizeCommand(t *testing.T) {
	dir := setEnv(t)

	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	bars := make([]*domain.Bar, 120)
	for i := range bars {
		c := 1.1 + 0.002*math.Sin(float64(i)/4)
		bars[i] = &domain.Bar{Time: start.Add(time.Duration(i) * 5 * time.Minute), Open: c, High: c + 0.0003, Low: c - 0.0003, Close: c}
	}
	path := filepath.Join(dir, "bars.csv")
	require.NoError(t, utils.WriteBarsToCSV(bars, path))

	out, err := run(t, "optimize", "--in", path, "--sma", "3:5:1", "--rsi", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "3 combinations over 120 bars")

	_, err = run(t, "optimize", "--in", path, "--sma", "3:5")
	assert.Error(t, err)
}

func TestParseRange(t *testing.T) {
	r, err := parseRange("sma", "20:60:10")
	require.NoError(t, err)
	assert.Equal(t, 20.0, r.Min)
	assert.Equal(t, 60.0, r.Max)
	assert.Equal(t, 10.0, r.Step)

	r, err = parseRange("rsi", "14")
	require.NoError(t, err)
	assert.Equal(t, 14.0, r.Min)
	assert.Equal(t, 14.0, r.Max)

	_, err = parseRange("rsi", "a:b:c")
	assert.Error(t, err)
}
