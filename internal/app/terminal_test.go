package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forexbot/config"
	"forexbot/internal/adapters/oanda"
	"forexbot/internal/adapters/paper"
	"forexbot/internal/ports"
)

type nopDeals struct {
	ports.DealRepository
}

func TestNewTerminal(t *testing.T) {
	cfg := testConfig()
	cfg.OandaToken = "token"
	cfg.OandaAccountID = "101-001-1-001"
	cfg.OandaPractice = true
	cfg.PaperBalance = 10000
	cfg.Instrument.QuoteCurrency = "USD"

	cfg.Broker = config.BrokerOanda
	terminal, err := NewTerminal(cfg, &mockLogger{}, nopDeals{})
	require.NoError(t, err)
	assert.IsType(t, &oanda.Client{}, terminal)

	cfg.Broker = config.BrokerPaper
	terminal, err = NewTerminal(cfg, &mockLogger{}, nopDeals{})
	require.NoError(t, err)
	assert.IsType(t, &paper.Broker{}, terminal)

	cfg.Broker = "mt5"
	_, err = NewTerminal(cfg, &mockLogger{}, nopDeals{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	cfg.Broker = config.BrokerOanda
	cfg.OandaToken = ""
	_, err = NewTerminal(cfg, &mockLogger{}, nopDeals{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}
