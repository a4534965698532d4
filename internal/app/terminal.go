package app

import (
	"fmt"

	"forexbot/config"
	"forexbot/internal/adapters/oanda"
	"forexbot/internal/adapters/paper"
	"forexbot/internal/ports"
)

// NewTerminal builds the terminal selected by cfg.Broker. Paper trading reads market data
// from OANDA and books its simulated deals in deals.
func NewTerminal(cfg *config.Config, logger ports.Logger, deals ports.DealRepository) (ports.BrokerTerminal, error) {
	client, err := oanda.New(oanda.Config{
		Token:     cfg.OandaToken,
		AccountID: cfg.OandaAccountID,
		Practice:  cfg.OandaPractice,
		LotUnits:  cfg.Instrument.LotUnits,
		Timeout:   cfg.CallTimeout,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OANDA client: %w", err)
	}

	switch cfg.Broker {
	case config.BrokerOanda:
		return client, nil
	case config.BrokerPaper:
		return paper.New(paper.Config{
			Market:       client,
			Deals:        deals,
			Logger:       logger,
			StartBalance: cfg.PaperBalance,
			Currency:     cfg.Instrument.QuoteCurrency,
		})
	default:
		return nil, fmt.Errorf("unknown broker %q: %w", cfg.Broker, ports.ErrConfigurationError)
	}
}
