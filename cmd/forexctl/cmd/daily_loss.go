package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"forexbot/internal/app"
	"forexbot/internal/risk"
)

func newDailyLossCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daily-loss",
		Short: "Show today's realized loss of tagged trades against DAILY_MAX_LOSS",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := openRepository(cfg, log)
			if err != nil {
				return err
			}
			defer repo.Close()

			terminal, err := app.NewTerminal(cfg, log, repo)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.CallTimeout)
			defer cancel()
			if err := terminal.Connect(ctx); err != nil {
				return err
			}
			defer terminal.Disconnect(context.Background())

			now := time.Now()
			deals, err := terminal.ClosedDeals(ctx, risk.StartOfDay(now), now)
			if err != nil {
				return err
			}
			loss := risk.RealizedLoss(deals, cfg.MagicNumber)

			state := risk.SessionState{DailyRealizedLoss: loss}
			status := "trading allowed"
			if state.LimitReached(cfg.DailyMaxLoss) {
				status = "limit reached"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s daily loss %.2f of %.2f (%d deals, magic %d): %s\n",
				cfg.Broker, loss, cfg.DailyMaxLoss, len(deals), cfg.MagicNumber, status)
			return nil
		},
	}
}
