package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"forexbot/internal/app"
	"forexbot/internal/utils"
)

func newFetchBarsCmd() *cobra.Command {
	var (
		count     int
		timeframe string
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "fetch-bars",
		Short: "Download completed bars for the configured symbol and write CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return fmt.Errorf("missing --out")
			}
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if timeframe == "" {
				timeframe = cfg.Timeframe
			}
			if count <= 0 {
				count = cfg.BarCount
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
			if err := terminal.SelectSymbol(ctx, cfg.Symbol); err != nil {
				return err
			}
			bars, err := terminal.PriceHistory(ctx, cfg.Symbol, strings.ToUpper(timeframe), count)
			if err != nil {
				return err
			}
			if err := utils.WriteBarsToCSV(bars, outPath); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d %s %s bars to %s\n", len(bars), cfg.Symbol, timeframe, outPath)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "number of bars (default BAR_COUNT)")
	cmd.Flags().StringVar(&timeframe, "timeframe", "", "bar timeframe, e.g. M5, H1 (default TIMEFRAME)")
	cmd.Flags().StringVar(&outPath, "out", "", "output CSV path")
	return cmd
}
