package cmd

import (
	"fmt"
	"math"
	"sort"

	"github.com/spf13/cobra"

	"forexbot/config"
	"forexbot/internal/backtesting"
	"forexbot/internal/domain"
	"forexbot/internal/ports"
	"forexbot/internal/strategy"
	"forexbot/internal/utils"
)

func newBacktestCmd() *cobra.Command {
	var (
		inPath       string
		digits       int
		spreadPoints float64
		balance      float64
		quoteRate    float64
		showTrades   bool
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay CSV bars through the strategy, sizing and daily loss limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inPath == "" {
				return fmt.Errorf("missing --in")
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if balance <= 0 {
				balance = cfg.PaperBalance
			}
			if quoteRate <= 0 {
				return fmt.Errorf("--quote-rate must be positive")
			}

			bars, err := utils.ReadBarsFromCSV(inPath)
			if err != nil {
				return fmt.Errorf("reading %s: %w", inPath, err)
			}
			strat, err := strategy.New(cfg.StrategyConfig(), ports.NopLogger{})
			if err != nil {
				return err
			}

			info := symbolInfo(cfg.Symbol, cfg.Instrument, digits, quoteRate)
			result, err := backtesting.Backtest(cmd.Context(), strat, bars, backtesting.Config{
				Symbol:         cfg.Symbol,
				InitialBalance: balance,
				Spread:         spreadPoints * info.Point,
				Info:           info,
				Risk:           cfg.RiskConfig(),
			})
			if err != nil {
				return err
			}

			printReport(cmd, cfg.Symbol, len(bars), result, showTrades)
			return nil
		},
	}

	cmd.Flags().StringVar(&inPath, "in", "", "input CSV written by fetch-bars")
	cmd.Flags().IntVar(&digits, "digits", 5, "quote precision of the symbol")
	cmd.Flags().Float64Var(&spreadPoints, "spread", 0, "simulated spread, in points")
	cmd.Flags().Float64Var(&balance, "balance", 0, "starting balance (default PAPER_BALANCE)")
	cmd.Flags().Float64Var(&quoteRate, "quote-rate", 1, "account currency per unit of quote currency (e.g. 1/150 for USD_JPY on a USD account)")
	cmd.Flags().BoolVar(&showTrades, "trades", false, "list every simulated trade")
	return cmd
}

// symbolInfo derives the sizing metadata offline: one point is 1/PipFactor pips and is
// worth LotUnits points of quote currency per lot, converted at quoteRate.
func symbolInfo(symbol string, in config.Instrument, digits int, quoteRate float64) domain.SymbolInfo {
	point := math.Pow10(-digits)
	return domain.SymbolInfo{
		Symbol:    symbol,
		Digits:    digits,
		Point:     point,
		TickSize:  1 / in.PipFactor,
		TickValue: in.LotUnits * point * quoteRate,
	}
}

func printReport(cmd *cobra.Command, symbol string, bars int, r *backtesting.Result, showTrades bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backtest %s over %d bars\n", symbol, bars)
	fmt.Fprintf(out, "Trades:          %d (%d won, %d lost)\n", r.TotalTrades, r.WinningTrades, r.LosingTrades)
	fmt.Fprintf(out, "Win rate:        %.2f%%\n", r.WinRate*100)
	fmt.Fprintf(out, "Total profit:    %.2f\n", r.TotalProfit)
	fmt.Fprintf(out, "Profit factor:   %.2f\n", r.ProfitFactor)
	fmt.Fprintf(out, "Max drawdown:    %.2f%%\n", r.MaxDrawdown*100)
	fmt.Fprintf(out, "Final balance:   %.2f\n", r.FinalBalance)
	fmt.Fprintf(out, "Limit skips:     %d\n", r.LimitSkips)

	months := make([]string, 0, len(r.MonthlyReturns))
	for m := range r.MonthlyReturns {
		months = append(months, m)
	}
	sort.Strings(months)
	for _, m := range months {
		fmt.Fprintf(out, "  %s  %10.2f\n", m, r.MonthlyReturns[m])
	}

	if !showTrades {
		return
	}
	for _, t := range r.Trades {
		fmt.Fprintf(out, "%s %-4s %5.2f  %.5f -> %.5f  %-11s %9.2f\n",
			t.EntryTime.Format("2006-01-02 15:04"), t.Direction, t.Volume, t.EntryPrice, t.ExitPrice, t.Reason, t.Profit)
	}
}
