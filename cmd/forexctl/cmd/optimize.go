package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"forexbot/internal/backtesting"
	"forexbot/internal/ports"
	"forexbot/internal/strategy"
	"forexbot/internal/utils"
)

func newOptimizeCmd() *cobra.Command {
	var (
		inPath       string
		smaRange     string
		rsiRange     string
		digits       int
		spreadPoints float64
		quoteRate    float64
		top          int
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Grid-search SMA and RSI periods over CSV bars",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inPath == "" {
				return fmt.Errorf("missing --in")
			}
			sma, err := parseRange("sma", smaRange)
			if err != nil {
				return err
			}
			rsi, err := parseRange("rsi", rsiRange)
			if err != nil {
				return err
			}
			if quoteRate <= 0 {
				return fmt.Errorf("--quote-rate must be positive")
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			bars, err := utils.ReadBarsFromCSV(inPath)
			if err != nil {
				return fmt.Errorf("reading %s: %w", inPath, err)
			}

			info := symbolInfo(cfg.Symbol, cfg.Instrument, digits, quoteRate)
			results, err := backtesting.Optimize(cmd.Context(), bars, backtesting.OptimizerConfig{
				ParameterRanges: []backtesting.ParameterRange{sma, rsi},
				Backtest: backtesting.Config{
					Symbol:         cfg.Symbol,
					InitialBalance: cfg.PaperBalance,
					Spread:         spreadPoints * info.Point,
					Info:           info,
					Risk:           cfg.RiskConfig(),
				},
				Factory: func(params map[string]float64) (ports.Strategy, error) {
					sc := cfg.StrategyConfig()
					sc.SMAPeriod = int(params["sma"])
					sc.RSIPeriod = int(params["rsi"])
					return strategy.New(sc, ports.NopLogger{})
				},
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d combinations over %d bars\n", len(results), len(bars))
			for i, r := range results {
				if i == top {
					break
				}
				fmt.Fprintf(out, "SMA %3.0f  RSI %3.0f  score %6.3f  trades %4d  win %5.1f%%  profit %10.2f  dd %5.2f%%\n",
					r.Parameters["sma"], r.Parameters["rsi"], r.Score, r.Result.TotalTrades,
					r.Result.WinRate*100, r.Result.TotalProfit, r.Result.MaxDrawdown*100)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inPath, "in", "", "input CSV written by fetch-bars")
	cmd.Flags().StringVar(&smaRange, "sma", "20:100:10", "SMA period range min:max:step")
	cmd.Flags().StringVar(&rsiRange, "rsi", "7:21:7", "RSI period range min:max:step")
	cmd.Flags().IntVar(&digits, "digits", 5, "quote precision of the symbol")
	cmd.Flags().Float64Var(&spreadPoints, "spread", 0, "simulated spread, in points")
	cmd.Flags().Float64Var(&quoteRate, "quote-rate", 1, "account currency per unit of quote currency")
	cmd.Flags().IntVar(&top, "top", 10, "number of results to print")
	return cmd
}

// parseRange reads "min:max:step" or a single value.
func parseRange(name, s string) (backtesting.ParameterRange, error) {
	parts := strings.Split(s, ":")
	if len(parts) == 1 {
		parts = []string{parts[0], parts[0], "1"}
	}
	if len(parts) != 3 {
		return backtesting.ParameterRange{}, fmt.Errorf("--%s must be min:max:step, got %q", name, s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return backtesting.ParameterRange{}, fmt.Errorf("--%s: %w", name, err)
		}
		v[i] = f
	}
	return backtesting.ParameterRange{Name: name, Min: v[0], Max: v[1], Step: v[2]}, nil
}
