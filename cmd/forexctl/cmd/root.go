// Package cmd holds the forexctl subcommands. Every command reads the same environment
// configuration as the trading bot.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"forexbot/config"
	"forexbot/internal/adapters/logger"
	"forexbot/internal/adapters/sqlite"
	"forexbot/internal/ports"
)

// NewRootCmd builds the forexctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "forexctl",
		Short: "Operator tools for the forex trading bot",
		Long: `forexctl works with the same configuration as the bot (environment or .env).

It can download bars to CSV, replay them through the strategy and risk rules,
report today's realized loss against the daily limit and list the order journal.`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newFetchBarsCmd(),
		newBacktestCmd(),
		newOptimizeCmd(),
		newDailyLossCmd(),
		newJournalCmd(),
	)
	return root
}

// Execute runs the command tree with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig() (*config.Config, ports.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.NewZerologLoggerTo(os.Stderr, cfg.LogLevel), nil
}

func openRepository(cfg *config.Config, log ports.Logger) (*sqlite.Repository, error) {
	return sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: log})
}
