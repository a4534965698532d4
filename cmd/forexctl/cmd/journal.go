package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newJournalCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List the most recent order submissions",
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

			entries, err := repo.RecentOrders(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSIDE\tVOLUME\tPRICE\tSL\tTP\tRESULT\tTICKET")
			for _, e := range entries {
				result := e.Result.Code
				if e.Err != "" {
					result = "ERROR: " + e.Err
				} else if e.Result.Message != "" {
					result += " (" + e.Result.Message + ")"
				}
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%.5f\t%.5f\t%.5f\t%s\t%s\n",
					e.Time.Local().Format(time.DateTime), e.Request.Direction, e.Request.Volume,
					e.Request.Price, e.Request.StopLoss, e.Request.TakeProfit, result, e.Result.Ticket)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries")
	return cmd
}
