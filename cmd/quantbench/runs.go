package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/quantbench/internal/app"
	"github.com/newthinker/quantbench/internal/config"
	"github.com/newthinker/quantbench/internal/storage/history"
)

var (
	runsLimit    int
	runsSymbol   string
	runsStrategy string
	runsFormat   string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run history",
	Long:  "List recent runs; use the show subcommand for the archived result of one run",
	Args:  cobra.NoArgs,
	RunE:  listRuns,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  listRuns,
}

func listRuns(cmd *cobra.Command, args []string) error {
	return withLab(nil, func(lab *app.Lab, cfg *config.Config, log *zap.Logger) error {
		runs, err := lab.ListRuns(context.Background(), history.Filter{
			Symbol:   runsSymbol,
			Strategy: runsStrategy,
			Limit:    runsLimit,
		})
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tSYMBOL\tSTRATEGY\tRETURN\tSHARPE\tVERDICT")
		fmt.Fprintln(w, "--\t-------\t------\t--------\t------\t------\t-------")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f%%\t%.2f\t%s\n",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Symbol, r.Strategy, r.TotalReturn, r.SharpeRatio, r.Verdict)
		}
		return w.Flush()
	})
}

var runsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show an archived run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(runsFormat); err != nil {
			return err
		}
		return withLab(nil, func(lab *app.Lab, cfg *config.Config, log *zap.Logger) error {
			res, err := lab.GetRun(context.Background(), args[0])
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), runsFormat, res)
		})
	},
}

func init() {
	runsCmd.PersistentFlags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs")
	runsCmd.PersistentFlags().StringVar(&runsSymbol, "symbol", "", "Only runs for this symbol")
	runsCmd.PersistentFlags().StringVar(&runsStrategy, "strategy", "", "Only runs of this strategy")
	runsShowCmd.Flags().StringVar(&runsFormat, "format", "table", "Output format: table, json or yaml")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
