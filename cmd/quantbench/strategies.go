package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/quantbench/internal/app"
	"github.com/newthinker/quantbench/internal/config"
	"github.com/newthinker/quantbench/internal/scenario"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List available strategies and their parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLab(nil, func(lab *app.Lab, cfg *config.Config, log *zap.Logger) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLABEL\tRISK\tDEFAULTS")
			fmt.Fprintln(w, "--\t-----\t----\t--------")
			for _, m := range lab.Strategies().List() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Label, m.RiskProfile, formatParams(m.DefaultParams()))
			}
			return w.Flush()
		})
	},
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List predefined market scenarios",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLABEL\tSTART\tEND")
		fmt.Fprintln(w, "--\t-----\t-----\t---")
		for _, s := range scenario.All() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Label, s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
	rootCmd.AddCommand(scenariosCmd)
}

func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, " ")
}
