package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/newthinker/quantbench/internal/app"
	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/newthinker/quantbench/internal/config"
	"github.com/newthinker/quantbench/internal/core"
)

var (
	btSymbol    string
	btTimeframe string
	btStrategy  string
	btParams    []string
	btCapital   float64
	btFee       float64
	btSLType    string
	btSL        float64
	btTPType    string
	btTP        float64
	btScenario  string
	btStart     string
	btEnd       string
	btJSON      bool
	btFormat    string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a backtest over stored bars",
	Long: `Replay a strategy over the stored bars of a symbol and print the
performance report. Dates accept YYYY-MM-DD or RFC 3339; a date-only end
includes the whole day.`,
	Example: `  quantbench backtest --symbol BTC/USDT --strategy sma_crossover --param fast_period=5
  quantbench backtest --symbol ETH/USDT --scenario bear_2022 --sl-type percent --sl 5 --json`,
	RunE: runBacktest,
}

func init() {
	f := backtestCmd.Flags()
	f.StringVar(&btSymbol, "symbol", "", "Symbol to backtest, e.g. BTC/USDT (required)")
	f.StringVar(&btTimeframe, "timeframe", "1h", "Bar timeframe")
	f.StringVar(&btStrategy, "strategy", "", "Strategy id (default strategy when empty)")
	f.StringArrayVar(&btParams, "param", nil, "Strategy parameter as key=value (repeatable)")
	f.Float64Var(&btCapital, "capital", 0, "Initial capital (configured default when 0)")
	f.Float64Var(&btFee, "fee", -1, "Fee rate per fill, e.g. 0.001 (configured default when unset)")
	f.StringVar(&btSLType, "sl-type", "", "Stop loss rule: percent or absolute")
	f.Float64Var(&btSL, "sl", 0, "Stop loss value")
	f.StringVar(&btTPType, "tp-type", "", "Take profit rule: percent or absolute")
	f.Float64Var(&btTP, "tp", 0, "Take profit value")
	f.StringVar(&btScenario, "scenario", "", "Scenario id restricting the window")
	f.StringVar(&btStart, "start", "", "Start date")
	f.StringVar(&btEnd, "end", "", "End date")
	f.BoolVar(&btJSON, "json", false, "Print the full result as JSON")
	f.StringVar(&btFormat, "format", "table", "Output format: table, json or yaml")

	backtestCmd.MarkFlagRequired("symbol")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	params, err := parseParams(btParams)
	if err != nil {
		return err
	}
	format := btFormat
	if btJSON {
		format = "json"
	}
	if err := checkFormat(format); err != nil {
		return err
	}

	req := app.Request{
		Symbol:         btSymbol,
		Timeframe:      core.Timeframe(btTimeframe),
		Strategy:       btStrategy,
		Params:         params,
		InitialCapital: btCapital,
		Scenario:       btScenario,
		StartDate:      btStart,
		EndDate:        btEnd,
	}
	if cmd.Flags().Changed("fee") {
		req.FeeRate = &btFee
	}
	if btSLType != "" {
		req.StopLossType = backtest.RuleType(btSLType)
		req.StopLossValue = &btSL
	}
	if btTPType != "" {
		req.TakeProfitType = backtest.RuleType(btTPType)
		req.TakeProfitValue = &btTP
	}

	return withLab(nil, func(lab *app.Lab, cfg *config.Config, log *zap.Logger) error {
		res, err := lab.Run(context.Background(), req)
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), format, res)
	})
}

// parseParams turns key=value pairs into strategy parameters. Numbers and
// booleans are decoded; anything else stays a string.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, val, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q (expected key=value)", p)
		}
		val = strings.TrimSpace(val)
		if n, err := strconv.Atoi(val); err == nil {
			out[key] = n
		} else if f, err := strconv.ParseFloat(val, 64); err == nil {
			out[key] = f
		} else if b, err := strconv.ParseBool(val); err == nil {
			out[key] = b
		} else {
			out[key] = val
		}
	}
	return out, nil
}

func checkFormat(format string) error {
	switch format {
	case "table", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown output format %q", format)
}

func writeResult(w io.Writer, format string, res *backtest.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(summary(res))
	}

	fmt.Fprintln(w, "=== quantbench backtest ===")
	fmt.Fprintf(w, "Run:      %s\n", res.ID)
	fmt.Fprintf(w, "Strategy: %s %v\n", res.Strategy, res.Params)
	fmt.Fprintf(w, "Symbol:   %s (%s)\n", res.Symbol, res.Timeframe)
	fmt.Fprintf(w, "Period:   %s to %s\n", res.StartDate.Format("2006-01-02 15:04"), res.EndDate.Format("2006-01-02 15:04"))
	if res.Scenario != "" {
		fmt.Fprintf(w, "Scenario: %s\n", res.Scenario)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tVALUE")
	fmt.Fprintln(tw, "------\t-----")
	fmt.Fprintf(tw, "Initial capital\t%.2f\n", res.InitialCapital)
	fmt.Fprintf(tw, "Final equity\t%.2f\n", res.FinalEquity)
	fmt.Fprintf(tw, "Total return\t%.2f%%\n", res.TotalReturn)
	fmt.Fprintf(tw, "Buy & hold\t%.2f%%\n", res.BenchmarkReturn)
	fmt.Fprintf(tw, "Max drawdown\t%.2f%%\n", res.MaxDrawdown)
	fmt.Fprintf(tw, "Sharpe ratio\t%.2f\n", res.Sharpe)
	fmt.Fprintf(tw, "p-value\t%.4f\n", res.PValue)
	fmt.Fprintf(tw, "Stability\t%.4f\n", res.Stability)
	fmt.Fprintf(tw, "Fills\t%d\n", res.TotalTrades)
	fmt.Fprintf(tw, "Realized P&L\t%.2f\n", res.RealizedPL)
	fmt.Fprintf(tw, "Round trips\t%d (win rate %.1f%%)\n", res.TradeStats.TotalTrades, res.TradeStats.WinRate)
	fmt.Fprintf(tw, "Stop / take exits\t%d / %d\n", res.TradeStats.StopLossExits, res.TradeStats.TakeProfitExits)
	fmt.Fprintf(tw, "Time in market\t%.1f%%\n", res.TimeInMarketPct)
	if res.RejectedOrders > 0 {
		fmt.Fprintf(tw, "Rejected orders\t%d\n", res.RejectedOrders)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Verdict: %s\n", res.Verdict)
	if res.SummaryText != "" {
		fmt.Fprintln(w, res.SummaryText)
	}
	return nil
}

// resultSummary is the compact YAML view of a result; curves are omitted.
type resultSummary struct {
	ID              string         `yaml:"id"`
	Strategy        string         `yaml:"strategy"`
	Params          map[string]any `yaml:"params,omitempty"`
	Symbol          string         `yaml:"symbol"`
	Timeframe       string         `yaml:"timeframe"`
	Scenario        string         `yaml:"scenario,omitempty"`
	Start           string         `yaml:"start"`
	End             string         `yaml:"end"`
	InitialCapital  float64        `yaml:"initial_capital"`
	FinalEquity     float64        `yaml:"final_equity"`
	TotalReturn     float64        `yaml:"total_return"`
	BenchmarkReturn float64        `yaml:"benchmark_return"`
	MaxDrawdown     float64        `yaml:"max_drawdown"`
	Sharpe          float64        `yaml:"sharpe_ratio"`
	PValue          float64        `yaml:"p_value"`
	Stability       float64        `yaml:"stability_variance"`
	Fills           int            `yaml:"total_trades"`
	Verdict         string         `yaml:"verdict"`
	Conclusion      string         `yaml:"conclusion,omitempty"`
}

func summary(res *backtest.Result) resultSummary {
	return resultSummary{
		ID:              res.ID,
		Strategy:        res.Strategy,
		Params:          res.Params,
		Symbol:          res.Symbol,
		Timeframe:       string(res.Timeframe),
		Scenario:        res.Scenario,
		Start:           res.StartDate.Format("2006-01-02T15:04:05Z07:00"),
		End:             res.EndDate.Format("2006-01-02T15:04:05Z07:00"),
		InitialCapital:  res.InitialCapital,
		FinalEquity:     res.FinalEquity,
		TotalReturn:     res.TotalReturn,
		BenchmarkReturn: res.BenchmarkReturn,
		MaxDrawdown:     res.MaxDrawdown,
		Sharpe:          res.Sharpe,
		PValue:          res.PValue,
		Stability:       res.Stability,
		Fills:           res.TotalTrades,
		Verdict:         string(res.Verdict),
		Conclusion:      res.Conclusion,
	}
}
