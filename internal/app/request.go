package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/newthinker/quantbench/internal/collector"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/strategy/builtin"
)

// Request describes one backtest run. Zero values fall back to the lab
// configuration: 1h bars, the default strategy and the configured capital
// and fee rate.
type Request struct {
	Symbol         string         `json:"symbol" yaml:"symbol"`
	Timeframe      core.Timeframe `json:"timeframe" yaml:"timeframe"`
	Strategy       string         `json:"strategy_name" yaml:"strategy_name"`
	Params         map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	InitialCapital float64        `json:"initial_capital,omitempty" yaml:"initial_capital,omitempty"`
	// FeeRate overrides the configured commission when set.
	FeeRate  *float64 `json:"fee_rate,omitempty" yaml:"fee_rate,omitempty"`
	Scenario string   `json:"scenario_id,omitempty" yaml:"scenario_id,omitempty"`
	// StartDate and EndDate accept 2006-01-02 or RFC 3339.
	StartDate string `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty" yaml:"end_date,omitempty"`

	TakeProfitType  backtest.RuleType `json:"tp_type,omitempty" yaml:"tp_type,omitempty"`
	TakeProfitValue *float64          `json:"tp_value,omitempty" yaml:"tp_value,omitempty"`
	StopLossType    backtest.RuleType `json:"sl_type,omitempty" yaml:"sl_type,omitempty"`
	StopLossValue   *float64          `json:"sl_value,omitempty" yaml:"sl_value,omitempty"`
}

// normalize fills defaults and canonicalises the symbol.
func (r Request) normalize() (Request, error) {
	if strings.TrimSpace(r.Symbol) == "" {
		return r, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("symbol is required"))
	}
	pair, err := collector.ParsePair(r.Symbol)
	if err != nil {
		return r, core.WrapError(core.ErrConfigInvalid, err)
	}
	r.Symbol = pair.String()

	if r.Timeframe == "" {
		r.Timeframe = core.Timeframe1h
	}
	if !r.Timeframe.Valid() {
		return r, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unsupported timeframe %q", r.Timeframe))
	}
	if r.Strategy == "" {
		r.Strategy = builtin.DefaultID
	}
	if r.InitialCapital < 0 {
		return r, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("initial capital must be positive, got %v", r.InitialCapital))
	}
	return r, nil
}

// Risk builds the intrabar exit rules. A rule without a value, or with
// type "none", is disabled.
func (r Request) Risk() backtest.RiskConfig {
	return backtest.RiskConfig{
		StopLoss:   rule(r.StopLossType, r.StopLossValue),
		TakeProfit: rule(r.TakeProfitType, r.TakeProfitValue),
	}
}

func rule(t backtest.RuleType, v *float64) *backtest.RiskRule {
	if v == nil || t == "" || strings.EqualFold(string(t), "none") {
		return nil
	}
	return &backtest.RiskRule{Type: backtest.RuleType(strings.ToLower(string(t))), Value: *v}
}

// Bounds parses the explicit date range. An end given as a bare date is
// inclusive of that whole day.
func (r Request) Bounds() (start, end time.Time, err error) {
	if start, _, err = parseDate(r.StartDate); err != nil {
		return
	}
	var dateOnly bool
	if end, dateOnly, err = parseDate(r.EndDate); err != nil {
		return
	}
	if dateOnly {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		err = core.WrapError(core.ErrConfigInvalid, fmt.Errorf("end date %s is before start date %s", r.EndDate, r.StartDate))
	}
	return
}

func parseDate(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("invalid date %q", s))
	}
	return t.UTC(), false, nil
}
