package backtest

import "fmt"

// RuleType selects how a risk rule value is read.
type RuleType string

const (
	// RulePercent is a distance from the entry price in percent (5 = 5%).
	RulePercent RuleType = "percent"
	// RuleAbsolute is a fixed trigger price.
	RuleAbsolute RuleType = "absolute"
)

// RiskRule is one stop-loss or take-profit setting.
type RiskRule struct {
	Type  RuleType `json:"type" yaml:"type"`
	Value float64  `json:"value" yaml:"value"`
}

// Enabled reports whether the rule can produce a trigger level.
// Unsupported types and non-positive values disable the rule.
func (r *RiskRule) Enabled() bool {
	if r == nil || r.Value <= 0 {
		return false
	}
	return r.Type == RulePercent || r.Type == RuleAbsolute
}

// RiskConfig holds the optional intrabar exits of a run.
type RiskConfig struct {
	StopLoss   *RiskRule `json:"stop_loss,omitempty" yaml:"stop_loss,omitempty"`
	TakeProfit *RiskRule `json:"take_profit,omitempty" yaml:"take_profit,omitempty"`
}

// StopPrice returns the stop-loss level for an entry price.
func (c RiskConfig) StopPrice(entry float64) (float64, bool) {
	r := c.StopLoss
	if !r.Enabled() {
		return 0, false
	}
	if r.Type == RuleAbsolute {
		return r.Value, true
	}
	return entry * (1 - r.Value/100), true
}

// TakePrice returns the take-profit level for an entry price.
func (c RiskConfig) TakePrice(entry float64) (float64, bool) {
	r := c.TakeProfit
	if !r.Enabled() {
		return 0, false
	}
	if r.Type == RuleAbsolute {
		return r.Value, true
	}
	return entry * (1 + r.Value/100), true
}

// Trigger is an intrabar exit decision.
type Trigger struct {
	Kind  TriggerKind
	Price float64
	Rule  string
}

// Evaluate decides whether the bar's range crossed a stop-loss or
// take-profit level for a position entered at entry. When both levels are
// inside the bar the stop-loss wins. The exit price is the trigger level
// itself, which assumes a fill with no slippage or gap risk.
func Evaluate(cfg RiskConfig, entry, high, low float64) (Trigger, bool) {
	if entry <= 0 {
		return Trigger{}, false
	}
	if stop, ok := cfg.StopPrice(entry); ok && low <= stop {
		return Trigger{
			Kind:  TriggerStopLoss,
			Price: stop,
			Rule:  fmt.Sprintf("stop-loss at %.4f hit by low %.4f (entry %.4f)", stop, low, entry),
		}, true
	}
	if take, ok := cfg.TakePrice(entry); ok && high >= take {
		return Trigger{
			Kind:  TriggerTakeProfit,
			Price: take,
			Rule:  fmt.Sprintf("take-profit at %.4f hit by high %.4f (entry %.4f)", take, high, entry),
		}, true
	}
	return Trigger{}, false
}
