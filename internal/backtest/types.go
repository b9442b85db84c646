package backtest

import (
	"time"

	"github.com/newthinker/quantbench/internal/analytics"
	"github.com/newthinker/quantbench/internal/audit"
	"github.com/newthinker/quantbench/internal/broker"
	"github.com/newthinker/quantbench/internal/core"
)

// TriggerKind identifies why the engine traded on a bar.
type TriggerKind string

const (
	TriggerSignalEntry TriggerKind = "signal_entry"
	TriggerSignalExit  TriggerKind = "signal_exit"
	TriggerStopLoss    TriggerKind = "stop_loss"
	TriggerTakeProfit  TriggerKind = "take_profit"
)

// SignalLogEntry records one executed action with account snapshots taken
// immediately before and after the fill.
type SignalLogEntry struct {
	Time           time.Time          `json:"timestamp"`
	Kind           TriggerKind        `json:"trigger"`
	Side           broker.OrderSide   `json:"side"`
	OrderID        string             `json:"order_id"`
	Price          float64            `json:"price"`
	Amount         float64            `json:"amount"`
	Cost           float64            `json:"cost"`
	Commission     float64            `json:"commission"`
	CashBefore     float64            `json:"cash_before"`
	CashAfter      float64            `json:"cash_after"`
	PositionBefore float64            `json:"pos_before"`
	PositionAfter  float64            `json:"pos_after"`
	EquityBefore   float64            `json:"equity_before"`
	EquityAfter    float64            `json:"equity_after"`
	Signal         core.Signal        `json:"signal"`
	Indicators     map[string]float64 `json:"indicators,omitempty"`
	Rule           string             `json:"rule"`
}

// EquityPoint is the account value at a bar close.
type EquityPoint struct {
	Time   time.Time `json:"timestamp"`
	Equity float64   `json:"equity"`
}

// DrawdownPoint is the drawdown in percent at a bar close.
type DrawdownPoint struct {
	Time     time.Time `json:"timestamp"`
	Drawdown float64   `json:"drawdown"`
}

// Trade represents a round trip from entry to exit. Open trades are marked
// at the last close.
type Trade struct {
	EntryTime     time.Time   `json:"entry_time"`
	ExitTime      *time.Time  `json:"exit_time,omitempty"`
	EntryPrice    float64     `json:"entry_price"`
	ExitPrice     float64     `json:"exit_price"`
	Amount        float64     `json:"amount"`
	Return        float64     `json:"return"` // Percentage return
	DurationHours float64     `json:"duration_hours"`
	DurationBars  int         `json:"duration_bars"`
	ExitReason    TriggerKind `json:"exit_reason,omitempty"`
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.Return > 0
}

// IsClosed returns true if the trade has an exit
func (t Trade) IsClosed() bool {
	return t.ExitTime != nil
}

// Stats holds round-trip statistics
type Stats struct {
	TotalTrades      int     `json:"total_round_trips"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	WinRate          float64 `json:"win_rate"` // Percentage of profitable trades
	AverageReturn    float64 `json:"average_return"`
	BestTrade        float64 `json:"best_trade"`
	WorstTrade       float64 `json:"worst_trade"`
	ProfitFactor     float64 `json:"profit_factor"`
	StopLossExits    int     `json:"stop_loss_exits"`
	TakeProfitExits  int     `json:"take_profit_exits"`
	AvgDurationHours float64 `json:"avg_trade_duration_hours"`
	AvgDurationBars  float64 `json:"avg_trade_duration_bars"`
}

// Execution is the raw output of the sequencer before analytics.
type Execution struct {
	Equity    []EquityPoint    `json:"equity_curve"`
	Log       []SignalLogEntry `json:"signal_log"`
	Fills     []broker.Trade   `json:"fills"`
	Trades    []Trade          `json:"trades"`
	FinalCash float64          `json:"final_cash"`
	// RealizedPL is the closed-trade profit before fees.
	RealizedPL float64 `json:"realized_pl"`
	// TotalBars equals len(Equity).
	TotalBars    int `json:"total_bars"`
	BarsInMarket int `json:"bars_in_market"`
	BarsInLoss   int `json:"bars_in_loss"`
	// MaxLatentDrawdown is the most negative open P&L in percent.
	MaxLatentDrawdown float64 `json:"max_latent_drawdown"`
	// MaxCapitalAtRisk is the peak marked value of the open position.
	MaxCapitalAtRisk float64 `json:"max_capital_at_risk"`
	RejectedOrders   int     `json:"rejected_orders"`
}

// EquityValues extracts the equity column.
func (e *Execution) EquityValues() []float64 {
	out := make([]float64, len(e.Equity))
	for i, p := range e.Equity {
		out[i] = p.Equity
	}
	return out
}

// Result holds the complete backtest output
type Result struct {
	ID        string         `json:"id"`
	Strategy  string         `json:"strategy"`
	Params    map[string]any `json:"params,omitempty"`
	Symbol    string         `json:"symbol"`
	Timeframe core.Timeframe `json:"timeframe"`
	Scenario  string         `json:"scenario,omitempty"`
	StartDate time.Time      `json:"start_date"`
	EndDate   time.Time      `json:"end_date"`
	Risk      RiskConfig     `json:"risk"`

	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`
	// TotalTrades counts fills, entries and exits alike.
	TotalTrades int `json:"total_trades"`

	analytics.Report

	EquityCurve    []EquityPoint    `json:"equity_curve"`
	BenchmarkCurve []EquityPoint    `json:"benchmark_curve"`
	DrawdownCurve  []DrawdownPoint  `json:"drawdown_curve"`
	SignalLog      []SignalLogEntry `json:"signals_log"`
	Trades         []Trade          `json:"trades"`
	TradeStats     Stats            `json:"trade_stats"`

	TimeInMarketPct   float64 `json:"time_in_market_pct"`
	TimeInLossPct     float64 `json:"time_in_loss_pct"`
	MaxLatentDrawdown float64 `json:"max_latent_drawdown"`
	AvgTradeDuration  float64 `json:"avg_trade_duration_hours"`
	MaxCapitalAtRisk  float64 `json:"max_money_at_risk"`
	RejectedOrders    int     `json:"rejected_orders"`
	RealizedPL        float64 `json:"realized_pl"`

	DataAudit *audit.Report `json:"data_audit,omitempty"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}
