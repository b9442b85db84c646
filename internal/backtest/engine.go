// Package backtest replays signalled bars through a simulated ledger and
// assembles the run result.
package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/quantbench/internal/analytics"
	"github.com/newthinker/quantbench/internal/broker"
	"github.com/newthinker/quantbench/internal/core"
)

// Config holds the parameters of one simulation.
type Config struct {
	Symbol         string
	Timeframe      core.Timeframe
	InitialCapital float64
	FeeRate        float64
	// PositionSize is the fraction of cash committed on entry.
	PositionSize float64
	Risk         RiskConfig
	Analytics    analytics.Config
}

// DefaultConfig returns a 10k account with 0.1% fees and 98% sizing.
func DefaultConfig() Config {
	return Config{
		Timeframe:      core.Timeframe1h,
		InitialCapital: 10000,
		FeeRate:        0.001,
		PositionSize:   0.98,
		Analytics:      analytics.DefaultConfig(),
	}
}

// Validate checks the simulation parameters.
func (c Config) Validate() error {
	if c.Symbol == "" {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("symbol is required"))
	}
	if !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0) {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("initial capital must be positive, got %v", c.InitialCapital))
	}
	if c.FeeRate < 0 || c.FeeRate >= 1 || math.IsNaN(c.FeeRate) {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("fee rate must be in [0, 1), got %v", c.FeeRate))
	}
	if !(c.PositionSize > 0) || c.PositionSize > 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("position size must be in (0, 1], got %v", c.PositionSize))
	}
	return nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithFillHook observes every fill attempt of every run.
func WithFillHook(hook broker.FillHook) Option {
	return func(e *Engine) {
		e.hook = hook
	}
}

// Engine runs the bar-by-bar sequencer. It holds no per-run state, so one
// Engine may serve concurrent runs; each run owns its own ledger.
type Engine struct {
	cfg    Config
	logger *zap.Logger
	hook   broker.FillHook
}

// NewEngine validates cfg and creates an engine.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Simulate replays bars in order. Per bar it marks the position to the
// close, evaluates the intrabar stop-loss/take-profit, acts on the signal
// carried over from the previous bar, then records equity. A buy signal
// emitted on bar i therefore executes at the close of bar i+1.
func (e *Engine) Simulate(bars []core.Bar) (exec *Execution, err error) {
	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no bars to simulate"))
	}

	defer func() {
		if r := recover(); r != nil {
			exec = nil
			err = core.WrapError(core.ErrEngineFailure, fmt.Errorf("panic: %v", r))
		}
	}()

	s := newSequencer(e, len(bars))
	for i, bar := range bars {
		if err := s.step(i, bar); err != nil {
			return nil, core.WrapError(core.ErrEngineFailure, err)
		}
	}
	return s.finish(bars[len(bars)-1]), nil
}

// Run simulates bars and derives the full result. stability is the
// externally measured parameter sensitivity fed to the classifier.
func (e *Engine) Run(bars []core.Bar, stability float64) (*Result, error) {
	started := time.Now()
	exec, err := e.Simulate(bars)
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		times[i] = b.Time
		closes[i] = b.Close
	}
	report := analytics.Analyze(analytics.Series{
		Times:  times,
		Equity: exec.EquityValues(),
		Closes: closes,
	}, e.cfg.InitialCapital, e.cfg.Timeframe.BarsPerYear(), stability, e.cfg.Analytics)

	res := &Result{
		ID:                uuid.New().String(),
		Symbol:            e.cfg.Symbol,
		Timeframe:         e.cfg.Timeframe,
		StartDate:         times[0],
		EndDate:           times[len(times)-1],
		Risk:              e.cfg.Risk,
		InitialCapital:    e.cfg.InitialCapital,
		FinalEquity:       exec.Equity[len(exec.Equity)-1].Equity,
		TotalTrades:       len(exec.Fills),
		Report:            report,
		EquityCurve:       exec.Equity,
		BenchmarkCurve:    pointsFrom(times, report.Benchmark),
		DrawdownCurve:     drawdownFrom(times, report.Drawdown),
		SignalLog:         exec.Log,
		Trades:            exec.Trades,
		TradeStats:        CalculateStats(exec.Trades),
		TimeInMarketPct:   analytics.TimeShare(exec.BarsInMarket, exec.TotalBars),
		TimeInLossPct:     analytics.TimeShare(exec.BarsInLoss, exec.BarsInMarket),
		MaxLatentDrawdown: exec.MaxLatentDrawdown,
		MaxCapitalAtRisk:  exec.MaxCapitalAtRisk,
		RejectedOrders:    exec.RejectedOrders,
		RealizedPL:        exec.RealizedPL,
	}
	res.AvgTradeDuration = res.TradeStats.AvgDurationHours
	res.Elapsed = time.Since(started)

	e.logger.Info("backtest completed",
		zap.String("symbol", res.Symbol),
		zap.Int("bars", exec.TotalBars),
		zap.Int("fills", res.TotalTrades),
		zap.Float64("total_return", res.TotalReturn),
		zap.Float64("max_drawdown", res.MaxDrawdown),
		zap.String("verdict", string(res.Verdict)),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// sequencer is the mutable state of a single Simulate call.
type sequencer struct {
	cfg    Config
	logger *zap.Logger
	ledger *broker.Ledger
	exec   *Execution

	prev      core.Signal
	open      *Trade
	openIndex int
}

func newSequencer(e *Engine, n int) *sequencer {
	opts := []broker.Option{broker.WithLogger(e.logger)}
	if e.hook != nil {
		opts = append(opts, broker.WithFillHook(e.hook))
	}
	return &sequencer{
		cfg:    e.cfg,
		logger: e.logger,
		ledger: broker.NewLedger(e.cfg.InitialCapital, e.cfg.FeeRate, opts...),
		exec: &Execution{
			Equity: make([]EquityPoint, 0, n),
		},
		prev: core.SignalHold,
	}
}

func (s *sequencer) step(i int, bar core.Bar) error {
	if !bar.IsValid() {
		return fmt.Errorf("bar %d at %s has invalid prices (o=%v h=%v l=%v c=%v)",
			i, bar.Time.Format(time.RFC3339), bar.Open, bar.High, bar.Low, bar.Close)
	}
	symbol := s.cfg.Symbol

	// 1. mark to market, matching any resting orders
	if _, err := s.ledger.OnBar(symbol, bar.Close, bar.Time); err != nil {
		return err
	}

	// 2. intrabar risk exit
	if pos := s.ledger.Position(symbol); pos.IsOpen() {
		if trig, ok := Evaluate(s.cfg.Risk, pos.EntryPrice, bar.High, bar.Low); ok {
			if err := s.exit(i, bar, trig.Price, trig.Kind, trig.Rule); err != nil {
				return err
			}
		}
	}

	// 3. act on the previous bar's signal
	pos := s.ledger.Position(symbol)
	switch {
	case s.prev == core.SignalBuy && !pos.IsOpen():
		if err := s.enter(i, bar); err != nil {
			return err
		}
	case s.prev == core.SignalSell && pos.IsOpen():
		if err := s.exit(i, bar, bar.Close, TriggerSignalExit, "sell signal from previous bar"); err != nil {
			return err
		}
	}

	// 4. carry this bar's signal
	s.prev = bar.Signal

	// 5. record equity and exposure
	s.ledger.MarkToMarket(symbol, bar.Close, bar.Time)
	pos = s.ledger.Position(symbol)
	equity := s.ledger.Equity()
	if math.IsNaN(equity) || math.IsInf(equity, 0) {
		return fmt.Errorf("bar %d: equity is not finite", i)
	}
	s.exec.Equity = append(s.exec.Equity, EquityPoint{Time: bar.Time, Equity: equity})

	if pos.Amount > 0 {
		s.exec.BarsInMarket++
		s.exec.MaxCapitalAtRisk = math.Max(s.exec.MaxCapitalAtRisk, pos.Amount*bar.Close)
		if pnl := pos.UnrealizedPLPercent(); pnl < 0 {
			s.exec.BarsInLoss++
			s.exec.MaxLatentDrawdown = math.Min(s.exec.MaxLatentDrawdown, pnl)
		}
	}
	return nil
}

func (s *sequencer) enter(i int, bar core.Bar) error {
	cash := s.ledger.Cash()
	amount := cash * s.cfg.PositionSize / bar.Close
	if !(amount > 0) {
		s.logger.Warn("skipping entry with no cash",
			zap.Time("time", bar.Time),
			zap.Float64("cash", cash),
		)
		return nil
	}

	entry, order, err := s.fill(bar, broker.OrderSideBuy, amount, bar.Close)
	if err != nil || !order.IsFilled() {
		return err
	}
	entry.Kind = TriggerSignalEntry
	entry.Signal = core.SignalBuy
	entry.Indicators = bar.Indicators
	entry.Rule = "buy signal from previous bar"
	s.exec.Log = append(s.exec.Log, entry)

	s.open = &Trade{
		EntryTime:  bar.Time,
		EntryPrice: order.FillPrice,
		Amount:     order.Amount,
	}
	s.openIndex = i
	return nil
}

func (s *sequencer) exit(i int, bar core.Bar, price float64, kind TriggerKind, rule string) error {
	pos := s.ledger.Position(s.cfg.Symbol)
	entry, order, err := s.fill(bar, broker.OrderSideSell, pos.Amount, price)
	if err != nil || !order.IsFilled() {
		return err
	}
	entry.Kind = kind
	entry.Signal = core.SignalSell
	entry.Indicators = bar.Indicators
	entry.Rule = rule
	s.exec.Log = append(s.exec.Log, entry)

	if s.open != nil {
		exitTime := bar.Time
		t := *s.open
		t.ExitTime = &exitTime
		t.ExitPrice = price
		t.Return = (price - t.EntryPrice) / t.EntryPrice * 100
		t.DurationHours = bar.Time.Sub(t.EntryTime).Hours()
		t.DurationBars = i - s.openIndex
		t.ExitReason = kind
		s.exec.Trades = append(s.exec.Trades, t)
		s.open = nil
	}
	return nil
}

// fill executes a market order at price and captures the before/after
// account snapshots. Rejections are logged and counted, never assumed filled.
func (s *sequencer) fill(bar core.Bar, side broker.OrderSide, amount, price float64) (SignalLogEntry, broker.Order, error) {
	symbol := s.cfg.Symbol
	cashBefore := s.ledger.Cash()
	posBefore := s.ledger.Position(symbol).Amount

	order, err := s.ledger.Execute(broker.OrderRequest{
		Symbol: symbol,
		Side:   side,
		Amount: amount,
	}, price, bar.Time)
	if err != nil {
		return SignalLogEntry{}, order, err
	}
	if !order.IsFilled() {
		s.exec.RejectedOrders++
		s.logger.Warn("fill rejected",
			zap.Time("time", bar.Time),
			zap.String("side", string(side)),
			zap.Float64("amount", amount),
			zap.Float64("price", price),
			zap.String("reason", order.RejectionReason),
		)
		return SignalLogEntry{}, order, nil
	}

	cashAfter := s.ledger.Cash()
	posAfter := s.ledger.Position(symbol).Amount
	return SignalLogEntry{
		Time:           bar.Time,
		Side:           side,
		OrderID:        order.ID,
		Price:          price,
		Amount:         order.Amount,
		Cost:           order.Amount * price,
		Commission:     order.Fee,
		CashBefore:     cashBefore,
		CashAfter:      cashAfter,
		PositionBefore: posBefore,
		PositionAfter:  posAfter,
		EquityBefore:   cashBefore + posBefore*price,
		EquityAfter:    cashAfter + posAfter*price,
	}, order, nil
}

func (s *sequencer) finish(last core.Bar) *Execution {
	if s.open != nil {
		t := *s.open
		t.ExitPrice = last.Close
		t.Return = (last.Close - t.EntryPrice) / t.EntryPrice * 100
		t.DurationHours = last.Time.Sub(t.EntryTime).Hours()
		s.exec.Trades = append(s.exec.Trades, t)
	}
	s.exec.Fills = s.ledger.Trades()
	s.exec.FinalCash = s.ledger.Cash()
	s.exec.RealizedPL = s.ledger.RealizedPL()
	s.exec.TotalBars = len(s.exec.Equity)
	return s.exec
}

func pointsFrom(times []time.Time, values []float64) []EquityPoint {
	out := make([]EquityPoint, len(values))
	for i, v := range values {
		out[i] = EquityPoint{Time: times[i], Equity: v}
	}
	return out
}

func drawdownFrom(times []time.Time, values []float64) []DrawdownPoint {
	out := make([]DrawdownPoint, len(values))
	for i, v := range values {
		out[i] = DrawdownPoint{Time: times[i], Drawdown: v}
	}
	return out
}
