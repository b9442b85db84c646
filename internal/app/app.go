package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/quantbench/internal/analytics"
	"github.com/newthinker/quantbench/internal/audit"
	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/newthinker/quantbench/internal/broker"
	"github.com/newthinker/quantbench/internal/collector"
	"github.com/newthinker/quantbench/internal/collector/binance"
	"github.com/newthinker/quantbench/internal/config"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/metrics"
	"github.com/newthinker/quantbench/internal/notifier"
	"github.com/newthinker/quantbench/internal/notifier/email"
	"github.com/newthinker/quantbench/internal/notifier/telegram"
	"github.com/newthinker/quantbench/internal/notifier/webhook"
	"github.com/newthinker/quantbench/internal/scenario"
	"github.com/newthinker/quantbench/internal/storage/archive"
	"github.com/newthinker/quantbench/internal/storage/bars"
	"github.com/newthinker/quantbench/internal/storage/history"
	"github.com/newthinker/quantbench/internal/strategy"
	"github.com/newthinker/quantbench/internal/strategy/builtin"
)

// Backtest outcome labels used for metrics.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Option customises a Lab.
type Option func(*Lab)

// WithMetrics records runs, fills and ingests into reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(l *Lab) { l.metrics = reg }
}

// WithStrategies replaces the builtin strategy catalogue.
func WithStrategies(reg *strategy.Registry) Option {
	return func(l *Lab) { l.strategies = reg }
}

// WithCollector registers an additional market data source.
func WithCollector(c collector.Collector) Option {
	return func(l *Lab) { l.collectors.Register(c) }
}

// WithNotifier adds a receiver of run events.
func WithNotifier(n notifier.Notifier) Option {
	return func(l *Lab) {
		if err := l.notifiers.Register(n); err != nil {
			l.logger.Warn("notifier not registered", zap.String("notifier", n.Name()), zap.Error(err))
		}
	}
}

// Lab is the application orchestrator: it owns the bar store, the run
// history, the result archive and the strategy catalogue, and runs
// backtests against them.
type Lab struct {
	cfg        *config.Config
	logger     *zap.Logger
	bars       *bars.Store
	history    *history.Store
	results    *archive.Results
	strategies *strategy.Registry
	collectors *collector.Registry
	metrics    *metrics.Registry
	notifiers  *notifier.Registry

	mu       sync.RWMutex
	runs     int
	failures int
	lastRun  time.Time
}

// New opens the storage configured in cfg. The caller must Close the Lab.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Lab, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := bars.NewStore(cfg.Storage.DataDir, logger)
	if err != nil {
		return nil, err
	}

	backend, err := archive.New(archive.Config{
		Backend: cfg.Storage.Archive.Type,
		Path:    cfg.Storage.Archive.Path,
		S3: archive.S3Config{
			Bucket:    cfg.Storage.Archive.S3.Bucket,
			Endpoint:  cfg.Storage.Archive.S3.Endpoint,
			Region:    cfg.Storage.Archive.S3.Region,
			AccessKey: cfg.Storage.Archive.S3.AccessKey,
			SecretKey: cfg.Storage.Archive.S3.SecretKey,
			Prefix:    cfg.Storage.Archive.S3.Prefix,
		},
	})
	if err != nil {
		return nil, err
	}

	l := &Lab{
		cfg:        cfg,
		logger:     logger,
		bars:       store,
		results:    archive.NewResults(backend),
		strategies: builtin.NewRegistry(),
		collectors: collector.NewRegistry(),
		notifiers:  notifier.NewRegistry(),
	}
	l.collectors.Register(binance.New(
		binance.WithBaseURL(cfg.Collector.BaseURL),
		binance.WithPause(cfg.Collector.Pause),
		binance.WithLogger(logger),
	))
	if err := registerNotifiers(l.notifiers, cfg.Notify); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(l)
	}

	if cfg.Storage.HistoryPath != "" {
		h, err := history.Open(cfg.Storage.HistoryPath)
		if err != nil {
			return nil, err
		}
		l.history = h
	}

	logger.Info("lab ready",
		zap.String("data_dir", store.Dir()),
		zap.String("history", cfg.Storage.HistoryPath),
		zap.String("archive", cfg.Storage.Archive.Type),
		zap.Int("strategies", len(l.strategies.List())),
	)
	return l, nil
}

// Close releases the run history.
func (l *Lab) Close() error {
	if l.history == nil {
		return nil
	}
	return l.history.Close()
}

// Bars exposes the bar store.
func (l *Lab) Bars() *bars.Store { return l.bars }

// Strategies exposes the strategy catalogue.
func (l *Lab) Strategies() *strategy.Registry { return l.strategies }

// Run executes one backtest: load bars, apply the scenario window, audit
// the series, generate signals, probe parameter stability, replay the bars
// and persist the result. The replay runs in its own goroutine; when ctx
// or the configured run timeout expires first, the run is abandoned and
// ErrRunTimeout returned.
func (l *Lab) Run(ctx context.Context, req Request) (*backtest.Result, error) {
	started := time.Now()
	res, err := l.run(ctx, req)
	elapsed := time.Since(started)

	status := StatusSuccess
	switch {
	case errors.Is(err, core.ErrRunTimeout):
		status = StatusTimeout
	case err != nil:
		status = StatusError
	}
	if l.metrics != nil {
		l.metrics.RecordBacktest(status, elapsed.Seconds())
	}

	l.mu.Lock()
	l.runs++
	if err != nil {
		l.failures++
	}
	l.lastRun = started
	l.mu.Unlock()

	if err != nil {
		l.logger.Warn("backtest failed",
			zap.String("symbol", req.Symbol),
			zap.String("strategy", req.Strategy),
			zap.String("status", status),
			zap.Error(err),
		)
		if l.cfg.Notify.OnFailure {
			l.notify(ctx, failedEvent(req, err))
		}
		return nil, err
	}
	l.notify(ctx, completedEvent(res))
	return res, nil
}

// notify delivers an event to every notifier. Delivery failures are
// logged and never fail the run.
func (l *Lab) notify(ctx context.Context, event notifier.Event) {
	if l.notifiers.Len() == 0 {
		return
	}
	errs := l.notifiers.NotifyAll(context.WithoutCancel(ctx), event)
	for _, name := range l.notifiers.Names() {
		err, failed := errs[name]
		if l.metrics != nil {
			status := StatusSuccess
			if failed {
				status = StatusError
			}
			l.metrics.RecordNotification(name, status)
		}
		if failed {
			l.logger.Warn("notification failed",
				zap.String("notifier", name),
				zap.String("event", string(event.Type)),
				zap.Error(err),
			)
		}
	}
}

func completedEvent(res *backtest.Result) notifier.Event {
	return notifier.Event{
		Type:        notifier.EventRunCompleted,
		RunID:       res.ID,
		Symbol:      res.Symbol,
		Timeframe:   string(res.Timeframe),
		Strategy:    res.Strategy,
		Params:      res.Params,
		Scenario:    res.Scenario,
		TotalReturn: res.TotalReturn,
		Benchmark:   res.BenchmarkReturn,
		Sharpe:      res.Sharpe,
		MaxDrawdown: res.MaxDrawdown,
		Verdict:     string(res.Verdict),
		OccurredAt:  time.Now().UTC(),
	}
}

func failedEvent(req Request, err error) notifier.Event {
	e := notifier.Event{
		Type:       notifier.EventRunFailed,
		Symbol:     req.Symbol,
		Timeframe:  string(req.Timeframe),
		Strategy:   req.Strategy,
		Params:     req.Params,
		Scenario:   req.Scenario,
		Error:      err.Error(),
		OccurredAt: time.Now().UTC(),
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		e.ErrorCode = ce.Code
	}
	return e
}

func (l *Lab) run(ctx context.Context, req Request) (*backtest.Result, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}
	id, err := l.strategies.Resolve(req.Strategy)
	if err != nil {
		return nil, err
	}

	start, end, err := req.Bounds()
	if err != nil {
		return nil, err
	}
	window, err := scenario.Resolve(req.Scenario, start, end)
	if err != nil {
		return nil, err
	}

	candles, err := l.bars.Load(req.Symbol, req.Timeframe)
	if err != nil {
		return nil, err
	}
	candles, err = scenario.Filter(candles, window)
	if err != nil {
		return nil, err
	}

	report := audit.Check(candles, req.Timeframe.Duration())
	if err := audit.Ensure(report); err != nil {
		return nil, err
	}

	strat, err := l.strategies.New(id, req.Params)
	if err != nil {
		return nil, err
	}

	engineCfg := backtest.Config{
		Symbol:         req.Symbol,
		Timeframe:      req.Timeframe,
		InitialCapital: l.cfg.Engine.InitialCapital,
		FeeRate:        l.cfg.Engine.FeeRate,
		PositionSize:   l.cfg.Engine.PositionSize,
		Risk:           req.Risk(),
		Analytics:      l.cfg.Analytics,
	}
	if req.InitialCapital > 0 {
		engineCfg.InitialCapital = req.InitialCapital
	}
	if req.FeeRate != nil {
		engineCfg.FeeRate = *req.FeeRate
	}

	engineOpts := []backtest.Option{backtest.WithLogger(l.logger)}
	if l.metrics != nil {
		reg := l.metrics
		engineOpts = append(engineOpts, backtest.WithFillHook(func(side broker.OrderSide, status broker.OrderStatus) {
			reg.RecordFill(string(side), string(status))
		}))
	}
	engine, err := backtest.NewEngine(engineCfg, engineOpts...)
	if err != nil {
		return nil, err
	}
	probeEngine, err := backtest.NewEngine(engineCfg)
	if err != nil {
		return nil, err
	}

	if timeout := l.cfg.Server.RunTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		res *backtest.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := l.replay(id, req.Params, strat, candles, engine, probeEngine)
		done <- outcome{res, err}
	}()

	var res *backtest.Result
	select {
	case <-ctx.Done():
		return nil, core.WrapError(core.ErrRunTimeout, ctx.Err())
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		res = out.res
	}

	res.Strategy = id
	res.Params = strategy.Merge(mustMeta(l.strategies, id).DefaultParams(), req.Params)
	res.Scenario = req.Scenario
	res.DataAudit = &report
	if l.metrics != nil {
		l.metrics.AddBars(len(candles))
	}

	l.persist(context.WithoutCancel(ctx), res)
	return res, nil
}

// replay generates the signals, measures stability and runs the engine.
func (l *Lab) replay(id string, params map[string]any, strat strategy.Strategy, candles []core.OHLCV, engine, probeEngine *backtest.Engine) (res *backtest.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = core.WrapError(core.ErrEngineFailure, fmt.Errorf("panic: %v", r))
		}
	}()

	signalled, err := strat.GenerateSignals(candles)
	if err != nil {
		return nil, core.WrapError(core.ErrEngineFailure, fmt.Errorf("strategy %s: %w", id, err))
	}

	var stability float64
	if l.cfg.Stability.Enabled && len(l.cfg.Stability.Factors) > 0 {
		base, err := probeEngine.Simulate(signalled)
		if err != nil {
			return nil, err
		}
		p := &probe{
			registry: l.strategies,
			engine:   probeEngine,
			factors:  l.cfg.Stability.Factors,
			logger:   l.logger,
		}
		stability = p.Stability(id, params, candles, analytics.TotalReturn(base.EquityValues()))
	}

	return engine.Run(signalled, stability)
}

// persist archives the full result and records the history row. Storage
// failures are logged; the computed result is still returned.
func (l *Lab) persist(ctx context.Context, res *backtest.Result) {
	var archivePath string
	if l.results != nil {
		p, err := l.results.Put(ctx, res.Symbol, res.Strategy, res.ID, res)
		if err != nil {
			l.logger.Warn("archiving result failed", zap.String("run_id", res.ID), zap.Error(err))
		} else {
			archivePath = p
		}
	}

	if l.history == nil {
		return
	}
	row := history.Run{
		ID:              res.ID,
		CreatedAt:       time.Now().UTC(),
		Symbol:          res.Symbol,
		Timeframe:       string(res.Timeframe),
		Strategy:        res.Strategy,
		Params:          res.Params,
		Scenario:        res.Scenario,
		Start:           res.StartDate,
		End:             res.EndDate,
		Bars:            len(res.EquityCurve),
		TotalReturn:     res.TotalReturn,
		BenchmarkReturn: res.BenchmarkReturn,
		SharpeRatio:     res.Sharpe,
		MaxDrawdown:     res.MaxDrawdown,
		PValue:          res.PValue,
		Trades:          res.TotalTrades,
		Verdict:         string(res.Verdict),
		ArchivePath:     archivePath,
		ElapsedMS:       res.Elapsed.Milliseconds(),
	}
	if err := l.history.Save(ctx, row); err != nil {
		l.logger.Warn("saving run history failed", zap.String("run_id", res.ID), zap.Error(err))
	}
}

// Stats returns counters for the health endpoint.
func (l *Lab) Stats() map[string]any {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := map[string]any{
		"runs":       l.runs,
		"failures":   l.failures,
		"strategies": len(l.strategies.List()),
		"collectors": l.collectors.Names(),
		"history":    l.history != nil,
		"archive":    l.results != nil,
		"notifiers":  l.notifiers.Names(),
	}
	if !l.lastRun.IsZero() {
		stats["last_run"] = l.lastRun.UTC().Format(time.RFC3339)
	}
	return stats
}

func mustMeta(reg *strategy.Registry, id string) strategy.Metadata {
	meta, _ := reg.Metadata(id)
	return meta
}

// registerNotifiers adds one notifier per configured channel.
func registerNotifiers(reg *notifier.Registry, cfg config.NotifyConfig) error {
	var channels []notifier.Notifier
	if cfg.WebhookURL != "" {
		hook, err := webhook.New(cfg.WebhookURL, cfg.Headers, webhook.WithTimeout(cfg.Timeout))
		if err != nil {
			return core.WrapError(core.ErrConfigInvalid, err)
		}
		channels = append(channels, hook)
	}
	if e := cfg.Email; e.Host != "" {
		mail, err := email.New(e.Host, e.Port, e.Username, e.Password, e.From, e.To)
		if err != nil {
			return core.WrapError(core.ErrConfigMissing, err)
		}
		channels = append(channels, mail)
	}
	if tg := cfg.Telegram; tg.BotToken != "" {
		bot, err := telegram.New(tg.BotToken, tg.ChatID,
			telegram.WithBaseURL(tg.BaseURL),
			telegram.WithTimeout(cfg.Timeout),
		)
		if err != nil {
			return core.WrapError(core.ErrConfigMissing, err)
		}
		channels = append(channels, bot)
	}
	for _, n := range channels {
		if err := reg.Register(n); err != nil {
			return err
		}
	}
	return nil
}
