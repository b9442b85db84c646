package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/newthinker/quantbench/internal/collector"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/scenario"
	"github.com/newthinker/quantbench/internal/storage/bars"
	"github.com/newthinker/quantbench/internal/storage/history"
	"github.com/newthinker/quantbench/internal/strategy"
)

// Timeframes offered to clients: the stored base interval and the
// intervals it can be resampled into.
var Timeframes = []core.Timeframe{core.Timeframe1h, core.Timeframe4h, core.Timeframe12h, core.Timeframe1d}

// StrategyInfo is a catalogue entry with its resolved defaults.
type StrategyInfo struct {
	strategy.Metadata
	DefaultParams map[string]any `json:"default_params"`
}

// Discovery is everything a client needs to build a run request.
type Discovery struct {
	Scenarios  []scenario.Scenario `json:"scenarios"`
	Strategies []StrategyInfo      `json:"strategies"`
	Symbols    []string            `json:"available_symbols"`
	Timeframes []core.Timeframe    `json:"available_timeframes"`
}

// Discovery lists scenarios, strategies and the stored symbols.
func (l *Lab) Discovery() (*Discovery, error) {
	symbols, err := l.bars.Symbols()
	if err != nil {
		return nil, err
	}
	if symbols == nil {
		symbols = []string{}
	}

	metas := l.strategies.List()
	infos := make([]StrategyInfo, len(metas))
	for i, m := range metas {
		infos[i] = StrategyInfo{Metadata: m, DefaultParams: m.DefaultParams()}
	}

	return &Discovery{
		Scenarios:  scenario.All(),
		Strategies: infos,
		Symbols:    symbols,
		Timeframes: append([]core.Timeframe(nil), Timeframes...),
	}, nil
}

// IngestResult reports one download.
type IngestResult struct {
	Symbol    string         `json:"symbol"`
	Timeframe core.Timeframe `json:"timeframe"`
	Source    string         `json:"source"`
	Start     time.Time      `json:"start"`
	End       time.Time      `json:"end"`
	Fetched   int            `json:"rows_saved"`
	Stored    int            `json:"rows_total"`
	File      string         `json:"file"`
}

// Ingest downloads the last days of candles from the configured source and
// merges them into the bar store. days <= 0 uses the configured default.
func (l *Lab) Ingest(ctx context.Context, symbol string, tf core.Timeframe, days int) (*IngestResult, error) {
	pair, err := collector.ParsePair(symbol)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}
	if tf == "" {
		tf = core.Timeframe1h
	}
	if !tf.Valid() {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unsupported timeframe %q", tf))
	}
	if days <= 0 {
		days = l.cfg.Collector.DefaultDays
	}

	src, err := l.collectors.Get(l.cfg.Collector.Source)
	if err != nil {
		return nil, err
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	candles, err := src.FetchHistory(ctx, pair, tf, start, end)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s returned no %s candles for %s", src.Name(), tf, pair))
	}
	if l.metrics != nil {
		l.metrics.RecordIngest(pair.String(), len(candles))
	}

	stored, err := l.bars.Save(pair.String(), tf, candles)
	if err != nil {
		return nil, err
	}

	l.logger.Info("ingested candles",
		zap.String("symbol", pair.String()),
		zap.String("timeframe", string(tf)),
		zap.String("source", src.Name()),
		zap.Int("fetched", len(candles)),
		zap.Int("stored", stored),
	)
	return &IngestResult{
		Symbol:    pair.String(),
		Timeframe: tf,
		Source:    src.Name(),
		Start:     start,
		End:       end,
		Fetched:   len(candles),
		Stored:    stored,
		File:      l.bars.Path(pair.String(), tf),
	}, nil
}

// ListRuns returns recent history rows, newest first. Without a history
// database the list is empty.
func (l *Lab) ListRuns(ctx context.Context, f history.Filter) ([]history.Run, error) {
	if l.history == nil {
		return []history.Run{}, nil
	}
	return l.history.List(ctx, f)
}

// GetRun loads the archived result of a past run.
func (l *Lab) GetRun(ctx context.Context, id string) (*backtest.Result, error) {
	if l.history == nil {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("run history disabled"))
	}
	row, err := l.history.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.results == nil || row.ArchivePath == "" {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("run %s was not archived", id))
	}
	var res backtest.Result
	if err := l.results.Get(ctx, row.ArchivePath, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Available lists the stored datasets.
func (l *Lab) Available() ([]bars.Dataset, error) {
	datasets, err := l.bars.Available()
	if err != nil {
		return nil, err
	}
	if datasets == nil {
		datasets = []bars.Dataset{}
	}
	return datasets, nil
}
