// Package bars persists OHLCV candles as one parquet file per symbol and
// timeframe.
package bars

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/newthinker/quantbench/internal/core"
)

// baseTimeframe is the timeframe ingested from the exchange. Coarser
// timeframes without their own file are resampled from it.
const baseTimeframe = core.Timeframe1h

// Record is the parquet schema for one candle.
type Record struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// Dataset identifies one stored file.
type Dataset struct {
	Symbol    string         `json:"symbol"`
	Timeframe core.Timeframe `json:"timeframe"`
	File      string         `json:"file"`
}

// Store reads and writes candles under a data directory. Layout:
//
//	<dir>/<BASE>_<QUOTE>_<timeframe>.parquet
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("creating data dir: %w", err))
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the file path for symbol and timeframe.
func (s *Store) Path(symbol string, tf core.Timeframe) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.parquet", fileSymbol(symbol), tf))
}

// Save merges candles into the stored file. Rows are deduplicated by
// timestamp with the incoming row winning, then sorted.
func (s *Store) Save(symbol string, tf core.Timeframe, candles []core.OHLCV) (int, error) {
	if len(candles) == 0 {
		s.logger.Warn("no candles to save", zap.String("symbol", symbol), zap.String("timeframe", string(tf)))
		return 0, nil
	}

	path := s.Path(symbol, tf)
	incoming := make([]Record, len(candles))
	for i, c := range candles {
		incoming[i] = toRecord(c)
	}

	existing, err := readFile(path)
	if err != nil && !os.IsNotExist(err) {
		return 0, core.WrapError(core.ErrStorageFailed, fmt.Errorf("reading %s: %w", path, err))
	}
	merged := mergeRecords(existing, incoming)

	if err := writeFile(path, merged); err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, fmt.Errorf("writing %s: %w", path, err))
	}
	s.logger.Info("saved candles",
		zap.String("symbol", symbol),
		zap.String("timeframe", string(tf)),
		zap.Int("incoming", len(incoming)),
		zap.Int("rows", len(merged)),
	)
	return len(merged), nil
}

// Load returns the stored candles for symbol and timeframe in time order.
// A timeframe without its own file is resampled from the hourly file.
func (s *Store) Load(symbol string, tf core.Timeframe) ([]core.OHLCV, error) {
	if !tf.Valid() {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unsupported timeframe %q", tf))
	}

	records, err := readFile(s.Path(symbol, tf))
	if err == nil {
		return toCandles(symbol, tf, records), nil
	}
	if !os.IsNotExist(err) {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	if tf.Duration() <= baseTimeframe.Duration() {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s %s", symbol, tf))
	}

	records, err = readFile(s.Path(symbol, baseTimeframe))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s %s", symbol, tf))
		}
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return Resample(toCandles(symbol, baseTimeframe, records), tf), nil
}

// Available lists every stored dataset.
func (s *Store) Available() ([]Dataset, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}

	var out []Dataset
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".parquet") {
			continue
		}
		symbol, tf, ok := parseFileName(e.Name())
		if !ok {
			continue
		}
		out = append(out, Dataset{Symbol: symbol, Timeframe: tf, File: e.Name()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Timeframe.Duration() < out[j].Timeframe.Duration()
	})
	return out, nil
}

// Symbols lists the distinct stored symbols as BASE/QUOTE.
func (s *Store) Symbols() ([]string, error) {
	datasets, err := s.Available()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, d := range datasets {
		if !seen[d.Symbol] {
			seen[d.Symbol] = true
			out = append(out, d.Symbol)
		}
	}
	return out, nil
}

// Resample aggregates candles into tf buckets: first open, max high, min
// low, last close, summed volume. Empty buckets are skipped.
func Resample(candles []core.OHLCV, tf core.Timeframe) []core.OHLCV {
	d := tf.Duration()
	var out []core.OHLCV
	for _, c := range candles {
		bucket := c.Time.UTC().Truncate(d)
		if n := len(out); n > 0 && out[n-1].Time.Equal(bucket) {
			last := &out[n-1]
			if c.High > last.High {
				last.High = c.High
			}
			if c.Low < last.Low {
				last.Low = c.Low
			}
			last.Close = c.Close
			last.Volume += c.Volume
			continue
		}
		c.Time = bucket
		c.Interval = tf
		out = append(out, c)
	}
	return out
}

func fileSymbol(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "_")
}

// parseFileName splits BTC_USDT_1h.parquet into BTC/USDT and 1h.
func parseFileName(name string) (string, core.Timeframe, bool) {
	stem := strings.TrimSuffix(name, ".parquet")
	i := strings.LastIndex(stem, "_")
	if i <= 0 {
		return "", "", false
	}
	tf := core.Timeframe(stem[i+1:])
	if !tf.Valid() {
		return "", "", false
	}
	return strings.ReplaceAll(stem[:i], "_", "/"), tf, true
}

func toRecord(c core.OHLCV) Record {
	return Record{
		Timestamp: c.Time.UnixMilli(),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}

func toCandles(symbol string, tf core.Timeframe, records []Record) []core.OHLCV {
	out := make([]core.OHLCV, len(records))
	for i, r := range records {
		out[i] = core.OHLCV{
			Symbol:   symbol,
			Interval: tf,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
			Time:     time.UnixMilli(r.Timestamp).UTC(),
		}
	}
	return out
}

func writeFile(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readFile(path string) ([]Record, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return parquet.ReadFile[Record](path)
}

// mergeRecords deduplicates by timestamp, preferring incoming records.
func mergeRecords(existing, incoming []Record) []Record {
	seen := make(map[int64]Record, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]Record, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
