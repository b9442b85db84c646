// Package binance pulls spot klines from the Binance REST API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/quantbench/internal/collector"
	"github.com/newthinker/quantbench/internal/core"
)

const (
	baseURL = "https://api.binance.com"

	// PageLimit is the maximum klines Binance returns per request.
	PageLimit = 1000
	// MaxBars caps a single fetch.
	MaxBars = 100_000
)

// Binance implements collector.Collector for the Binance spot exchange
type Binance struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
	// pause between pages to stay under the request weight limit
	pause time.Duration
}

// Option configures a Binance collector.
type Option func(*Binance)

// WithBaseURL points the collector at another host (testnet, mocks).
func WithBaseURL(u string) Option {
	return func(b *Binance) { b.baseURL = u }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Binance) { b.logger = l }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Binance) { b.client = c }
}

// WithPause sets the delay between page requests.
func WithPause(d time.Duration) Option {
	return func(b *Binance) { b.pause = d }
}

// New creates a new Binance collector
func New(opts ...Option) *Binance {
	b := &Binance{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		logger:  zap.NewNop(),
		pause:   250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Binance) Name() string {
	return "binance"
}

// FetchHistory pages through /api/v3/klines from start until end, a short
// page, or MaxBars.
func (b *Binance) FetchHistory(ctx context.Context, pair collector.Pair, tf core.Timeframe, start, end time.Time) ([]core.OHLCV, error) {
	interval, err := toInterval(tf)
	if err != nil {
		return nil, err
	}

	var all []core.OHLCV
	since := start.UnixMilli()
	for {
		page, err := b.fetchPage(ctx, pair, tf, interval, since, end.UnixMilli())
		if err != nil {
			return nil, core.WrapError(core.ErrCollectorFailed, err)
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)

		last := page[len(page)-1].Time
		since = last.UnixMilli() + 1
		b.logger.Debug("fetched klines page",
			zap.String("symbol", pair.String()),
			zap.Int("rows", len(page)),
			zap.Time("last", last),
		)

		if len(page) < PageLimit {
			break
		}
		if len(all) >= MaxBars {
			b.logger.Warn("reached kline safety cap", zap.String("symbol", pair.String()), zap.Int("cap", MaxBars))
			break
		}
		if b.pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.pause):
			}
		}
	}

	b.logger.Info("fetched history",
		zap.String("symbol", pair.String()),
		zap.String("timeframe", string(tf)),
		zap.Int("rows", len(all)),
	)
	return all, nil
}

func (b *Binance) fetchPage(ctx context.Context, pair collector.Pair, tf core.Timeframe, interval string, since, until int64) ([]core.OHLCV, error) {
	q := url.Values{}
	q.Set("symbol", pair.Exchange())
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatInt(since, 10))
	q.Set("endTime", strconv.FormatInt(until, 10))
	q.Set("limit", strconv.Itoa(PageLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/v3/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching klines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var klines [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&klines); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	data := make([]core.OHLCV, 0, len(klines))
	for _, k := range klines {
		c, err := parseKline(k)
		if err != nil {
			return nil, err
		}
		c.Symbol = pair.String()
		c.Interval = tf
		data = append(data, c)
	}
	return data, nil
}

// parseKline decodes [openTime, "open", "high", "low", "close", "volume", ...].
func parseKline(k []json.RawMessage) (core.OHLCV, error) {
	if len(k) < 6 {
		return core.OHLCV{}, fmt.Errorf("kline has %d fields", len(k))
	}
	var openTime int64
	if err := json.Unmarshal(k[0], &openTime); err != nil {
		return core.OHLCV{}, fmt.Errorf("kline open time: %w", err)
	}
	var values [5]float64
	for i := range values {
		var s string
		if err := json.Unmarshal(k[i+1], &s); err != nil {
			return core.OHLCV{}, fmt.Errorf("kline field %d: %w", i+1, err)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return core.OHLCV{}, fmt.Errorf("kline field %d: %w", i+1, err)
		}
		values[i] = f
	}
	return core.OHLCV{
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
		Time:   time.UnixMilli(openTime).UTC(),
	}, nil
}

func toInterval(tf core.Timeframe) (string, error) {
	switch tf {
	case core.Timeframe1m, core.Timeframe5m, core.Timeframe15m,
		core.Timeframe1h, core.Timeframe4h, core.Timeframe12h, core.Timeframe1d:
		return string(tf), nil
	default:
		return "", core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unsupported timeframe %q", tf))
	}
}
