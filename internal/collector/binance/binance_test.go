package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newthinker/quantbench/internal/collector"
	"github.com/newthinker/quantbench/internal/core"
)

func TestBinance_ImplementsCollector(t *testing.T) {
	var _ collector.Collector = (*Binance)(nil)
}

func TestBinance_Name(t *testing.T) {
	b := New()
	if b.Name() != "binance" {
		t.Errorf("expected 'binance', got '%s'", b.Name())
	}
}

func TestToInterval(t *testing.T) {
	tests := []struct {
		input    core.Timeframe
		expected string
		wantErr  bool
	}{
		{core.Timeframe1m, "1m", false},
		{core.Timeframe15m, "15m", false},
		{core.Timeframe1h, "1h", false},
		{core.Timeframe12h, "12h", false},
		{core.Timeframe1d, "1d", false},
		{core.Timeframe("3w"), "", true},
	}

	for _, tc := range tests {
		got, err := toInterval(tc.input)
		if (err != nil) != tc.wantErr {
			t.Errorf("toInterval(%s) error = %v, wantErr %v", tc.input, err, tc.wantErr)
		}
		if got != tc.expected {
			t.Errorf("toInterval(%s) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

// klineServer serves `total` hourly klines starting at t0, honouring
// startTime and limit like the real endpoint.
func klineServer(t *testing.T, t0 time.Time, total int, requests *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		if r.URL.Path != "/api/v3/klines" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("expected symbol BTCUSDT, got %s", got)
		}
		since, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		var out [][]any
		for i := 0; i < total && len(out) < limit; i++ {
			ts := t0.Add(time.Duration(i) * time.Hour).UnixMilli()
			if ts < since {
				continue
			}
			p := fmt.Sprintf("%d.5", 100+i)
			out = append(out, []any{ts, p, p, p, p, "1.25", ts + 3599999, "0", 1, "0", "0", "0"})
		}
		json.NewEncoder(w).Encode(out)
	}))
}

func TestBinance_FetchHistory_Paginates(t *testing.T) {
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	var requests int32
	srv := klineServer(t, t0, 2500, &requests)
	defer srv.Close()

	b := New(WithBaseURL(srv.URL), WithPause(0))
	pair := collector.Pair{Base: "BTC", Quote: "USDT"}
	data, err := b.FetchHistory(context.Background(), pair, core.Timeframe1h, t0, t0.Add(5000*time.Hour))
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}

	if len(data) != 2500 {
		t.Fatalf("expected 2500 rows, got %d", len(data))
	}
	if n := atomic.LoadInt32(&requests); n != 3 {
		t.Errorf("expected 3 page requests, got %d", n)
	}
	for i := 1; i < len(data); i++ {
		if !data[i].Time.After(data[i-1].Time) {
			t.Fatalf("rows out of order at %d", i)
		}
	}
	if data[0].Symbol != "BTC/USDT" || data[0].Interval != core.Timeframe1h {
		t.Errorf("unexpected labels %s %s", data[0].Symbol, data[0].Interval)
	}
	if data[1].Close != 101.5 || data[1].Volume != 1.25 {
		t.Errorf("unexpected values %+v", data[1])
	}
}

func TestBinance_FetchHistory_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	b := New(WithBaseURL(srv.URL))
	_, err := b.FetchHistory(context.Background(), collector.Pair{Base: "NOPE", Quote: "USDT"}, core.Timeframe1h, time.Now().Add(-time.Hour), time.Now())
	if !errors.Is(err, core.ErrCollectorFailed) {
		t.Errorf("expected ErrCollectorFailed, got %v", err)
	}
}

func TestParseKline_Malformed(t *testing.T) {
	_, err := parseKline([]json.RawMessage{json.RawMessage(`1`), json.RawMessage(`"x"`)})
	if err == nil {
		t.Error("expected error for short kline")
	}

	fields := []json.RawMessage{
		json.RawMessage(`1700000000000`),
		json.RawMessage(`"1"`), json.RawMessage(`"2"`), json.RawMessage(`"abc"`),
		json.RawMessage(`"1"`), json.RawMessage(`"1"`),
	}
	if _, err := parseKline(fields); err == nil {
		t.Error("expected error for non-numeric price")
	}
}

// Integration test - skip in CI
func TestBinance_FetchHistory_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if os.Getenv("QUANTBENCH_LIVE") == "" {
		t.Skip("set QUANTBENCH_LIVE to hit the live API")
	}

	b := New()
	end := time.Now()
	data, err := b.FetchHistory(context.Background(), collector.Pair{Base: "BTC", Quote: "USDT"}, core.Timeframe1d, end.AddDate(0, 0, -7), end)
	if err != nil {
		t.Fatalf("FetchHistory failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected at least one kline")
	}
}
