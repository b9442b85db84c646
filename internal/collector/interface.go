package collector

import (
	"context"
	"time"

	"github.com/newthinker/quantbench/internal/core"
)

// Collector fetches historical candles from an exchange.
type Collector interface {
	Name() string
	// FetchHistory returns candles with open time in [start, end], oldest first.
	FetchHistory(ctx context.Context, pair Pair, tf core.Timeframe, start, end time.Time) ([]core.OHLCV, error)
}
