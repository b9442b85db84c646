package history

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/quantbench/internal/core"
)

func sampleRun(id string, created time.Time, strategy string) Run {
	return Run{
		ID:              id,
		CreatedAt:       created,
		Symbol:          "BTC/USDT",
		Timeframe:       "1h",
		Strategy:        strategy,
		Params:          map[string]any{"fast_period": 10.0},
		Start:           created.Add(-48 * time.Hour),
		End:             created,
		Bars:            48,
		TotalReturn:     12.5,
		BenchmarkReturn: 3,
		SharpeRatio:     1.2,
		MaxDrawdown:     -4,
		PValue:          0.2,
		Trades:          3,
		Verdict:         "failed_research",
		ElapsedMS:       15,
	}
}

func TestStore_SaveGet(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "db", "runs.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	run := sampleRun("r1", created, "sma_crossover")
	run.SharpeRatio = math.NaN()
	require.NoError(t, s.Save(ctx, run))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, 10.0, got.Params["fast_period"])
	assert.Equal(t, 0.0, got.SharpeRatio)
	assert.Equal(t, 12.5, got.TotalReturn)
	assert.Equal(t, 48, got.Bars)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNoData)
}

func TestStore_ListNewestFirstWithFilter(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, sampleRun("a", base, "sma_crossover")))
	require.NoError(t, s.Save(ctx, sampleRun("b", base.Add(time.Hour), "rsi")))
	require.NoError(t, s.Save(ctx, sampleRun("c", base.Add(2*time.Hour), "sma_crossover")))

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)

	sma, err := s.List(ctx, Filter{Strategy: "sma_crossover", Limit: 1})
	require.NoError(t, err)
	require.Len(t, sma, 1)
	assert.Equal(t, "c", sma[0].ID)
}
