package rsi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/strategy"
)

func series(prices []float64) []core.OHLCV {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]core.OHLCV, len(prices))
	for i, p := range prices {
		out[i] = core.OHLCV{Open: p, High: p, Low: p, Close: p, Time: start.Add(time.Duration(i) * time.Hour)}
	}
	return out
}

func TestReversal_Signals(t *testing.T) {
	s := New(2, 30, 70)

	// RSI(2): idx2 = 50, idx3 ~92, idx4 ~10, idx5 ~77
	prices := []float64{100, 101, 100, 105, 80, 120}
	bars, err := s.GenerateSignals(series(prices))
	require.NoError(t, err)
	require.Len(t, bars, len(prices))

	assert.Equal(t, core.SignalSell, bars[3].Signal)
	assert.Equal(t, core.SignalBuy, bars[4].Signal)
	assert.Equal(t, core.SignalSell, bars[5].Signal)
	assert.Equal(t, core.SignalHold, bars[0].Signal)
	_, ok := bars[1].Indicators["RSI_2"]
	assert.False(t, ok)
	assert.Contains(t, bars[2].Indicators, "RSI_2")
}

func TestReversal_InitRejectsInvertedLevels(t *testing.T) {
	s := &Reversal{}
	err := s.Init(strategy.Config{Params: map[string]any{"oversold": 80, "overbought": 20}})
	assert.Error(t, err)

	require.NoError(t, s.Init(strategy.Config{Params: Meta.DefaultParams()}))
	assert.Equal(t, 14, s.period)
}
