package strategy

import (
	"math"

	"github.com/newthinker/quantbench/internal/core"
)

// Annotate zips candles with their signals and the named indicator series.
// NaN indicator values (warm-up) are left out of the per-bar map.
func Annotate(candles []core.OHLCV, signals []core.Signal, series map[string][]float64) []core.Bar {
	bars := make([]core.Bar, len(candles))
	for i, c := range candles {
		bars[i] = core.Bar{OHLCV: c, Signal: signals[i]}
		for name, values := range series {
			if i < len(values) && !math.IsNaN(values[i]) {
				if bars[i].Indicators == nil {
					bars[i].Indicators = make(map[string]float64, len(series))
				}
				bars[i].Indicators[name] = values[i]
			}
		}
	}
	return bars
}

// CrossAbove reports a upward cross of a over b at index i. Comparisons
// against warm-up NaN values are false, so no cross is reported there.
func CrossAbove(a, b []float64, i int) bool {
	return i > 0 && a[i] > b[i] && a[i-1] <= b[i-1]
}

// CrossBelow reports a downward cross of a under b at index i.
func CrossBelow(a, b []float64, i int) bool {
	return i > 0 && a[i] < b[i] && a[i-1] >= b[i-1]
}
