// Package analytics derives performance, significance and risk diagnostics
// from an equity path and its benchmark.
package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Returns computes per-bar percentage changes. The first value is 0 and
// undefined changes are reported as 0.
func Returns(series []float64) []float64 {
	out := make([]float64, len(series))
	for i := 1; i < len(series); i++ {
		out[i] = finite((series[i] - series[i-1]) / series[i-1])
	}
	return out
}

// TotalReturn is the end-to-start change of the series in percent.
func TotalReturn(series []float64) float64 {
	if len(series) < 2 || series[0] == 0 {
		return 0
	}
	return finite((series[len(series)-1] - series[0]) / series[0] * 100)
}

// Drawdown returns (equity - runningMax) / runningMax * 100 for every bar.
// Values are always <= 0 and the first value is 0.
func Drawdown(equity []float64) []float64 {
	out := make([]float64, len(equity))
	peak := math.Inf(-1)
	for i, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			out[i] = math.Min(0, finite((v-peak)/peak*100))
		}
	}
	return out
}

// MaxDrawdown is the most negative drawdown value in percent.
func MaxDrawdown(drawdown []float64) float64 {
	var worst float64
	for _, d := range drawdown {
		if d < worst {
			worst = d
		}
	}
	return worst
}

// Sharpe computes mean/std * sqrt(barsPerYear) over per-bar returns,
// ignoring the leading zero return. It is 0 when the standard deviation
// is zero or undefined.
func Sharpe(returns []float64, barsPerYear float64) float64 {
	if len(returns) < 3 {
		return 0
	}
	r := returns[1:]
	mean, std := stat.MeanStdDev(r, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return finite(mean / std * math.Sqrt(barsPerYear))
}

// BenchmarkCurve is buy-and-hold of the close series scaled to capital.
func BenchmarkCurve(closes []float64, capital float64) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 || closes[0] == 0 {
		return out
	}
	for i, c := range closes {
		out[i] = c / closes[0] * capital
	}
	return out
}

// TimeShare returns part/whole*100, or 0 for an empty whole.
func TimeShare(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
