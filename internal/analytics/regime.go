package analytics

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/newthinker/quantbench/internal/indicator"
)

// Regime labels.
const (
	RegimeLowVolatility  = "Low Volatility"
	RegimeHighVolatility = "High Volatility"
)

// RegimeStat summarises strategy behaviour inside one volatility regime.
type RegimeStat struct {
	Label       string  `json:"label"`
	TotalReturn float64 `json:"total_return"`
	Volatility  float64 `json:"volatility"`
	// Sharpe is the per-bar mean/std ratio, not annualized.
	Sharpe           float64 `json:"sharpe"`
	PercentageOfTime float64 `json:"percentage_of_time"`
}

// Regimes splits bars by the rolling sample volatility of market returns
// over window bars. Bars at or below the median volatility are low
// volatility, bars above it high volatility, and warm-up bars belong to
// neither. Regimes with fewer than two bars are omitted.
func Regimes(equity, strategyReturns, marketReturns []float64, window int) []RegimeStat {
	n := len(equity)
	if n == 0 || window < 2 {
		return nil
	}
	vol := indicator.RollingStd(marketReturns, window)

	var known []float64
	for _, v := range vol {
		if !math.IsNaN(v) {
			known = append(known, v)
		}
	}
	if len(known) == 0 {
		return nil
	}
	med := median(known)

	buckets := []struct {
		label string
		match func(float64) bool
	}{
		{RegimeLowVolatility, func(v float64) bool { return v <= med }},
		{RegimeHighVolatility, func(v float64) bool { return v > med }},
	}

	var out []RegimeStat
	for _, b := range buckets {
		var eq, rets []float64
		for i, v := range vol {
			if math.IsNaN(v) || !b.match(v) {
				continue
			}
			eq = append(eq, equity[i])
			rets = append(rets, strategyReturns[i])
		}
		if len(eq) <= 1 {
			continue
		}
		mean, std := stat.MeanStdDev(rets, nil)
		sharpe := 0.0
		if std > 0 {
			sharpe = mean / std
		}
		total := 0.0
		if eq[0] != 0 {
			total = (eq[len(eq)-1]/eq[0] - 1) * 100
		}
		out = append(out, RegimeStat{
			Label:            b.label,
			TotalReturn:      finite(total),
			Volatility:       finite(std),
			Sharpe:           finite(sharpe),
			PercentageOfTime: float64(len(eq)) / float64(n),
		})
	}
	return out
}

func median(values []float64) float64 {
	s := slices.Clone(values)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}
