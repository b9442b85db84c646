package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// TTest is an unpaired two-sample Student t-test with pooled variance.
// Degenerate inputs (fewer than two samples per side or zero pooled
// variance) yield t = 0 and p = 1.
func TTest(a, b []float64) (t, p float64) {
	n1, n2 := float64(len(a)), float64(len(b))
	if n1 < 2 || n2 < 2 {
		return 0, 1
	}
	m1, v1 := stat.MeanVariance(a, nil)
	m2, v2 := stat.MeanVariance(b, nil)
	df := n1 + n2 - 2
	pooled := ((n1-1)*v1 + (n2-1)*v2) / df
	se := math.Sqrt(pooled * (1/n1 + 1/n2))
	if se == 0 || math.IsNaN(se) {
		return 0, 1
	}
	t = (m1 - m2) / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * (1 - dist.CDF(math.Abs(t)))
	if math.IsNaN(p) {
		return 0, 1
	}
	return t, math.Min(1, math.Max(0, p))
}

// Inaction measures the market moves the strategy sat out: the negated sum
// of market returns over bars where the strategy return was flat, in percent.
// Positive values mean the idle bars were net declines.
func Inaction(strategy, market []float64) float64 {
	var sum float64
	for i := range strategy {
		if i < len(market) && math.Abs(strategy[i]) < 1e-10 {
			sum += market[i]
		}
	}
	return finite(-sum * 100)
}
