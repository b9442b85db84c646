package indicator

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Returns computes simple percentage returns; the first value is 0.
func Returns(prices []float64) []float64 {
	out := make([]float64, len(prices))
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			out[i] = prices[i]/prices[i-1] - 1
		}
	}
	return out
}

// RollingStd is the rolling sample standard deviation over period values,
// aligned to the input. Windows that contain NaN yield NaN.
func RollingStd(values []float64, period int) []float64 {
	return rollingStd(values, period, 1)
}

// RollingPopStd is the rolling population standard deviation.
func RollingPopStd(values []float64, period int) []float64 {
	return rollingStd(values, period, 0)
}

func rollingStd(values []float64, period, ddof int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= ddof {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		if slices.ContainsFunc(window, math.IsNaN) {
			continue
		}
		if ddof == 0 {
			out[i] = math.Sqrt(stat.PopVariance(window, nil))
		} else {
			out[i] = stat.StdDev(window, nil)
		}
	}
	return out
}
