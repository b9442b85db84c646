package indicator

import "math"

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	// Calculate first SMA
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// EMA calculates Exponential Moving Average seeded with the SMA of the
// first period values.
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)
	multiplier := 2.0 / float64(period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)
	result = append(result, ema)

	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		result = append(result, ema)
	}

	return result
}

// Align right-aligns a shortened indicator slice to length n, padding the
// warm-up region with NaN so index i lines up with bar i.
func Align(values []float64, n int) []float64 {
	out := make([]float64, n)
	pad := n - len(values)
	for i := range out {
		if i < pad {
			out[i] = math.NaN()
		} else {
			out[i] = values[i-pad]
		}
	}
	return out
}

// SMASeries is SMA aligned to the input length.
func SMASeries(prices []float64, period int) []float64 {
	return Align(SMA(prices, period), len(prices))
}

// EMASeries is EMA aligned to the input length. Leading NaNs in prices are
// skipped so an EMA can be stacked on another aligned series.
func EMASeries(prices []float64, period int) []float64 {
	start := 0
	for start < len(prices) && math.IsNaN(prices[start]) {
		start++
	}
	return Align(EMA(prices[start:], period), len(prices))
}
