package indicator

// Bollinger returns the middle, upper and lower bands, each aligned to
// the input. Band width uses the population standard deviation.
func Bollinger(prices []float64, period int, k float64) (mid, upper, lower []float64) {
	mid = SMASeries(prices, period)
	std := RollingPopStd(prices, period)
	upper = make([]float64, len(prices))
	lower = make([]float64, len(prices))
	for i := range prices {
		upper[i] = mid[i] + k*std[i]
		lower[i] = mid[i] - k*std[i]
	}
	return mid, upper, lower
}

// MACD returns the MACD line (fast EMA minus slow EMA), its signal line
// and the histogram, each aligned to the input.
func MACD(prices []float64, fast, slow, signal int) (line, sig, hist []float64) {
	fastEMA := EMASeries(prices, fast)
	slowEMA := EMASeries(prices, slow)
	line = make([]float64, len(prices))
	for i := range prices {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig = EMASeries(line, signal)
	hist = make([]float64, len(prices))
	for i := range prices {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}
