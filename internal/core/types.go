package core

import (
	"math"
	"time"
)

// Timeframe is a bar interval such as "1h" or "1d".
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe12h Timeframe = "12h"
	Timeframe1d  Timeframe = "1d"
)

var timeframeDurations = map[Timeframe]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe12h: 12 * time.Hour,
	Timeframe1d:  24 * time.Hour,
}

// Duration returns the bar length, or zero for an unknown timeframe.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// Valid reports whether the timeframe is known.
func (tf Timeframe) Valid() bool {
	_, ok := timeframeDurations[tf]
	return ok
}

// BarsPerYear is the annualization factor for per-bar returns.
// Unknown timeframes fall back to hourly bars.
func (tf Timeframe) BarsPerYear() float64 {
	d := tf.Duration()
	if d == 0 {
		return 8760
	}
	return float64(365*24*time.Hour) / float64(d)
}

// OHLCV represents a candlestick/bar
type OHLCV struct {
	Symbol   string
	Interval Timeframe
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Time     time.Time
}

// IsValid checks that prices are finite and positive with a sane range.
func (o OHLCV) IsValid() bool {
	for _, p := range []float64{o.Open, o.High, o.Low, o.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return false
		}
	}
	return o.High >= o.Low
}

// Signal is a strategy's directional intent for a bar.
type Signal int

const (
	SignalSell Signal = -1
	SignalHold Signal = 0
	SignalBuy  Signal = 1
)

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	default:
		return "hold"
	}
}

// Bar is a price bar annotated with a signal and the indicator values
// that produced it. Bars are not modified once handed to the engine.
type Bar struct {
	OHLCV
	Signal     Signal
	Indicators map[string]float64
}

// Bars wraps plain candles into unsignalled bars.
func Bars(candles []OHLCV) []Bar {
	out := make([]Bar, len(candles))
	for i, c := range candles {
		out[i] = Bar{OHLCV: c}
	}
	return out
}

// Closes extracts the close series.
func Closes(candles []OHLCV) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
