package core

import (
	"math"
	"testing"
	"time"
)

func TestTimeframe_BarsPerYear(t *testing.T) {
	tests := []struct {
		tf   Timeframe
		want float64
	}{
		{Timeframe1h, 8760},
		{Timeframe4h, 2190},
		{Timeframe12h, 730},
		{Timeframe1d, 365},
		{Timeframe1m, 525600},
		{Timeframe("7x"), 8760},
	}

	for _, tt := range tests {
		t.Run(string(tt.tf), func(t *testing.T) {
			if got := tt.tf.BarsPerYear(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("BarsPerYear() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeframe_Valid(t *testing.T) {
	if !Timeframe4h.Valid() {
		t.Error("4h should be valid")
	}
	if Timeframe("2w").Valid() {
		t.Error("2w should be invalid")
	}
}

func TestOHLCV_IsValid(t *testing.T) {
	ok := OHLCV{Open: 100, High: 105, Low: 95, Close: 101, Time: time.Now()}
	if !ok.IsValid() {
		t.Error("expected valid bar")
	}

	tests := []struct {
		name string
		bar  OHLCV
	}{
		{"zero close", OHLCV{Open: 1, High: 1, Low: 1, Close: 0}},
		{"nan high", OHLCV{Open: 1, High: math.NaN(), Low: 1, Close: 1}},
		{"inverted range", OHLCV{Open: 1, High: 0.5, Low: 1, Close: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.bar.IsValid() {
				t.Error("expected invalid bar")
			}
		})
	}
}

func TestSignal_String(t *testing.T) {
	signals := []Signal{SignalBuy, SignalSell, SignalHold}
	expected := []string{"buy", "sell", "hold"}

	for i, s := range signals {
		if s.String() != expected[i] {
			t.Errorf("expected %s, got %s", expected[i], s)
		}
	}
}

func TestBarsAndCloses(t *testing.T) {
	candles := []OHLCV{{Close: 1}, {Close: 2}}
	bars := Bars(candles)
	if len(bars) != 2 || bars[1].Close != 2 || bars[1].Signal != SignalHold {
		t.Errorf("unexpected bars: %+v", bars)
	}
	closes := Closes(candles)
	if closes[0] != 1 || closes[1] != 2 {
		t.Errorf("unexpected closes: %v", closes)
	}
}
