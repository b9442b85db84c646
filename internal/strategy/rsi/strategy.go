package rsi

import (
	"fmt"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/indicator"
	"github.com/newthinker/quantbench/internal/strategy"
)

const ID = "rsi"

var Meta = strategy.Metadata{
	ID:          ID,
	Label:       "RSI Mean Reversion",
	Description: "Counter-trend entries when momentum leaves the oversold zone.",
	Logic:       "Buys when RSI drops below the oversold level and sells when it rises above the overbought level.",
	RiskProfile: "Catches falling knives in strong trends.",
	Params: []strategy.Parameter{
		{Name: "length", Label: "RSI length", Type: strategy.ParamNumber, Default: 14, Integer: true, Tunable: true},
		{Name: "oversold", Label: "Oversold level", Type: strategy.ParamNumber, Default: 30, Tunable: true},
		{Name: "overbought", Label: "Overbought level", Type: strategy.ParamNumber, Default: 70, Tunable: true},
	},
}

// Reversal trades RSI threshold crossings.
type Reversal struct {
	period     int
	oversold   float64
	overbought float64
}

func New(period int, oversold, overbought float64) *Reversal {
	return &Reversal{period: period, oversold: oversold, overbought: overbought}
}

func (r *Reversal) Name() string { return ID }

func (r *Reversal) Description() string {
	return fmt.Sprintf("RSI(%d) %.0f/%.0f", r.period, r.oversold, r.overbought)
}

func (r *Reversal) Parameters() []strategy.Parameter { return Meta.Params }

func (r *Reversal) Init(cfg strategy.Config) error {
	var err error
	if r.period, err = strategy.Period(cfg.Params, "length", 14, 1); err != nil {
		return err
	}
	if r.oversold, err = strategy.Float(cfg.Params, "oversold", 30); err != nil {
		return err
	}
	if r.overbought, err = strategy.Float(cfg.Params, "overbought", 70); err != nil {
		return err
	}
	if r.oversold >= r.overbought {
		return fmt.Errorf("oversold (%v) must be below overbought (%v)", r.oversold, r.overbought)
	}
	return nil
}

func (r *Reversal) GenerateSignals(candles []core.OHLCV) ([]core.Bar, error) {
	values := indicator.RSI(core.Closes(candles), r.period)

	signals := make([]core.Signal, len(candles))
	for i := 1; i < len(values); i++ {
		curr, prev := values[i], values[i-1]
		switch {
		case curr < r.oversold && prev >= r.oversold:
			signals[i] = core.SignalBuy
		case curr > r.overbought && prev <= r.overbought:
			signals[i] = core.SignalSell
		}
	}
	return strategy.Annotate(candles, signals, map[string][]float64{fmt.Sprintf("RSI_%d", r.period): values}), nil
}
