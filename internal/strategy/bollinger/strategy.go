package bollinger

import (
	"fmt"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/indicator"
	"github.com/newthinker/quantbench/internal/strategy"
)

const ID = "bollinger_bands"

var Meta = strategy.Metadata{
	ID:          ID,
	Label:       "Bollinger Reversion",
	Description: "Fades closes outside the Bollinger bands.",
	Logic:       "Buys when the close falls below the lower band and sells when it rises above the upper band.",
	RiskProfile: "Band walks in trending markets keep it on the wrong side.",
	Params: []strategy.Parameter{
		{Name: "length", Label: "Length", Type: strategy.ParamNumber, Default: 20, Integer: true, Tunable: true},
		{Name: "std_dev", Label: "Band width (std)", Type: strategy.ParamNumber, Default: 2.0, Tunable: true},
	},
}

type Reversion struct {
	period int
	k      float64
}

func New(period int, k float64) *Reversion {
	return &Reversion{period: period, k: k}
}

func (r *Reversion) Name() string { return ID }

func (r *Reversion) Description() string {
	return fmt.Sprintf("Bollinger(%d, %.1f)", r.period, r.k)
}

func (r *Reversion) Parameters() []strategy.Parameter { return Meta.Params }

func (r *Reversion) Init(cfg strategy.Config) error {
	var err error
	if r.period, err = strategy.Period(cfg.Params, "length", 20, 2); err != nil {
		return err
	}
	if r.k, err = strategy.Float(cfg.Params, "std_dev", 2); err != nil {
		return err
	}
	if r.k <= 0 {
		return fmt.Errorf("std_dev must be positive")
	}
	return nil
}

func (r *Reversion) GenerateSignals(candles []core.OHLCV) ([]core.Bar, error) {
	prices := core.Closes(candles)
	mid, upper, lower := indicator.Bollinger(prices, r.period, r.k)

	signals := make([]core.Signal, len(candles))
	for i, p := range prices {
		switch {
		case p < lower[i]:
			signals[i] = core.SignalBuy
		case p > upper[i]:
			signals[i] = core.SignalSell
		}
	}
	return strategy.Annotate(candles, signals, map[string][]float64{
		"BB_Mid":   mid,
		"BB_Upper": upper,
		"BB_Lower": lower,
	}), nil
}
