package volatility

import (
	"fmt"
	"math"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/indicator"
	"github.com/newthinker/quantbench/internal/strategy"
)

const ID = "volatility_filter"

var Meta = strategy.Metadata{
	ID:          ID,
	Label:       "Volatility Filter",
	Description: "Flags bars where realised volatility is above a threshold.",
	Logic:       "Emits a buy flag while the rolling standard deviation of returns exceeds the threshold. Meant as the filter leg of an ensemble.",
	RiskProfile: "Enters high-volatility regimes without a directional view.",
	Params: []strategy.Parameter{
		{Name: "length", Label: "Length", Type: strategy.ParamNumber, Default: 20, Integer: true, Tunable: true},
		{Name: "threshold_pct", Label: "Threshold (%)", Type: strategy.ParamNumber, Default: 0.5, Tunable: true},
	},
}

// Filter is a volatility regime flag.
type Filter struct {
	window    int
	threshold float64
}

func New(window int, threshold float64) *Filter {
	return &Filter{window: window, threshold: threshold}
}

func (f *Filter) Name() string { return ID }

func (f *Filter) Description() string {
	return fmt.Sprintf("Volatility > %.2f%% over %d bars", f.threshold, f.window)
}

func (f *Filter) Parameters() []strategy.Parameter { return Meta.Params }

func (f *Filter) Init(cfg strategy.Config) error {
	var err error
	if f.window, err = strategy.Period(cfg.Params, "length", 20, 2); err != nil {
		return err
	}
	if f.threshold, err = strategy.Float(cfg.Params, "threshold_pct", 0.5); err != nil {
		return err
	}
	return nil
}

func (f *Filter) GenerateSignals(candles []core.OHLCV) ([]core.Bar, error) {
	returns := indicator.Returns(core.Closes(candles))
	if len(returns) > 0 {
		// there is no return before the first bar
		returns[0] = math.NaN()
	}
	vol := indicator.RollingStd(returns, f.window)

	limit := f.threshold / 100
	signals := make([]core.Signal, len(candles))
	for i, v := range vol {
		if v > limit {
			signals[i] = core.SignalBuy
		}
	}
	return strategy.Annotate(candles, signals, map[string][]float64{fmt.Sprintf("VOL_%d", f.window): vol}), nil
}
