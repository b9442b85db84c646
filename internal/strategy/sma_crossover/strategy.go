package sma_crossover

import (
	"fmt"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/indicator"
	"github.com/newthinker/quantbench/internal/strategy"
)

const ID = "sma_crossover"

// Meta is the catalogue entry for the crossover strategy.
var Meta = strategy.Metadata{
	ID:          ID,
	Label:       "SMA Crossover",
	Description: "Trend following on the cross of a fast and a slow simple moving average.",
	Logic:       "Buys when the fast SMA crosses above the slow SMA (golden cross) and sells on the opposite cross (death cross).",
	RiskProfile: "Lags turning points and whipsaws in sideways markets.",
	Params: []strategy.Parameter{
		{Name: "fast_period", Label: "Fast period", Type: strategy.ParamNumber, Default: 10, Integer: true, Tunable: true},
		{Name: "slow_period", Label: "Slow period", Type: strategy.ParamNumber, Default: 20, Integer: true, Tunable: true},
	},
}

// SMACrossover implements a moving average crossover strategy
type SMACrossover struct {
	fastPeriod int
	slowPeriod int
}

// New creates a new SMA Crossover strategy
func New(fastPeriod, slowPeriod int) *SMACrossover {
	return &SMACrossover{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}
}

func (m *SMACrossover) Name() string {
	return ID
}

func (m *SMACrossover) Description() string {
	return fmt.Sprintf("SMA Crossover (%d/%d)", m.fastPeriod, m.slowPeriod)
}

func (m *SMACrossover) Parameters() []strategy.Parameter {
	return Meta.Params
}

func (m *SMACrossover) Init(cfg strategy.Config) error {
	var err error
	if m.fastPeriod, err = strategy.Period(cfg.Params, "fast_period", 10, 1); err != nil {
		return err
	}
	if m.slowPeriod, err = strategy.Period(cfg.Params, "slow_period", 20, 1); err != nil {
		return err
	}
	return nil
}

func (m *SMACrossover) GenerateSignals(candles []core.OHLCV) ([]core.Bar, error) {
	prices := core.Closes(candles)
	fastMA := indicator.SMASeries(prices, m.fastPeriod)
	slowMA := indicator.SMASeries(prices, m.slowPeriod)

	signals := make([]core.Signal, len(candles))
	for i := range candles {
		switch {
		// Golden Cross: fast crosses above slow
		case strategy.CrossAbove(fastMA, slowMA, i):
			signals[i] = core.SignalBuy
		// Death Cross: fast crosses below slow
		case strategy.CrossBelow(fastMA, slowMA, i):
			signals[i] = core.SignalSell
		}
	}

	return strategy.Annotate(candles, signals, map[string][]float64{
		fmt.Sprintf("SMA_%d", m.fastPeriod): fastMA,
		fmt.Sprintf("SMA_%d", m.slowPeriod): slowMA,
	}), nil
}
