package macd

import (
	"fmt"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/indicator"
	"github.com/newthinker/quantbench/internal/strategy"
)

const ID = "macd"

var Meta = strategy.Metadata{
	ID:          ID,
	Label:       "MACD Momentum",
	Description: "Momentum entries on MACD and signal line crosses.",
	Logic:       "Buys when the MACD line crosses above its signal line and sells on the cross below.",
	RiskProfile: "Double smoothing makes it late on sharp reversals.",
	Params: []strategy.Parameter{
		{Name: "fast_period", Label: "Fast EMA", Type: strategy.ParamNumber, Default: 12, Integer: true, Tunable: true},
		{Name: "slow_period", Label: "Slow EMA", Type: strategy.ParamNumber, Default: 26, Integer: true, Tunable: true},
		{Name: "signal_period", Label: "Signal EMA", Type: strategy.ParamNumber, Default: 9, Integer: true, Tunable: true},
	},
}

type Momentum struct {
	fast, slow, signal int
}

func New(fast, slow, signal int) *Momentum {
	return &Momentum{fast: fast, slow: slow, signal: signal}
}

func (m *Momentum) Name() string { return ID }

func (m *Momentum) Description() string {
	return fmt.Sprintf("MACD(%d, %d, %d)", m.fast, m.slow, m.signal)
}

func (m *Momentum) Parameters() []strategy.Parameter { return Meta.Params }

func (m *Momentum) Init(cfg strategy.Config) error {
	var err error
	if m.fast, err = strategy.Period(cfg.Params, "fast_period", 12, 1); err != nil {
		return err
	}
	if m.slow, err = strategy.Period(cfg.Params, "slow_period", 26, 1); err != nil {
		return err
	}
	if m.signal, err = strategy.Period(cfg.Params, "signal_period", 9, 1); err != nil {
		return err
	}
	if m.fast >= m.slow {
		return fmt.Errorf("fast_period (%d) must be below slow_period (%d)", m.fast, m.slow)
	}
	return nil
}

func (m *Momentum) GenerateSignals(candles []core.OHLCV) ([]core.Bar, error) {
	line, sig, hist := indicator.MACD(core.Closes(candles), m.fast, m.slow, m.signal)

	signals := make([]core.Signal, len(candles))
	for i := range candles {
		switch {
		case strategy.CrossAbove(line, sig, i):
			signals[i] = core.SignalBuy
		case strategy.CrossBelow(line, sig, i):
			signals[i] = core.SignalSell
		}
	}
	return strategy.Annotate(candles, signals, map[string][]float64{
		"MACD":        line,
		"MACD_Signal": sig,
		"MACD_Hist":   hist,
	}), nil
}
