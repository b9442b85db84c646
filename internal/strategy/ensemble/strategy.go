package ensemble

import (
	"fmt"
	"strings"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/strategy"
)

const ID = "ensemble"

// Operator combines the signals of two legs.
type Operator string

const (
	OpFilter Operator = "FILTER"
	OpAnd    Operator = "AND"
	OpOr     Operator = "OR"
)

var Meta = strategy.Metadata{
	ID:          ID,
	Label:       "Ensemble",
	Description: "Combines two registered strategies with a logical operator.",
	Logic:       "FILTER keeps the first leg's signal only while the second leg flags a buy. AND requires both legs to agree. OR takes the first non-zero signal.",
	RiskProfile: "Inherits the weaknesses of both legs. Extra parameters invite overfitting.",
	Params: []strategy.Parameter{
		{Name: "strat_a", Label: "Primary strategy", Type: strategy.ParamSelect, Default: "sma_crossover"},
		{Name: "strat_b", Label: "Secondary strategy", Type: strategy.ParamSelect, Default: "volatility_filter"},
		{Name: "operator", Label: "Operator", Type: strategy.ParamSelect, Default: string(OpFilter), Options: []string{string(OpFilter), string(OpAnd), string(OpOr)}},
		{Name: "params_a", Label: "Primary parameters", Type: strategy.ParamObject},
		{Name: "params_b", Label: "Secondary parameters", Type: strategy.ParamObject},
	},
}

// Ensemble resolves its legs from a registry at Init time.
type Ensemble struct {
	registry *strategy.Registry
	a, b     strategy.Strategy
	op       Operator
}

func New(registry *strategy.Registry) *Ensemble {
	return &Ensemble{registry: registry}
}

func (e *Ensemble) Name() string { return ID }

func (e *Ensemble) Description() string {
	if e.a == nil || e.b == nil {
		return "Ensemble"
	}
	return fmt.Sprintf("%s %s %s", e.a.Name(), e.op, e.b.Name())
}

func (e *Ensemble) Parameters() []strategy.Parameter { return Meta.Params }

func (e *Ensemble) Init(cfg strategy.Config) error {
	op, err := strategy.String(cfg.Params, "operator", string(OpFilter))
	if err != nil {
		return err
	}
	e.op = Operator(strings.ToUpper(op))
	switch e.op {
	case OpFilter, OpAnd, OpOr:
	default:
		return fmt.Errorf("unknown operator %q", op)
	}

	if e.a, err = e.leg(cfg.Params, "strat_a", "params_a", "sma_crossover"); err != nil {
		return err
	}
	if e.b, err = e.leg(cfg.Params, "strat_b", "params_b", "volatility_filter"); err != nil {
		return err
	}
	return nil
}

func (e *Ensemble) leg(params map[string]any, idKey, paramsKey, def string) (strategy.Strategy, error) {
	if e.registry == nil {
		return nil, fmt.Errorf("ensemble has no registry")
	}
	id, err := strategy.String(params, idKey, def)
	if err != nil {
		return nil, err
	}
	canonical, err := e.registry.Resolve(id)
	if err != nil {
		return nil, err
	}
	if canonical == ID {
		return nil, fmt.Errorf("%s: nested ensembles are not supported", idKey)
	}
	legParams, err := strategy.Map(params, paramsKey)
	if err != nil {
		return nil, err
	}
	return e.registry.New(canonical, legParams)
}

func (e *Ensemble) GenerateSignals(candles []core.OHLCV) ([]core.Bar, error) {
	if e.a == nil || e.b == nil {
		return nil, fmt.Errorf("ensemble not initialised")
	}
	barsA, err := e.a.GenerateSignals(candles)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.a.Name(), err)
	}
	barsB, err := e.b.GenerateSignals(candles)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.b.Name(), err)
	}

	out := make([]core.Bar, len(candles))
	for i := range candles {
		out[i] = core.Bar{
			OHLCV:  candles[i],
			Signal: Combine(e.op, barsA[i].Signal, barsB[i].Signal),
		}
		if n := len(barsA[i].Indicators) + len(barsB[i].Indicators); n > 0 {
			out[i].Indicators = make(map[string]float64, n)
			for k, v := range barsA[i].Indicators {
				out[i].Indicators[k] = v
			}
			for k, v := range barsB[i].Indicators {
				out[i].Indicators[k] = v
			}
		}
	}
	return out, nil
}

// Combine applies op to a pair of leg signals.
func Combine(op Operator, a, b core.Signal) core.Signal {
	switch op {
	case OpAnd:
		if a == b && a != core.SignalHold {
			return a
		}
		return core.SignalHold
	case OpOr:
		if a != core.SignalHold {
			return a
		}
		return b
	default:
		if b == core.SignalBuy {
			return a
		}
		return core.SignalHold
	}
}
