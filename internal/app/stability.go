package app

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/newthinker/quantbench/internal/analytics"
	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/strategy"
)

// probe measures how much the total return moves when the tunable
// parameters of a strategy are scaled.
type probe struct {
	registry *strategy.Registry
	engine   *backtest.Engine
	factors  []float64
	logger   *zap.Logger
}

// Stability returns the population standard deviation, in percentage
// points, of the base total return and the total return of every perturbed
// parameter set. Perturbations the strategy rejects are skipped.
func (p *probe) Stability(id string, params map[string]any, candles []core.OHLCV, base float64) float64 {
	meta, err := p.registry.Metadata(id)
	if err != nil {
		return 0
	}
	merged := strategy.Merge(meta.DefaultParams(), params)

	returns := []float64{base}
	for _, f := range p.factors {
		scaled, ok := Perturb(meta.Params, merged, f)
		if !ok {
			return 0
		}
		r, err := p.totalReturn(id, scaled, candles)
		if err != nil {
			p.logger.Debug("perturbed run skipped",
				zap.String("strategy", id),
				zap.Float64("factor", f),
				zap.Error(err),
			)
			continue
		}
		returns = append(returns, r)
	}
	if len(returns) < 2 {
		return 0
	}
	return math.Sqrt(stat.PopVariance(returns, nil))
}

func (p *probe) totalReturn(id string, params map[string]any, candles []core.OHLCV) (float64, error) {
	s, err := p.registry.New(id, params)
	if err != nil {
		return 0, err
	}
	bars, err := s.GenerateSignals(candles)
	if err != nil {
		return 0, err
	}
	exec, err := p.engine.Simulate(bars)
	if err != nil {
		return 0, err
	}
	return analytics.TotalReturn(exec.EquityValues()), nil
}

// Perturb scales every tunable numeric parameter by factor, rounding
// integer parameters and keeping them at least 1. It reports false when
// the schema has no tunable numeric parameter.
func Perturb(schema []strategy.Parameter, params map[string]any, factor float64) (map[string]any, bool) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	touched := false
	for _, p := range schema {
		if !p.Tunable || p.Type != strategy.ParamNumber {
			continue
		}
		v, err := strategy.Float(params, p.Name, math.NaN())
		if err != nil || math.IsNaN(v) {
			continue
		}
		scaled := v * factor
		if p.Integer {
			out[p.Name] = max(1, int(math.Round(scaled)))
		} else {
			out[p.Name] = scaled
		}
		touched = true
	}
	return out, touched
}
