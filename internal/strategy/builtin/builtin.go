// Package builtin assembles the strategy catalogue served by quantbench.
package builtin

import (
	"github.com/newthinker/quantbench/internal/strategy"
	"github.com/newthinker/quantbench/internal/strategy/bollinger"
	"github.com/newthinker/quantbench/internal/strategy/ensemble"
	"github.com/newthinker/quantbench/internal/strategy/macd"
	"github.com/newthinker/quantbench/internal/strategy/random"
	"github.com/newthinker/quantbench/internal/strategy/rsi"
	"github.com/newthinker/quantbench/internal/strategy/sma_crossover"
	"github.com/newthinker/quantbench/internal/strategy/volatility"
)

// DefaultID is the alias clients may use for the default strategy.
const DefaultID = "default"

// NewRegistry returns a registry holding every built-in strategy.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	r.Register(sma_crossover.Meta, func() strategy.Strategy { return &sma_crossover.SMACrossover{} })
	r.Register(rsi.Meta, func() strategy.Strategy { return &rsi.Reversal{} })
	r.Register(volatility.Meta, func() strategy.Strategy { return &volatility.Filter{} })
	r.Register(bollinger.Meta, func() strategy.Strategy { return &bollinger.Reversion{} })
	r.Register(macd.Meta, func() strategy.Strategy { return &macd.Momentum{} })
	r.Register(random.Meta, func() strategy.Strategy { return &random.Baseline{} })
	r.Register(ensemble.Meta, func() strategy.Strategy { return ensemble.New(r) })
	r.Alias(DefaultID, sma_crossover.ID)
	return r
}
