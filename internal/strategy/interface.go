package strategy

import (
	"github.com/newthinker/quantbench/internal/core"
)

// Config holds strategy configuration
type Config struct {
	Params map[string]any
}

// ParamType tells clients how to render and validate a parameter.
type ParamType string

const (
	ParamNumber ParamType = "number"
	ParamSelect ParamType = "select"
	ParamObject ParamType = "object"
)

// Parameter describes one tunable input of a strategy.
type Parameter struct {
	Name    string    `json:"name"`
	Label   string    `json:"label"`
	Type    ParamType `json:"type"`
	Default any       `json:"default,omitempty"`
	Options []string  `json:"options,omitempty"`
	// Integer parameters are rounded when perturbed.
	Integer bool `json:"integer,omitempty"`
	// Tunable marks numeric parameters that sensitivity probes may scale.
	Tunable bool `json:"tunable,omitempty"`
}

// Metadata is the catalogue entry shown to clients.
type Metadata struct {
	ID          string      `json:"id"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Logic       string      `json:"logic_explanation"`
	RiskProfile string      `json:"risk_profile"`
	Params      []Parameter `json:"params"`
}

// DefaultParams returns the default value of every parameter.
func (m Metadata) DefaultParams() map[string]any {
	out := make(map[string]any, len(m.Params))
	for _, p := range m.Params {
		if p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out
}

// Strategy turns a candle series into signalled bars. Implementations are
// pure: the same parameters and candles always give the same bars.
type Strategy interface {
	Name() string
	Description() string
	Parameters() []Parameter
	Init(cfg Config) error
	GenerateSignals(candles []core.OHLCV) ([]core.Bar, error)
}
