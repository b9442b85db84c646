package random

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/strategy"
)

const ID = "random"

var Meta = strategy.Metadata{
	ID:          ID,
	Label:       "Random Baseline",
	Description: "Seeded coin flips used as a null hypothesis.",
	Logic:       "Each bar emits a buy or a sell with the given probability, split evenly, and holds otherwise.",
	RiskProfile: "No edge by construction. Any profit is luck.",
	Params: []strategy.Parameter{
		{Name: "probability", Label: "Signal probability", Type: strategy.ParamNumber, Default: 0.05, Tunable: true},
		{Name: "seed", Label: "Seed", Type: strategy.ParamNumber, Default: 42, Integer: true},
	},
}

// Baseline emits seeded random signals.
type Baseline struct {
	probability float64
	seed        uint64
}

func New(probability float64, seed uint64) *Baseline {
	return &Baseline{probability: clamp(probability), seed: seed}
}

func (b *Baseline) Name() string { return ID }

func (b *Baseline) Description() string {
	return fmt.Sprintf("Random p=%.3f seed=%d", b.probability, b.seed)
}

func (b *Baseline) Parameters() []strategy.Parameter { return Meta.Params }

func (b *Baseline) Init(cfg strategy.Config) error {
	p, err := strategy.Float(cfg.Params, "probability", 0.05)
	if err != nil {
		return err
	}
	seed, err := strategy.Int(cfg.Params, "seed", 42)
	if err != nil {
		return err
	}
	b.probability = clamp(p)
	b.seed = uint64(seed)
	return nil
}

func (b *Baseline) GenerateSignals(candles []core.OHLCV) ([]core.Bar, error) {
	rng := rand.New(rand.NewPCG(b.seed, b.seed))
	none := 1 - b.probability
	buy := none + b.probability/2

	signals := make([]core.Signal, len(candles))
	for i := range signals {
		u := rng.Float64()
		switch {
		case u < none:
			signals[i] = core.SignalHold
		case u < buy:
			signals[i] = core.SignalBuy
		default:
			signals[i] = core.SignalSell
		}
	}
	return strategy.Annotate(candles, signals, nil), nil
}

func clamp(p float64) float64 {
	return math.Max(0, math.Min(1, p))
}
