package analytics

import (
	"math/rand/v2"
	"time"
)

// MonteCarloConfig controls the final-equity perturbation.
type MonteCarloConfig struct {
	Runs int     `mapstructure:"runs" json:"runs"`
	Low  float64 `mapstructure:"low" json:"low"`
	High float64 `mapstructure:"high" json:"high"`
	// Seed makes the draws reproducible; zero seeds from the clock.
	Seed uint64 `mapstructure:"seed" json:"seed"`
}

// DefaultMonteCarloConfig draws 50 samples in [0.85, 1.15).
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{Runs: 50, Low: 0.85, High: 1.15}
}

// MonteCarlo returns final * U[low, high) for each run. It is a coarse
// sensitivity band around the final equity, not a path resampling.
func MonteCarlo(final float64, cfg MonteCarloConfig) []float64 {
	if cfg.Runs <= 0 {
		return nil
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	span := cfg.High - cfg.Low
	out := make([]float64, cfg.Runs)
	for i := range out {
		out[i] = final * (cfg.Low + rng.Float64()*span)
	}
	return out
}
