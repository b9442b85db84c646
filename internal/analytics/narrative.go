package analytics

import (
	"fmt"
	"time"
)

// Verdict is the machine-readable form of a narrative conclusion.
type Verdict string

const (
	VerdictTechnicalRuin        Verdict = "technical_ruin"
	VerdictCapitalDeterioration Verdict = "capital_deterioration"
	VerdictNoEdge               Verdict = "no_edge"
	VerdictFragileEdge          Verdict = "fragile_edge"
	VerdictDefensiveEdge        Verdict = "defensive_edge"
	VerdictDecorrelated         Verdict = "decorrelated_unprofitable"
	VerdictStructuralEdge       Verdict = "structural_edge"
)

// Thresholds drive the narrative rule chain and the risk assessment.
type Thresholds struct {
	Ruin             float64 `mapstructure:"ruin" json:"ruin"`
	Deterioration    float64 `mapstructure:"deterioration" json:"deterioration"`
	Significance     float64 `mapstructure:"significance" json:"significance"`
	Fragility        float64 `mapstructure:"fragility" json:"fragility"`
	ExtremeFragility float64 `mapstructure:"extreme_fragility" json:"extreme_fragility"`
	Inaction         float64 `mapstructure:"inaction" json:"inaction"`
}

// DefaultThresholds returns the standard rule cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Ruin:             -90,
		Deterioration:    -20,
		Significance:     0.05,
		Fragility:        18,
		ExtremeFragility: 25,
		Inaction:         3,
	}
}

// Evidence is the subset of analytics the classifier reads.
type Evidence struct {
	TotalReturn     float64
	BenchmarkReturn float64
	PValue          float64
	Stability       float64
	Inaction        float64
}

// Classify applies the ordered rule chain; the first matching rule wins.
func Classify(ev Evidence, th Thresholds) (Verdict, string) {
	switch {
	case ev.TotalReturn <= th.Ruin:
		return VerdictTechnicalRuin, "TECHNICAL RUIN: the algorithm destroyed practically all of the capital. The risk of ruin is absolute."
	case ev.TotalReturn < th.Deterioration && ev.TotalReturn < ev.BenchmarkReturn:
		return VerdictCapitalDeterioration, "CAPITAL DETERIORATION: the strategy does not just lose money, it amplifies the market's losses."
	case ev.PValue > th.Significance:
		return VerdictNoEdge, "Failed research: there is no statistical edge. The behaviour is pure noise or a copy of the market."
	case ev.Stability > th.Fragility:
		return VerdictFragileEdge, "WARNING: fragile edge. Small parameter changes break the system. Probably a statistical mirage."
	case ev.Inaction > th.Inaction:
		return VerdictDefensiveEdge, fmt.Sprintf("Defensive edge confirmed. The real value lies in staying out: %.1f%% of declines were avoided.", ev.Inaction)
	case ev.TotalReturn < 0:
		return VerdictDecorrelated, "Defensive decorrelation (not profitable yet). The algorithm is coherent and distinct, but its edge does not beat fees or adverse trends."
	default:
		return VerdictStructuralEdge, "Structure detected. The algorithm behaves distinctly, stably and profitably against the benchmark."
	}
}

// RiskAssessment grades robustness from stability and significance.
func RiskAssessment(stability, pValue float64, th Thresholds) string {
	switch {
	case stability > th.ExtremeFragility:
		return "Extreme fragility"
	case pValue < th.Significance:
		return "Consistent"
	default:
		return "Inconclusive"
	}
}

// StressMoment locates the deepest drawdown bar and says whether the
// strategy fared better or worse than the market on that bar.
func StressMoment(times []time.Time, drawdown, strategy, market []float64) string {
	if len(drawdown) == 0 || len(times) != len(drawdown) {
		return ""
	}
	idx := 0
	for i, d := range drawdown {
		if d < drawdown[idx] {
			idx = i
		}
	}
	msg := fmt.Sprintf("Maximum stress detected near %s. ", times[idx].UTC().Format("2006-01-02 15:04"))
	if idx < len(strategy) && idx < len(market) && strategy[idx] > market[idx] {
		return msg + "The algorithm cushioned the hit better than the market."
	}
	return msg + "The algorithm amplified the decline; structural risk detected."
}
