package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Order(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name string
		ev   Evidence
		want Verdict
	}{
		{"ruin beats everything", Evidence{TotalReturn: -95, BenchmarkReturn: -99, PValue: 0.9, Stability: 40}, VerdictTechnicalRuin},
		{"deterioration", Evidence{TotalReturn: -30, BenchmarkReturn: -10, PValue: 0.001}, VerdictCapitalDeterioration},
		{"loss but beats benchmark falls through", Evidence{TotalReturn: -30, BenchmarkReturn: -50, PValue: 0.5}, VerdictNoEdge},
		{"no edge", Evidence{TotalReturn: 50, PValue: 0.2}, VerdictNoEdge},
		{"fragile", Evidence{TotalReturn: 50, PValue: 0.01, Stability: 19}, VerdictFragileEdge},
		{"defensive", Evidence{TotalReturn: 5, PValue: 0.01, Stability: 2, Inaction: 4}, VerdictDefensiveEdge},
		{"decorrelated", Evidence{TotalReturn: -5, PValue: 0.01, Stability: 2, Inaction: 1}, VerdictDecorrelated},
		{"structural", Evidence{TotalReturn: 5, PValue: 0.01, Stability: 2, Inaction: 1}, VerdictStructuralEdge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, text := Classify(tt.ev, th)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, text)
		})
	}
}

func TestClassify_DefensiveMentionsAvoided(t *testing.T) {
	_, text := Classify(Evidence{TotalReturn: 1, PValue: 0.01, Inaction: 12.34}, DefaultThresholds())
	assert.Contains(t, text, "12.3%")
}

func TestRiskAssessment(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, "Extreme fragility", RiskAssessment(30, 0.01, th))
	assert.Equal(t, "Consistent", RiskAssessment(0, 0.01, th))
	assert.Equal(t, "Inconclusive", RiskAssessment(0, 0.5, th))
}

func TestStressMoment(t *testing.T) {
	base := time.Date(2022, 6, 18, 0, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour)}
	dd := []float64{0, -12, -3}

	msg := StressMoment(times, dd, []float64{0, -0.01, 0}, []float64{0, -0.05, 0})
	assert.Contains(t, msg, "2022-06-18 01:00")
	assert.Contains(t, msg, "cushioned")

	msg = StressMoment(times, dd, []float64{0, -0.08, 0}, []float64{0, -0.05, 0})
	assert.Contains(t, msg, "amplified")

	assert.Empty(t, StressMoment(nil, nil, nil, nil))
}

func TestAnalyze_FlatMarket(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 30
	s := Series{Times: make([]time.Time, n), Equity: make([]float64, n), Closes: make([]float64, n)}
	for i := 0; i < n; i++ {
		s.Times[i] = base.Add(time.Duration(i) * time.Hour)
		s.Equity[i] = 10000
		s.Closes[i] = 100
	}
	cfg := DefaultConfig()
	cfg.MonteCarlo.Seed = 1

	r := Analyze(s, 10000, 8760, 0, cfg)
	assert.Equal(t, 0.0, r.TotalReturn)
	assert.Equal(t, 0.0, r.Sharpe)
	assert.Equal(t, 0.0, r.MaxDrawdown)
	assert.Equal(t, 1.0, r.PValue)
	assert.False(t, r.Significant)
	assert.Equal(t, VerdictNoEdge, r.Verdict)
	assert.Equal(t, "Inconclusive", r.RiskAssessment)
	assert.Len(t, r.Drawdown, n)
	assert.Len(t, r.Benchmark, n)
	assert.Len(t, r.MonteCarlo, 50)
	assert.Equal(t, SummaryText, r.SummaryText)
}
