package analytics

import "time"

// SummaryText closes every report.
const SummaryText = "Structural diagnosis complete."

// Config holds the analytics knobs.
type Config struct {
	RegimeWindow int              `mapstructure:"regime_window" json:"regime_window"`
	MonteCarlo   MonteCarloConfig `mapstructure:"monte_carlo" json:"monte_carlo"`
	Thresholds   Thresholds       `mapstructure:"thresholds" json:"thresholds"`
}

// DefaultConfig returns the standard analytics settings.
func DefaultConfig() Config {
	return Config{
		RegimeWindow: 24,
		MonteCarlo:   DefaultMonteCarloConfig(),
		Thresholds:   DefaultThresholds(),
	}
}

// Series is the aligned input of one analysis: one entry per bar.
type Series struct {
	Times  []time.Time
	Equity []float64
	Closes []float64
}

// Report is the full set of derived diagnostics.
type Report struct {
	TotalReturn     float64      `json:"total_return"`
	MaxDrawdown     float64      `json:"max_drawdown"`
	Sharpe          float64      `json:"sharpe_ratio"`
	BenchmarkReturn float64      `json:"benchmark_return"`
	Benchmark       []float64    `json:"-"`
	Drawdown        []float64    `json:"-"`
	Returns         []float64    `json:"-"`
	MarketReturns   []float64    `json:"-"`
	TStat           float64      `json:"t_stat"`
	PValue          float64      `json:"p_value"`
	Significant     bool         `json:"is_significant"`
	Inaction        float64      `json:"inaction_value"`
	Stability       float64      `json:"stability_variance"`
	Regimes         []RegimeStat `json:"regime_stats"`
	MonteCarlo      []float64    `json:"monte_carlo_runs"`
	Verdict         Verdict      `json:"verdict"`
	Conclusion      string       `json:"conclusion"`
	RiskAssessment  string       `json:"risk_assessment"`
	StressMoment    string       `json:"stress_moment"`
	SummaryText     string       `json:"summary_text"`
}

// Analyze derives the report for an equity path against its close series.
// stability is the externally measured parameter sensitivity.
func Analyze(s Series, capital, barsPerYear, stability float64, cfg Config) Report {
	rets := Returns(s.Equity)
	market := Returns(s.Closes)
	dd := Drawdown(s.Equity)
	bench := BenchmarkCurve(s.Closes, capital)
	t, p := TTest(rets, market)

	r := Report{
		TotalReturn:     TotalReturn(s.Equity),
		MaxDrawdown:     MaxDrawdown(dd),
		Sharpe:          Sharpe(rets, barsPerYear),
		BenchmarkReturn: TotalReturn(s.Closes),
		Benchmark:       bench,
		Drawdown:        dd,
		Returns:         rets,
		MarketReturns:   market,
		TStat:           t,
		PValue:          p,
		Significant:     p < cfg.Thresholds.Significance,
		Inaction:        Inaction(rets, market),
		Stability:       stability,
		Regimes:         Regimes(s.Equity, rets, market, cfg.RegimeWindow),
		StressMoment:    StressMoment(s.Times, dd, rets, market),
		SummaryText:     SummaryText,
	}
	if len(s.Equity) > 0 {
		r.MonteCarlo = MonteCarlo(s.Equity[len(s.Equity)-1], cfg.MonteCarlo)
	}
	r.Verdict, r.Conclusion = Classify(Evidence{
		TotalReturn:     r.TotalReturn,
		BenchmarkReturn: r.BenchmarkReturn,
		PValue:          r.PValue,
		Stability:       r.Stability,
		Inaction:        r.Inaction,
	}, cfg.Thresholds)
	r.RiskAssessment = RiskAssessment(stability, p, cfg.Thresholds)
	return r
}
