// Package scenario holds the catalogue of named historical market regimes
// and filters bar series to their date ranges.
package scenario

import (
	"fmt"
	"time"

	"github.com/newthinker/quantbench/internal/core"
)

// Scenario is a named historical window.
type Scenario struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Tags        []string  `json:"tags"`
}

// Contains reports whether t falls inside the window, both ends inclusive.
func (s Scenario) Contains(t time.Time) bool {
	return !t.Before(s.Start) && !t.After(s.End)
}

func utc(layout string) time.Time {
	t, err := time.Parse(time.RFC3339, layout)
	if err != nil {
		panic(err)
	}
	return t
}

var catalog = []Scenario{
	{
		ID:          "bull_2021",
		Label:       "The Great Bull Run (2021)",
		Description: "A period of mass euphoria where prices rose vertically. Ideal for testing trend-following strategies.",
		Start:       utc("2021-01-01T00:00:00Z"),
		End:         utc("2021-12-31T23:59:59Z"),
		Tags:        []string{"Trend", "Optimism", "High Returns"},
	},
	{
		ID:          "bear_2022",
		Label:       "Crypto Winter (2022)",
		Description: "Steady declines and an aggressive bear market. Tests risk management and the ability to protect capital.",
		Start:       utc("2022-01-01T00:00:00Z"),
		End:         utc("2022-12-31T23:59:59Z"),
		Tags:        []string{"Decline", "Risk", "Stress"},
	},
	{
		ID:          "recovery_2023",
		Label:       "Recovery and Calm (2023)",
		Description: "The market climbs out of the abyss and starts to consolidate, mixing sideways stretches with moderate rallies.",
		Start:       utc("2023-01-01T00:00:00Z"),
		End:         utc("2023-12-31T23:59:59Z"),
		Tags:        []string{"Sideways", "Recovery", "Consolidation"},
	},
	{
		ID:          "etf_2024",
		Label:       "Institutional Era (2024-Present)",
		Description: "ETF inflows and institutional adoption. A more mature market with professional volatility.",
		Start:       utc("2024-01-01T00:00:00Z"),
		End:         utc("2025-01-01T00:00:00Z"),
		Tags:        []string{"Maturity", "Institutional", "Volatility"},
	},
}

// All returns the catalogue in display order.
func All() []Scenario {
	out := make([]Scenario, len(catalog))
	copy(out, catalog)
	return out
}

// Get looks up a scenario by id.
func Get(id string) (Scenario, error) {
	for _, s := range catalog {
		if s.ID == id {
			return s, nil
		}
	}
	return Scenario{}, core.WrapError(core.ErrScenarioUnknown, fmt.Errorf("scenario %q", id))
}

// Window is an optional date range; zero bounds are open.
type Window struct {
	Start time.Time
	End   time.Time
}

// Resolve builds the effective window from a scenario id and explicit
// bounds. Explicit bounds narrow the scenario range.
func Resolve(id string, start, end time.Time) (Window, error) {
	w := Window{Start: start, End: end}
	if id == "" {
		return w, nil
	}
	s, err := Get(id)
	if err != nil {
		return Window{}, err
	}
	if w.Start.IsZero() || w.Start.Before(s.Start) {
		w.Start = s.Start
	}
	if w.End.IsZero() || w.End.After(s.End) {
		w.End = s.End
	}
	return w, nil
}

// Filter keeps candles inside the window. An empty result is ErrNoData.
func Filter(candles []core.OHLCV, w Window) ([]core.OHLCV, error) {
	if w.Start.IsZero() && w.End.IsZero() {
		if len(candles) == 0 {
			return nil, core.ErrNoData
		}
		return candles, nil
	}
	out := make([]core.OHLCV, 0, len(candles))
	for _, c := range candles {
		if !w.Start.IsZero() && c.Time.Before(w.Start) {
			continue
		}
		if !w.End.IsZero() && c.Time.After(w.End) {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("dataset empty after range filter"))
	}
	return out, nil
}
