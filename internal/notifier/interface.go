// internal/notifier/interface.go
package notifier

import (
	"context"
	"time"
)

// EventType names what happened to a run.
type EventType string

const (
	EventRunCompleted EventType = "run.completed"
	EventRunFailed    EventType = "run.failed"
)

// Event summarises one finished backtest run. Curves and trades are left
// out; receivers fetch the archived result by RunID when they need them.
type Event struct {
	Type        EventType      `json:"type"`
	RunID       string         `json:"run_id,omitempty"`
	Symbol      string         `json:"symbol"`
	Timeframe   string         `json:"timeframe,omitempty"`
	Strategy    string         `json:"strategy"`
	Params      map[string]any `json:"params,omitempty"`
	Scenario    string         `json:"scenario,omitempty"`
	TotalReturn float64        `json:"total_return"`
	Benchmark   float64        `json:"benchmark_return"`
	Sharpe      float64        `json:"sharpe_ratio"`
	MaxDrawdown float64        `json:"max_drawdown"`
	Verdict     string         `json:"verdict,omitempty"`
	Error       string         `json:"error,omitempty"`
	ErrorCode   string         `json:"error_code,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// Notifier delivers run events to an external receiver.
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Notify delivers a single event
	Notify(ctx context.Context, event Event) error
}
