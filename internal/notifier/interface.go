// Package notifier announces finished studies to external channels.
package notifier

import (
	"context"
	"time"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Event describes a finished job. Headline metrics are in percent except
// the Sharpe ratio.
type Event struct {
	JobID       string    `json:"job_id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Strategy    string    `json:"strategy,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
	TotalReturn float64   `json:"total_return_pct"`
	SharpeRatio float64   `json:"sharpe_ratio"`
	MaxDrawdown float64   `json:"max_drawdown_pct"`
	Error       string    `json:"error,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Failed reports whether the job ended without a result
func (e Event) Failed() bool {
	return e.Error != ""
}

// Notifier defines the interface for job notification
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Send delivers a single event
	Send(ctx context.Context, event Event) error
}
