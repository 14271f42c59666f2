// Package collector fetches daily close histories from upstream data
// providers and assembles them into price panels.
package collector

import (
	"context"
	"time"

	"github.com/newthinker/stockpick/internal/core"
)

// Config holds collector configuration
type Config struct {
	Enabled           bool
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   uint32        // consecutive failures that open the breaker
	BreakerCooldown   time.Duration // time the breaker stays open
	Extra             map[string]any
}

// Collector defines the interface for data collectors
type Collector interface {
	Name() string
	SupportedMarkets() []core.Market
	Init(cfg Config) error

	// FetchHistory returns the daily adjusted closes of symbol in
	// [start, end], oldest first.
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*core.Series, error)
}
