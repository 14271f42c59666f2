package strategy

import (
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/panel"
)

// TradingDaysPerMonth converts a lookback in months into panel rows.
const TradingDaysPerMonth = 21

// Params configures a selection policy. Params are immutable once a policy
// is built from them.
type Params struct {
	NStocks           int     `json:"n_stocks"`
	LookbackMonths    int     `json:"lookback_months"`
	StopLossThreshold float64 `json:"stop_loss_threshold"`
}

// Window returns the lookback expressed in trading days
func (p Params) Window() int {
	return p.LookbackMonths * TradingDaysPerMonth
}

// Validate checks the parameters shared by every policy
func (p Params) Validate() error {
	if p.NStocks <= 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("n_stocks must be positive, got %d", p.NStocks))
	}
	if p.LookbackMonths <= 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("lookback_months must be positive, got %d", p.LookbackMonths))
	}
	return nil
}

// ValidateStopLoss checks that the stop-loss threshold is a loss, i.e.
// strictly negative.
func (p Params) ValidateStopLoss() error {
	if !(p.StopLossThreshold < 0) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("stop_loss_threshold must be negative, got %g", p.StopLossThreshold))
	}
	return nil
}

// SelectionContext is what a policy sees on a rebalance date
type SelectionContext struct {
	Date    time.Time
	History *panel.Panel // rows up to and including Date
	Held    []string     // current target set
}

// Policy picks the target set of assets on each rebalance date.
//
// Select returns an error wrapping core.ErrInsufficientHistory,
// core.ErrInsufficientCandidates or core.ErrInsufficientReplacements when
// the portfolio should stay unchanged for the period. Any other error is
// fatal to the run.
type Policy interface {
	Name() string
	Description() string
	Select(ctx SelectionContext) ([]string, error)
}

// IsNoChange reports whether err asks the caller to keep the current
// target set.
func IsNoChange(err error) bool {
	return errors.Is(err, core.ErrInsufficientHistory) ||
		errors.Is(err, core.ErrInsufficientCandidates) ||
		errors.Is(err, core.ErrInsufficientReplacements)
}
