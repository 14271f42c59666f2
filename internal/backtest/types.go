package backtest

import (
	"fmt"
	"time"

	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/portfolio"
	"github.com/newthinker/stockpick/internal/schedule"
)

// Config holds the per-run settings that are not part of the policy
type Config struct {
	InitCash           float64            `json:"init_cash"`
	TransactionCostPct float64            `json:"transaction_cost_pct"`
	Frequency          schedule.Frequency `json:"rebalancing_freq"`
}

// Validate checks the run settings
func (c Config) Validate() error {
	if c.InitCash <= 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("init_cash must be positive, got %v", c.InitCash))
	}
	if c.TransactionCostPct < 0 || c.TransactionCostPct >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("transaction_cost_pct must be in [0, 1), got %v", c.TransactionCostPct))
	}
	if _, err := schedule.ParseFrequency(string(c.Frequency)); err != nil {
		return err
	}
	return nil
}

// Sample is the portfolio value on a rebalance date, taken before trading
type Sample struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// SkippedOrder is an order the ledger refused
type SkippedOrder struct {
	Asset  string         `json:"asset"`
	Side   portfolio.Side `json:"side"`
	Reason string         `json:"reason"`
}

// Rebalance records what happened on one rebalance date.
//
// Target is the intended set after the date; Held is the set of assets
// with a non-zero position. They differ when a buy could not be filled,
// or when a sell was skipped for a bad price: the asset then leaves
// Target but its shares stay in the ledger and are never sold later.
type Rebalance struct {
	Date     time.Time      `json:"date"`
	Target   []string       `json:"target"`
	Held     []string       `json:"held"`
	Sold     []string       `json:"sold,omitempty"`
	Bought   []string       `json:"bought,omitempty"`
	Skipped  []SkippedOrder `json:"skipped,omitempty"`
	NoChange string         `json:"no_change,omitempty"` // why the policy kept the set
	Cash     float64        `json:"cash"`
}

// Stats holds performance and cost statistics
type Stats struct {
	FinalValue      float64 `json:"final_value"`
	TotalReturn     float64 `json:"total_return_pct"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	MaxDrawdown     float64 `json:"max_drawdown_pct"` // always <= 0
	Volatility      float64 `json:"volatility_pct"`
	NumTransactions int     `json:"num_transactions"`
	TotalFees       float64 `json:"total_fees"`
	BuyVolume       float64 `json:"buy_volume"`
	SellVolume      float64 `json:"sell_volume"`
}

// Result holds the complete backtest output
type Result struct {
	Strategy     string                  `json:"strategy"`
	Seed         uint64                  `json:"seed"`
	StartDate    time.Time               `json:"start_date"`
	EndDate      time.Time               `json:"end_date"`
	Config       Config                  `json:"config"`
	Stats        Stats                   `json:"stats"`
	Samples      []Sample                `json:"samples"`
	Transactions []portfolio.Transaction `json:"transactions"`
	Rebalances   []Rebalance             `json:"rebalances"`
	FinalTarget  []string                `json:"final_target"`
	FinalHeld    []string                `json:"final_held"`
	Holdings     map[string]int64        `json:"holdings"`
	Cash         float64                 `json:"cash"`
}
