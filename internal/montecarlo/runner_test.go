package montecarlo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/stockpick/internal/backtest"
	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/metrics"
	"github.com/newthinker/stockpick/internal/panel"
	"github.com/newthinker/stockpick/internal/schedule"
	"github.com/newthinker/stockpick/internal/strategy"
	"github.com/newthinker/stockpick/internal/strategy/builtin"
)

// zigzag builds a year of prices where each asset oscillates with its own
// period so random baskets end up with different outcomes.
func zigzag(t *testing.T, width int) *panel.Panel {
	t.Helper()
	var dates []time.Time
	for d := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC); d.Year() == 2023; d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			dates = append(dates, d)
		}
	}
	assets := make([]string, width)
	for j := range assets {
		assets[j] = string(rune('A' + j))
	}
	rows := make([][]float64, len(dates))
	for i := range rows {
		rows[i] = make([]float64, width)
		for j := range rows[i] {
			period := 20 + 7*j
			phase := i % period
			if phase > period/2 {
				phase = period - phase
			}
			rows[i][j] = 50 + float64(j) + float64(phase)*(1+float64(j%3))
		}
	}
	p, err := panel.New(dates, assets, rows)
	require.NoError(t, err)
	return p
}

func spec(kind string) Spec {
	return Spec{
		Strategy: kind,
		Params:   strategy.Params{NStocks: 3, LookbackMonths: 1, StopLossThreshold: -0.05},
		Backtest: backtest.Config{InitCash: 10000, TransactionCostPct: 0.001, Frequency: schedule.Monthly},
	}
}

func TestRunner_MomentumRunsAreIdentical(t *testing.T) {
	r := NewRunner(builtin.Registry(nil), WithWorkers(4))

	report, err := r.Run(context.Background(), zigzag(t, 8), spec("momentum"), 6)
	require.NoError(t, err)
	require.Len(t, report.Runs, 6)

	for i, run := range report.Runs {
		assert.Equal(t, uint64(i), run.Seed)
		assert.Equal(t, report.Runs[0].Stats, run.Stats)
	}
	assert.Zero(t, report.Aggregate.TotalReturn.Std)
}

func TestRunner_Deterministic(t *testing.T) {
	p := zigzag(t, 10)
	reg := builtin.Registry(nil)

	a, err := NewRunner(reg, WithWorkers(1)).Run(context.Background(), p, spec("random_stoploss"), 12)
	require.NoError(t, err)
	b, err := NewRunner(reg, WithWorkers(8)).Run(context.Background(), p, spec("random_stoploss"), 12)
	require.NoError(t, err)

	assert.Equal(t, a.Runs, b.Runs, "worker count must not change results")
	assert.Equal(t, a.Aggregate, b.Aggregate)
}

func TestRunner_WinRate(t *testing.T) {
	runs := []Run{
		{Stats: backtest.Stats{TotalReturn: 5}},
		{Stats: backtest.Stats{TotalReturn: -2}},
		{Stats: backtest.Stats{TotalReturn: 0}},
		{Stats: backtest.Stats{TotalReturn: 1}},
	}
	agg := Aggregated(runs)
	assert.InDelta(t, 50, agg.WinRate, 1e-9)
	assert.InDelta(t, 1, agg.TotalReturn.Mean, 1e-9)
}

func TestRunner_KeepsSamples(t *testing.T) {
	r := NewRunner(builtin.Registry(nil), WithSamples(true))
	report, err := r.Run(context.Background(), zigzag(t, 5), spec("momentum"), 2)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Runs[0].Samples)
}

func TestRunner_Errors(t *testing.T) {
	r := NewRunner(builtin.Registry(nil))
	p := zigzag(t, 4)

	_, err := r.Run(context.Background(), p, spec("momentum"), 0)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	_, err = r.Run(context.Background(), p, spec("nope"), 3)
	assert.True(t, errors.Is(err, core.ErrStrategyUnknown))

	bad := spec("random_stoploss")
	bad.Params.NStocks = 9
	_, err = r.Run(context.Background(), p, bad, 3)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid), "got %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx, p, spec("momentum"), 3)
	assert.Error(t, err)
}

func TestRunner_RecordsMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	r := NewRunner(builtin.Registry(nil), WithMetrics(reg))
	_, err := r.Run(context.Background(), zigzag(t, 4), spec("momentum"), 2)
	require.NoError(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "stockpick_montecarlo_simulations_total" {
			found = true
		}
	}
	assert.True(t, found)
}
