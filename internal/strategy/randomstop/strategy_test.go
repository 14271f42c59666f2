package randomstop

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/panel"
	"github.com/newthinker/stockpick/internal/strategy"
)

func build(t *testing.T, assets []string, rows [][]float64) *panel.Panel {
	t.Helper()
	dates := make([]time.Time, len(rows))
	for i := range rows {
		dates[i] = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	p, err := panel.New(dates, assets, rows)
	require.NoError(t, err)
	return p
}

func flat(n, width int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, width)
		for j := range rows[i] {
			rows[i][j] = 100
		}
	}
	return rows
}

func universe(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("S%02d", i)
	}
	return out
}

func TestRandomStopLoss_Implementation(t *testing.T) {
	var _ strategy.Policy = (*RandomStopLoss)(nil)
}

func TestRandomStopLoss_InitialDrawNeedsNoHistory(t *testing.T) {
	p := build(t, universe(10), flat(1, 10))
	r := New(strategy.Params{NStocks: 4, LookbackMonths: 1, StopLossThreshold: -0.1}, 1)

	got, err := r.Select(strategy.SelectionContext{History: p})
	require.NoError(t, err)
	require.Len(t, got, 4)

	seen := map[string]bool{}
	for _, a := range got {
		assert.False(t, seen[a], "duplicate %s", a)
		seen[a] = true
	}
}

func TestRandomStopLoss_Reproducible(t *testing.T) {
	assets := universe(20)
	rows := flat(63, 20)
	// every other asset crashes so evictions happen
	for i := range rows {
		for j := 0; j < 20; j += 2 {
			rows[i][j] = 100 - float64(i)
		}
	}
	p := build(t, assets, rows)
	params := strategy.Params{NStocks: 5, LookbackMonths: 1, StopLossThreshold: -0.05}

	run := func(seed uint64) [][]string {
		pol := New(params, seed)
		var out [][]string
		for _, n := range []int{1, 21, 42, 63} {
			got, err := pol.Select(strategy.SelectionContext{History: p.Head(n)})
			require.NoError(t, err)
			out = append(out, got)
		}
		return out
	}

	assert.Equal(t, run(42), run(42))

	differs := false
	for seed := uint64(0); seed < 10 && !differs; seed++ {
		differs = fmt.Sprint(run(seed)) != fmt.Sprint(run(seed+1))
	}
	assert.True(t, differs, "different seeds should eventually differ")
}

func TestRandomStopLoss_EvictsLosers(t *testing.T) {
	assets := []string{"A", "B", "C"}
	rows := flat(21, 3)
	p := build(t, assets, rows)

	r := New(strategy.Params{NStocks: 2, LookbackMonths: 1, StopLossThreshold: -0.1}, 3)
	first, err := r.Select(strategy.SelectionContext{History: p.Head(1)})
	require.NoError(t, err)

	// crash the first held asset over the window
	loser := first[0]
	j, _ := p.Column(loser)
	crashed := flat(21, 3)
	crashed[20][j] = 50
	cp := build(t, assets, crashed)

	got, err := r.Select(strategy.SelectionContext{History: cp, Held: first})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.NotContains(t, got, loser)
	assert.Equal(t, first[1], got[1], "survivor keeps its slot")
}

func TestRandomStopLoss_NoEvictionKeepsSet(t *testing.T) {
	p := build(t, universe(5), flat(21, 5))
	r := New(strategy.Params{NStocks: 3, LookbackMonths: 1, StopLossThreshold: -0.1}, 9)

	first, err := r.Select(strategy.SelectionContext{History: p.Head(1)})
	require.NoError(t, err)
	again, err := r.Select(strategy.SelectionContext{History: p})
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestRandomStopLoss_MissingPerfNeverEvicts(t *testing.T) {
	assets := []string{"A", "B"}
	p := build(t, assets, flat(1, 2))
	r := New(strategy.Params{NStocks: 2, LookbackMonths: 1, StopLossThreshold: 0.5}, 0)
	_, err := r.Select(strategy.SelectionContext{History: p})
	require.NoError(t, err)

	rows := flat(21, 2)
	rows[0][0] = math.NaN()
	rows[20][1] = math.NaN()
	got, err := r.Select(strategy.SelectionContext{History: build(t, assets, rows)})
	require.NoError(t, err)
	assert.ElementsMatch(t, assets, got)
}

func TestRandomStopLoss_InsufficientReplacements(t *testing.T) {
	assets := []string{"A", "B", "C"}
	r := New(strategy.Params{NStocks: 2, LookbackMonths: 1, StopLossThreshold: -0.1}, 5)
	first, err := r.Select(strategy.SelectionContext{History: build(t, assets, flat(1, 3))})
	require.NoError(t, err)

	// both held assets crash, only one asset is free
	rows := flat(21, 3)
	for _, a := range first {
		for j, name := range assets {
			if name == a {
				rows[20][j] = 10
			}
		}
	}
	_, err = r.Select(strategy.SelectionContext{History: build(t, assets, rows)})
	assert.True(t, errors.Is(err, core.ErrInsufficientReplacements), "got %v", err)

	// state is untouched by the skipped eviction
	assert.Equal(t, first, r.target())
}

func TestRandomStopLoss_InsufficientHistory(t *testing.T) {
	p := build(t, universe(3), flat(10, 3))
	r := New(strategy.Params{NStocks: 1, LookbackMonths: 1}, 0)

	_, err := r.Select(strategy.SelectionContext{History: p})
	require.NoError(t, err)
	_, err = r.Select(strategy.SelectionContext{History: p})
	assert.True(t, errors.Is(err, core.ErrInsufficientHistory))
}

func TestRandomStopLoss_TooManyStocks(t *testing.T) {
	p := build(t, universe(3), flat(1, 3))
	pol, err := Factory(strategy.Params{NStocks: 4, LookbackMonths: 1, StopLossThreshold: -0.1}, 0)
	require.NoError(t, err)

	_, err = pol.Select(strategy.SelectionContext{History: p})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
	assert.False(t, strategy.IsNoChange(err))
}

func TestFactory_RejectsNonNegativeStopLoss(t *testing.T) {
	for _, threshold := range []float64{0, 0.5, math.NaN()} {
		_, err := Factory(strategy.Params{NStocks: 2, LookbackMonths: 1, StopLossThreshold: threshold}, 0)
		assert.True(t, errors.Is(err, core.ErrConfigInvalid), "threshold %v: got %v", threshold, err)
	}

	_, err := Factory(strategy.Params{NStocks: 2, LookbackMonths: 1, StopLossThreshold: -0.05}, 0)
	assert.NoError(t, err)
}
