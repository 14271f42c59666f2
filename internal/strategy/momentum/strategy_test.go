package momentum

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/panel"
	"github.com/newthinker/stockpick/internal/strategy"
)

// trend builds n rows where asset j grows by rates[j] per row from 100.
func trend(t *testing.T, n int, assets []string, rates []float64) *panel.Panel {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, n)
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		dates[i] = start.AddDate(0, 0, i)
		row := make([]float64, len(assets))
		for j := range assets {
			row[j] = 100 * (1 + rates[j]*float64(i))
		}
		rows[i] = row
	}
	p, err := panel.New(dates, assets, rows)
	require.NoError(t, err)
	return p
}

func TestMomentum_Implementation(t *testing.T) {
	var _ strategy.Policy = (*Momentum)(nil)
}

func TestMomentum_SelectsTopN(t *testing.T) {
	p := trend(t, 21, []string{"A", "B", "C", "D"}, []float64{0.01, 0.03, -0.01, 0.02})
	m := New(strategy.Params{NStocks: 2, LookbackMonths: 1})

	got, err := m.Select(strategy.SelectionContext{Date: p.End(), History: p})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "D"}, got)
}

func TestMomentum_ClampsToUniverse(t *testing.T) {
	p := trend(t, 21, []string{"A", "B"}, []float64{0.01, 0.02})
	m := New(strategy.Params{NStocks: 5, LookbackMonths: 1})

	got, err := m.Select(strategy.SelectionContext{History: p})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, got)
}

func TestMomentum_TiesKeepColumnOrder(t *testing.T) {
	p := trend(t, 21, []string{"X", "Y", "Z"}, []float64{0.01, 0.01, 0.01})
	m := New(strategy.Params{NStocks: 2, LookbackMonths: 1})

	got, err := m.Select(strategy.SelectionContext{History: p})
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, got)
}

func TestMomentum_InsufficientHistory(t *testing.T) {
	p := trend(t, 20, []string{"A"}, []float64{0.01})
	m := New(strategy.Params{NStocks: 1, LookbackMonths: 1})

	_, err := m.Select(strategy.SelectionContext{History: p})
	assert.True(t, errors.Is(err, core.ErrInsufficientHistory), "got %v", err)
}

func TestMomentum_InsufficientCandidates(t *testing.T) {
	p := trend(t, 21, []string{"A", "B", "C"}, []float64{0.01, 0.02, 0.03})
	rows := make([][]float64, p.Len())
	for i := range rows {
		rows[i] = []float64{p.At(i, 0), p.At(i, 1), p.At(i, 2)}
	}
	rows[0][1] = math.NaN()
	rows[20][2] = math.NaN()
	gappy, err := panel.New(p.Dates(), p.Assets(), rows)
	require.NoError(t, err)

	m := New(strategy.Params{NStocks: 2, LookbackMonths: 1})
	_, err = m.Select(strategy.SelectionContext{History: gappy})
	assert.True(t, errors.Is(err, core.ErrInsufficientCandidates), "got %v", err)
	assert.True(t, strategy.IsNoChange(err))
}

func TestRank_MissingScoresNegInf(t *testing.T) {
	p := trend(t, 21, []string{"A", "B"}, []float64{0.01, 0.02})
	rows := make([][]float64, p.Len())
	for i := range rows {
		rows[i] = []float64{p.At(i, 0), p.At(i, 1)}
	}
	rows[0][1] = math.NaN()
	gappy, _ := panel.New(p.Dates(), p.Assets(), rows)

	scores := Rank(gappy, 21)
	assert.Equal(t, "A", scores[0].Asset)
	assert.InDelta(t, 0.2, scores[0].Momentum, 1e-12)
	assert.True(t, math.IsInf(scores[1].Momentum, -1))
}

func TestFactory_IgnoresSeed(t *testing.T) {
	p := trend(t, 42, []string{"A", "B", "C"}, []float64{0.03, 0.01, 0.02})
	params := strategy.Params{NStocks: 2, LookbackMonths: 1}

	var first []string
	for seed := uint64(0); seed < 5; seed++ {
		pol, err := Factory(params, seed)
		require.NoError(t, err)
		got, err := pol.Select(strategy.SelectionContext{History: p})
		require.NoError(t, err)
		if seed == 0 {
			first = got
			continue
		}
		assert.Equal(t, first, got, "seed %d", seed)
	}

	_, err := Factory(strategy.Params{}, 0)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}
