package panel

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/stockpick/internal/core"
)

func TestFromSeries_AlignsOnUnionOfDates(t *testing.T) {
	series := []core.Series{
		{Symbol: "AAPL", Points: []core.Point{
			{Time: day("2024-01-02"), Close: 100},
			{Time: day("2024-01-04"), Close: 102},
		}},
		{Symbol: "MSFT", Points: []core.Point{
			{Time: day("2024-01-03").Add(14 * time.Hour), Close: 300},
			{Time: day("2024-01-04"), Close: 301},
		}},
	}

	p, err := FromSeries(series)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, p.Assets())
	require.Equal(t, 3, p.Len())
	assert.Equal(t, day("2024-01-03"), p.Date(1), "intraday timestamps truncate to the date")

	assert.True(t, IsMissing(p.At(0, 1)))
	assert.True(t, IsMissing(p.At(1, 0)))
	assert.Equal(t, 301.0, p.At(2, 1))
}

func TestFromSeries_Empty(t *testing.T) {
	_, err := FromSeries(nil)
	assert.True(t, errors.Is(err, core.ErrEmptyPanel))

	_, err = FromSeries([]core.Series{{Symbol: "A"}})
	assert.True(t, errors.Is(err, core.ErrEmptyPanel))
}

func TestClean_DropsSparseColumnsAndFills(t *testing.T) {
	nan := math.NaN()
	p, err := New(
		[]time.Time{day("2024-01-02"), day("2024-01-03"), day("2024-01-04"), day("2024-01-05"), day("2024-01-08")},
		[]string{"DENSE", "SPARSE"},
		[][]float64{
			{nan, 1},
			{10, nan},
			{11, nan},
			{12, nan},
			{13, nan},
		},
	)
	require.NoError(t, err)

	c, err := Clean(p, 0.75)
	require.NoError(t, err)

	assert.Equal(t, []string{"DENSE"}, c.Assets())
	want := []float64{10, 10, 11, 12, 13}
	for i, w := range want {
		assert.Equal(t, w, c.At(i, 0), "row %d", i)
	}
	assert.True(t, IsMissing(p.At(0, 0)), "source panel must stay untouched")
}

func TestClean_NothingLeft(t *testing.T) {
	nan := math.NaN()
	p, _ := New([]time.Time{day("2024-01-02"), day("2024-01-03")}, []string{"A"}, [][]float64{{nan}, {nan}})
	_, err := Clean(p, 0.5)
	assert.True(t, errors.Is(err, core.ErrEmptyPanel))
}

func TestSlice(t *testing.T) {
	p, _ := New(
		[]time.Time{day("2024-01-02"), day("2024-01-03"), day("2024-01-04")},
		[]string{"A"},
		[][]float64{{1}, {2}, {3}},
	)

	s, err := Slice(p, day("2024-01-03"), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2.0, s.At(0, 0))

	s, err = Slice(p, time.Time{}, day("2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	_, err = Slice(p, day("2025-01-01"), time.Time{})
	assert.True(t, errors.Is(err, core.ErrEmptyPanel))
}
