package panel

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/newthinker/stockpick/internal/core"
)

// FromSeries aligns per-asset close histories on the union of their dates.
// Column order follows the order of series. Dates absent from a series
// become missing cells; a repeated date keeps the last observation.
func FromSeries(series []core.Series) (*Panel, error) {
	if len(series) == 0 {
		return nil, core.ErrEmptyPanel
	}

	seen := make(map[time.Time]struct{})
	for _, s := range series {
		for _, pt := range s.Points {
			seen[Day(pt.Time)] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, core.WrapError(core.ErrEmptyPanel, fmt.Errorf("%d series without observations", len(series)))
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rowOf := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		rowOf[d] = i
	}

	assets := make([]string, len(series))
	rows := newRows(len(dates), len(series))
	for j, s := range series {
		assets[j] = s.Symbol
		for _, pt := range s.Points {
			v := pt.Close
			if v <= 0 {
				v = math.NaN()
			}
			rows[rowOf[Day(pt.Time)]][j] = v
		}
	}

	return New(dates, assets, rows)
}

// Clean drops assets whose share of present prices is below minCoverage,
// then forward-fills and backward-fills the gaps of the remaining columns.
// It mirrors the preparation applied to downloaded data before it is
// cached; panels loaded from elsewhere keep their gaps unless cleaned.
func Clean(p *Panel, minCoverage float64) (*Panel, error) {
	n := p.Len()
	var keep []int
	for j := range p.assets {
		present := 0
		for i := 0; i < n; i++ {
			if !IsMissing(p.rows[i][j]) {
				present++
			}
		}
		if float64(present) >= minCoverage*float64(n) && present > 0 {
			keep = append(keep, j)
		}
	}
	if len(keep) == 0 {
		return nil, core.WrapError(core.ErrEmptyPanel,
			fmt.Errorf("no asset reaches %.0f%% coverage", minCoverage*100))
	}

	assets := make([]string, len(keep))
	rows := newRows(n, len(keep))
	for k, j := range keep {
		assets[k] = p.assets[j]

		last := math.NaN()
		for i := 0; i < n; i++ {
			if v := p.rows[i][j]; !IsMissing(v) {
				last = v
			}
			rows[i][k] = last
		}

		next := math.NaN()
		for i := n - 1; i >= 0; i-- {
			if !IsMissing(rows[i][k]) {
				next = rows[i][k]
				continue
			}
			rows[i][k] = next
		}
	}

	dates := make([]time.Time, n)
	copy(dates, p.dates)
	return New(dates, assets, rows)
}

// Slice returns the rows whose dates fall within [start, end]. Zero
// bounds are open.
func Slice(p *Panel, start, end time.Time) (*Panel, error) {
	lo, hi := 0, p.Len()
	if !start.IsZero() {
		lo = sort.Search(p.Len(), func(i int) bool { return !p.dates[i].Before(start) })
	}
	if !end.IsZero() {
		hi = sort.Search(p.Len(), func(i int) bool { return p.dates[i].After(end) })
	}
	if lo >= hi {
		return nil, core.WrapError(core.ErrEmptyPanel,
			fmt.Errorf("no trading dates between %s and %s", start.Format(time.DateOnly), end.Format(time.DateOnly)))
	}
	return &Panel{
		dates:  p.dates[lo:hi],
		assets: p.assets,
		index:  p.index,
		rows:   p.rows[lo:hi],
	}, nil
}

func newRows(n, width int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, width)
		for j := range row {
			row[j] = math.NaN()
		}
		rows[i] = row
	}
	return rows
}
