// Package panel holds the aligned date × asset matrix of daily adjusted
// closes that every backtest reads from.
package panel

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/stockpick/internal/core"
)

// Panel is an immutable matrix of prices. Row i holds the closes of every
// asset on dates[i]; a missing close is NaN, never zero.
//
// A Panel is never mutated after New returns, so a single instance can be
// shared by any number of concurrent backtests.
type Panel struct {
	dates  []time.Time
	assets []string
	index  map[string]int
	rows   [][]float64
}

// New validates the inputs and builds a Panel. rows[i][j] is the price of
// assets[j] on dates[i]. The slices are retained, callers must not modify
// them afterwards.
func New(dates []time.Time, assets []string, rows [][]float64) (*Panel, error) {
	if len(dates) == 0 || len(assets) == 0 {
		return nil, core.ErrEmptyPanel
	}
	if len(rows) != len(dates) {
		return nil, core.WrapError(core.ErrInvalidPanel,
			fmt.Errorf("%d rows for %d dates", len(rows), len(dates)))
	}

	index := make(map[string]int, len(assets))
	for j, a := range assets {
		if a == "" {
			return nil, core.WrapError(core.ErrInvalidPanel, fmt.Errorf("empty asset id at column %d", j))
		}
		if _, dup := index[a]; dup {
			return nil, core.WrapError(core.ErrInvalidPanel, fmt.Errorf("duplicate asset %q", a))
		}
		index[a] = j
	}

	for i := range dates {
		if i > 0 && !dates[i].After(dates[i-1]) {
			return nil, core.WrapError(core.ErrInvalidPanel,
				fmt.Errorf("dates not strictly increasing at row %d (%s)", i, dates[i].Format(time.DateOnly)))
		}
		if len(rows[i]) != len(assets) {
			return nil, core.WrapError(core.ErrInvalidPanel,
				fmt.Errorf("row %d has %d prices, want %d", i, len(rows[i]), len(assets)))
		}
	}

	return &Panel{
		dates:  dates,
		assets: assets,
		index:  index,
		rows:   rows,
	}, nil
}

// Len returns the number of trading dates
func (p *Panel) Len() int {
	return len(p.dates)
}

// Width returns the number of assets
func (p *Panel) Width() int {
	return len(p.assets)
}

// Assets returns the asset ids in column order
func (p *Panel) Assets() []string {
	out := make([]string, len(p.assets))
	copy(out, p.assets)
	return out
}

// Dates returns the trading dates in ascending order
func (p *Panel) Dates() []time.Time {
	out := make([]time.Time, len(p.dates))
	copy(out, p.dates)
	return out
}

// Date returns the date of row i
func (p *Panel) Date(i int) time.Time {
	return p.dates[i]
}

// First returns the first trading date
func (p *Panel) First() time.Time {
	return p.dates[0]
}

// End returns the last trading date
func (p *Panel) End() time.Time {
	return p.dates[len(p.dates)-1]
}

// Column returns the column index of an asset
func (p *Panel) Column(asset string) (int, bool) {
	j, ok := p.index[asset]
	return j, ok
}

// At returns the raw cell value, NaN when missing
func (p *Panel) At(i, j int) float64 {
	return p.rows[i][j]
}

// Price returns the close of asset on row i. ok is false for unknown
// assets and missing prices.
func (p *Panel) Price(i int, asset string) (float64, bool) {
	j, ok := p.index[asset]
	if !ok {
		return math.NaN(), false
	}
	v := p.rows[i][j]
	return v, !IsMissing(v)
}

// Head returns a view of the first n rows. It shares storage with p.
func (p *Panel) Head(n int) *Panel {
	if n < 0 {
		n = 0
	}
	if n > len(p.dates) {
		n = len(p.dates)
	}
	return &Panel{
		dates:  p.dates[:n],
		assets: p.assets,
		index:  p.index,
		rows:   p.rows[:n],
	}
}

// Row returns a price lookup bound to row i
func (p *Panel) Row(i int) Row {
	return Row{p: p, i: i}
}

// Last returns the lookup for the final row
func (p *Panel) Last() Row {
	return Row{p: p, i: len(p.dates) - 1}
}

// Row is the cross-section of prices on one trading date.
type Row struct {
	p *Panel
	i int
}

// Index returns the row number within the panel
func (r Row) Index() int {
	return r.i
}

// Date returns the trading date of the row
func (r Row) Date() time.Time {
	return r.p.dates[r.i]
}

// Price returns the asset close on this date; ok is false when missing.
func (r Row) Price(asset string) (float64, bool) {
	return r.p.Price(r.i, asset)
}

// IsMissing reports whether v encodes a missing price
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Day truncates t to a UTC calendar date
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
