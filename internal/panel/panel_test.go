package panel

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/newthinker/stockpick/internal/core"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNew_Valid(t *testing.T) {
	p, err := New(
		[]time.Time{day("2024-01-02"), day("2024-01-03")},
		[]string{"AAPL", "MSFT"},
		[][]float64{{100, 200}, {101, math.NaN()}},
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if p.Len() != 2 || p.Width() != 2 {
		t.Fatalf("shape = %dx%d, want 2x2", p.Len(), p.Width())
	}
	if v, ok := p.Price(1, "AAPL"); !ok || v != 101 {
		t.Errorf("Price(1, AAPL) = %v, %v, want 101, true", v, ok)
	}
	if _, ok := p.Price(1, "MSFT"); ok {
		t.Error("missing price should report ok=false")
	}
	if _, ok := p.Price(0, "GOOG"); ok {
		t.Error("unknown asset should report ok=false")
	}
	if !p.End().Equal(day("2024-01-03")) {
		t.Errorf("End() = %v", p.End())
	}
}

func TestNew_Invalid(t *testing.T) {
	d1, d2 := day("2024-01-02"), day("2024-01-03")
	tests := []struct {
		name   string
		dates  []time.Time
		assets []string
		rows   [][]float64
		want   *core.Error
	}{
		{"no dates", nil, []string{"A"}, nil, core.ErrEmptyPanel},
		{"no assets", []time.Time{d1}, nil, [][]float64{{}}, core.ErrEmptyPanel},
		{"row count", []time.Time{d1, d2}, []string{"A"}, [][]float64{{1}}, core.ErrInvalidPanel},
		{"duplicate asset", []time.Time{d1}, []string{"A", "A"}, [][]float64{{1, 2}}, core.ErrInvalidPanel},
		{"unordered dates", []time.Time{d2, d1}, []string{"A"}, [][]float64{{1}, {2}}, core.ErrInvalidPanel},
		{"repeated date", []time.Time{d1, d1}, []string{"A"}, [][]float64{{1}, {2}}, core.ErrInvalidPanel},
		{"ragged row", []time.Time{d1}, []string{"A", "B"}, [][]float64{{1}}, core.ErrInvalidPanel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.dates, tt.assets, tt.rows)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPanel_HeadSharesStorage(t *testing.T) {
	p, _ := New(
		[]time.Time{day("2024-01-02"), day("2024-01-03"), day("2024-01-04")},
		[]string{"A"},
		[][]float64{{1}, {2}, {3}},
	)

	h := p.Head(2)
	if h.Len() != 2 {
		t.Fatalf("Head(2).Len() = %d", h.Len())
	}
	if v, _ := h.Last().Price("A"); v != 2 {
		t.Errorf("Head(2) last price = %v, want 2", v)
	}
	if p.Head(10).Len() != 3 {
		t.Error("Head beyond length should clamp")
	}
	if p.Head(-1).Len() != 0 {
		t.Error("negative Head should be empty")
	}
}

func TestPanel_AccessorsReturnCopies(t *testing.T) {
	p, _ := New([]time.Time{day("2024-01-02")}, []string{"A", "B"}, [][]float64{{1, 2}})

	assets := p.Assets()
	assets[0] = "Z"
	if p.Assets()[0] != "A" {
		t.Error("Assets() must not expose internal storage")
	}

	dates := p.Dates()
	dates[0] = time.Time{}
	if p.First().IsZero() {
		t.Error("Dates() must not expose internal storage")
	}
}

func TestRow_Price(t *testing.T) {
	p, _ := New(
		[]time.Time{day("2024-01-02"), day("2024-01-03")},
		[]string{"A"},
		[][]float64{{10}, {11}},
	)

	r := p.Row(1)
	if r.Index() != 1 || !r.Date().Equal(day("2024-01-03")) {
		t.Errorf("row = %d %v", r.Index(), r.Date())
	}
	if v, ok := r.Price("A"); !ok || v != 11 {
		t.Errorf("Price = %v, %v", v, ok)
	}
}
