package montecarlo

import (
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{5, 1, 4, 2, 3})

	checks := []struct {
		name      string
		got, want float64
	}{
		{"mean", s.Mean, 3},
		{"median", s.Median, 3},
		{"min", s.Min, 1},
		{"max", s.Max, 5},
		{"p25", s.P25, 2},
		{"p75", s.P75, 4},
		{"p5", s.P5, 1.2},
		{"p95", s.P95, 4.8},
		{"std", s.Std, math.Sqrt(2.5)},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestSummarize_Degenerate(t *testing.T) {
	if s := Summarize(nil); s != (Summary{}) {
		t.Errorf("Summarize(nil) = %+v", s)
	}
	s := Summarize([]float64{7})
	if s.Mean != 7 || s.Median != 7 || s.Std != 0 || s.P95 != 7 {
		t.Errorf("single value summary = %+v", s)
	}
}

func TestSummarize_DoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Summarize(in)
	if in[0] != 3 || in[1] != 1 {
		t.Errorf("input reordered: %v", in)
	}
}
