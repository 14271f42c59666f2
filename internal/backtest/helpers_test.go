package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/newthinker/stockpick/internal/panel"
	"github.com/newthinker/stockpick/internal/strategy"
)

// weekdays returns every Monday to Friday in [from, to].
func weekdays(from, to time.Time) []time.Time {
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fixturePanel is one year of three assets: A drifts up, B rallies then
// fades after row 130, C falls then rallies after row 130.
func fixturePanel(t *testing.T) *panel.Panel {
	t.Helper()
	dates := weekdays(date(2023, 1, 2), date(2023, 12, 29))
	rows := make([][]float64, len(dates))
	for i := range dates {
		rows[i] = []float64{
			100 * math.Pow(1.001, float64(i)),
			kinked(1.003, 0.998, i),
			kinked(0.999, 1.004, i),
		}
	}
	p, err := panel.New(dates, []string{"A", "B", "C"}, rows)
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return p
}

func kinked(before, after float64, i int) float64 {
	if i <= 130 {
		return 100 * math.Pow(before, float64(i))
	}
	return 100 * math.Pow(before, 130) * math.Pow(after, float64(i-130))
}

// scripted returns a fixed target per call, or an error when the script
// entry is nil and err is set.
type scripted struct {
	targets [][]string
	errs    []error
	calls   int
	seen    []strategy.SelectionContext
}

func (s *scripted) Name() string        { return "scripted" }
func (s *scripted) Description() string { return "scripted policy for tests" }
func (s *scripted) Select(ctx strategy.SelectionContext) ([]string, error) {
	k := s.calls
	s.calls++
	s.seen = append(s.seen, ctx)
	if k < len(s.errs) && s.errs[k] != nil {
		return nil, s.errs[k]
	}
	if k < len(s.targets) {
		return s.targets[k], nil
	}
	return s.targets[len(s.targets)-1], nil
}
