// Package schedule picks the panel rows on which a portfolio is rebalanced.
package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/stockpick/internal/core"
)

// Frequency is a rebalancing cadence
type Frequency string

const (
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
)

// Fallback strides used when the calendar yields fewer than two dates.
const (
	monthlyStride   = 21
	quarterlyStride = 63
)

// ParseFrequency accepts the long names and the single-letter aliases M and Q.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "m", "month":
		return Monthly, nil
	case "quarterly", "q", "quarter":
		return Quarterly, nil
	}
	return "", core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown rebalancing frequency %q", s))
}

// String returns the canonical name
func (f Frequency) String() string {
	return string(f)
}

func (f Frequency) months() int {
	if f == Quarterly {
		return 3
	}
	return 1
}

func (f Frequency) stride() int {
	if f == Quarterly {
		return quarterlyStride
	}
	return monthlyStride
}

// Indices returns the ordered, deduplicated row indices of the rebalance
// dates. For every period start (the 1st of each month, or of Jan/Apr/Jul/Oct)
// from the first one on or after dates[0] through the last date, the first
// trading day on or after that start is chosen. When that produces fewer
// than two dates, every 21st (monthly) or 63rd (quarterly) row from row 0
// is used instead.
func Indices(dates []time.Time, freq Frequency) []int {
	n := len(dates)
	if n == 0 {
		return nil
	}

	var out []int
	last := dates[n-1]
	for start := firstPeriodStart(dates[0], freq); !start.After(last); start = start.AddDate(0, freq.months(), 0) {
		i := sort.Search(n, func(k int) bool { return !dates[k].Before(start) })
		if i == n {
			break
		}
		if len(out) == 0 || out[len(out)-1] != i {
			out = append(out, i)
		}
	}

	if len(out) >= 2 {
		return out
	}

	out = out[:0]
	for i := 0; i < n; i += freq.stride() {
		out = append(out, i)
	}
	return out
}

// Dates maps indices back to their trading dates
func Dates(dates []time.Time, indices []int) []time.Time {
	out := make([]time.Time, len(indices))
	for k, i := range indices {
		out[k] = dates[i]
	}
	return out
}

// firstPeriodStart returns the earliest period start on or after t.
func firstPeriodStart(t time.Time, freq Frequency) time.Time {
	y, m, _ := t.Date()
	loc := t.Location()
	start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	if freq == Quarterly {
		qm := time.Month((int(m)-1)/3*3 + 1)
		start = time.Date(y, qm, 1, 0, 0, 0, 0, loc)
	}
	if start.Before(t) {
		start = start.AddDate(0, freq.months(), 0)
	}
	return start
}
