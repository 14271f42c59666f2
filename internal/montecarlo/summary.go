package montecarlo

import (
	"math"
	"sort"
)

// Summary aggregates one metric across runs
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P5     float64 `json:"p5"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	P95    float64 `json:"p95"`
}

// Summarize computes the summary of xs. Std is the sample standard
// deviation, zero for fewer than two values. Percentiles interpolate
// linearly between order statistics.
func Summarize(xs []float64) Summary {
	if len(xs) == 0 {
		return Summary{}
	}

	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	var sum float64
	for _, x := range sorted {
		sum += x
	}
	mean := sum / float64(len(sorted))

	var std float64
	if len(sorted) > 1 {
		var ss float64
		for _, x := range sorted {
			ss += (x - mean) * (x - mean)
		}
		std = math.Sqrt(ss / float64(len(sorted)-1))
	}

	return Summary{
		Mean:   mean,
		Median: Quantile(sorted, 0.5),
		Std:    std,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P5:     Quantile(sorted, 0.05),
		P25:    Quantile(sorted, 0.25),
		P75:    Quantile(sorted, 0.75),
		P95:    Quantile(sorted, 0.95),
	}
}

// Quantile returns the q-quantile of an ascending slice
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
