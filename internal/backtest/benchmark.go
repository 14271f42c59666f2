package backtest

import (
	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/panel"
)

// BenchmarkResult is the equal-weight buy-and-hold reference
type BenchmarkResult struct {
	Samples []Sample `json:"samples"`
	Stats   Stats    `json:"stats"`
}

// Benchmark compounds the daily cross-sectional mean of asset returns.
// Assets missing on either side of a day are left out of that day's mean;
// a day with no usable asset has zero return. Statistics are computed over
// daily samples.
func Benchmark(p *panel.Panel, initCash float64) (*BenchmarkResult, error) {
	if p == nil || p.Len() == 0 {
		return nil, core.ErrEmptyPanel
	}

	samples := make([]Sample, p.Len())
	value := initCash
	samples[0] = Sample{Date: p.Date(0), Value: value}

	for i := 1; i < p.Len(); i++ {
		var sum float64
		var n int
		for j := 0; j < p.Width(); j++ {
			prev, cur := p.At(i-1, j), p.At(i, j)
			if panel.IsMissing(prev) || panel.IsMissing(cur) || prev <= 0 {
				continue
			}
			sum += (cur - prev) / prev
			n++
		}
		if n > 0 {
			value *= 1 + sum/float64(n)
		}
		samples[i] = Sample{Date: p.Date(i), Value: value}
	}

	return &BenchmarkResult{
		Samples: samples,
		Stats:   Analyze(samples, initCash),
	}, nil
}
