package report

import (
	"fmt"
	"math"
	"time"

	"github.com/vicanso/go-charts/v2"

	"github.com/newthinker/stockpick/internal/backtest"
	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/montecarlo"
)

// maxChartPoints caps the x-axis resolution of line charts
const maxChartPoints = 400

// EquityChart renders the portfolio value curve, with the benchmark as a
// second line when bench is non-nil, as a PNG.
func EquityChart(title string, samples, bench []backtest.Sample) ([]byte, error) {
	if len(samples) < 2 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("need at least 2 samples to chart, got %d", len(samples)))
	}

	idx := downsample(len(samples), maxChartPoints)
	labels := make([]string, len(idx))
	portfolio := make([]float64, len(idx))
	for k, i := range idx {
		labels[k] = samples[i].Date.Format("Jan '06")
		portfolio[k] = samples[i].Value
	}
	values := [][]float64{portfolio}
	names := []string{"Portfolio"}

	if bench != nil {
		byDate := make(map[time.Time]float64, len(bench))
		for _, s := range bench {
			byDate[s.Date] = s.Value
		}
		line := make([]float64, len(idx))
		last := samples[0].Value
		for k, i := range idx {
			if v, ok := byDate[samples[i].Date]; ok {
				last = v
			}
			line[k] = last
		}
		values = append(values, line)
		names = append(names, "Benchmark")
	}

	yMin, yMax := bounds(values)
	split := 6
	if len(labels) <= 30 {
		split = max(len(labels)/3, 3)
	}

	p, err := charts.LineRender(
		values,
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			SplitNumber: split,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("rendering equity chart: %w", err)
	}
	return p.Bytes()
}

// ReturnDistribution renders a histogram of Monte Carlo total returns
func ReturnDistribution(title string, runs []montecarlo.Run, bins int) ([]byte, error) {
	if len(runs) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no runs to chart"))
	}
	if bins <= 0 {
		bins = 20
	}

	returns := make([]float64, len(runs))
	for i, r := range runs {
		returns[i] = r.Stats.TotalReturn
	}
	counts, edges := histogram(returns, bins)

	labels := make([]string, len(counts))
	for i := range counts {
		labels[i] = fmt.Sprintf("%.0f%%", (edges[i]+edges[i+1])/2)
	}

	agg := montecarlo.Summarize(returns)
	subtitle := fmt.Sprintf("n=%d | mean %.1f%% | median %.1f%% | p5 %.1f%% | p95 %.1f%%",
		len(runs), agg.Mean, agg.Median, agg.P5, agg.P95)

	p, err := charts.BarRender(
		[][]float64{counts},
		charts.TitleTextOptionFunc(title, subtitle),
		charts.XAxisDataOptionFunc(labels),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("rendering distribution chart: %w", err)
	}
	return p.Bytes()
}

// histogram buckets xs into n equal-width bins over [min, max]. A constant
// input yields a single full bin.
func histogram(xs []float64, n int) ([]float64, []float64) {
	lo, hi := xs[0], xs[0]
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if hi == lo {
		return []float64{float64(len(xs))}, []float64{lo - 0.5, hi + 0.5}
	}

	width := (hi - lo) / float64(n)
	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	counts := make([]float64, n)
	for _, x := range xs {
		b := int((x - lo) / width)
		if b >= n {
			b = n - 1
		}
		counts[b]++
	}
	return counts, edges
}

// downsample picks at most limit evenly spaced indices, keeping both ends
func downsample(n, limit int) []int {
	if n <= limit {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	idx := make([]int, limit)
	step := float64(n-1) / float64(limit-1)
	for k := range idx {
		idx[k] = int(math.Round(float64(k) * step))
	}
	return idx
}

func bounds(series [][]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Abs(hi) * 0.05
	}
	if pad == 0 {
		pad = 1
	}
	return lo - pad, hi + pad
}
