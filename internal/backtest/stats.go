package backtest

import (
	"math"
)

// AnnualizationFactor scales per-sample statistics to a year. It assumes
// daily sampling although samples are taken only on rebalance dates.
const AnnualizationFactor = 252

// Analyze computes performance statistics from value samples. It is a
// pure function: degenerate inputs yield zeros, never NaN.
func Analyze(samples []Sample, initCash float64) Stats {
	final := initCash
	if len(samples) > 0 {
		final = samples[len(samples)-1].Value
	}

	var totalReturn float64
	if initCash > 0 {
		totalReturn = (final - initCash) / initCash * 100
	}

	returns := periodReturns(samples)
	mean, std := meanStd(returns)

	stats := Stats{
		FinalValue:  final,
		TotalReturn: totalReturn,
		MaxDrawdown: maxDrawdown(samples) * 100,
	}
	if !isDegenerate(returns, std) {
		annual := math.Sqrt(AnnualizationFactor)
		stats.SharpeRatio = mean / std * annual
		stats.Volatility = std * annual * 100
	}
	return stats
}

// isDegenerate reports whether Sharpe and volatility are undefined: fewer
// than two period returns or zero dispersion. Both are reported as 0.
func isDegenerate(returns []float64, std float64) bool {
	return len(returns) < 2 || std == 0 || math.IsNaN(std)
}

// periodReturns returns simple percent changes between consecutive
// samples. Changes from a zero value are undefined and dropped.
func periodReturns(samples []Sample) []float64 {
	if len(samples) < 2 {
		return nil
	}
	out := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		prev := samples[i-1].Value
		if prev == 0 {
			continue
		}
		r := (samples[i].Value - prev) / prev
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// meanStd returns the mean and the sample (n-1) standard deviation
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}

	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(variance / float64(len(xs)-1))
}

// maxDrawdown returns the most negative (value - running max) / running max
// as a fraction, 0 with fewer than two samples.
func maxDrawdown(samples []Sample) float64 {
	if len(samples) < 2 {
		return 0
	}

	var worst, peak float64
	for i, s := range samples {
		if i == 0 || s.Value > peak {
			peak = s.Value
		}
		if peak > 0 {
			if dd := (s.Value - peak) / peak; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}
