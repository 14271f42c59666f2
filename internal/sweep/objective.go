package sweep

import (
	"fmt"

	"github.com/newthinker/stockpick/internal/core"
)

// Objective selects the grid point to prefer
type Objective string

const (
	ObjectiveSharpe         Objective = "sharpe"
	ObjectiveReturn         Objective = "return"
	ObjectiveRiskAdjusted   Objective = "risk_adjusted"
	ObjectiveBalanced       Objective = "balanced"
	ObjectiveOutperformance Objective = "outperformance"
)

// ParseObjective validates an objective name
func ParseObjective(s string) (Objective, error) {
	switch o := Objective(s); o {
	case ObjectiveSharpe, ObjectiveReturn, ObjectiveRiskAdjusted, ObjectiveBalanced, ObjectiveOutperformance:
		return o, nil
	}
	return "", core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown objective %q", s))
}

// Best returns the result maximising the objective. Ties keep the earlier
// point. The balanced score is the mean of min-max normalised Sharpe and
// return; a dimension with no spread contributes zero.
func Best(results []GridResult, objective Objective) (GridResult, error) {
	if len(results) == 0 {
		return GridResult{}, core.WrapError(core.ErrNoData, fmt.Errorf("no grid results"))
	}
	if _, err := ParseObjective(string(objective)); err != nil {
		return GridResult{}, err
	}

	scores := Scores(results, objective)
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return results[best], nil
}

// Scores returns the objective value of every result
func Scores(results []GridResult, objective Objective) []float64 {
	out := make([]float64, len(results))
	switch objective {
	case ObjectiveSharpe:
		for i, r := range results {
			out[i] = r.Aggregate.SharpeRatio.Mean
		}
	case ObjectiveReturn:
		for i, r := range results {
			out[i] = r.Aggregate.TotalReturn.Mean
		}
	case ObjectiveRiskAdjusted:
		for i, r := range results {
			out[i] = r.RiskAdjustedReturn
		}
	case ObjectiveOutperformance:
		for i, r := range results {
			out[i] = r.Outperformance
		}
	case ObjectiveBalanced:
		sharpe := make([]float64, len(results))
		ret := make([]float64, len(results))
		for i, r := range results {
			sharpe[i] = r.Aggregate.SharpeRatio.Mean
			ret[i] = r.Aggregate.TotalReturn.Mean
		}
		sn, rn := normalize(sharpe), normalize(ret)
		for i := range out {
			out[i] = 0.5*sn[i] + 0.5*rn[i]
		}
	}
	return out
}

func normalize(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	if hi == lo {
		return out
	}
	for i, x := range xs {
		out[i] = (x - lo) / (hi - lo)
	}
	return out
}
