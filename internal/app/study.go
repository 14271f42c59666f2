package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/backtest"
	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/montecarlo"
	"github.com/newthinker/stockpick/internal/panel"
	"github.com/newthinker/stockpick/internal/schedule"
	"github.com/newthinker/stockpick/internal/storage/runs"
	"github.com/newthinker/stockpick/internal/strategy"
	"github.com/newthinker/stockpick/internal/strategy/randomstop"
	"github.com/newthinker/stockpick/internal/sweep"
)

// Study is a fully specified experiment: data, policy and run settings.
// Its JSON form is flat, e.g. {"strategy":"momentum","n_stocks":10,...}.
// Zero Iterations selects the configured Monte Carlo or sweep count.
type Study struct {
	Universe string `json:"universe"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Strategy string `json:"strategy"`
	strategy.Params
	backtest.Config
	Seed       uint64 `json:"seed"`
	Iterations int    `json:"iterations,omitempty"`
}

// GridOptions overrides the sweep dimensions of the config
type GridOptions struct {
	NStocks        []int     `json:"n_stocks,omitempty"`
	LookbackMonths []int     `json:"lookback_months,omitempty"`
	Frequencies    []string  `json:"rebalancing_freq,omitempty"`
	StopLoss       []float64 `json:"stop_loss_threshold,omitempty"`
	Objective      string    `json:"objective,omitempty"`
}

// BacktestOutcome is a single run next to its benchmark
type BacktestOutcome struct {
	Study     Study                     `json:"study"`
	Result    *backtest.Result          `json:"result"`
	Benchmark *backtest.BenchmarkResult `json:"benchmark"`
	RunID     string                    `json:"run_id,omitempty"`
}

// MonteCarloOutcome is a Monte Carlo report next to the benchmark stats
type MonteCarloOutcome struct {
	Study     Study              `json:"study"`
	Report    *montecarlo.Report `json:"report"`
	Benchmark backtest.Stats     `json:"benchmark"`
	RunID     string             `json:"run_id,omitempty"`
}

// GridOutcome holds every grid point and the best one by Objective
type GridOutcome struct {
	Study     Study              `json:"study"`
	Objective sweep.Objective    `json:"objective"`
	Results   []sweep.GridResult `json:"results"`
	Best      sweep.GridResult   `json:"best"`
	RunID     string             `json:"run_id,omitempty"`
}

// CostsOutcome holds one Monte Carlo summary per fee level
type CostsOutcome struct {
	Study   Study              `json:"study"`
	Results []sweep.CostResult `json:"results"`
	RunID   string             `json:"run_id,omitempty"`
}

// DefaultStudy builds a Study from the configuration
func (a *App) DefaultStudy() Study {
	c := a.cfg
	return Study{
		Universe: c.Data.Universe,
		Start:    c.Data.Start,
		End:      c.Data.End,
		Strategy: c.Strategy.Kind,
		Params: strategy.Params{
			NStocks:           c.Strategy.NStocks,
			LookbackMonths:    c.Strategy.LookbackMonths,
			StopLossThreshold: c.Strategy.StopLossThreshold,
		},
		Config: backtest.Config{
			InitCash:           c.Backtest.InitCash,
			TransactionCostPct: c.Backtest.TransactionCostPct,
			Frequency:          schedule.Frequency(c.Backtest.RebalancingFreq),
		},
		Seed: c.Strategy.Seed,
	}
}

// Validate checks the study and normalises the frequency alias
func (s *Study) Validate() error {
	if _, _, err := s.dates(); err != nil {
		return err
	}
	freq, err := schedule.ParseFrequency(string(s.Frequency))
	if err != nil {
		return err
	}
	s.Frequency = freq
	if err := s.Params.Validate(); err != nil {
		return err
	}
	if s.Strategy == randomstop.Kind {
		if err := s.Params.ValidateStopLoss(); err != nil {
			return err
		}
	}
	return s.Config.Validate()
}

func (s *Study) dates() (time.Time, time.Time, error) {
	start, err := time.Parse(time.DateOnly, s.Start)
	if err != nil {
		return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("start: %w", err))
	}
	end, err := time.Parse(time.DateOnly, s.End)
	if err != nil {
		return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("end: %w", err))
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("end %s not after start %s", s.End, s.Start))
	}
	return start, end, nil
}

func (s Study) spec() montecarlo.Spec {
	return montecarlo.Spec{Strategy: s.Strategy, Params: s.Params, Backtest: s.Config}
}

func (s Study) params() map[string]any {
	return map[string]any{
		"universe":             s.Universe,
		"n_stocks":             s.NStocks,
		"lookback_months":      s.LookbackMonths,
		"stop_loss_threshold":  s.StopLossThreshold,
		"rebalancing_freq":     string(s.Frequency),
		"init_cash":            s.InitCash,
		"transaction_cost_pct": s.TransactionCostPct,
	}
}

func (a *App) prepare(ctx context.Context, s *Study) (*panel.Panel, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if !a.strategies.Has(s.Strategy) {
		return nil, core.WrapError(core.ErrStrategyUnknown, fmt.Errorf("kind %q (known: %v)", s.Strategy, a.strategies.Kinds()))
	}
	start, end, _ := s.dates()
	return a.LoadPanel(ctx, s.Universe, start, end)
}

// Backtest runs one seeded backtest and the benchmark on the same panel
func (a *App) Backtest(ctx context.Context, s Study) (*BacktestOutcome, error) {
	p, err := a.prepare(ctx, &s)
	if err != nil {
		return nil, err
	}

	policy, err := a.strategies.Build(s.Strategy, s.Params, s.Seed)
	if err != nil {
		return nil, err
	}
	res, err := a.backtester.Run(ctx, p, policy, s.Config)
	if err != nil {
		return nil, err
	}
	res.Seed = s.Seed

	bench, err := backtest.Benchmark(p, s.InitCash)
	if err != nil {
		return nil, err
	}

	out := &BacktestOutcome{Study: s, Result: res, Benchmark: bench}
	out.RunID = a.record(ctx, runs.Record{
		Kind:        runs.KindBacktest,
		Strategy:    s.Strategy,
		Seed:        s.Seed,
		StartDate:   res.StartDate,
		EndDate:     res.EndDate,
		TotalReturn: res.Stats.TotalReturn,
		SharpeRatio: res.Stats.SharpeRatio,
		MaxDrawdown: res.Stats.MaxDrawdown,
		Volatility:  res.Stats.Volatility,
		FinalValue:  res.Stats.FinalValue,
		Params:      s.params(),
	})
	return out, nil
}

// MonteCarlo repeats the study over seeds 0..Iterations-1
func (a *App) MonteCarlo(ctx context.Context, s Study) (*MonteCarloOutcome, error) {
	p, err := a.prepare(ctx, &s)
	if err != nil {
		return nil, err
	}
	if s.Iterations < 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("iterations must not be negative, got %d", s.Iterations))
	}
	if s.Iterations == 0 {
		s.Iterations = a.cfg.MonteCarlo.Iterations
	}

	report, err := a.runner.Run(ctx, p, s.spec(), s.Iterations)
	if err != nil {
		return nil, err
	}
	bench, err := backtest.Benchmark(p, s.InitCash)
	if err != nil {
		return nil, err
	}

	out := &MonteCarloOutcome{Study: s, Report: report, Benchmark: bench.Stats}
	agg := report.Aggregate
	params := s.params()
	params["win_rate_pct"] = agg.WinRate
	out.RunID = a.record(ctx, runs.Record{
		Kind:        runs.KindMonteCarlo,
		Strategy:    s.Strategy,
		Iterations:  s.Iterations,
		StartDate:   p.First(),
		EndDate:     p.End(),
		TotalReturn: agg.TotalReturn.Mean,
		SharpeRatio: agg.SharpeRatio.Mean,
		MaxDrawdown: agg.MaxDrawdown.Mean,
		Volatility:  agg.Volatility.Mean,
		FinalValue:  agg.FinalValue.Mean,
		Params:      params,
	})
	return out, nil
}

// Grid searches the parameter grid of the config, overridden by g, and
// picks the best point under the objective
func (a *App) Grid(ctx context.Context, s Study, g GridOptions) (*GridOutcome, error) {
	p, err := a.prepare(ctx, &s)
	if err != nil {
		return nil, err
	}

	sc := a.cfg.Sweep
	spec := sweep.GridSpec{
		Base:           s.spec(),
		NStocks:        pick(g.NStocks, sc.NStocks),
		LookbackMonths: pick(g.LookbackMonths, sc.LookbackMonths),
		StopLoss:       pick(g.StopLoss, sc.StopLoss),
		Iterations:     s.Iterations,
	}
	if spec.Iterations <= 0 {
		spec.Iterations = sc.Iterations
	}
	for _, f := range pick(g.Frequencies, sc.Frequencies) {
		freq, err := schedule.ParseFrequency(f)
		if err != nil {
			return nil, err
		}
		spec.Frequencies = append(spec.Frequencies, freq)
	}
	name := g.Objective
	if name == "" {
		name = sc.Objective
	}
	objective, err := sweep.ParseObjective(name)
	if err != nil {
		return nil, err
	}

	results, err := a.sweeper.Grid(ctx, p, spec)
	if err != nil {
		return nil, err
	}
	best, err := sweep.Best(results, objective)
	if err != nil {
		return nil, err
	}

	out := &GridOutcome{Study: s, Objective: objective, Results: results, Best: best}
	params := s.params()
	params["objective"] = string(objective)
	params["points"] = len(results)
	params["best_n_stocks"] = best.Point.Params.NStocks
	params["best_lookback_months"] = best.Point.Params.LookbackMonths
	params["best_rebalancing_freq"] = string(best.Point.Frequency)
	params["best_stop_loss_threshold"] = best.Point.Params.StopLossThreshold
	out.RunID = a.record(ctx, runs.Record{
		Kind:        runs.KindGrid,
		Strategy:    s.Strategy,
		Iterations:  spec.Iterations,
		StartDate:   p.First(),
		EndDate:     p.End(),
		TotalReturn: best.Aggregate.TotalReturn.Mean,
		SharpeRatio: best.Aggregate.SharpeRatio.Mean,
		MaxDrawdown: best.Aggregate.MaxDrawdown.Mean,
		Volatility:  best.Aggregate.Volatility.Mean,
		FinalValue:  best.Aggregate.FinalValue.Mean,
		Params:      params,
	})
	return out, nil
}

// Costs runs the study under each fee level; nil fees use the config
func (a *App) Costs(ctx context.Context, s Study, fees []float64) (*CostsOutcome, error) {
	p, err := a.prepare(ctx, &s)
	if err != nil {
		return nil, err
	}
	fees = pick(fees, a.cfg.Sweep.FeeLevels)
	iterations := s.Iterations
	if iterations <= 0 {
		iterations = a.cfg.Sweep.Iterations
	}

	results, err := a.sweeper.Costs(ctx, p, s.spec(), fees, iterations)
	if err != nil {
		return nil, err
	}

	out := &CostsOutcome{Study: s, Results: results}
	params := s.params()
	impact := make(map[string]float64, len(results))
	for _, r := range results {
		impact[fmt.Sprintf("%.4f", r.FeeRate)] = r.Impact
	}
	params["impact_pct_by_fee"] = impact
	if len(results) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no fee levels"))
	}
	first := results[0]
	out.RunID = a.record(ctx, runs.Record{
		Kind:        runs.KindCosts,
		Strategy:    s.Strategy,
		Iterations:  iterations,
		StartDate:   p.First(),
		EndDate:     p.End(),
		TotalReturn: first.MeanReturn,
		SharpeRatio: first.MeanSharpe,
		MaxDrawdown: first.Aggregate.MaxDrawdown.Mean,
		Volatility:  first.Aggregate.Volatility.Mean,
		FinalValue:  first.Aggregate.FinalValue.Mean,
		Params:      params,
	})
	return out, nil
}

// record stores rec when run history is enabled. Failures are logged and
// yield an empty ID.
func (a *App) record(ctx context.Context, rec runs.Record) string {
	if a.runs == nil {
		return ""
	}
	saved, err := a.runs.Save(ctx, rec)
	if err != nil {
		a.logger.Warn("saving run failed", zap.String("kind", string(rec.Kind)), zap.Error(err))
		return ""
	}
	return saved.ID
}

// pick returns override unless it is empty
func pick[T any](override, fallback []T) []T {
	if len(override) > 0 {
		return override
	}
	return fallback
}
