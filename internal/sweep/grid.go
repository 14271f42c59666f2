// Package sweep runs Monte Carlo batches over parameter grids and fee
// levels and ranks the outcomes.
package sweep

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/backtest"
	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/montecarlo"
	"github.com/newthinker/stockpick/internal/panel"
	"github.com/newthinker/stockpick/internal/schedule"
	"github.com/newthinker/stockpick/internal/strategy"
)

// GridSpec lists the values to combine. Empty dimensions fall back to the
// corresponding value of Base.
type GridSpec struct {
	Base           montecarlo.Spec      `json:"base"`
	NStocks        []int                `json:"n_stocks"`
	LookbackMonths []int                `json:"lookback_months"`
	Frequencies    []schedule.Frequency `json:"rebalancing_freq"`
	StopLoss       []float64            `json:"stop_loss_threshold"`
	Iterations     int                  `json:"iterations"`
}

// Point is one combination of the grid
type Point struct {
	Params    strategy.Params    `json:"params"`
	Frequency schedule.Frequency `json:"rebalancing_freq"`
}

// GridResult aggregates the Monte Carlo batch of one point
type GridResult struct {
	Point              Point                `json:"point"`
	Aggregate          montecarlo.Aggregate `json:"aggregate"`
	RiskAdjustedReturn float64              `json:"risk_adjusted_return"` // mean return / |mean drawdown|
	ReturnSharpe       float64              `json:"sharpe_of_returns"`    // mean return / std return
	Outperformance     float64              `json:"outperformance_pct"`   // mean return - benchmark return
}

// Sweeper runs grids and fee sweeps through a Monte Carlo runner
type Sweeper struct {
	runner *montecarlo.Runner
	logger *zap.Logger
}

// New creates a Sweeper
func New(runner *montecarlo.Runner, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{runner: runner, logger: logger}
}

// Points expands the cartesian product n_stocks x lookback x frequency x
// stop-loss in that nesting order.
func (g GridSpec) Points() []Point {
	nStocks := g.NStocks
	if len(nStocks) == 0 {
		nStocks = []int{g.Base.Params.NStocks}
	}
	lookbacks := g.LookbackMonths
	if len(lookbacks) == 0 {
		lookbacks = []int{g.Base.Params.LookbackMonths}
	}
	freqs := g.Frequencies
	if len(freqs) == 0 {
		freqs = []schedule.Frequency{g.Base.Backtest.Frequency}
	}
	stops := g.StopLoss
	if len(stops) == 0 {
		stops = []float64{g.Base.Params.StopLossThreshold}
	}

	points := make([]Point, 0, len(nStocks)*len(lookbacks)*len(freqs)*len(stops))
	for _, n := range nStocks {
		for _, lb := range lookbacks {
			for _, f := range freqs {
				for _, sl := range stops {
					points = append(points, Point{
						Params:    strategy.Params{NStocks: n, LookbackMonths: lb, StopLossThreshold: sl},
						Frequency: f,
					})
				}
			}
		}
	}
	return points
}

// Grid runs a Monte Carlo batch for every grid point. Points are run one
// after another; each batch is parallel.
func (s *Sweeper) Grid(ctx context.Context, p *panel.Panel, g GridSpec) ([]GridResult, error) {
	if g.Iterations <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("iterations must be positive, got %d", g.Iterations))
	}

	bench, err := backtest.Benchmark(p, g.Base.Backtest.InitCash)
	if err != nil {
		return nil, err
	}

	points := g.Points()
	results := make([]GridResult, 0, len(points))
	start := time.Now()

	for k, pt := range points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		spec := g.Base
		spec.Params = pt.Params
		spec.Backtest.Frequency = pt.Frequency

		report, err := s.runner.Run(ctx, p, spec, g.Iterations)
		if err != nil {
			return nil, fmt.Errorf("grid point %d (%+v): %w", k, pt, err)
		}

		res := score(pt, report.Aggregate, bench.Stats.TotalReturn)
		results = append(results, res)

		s.logger.Info("grid point done",
			zap.Int("point", k+1),
			zap.Int("points", len(points)),
			zap.Int("n_stocks", pt.Params.NStocks),
			zap.Int("lookback_months", pt.Params.LookbackMonths),
			zap.String("freq", pt.Frequency.String()),
			zap.Float64("stop_loss", pt.Params.StopLossThreshold),
			zap.Float64("mean_return_pct", res.Aggregate.TotalReturn.Mean),
			zap.Float64("mean_sharpe", res.Aggregate.SharpeRatio.Mean),
		)
	}

	s.logger.Info("grid search complete",
		zap.Int("points", len(points)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

func score(pt Point, agg montecarlo.Aggregate, benchmarkReturn float64) GridResult {
	res := GridResult{
		Point:          pt,
		Aggregate:      agg,
		Outperformance: agg.TotalReturn.Mean - benchmarkReturn,
	}
	if dd := math.Abs(agg.MaxDrawdown.Mean); dd > 0 {
		res.RiskAdjustedReturn = agg.TotalReturn.Mean / dd
	}
	if agg.TotalReturn.Std > 0 {
		res.ReturnSharpe = agg.TotalReturn.Mean / agg.TotalReturn.Std
	}
	return res
}
