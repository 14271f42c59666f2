package sweep

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/backtest"
	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/montecarlo"
	"github.com/newthinker/stockpick/internal/panel"
)

// DefaultFeeLevels are the transaction costs compared by a cost sweep
var DefaultFeeLevels = []float64{0, 0.001, 0.002, 0.005, 0.01}

// CostResult is the Monte Carlo outcome at one fee level
type CostResult struct {
	FeeRate          float64              `json:"fee_rate"`
	MeanReturn       float64              `json:"mean_return_pct"`
	StdReturn        float64              `json:"std_return_pct"`
	MeanSharpe       float64              `json:"mean_sharpe"`
	MeanFees         float64              `json:"mean_fees"`
	MeanTransactions float64              `json:"mean_transactions"`
	Impact           float64              `json:"impact_pct"` // fee-free mean return minus this one
	Outperformance   float64              `json:"outperformance_pct"`
	Aggregate        montecarlo.Aggregate `json:"aggregate"`
}

// Costs runs base at every fee level. A fee-free batch is always run so
// that Impact is defined; it is reported only when 0 is among fees.
func (s *Sweeper) Costs(ctx context.Context, p *panel.Panel, base montecarlo.Spec, fees []float64, iterations int) ([]CostResult, error) {
	if iterations <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("iterations must be positive, got %d", iterations))
	}
	if len(fees) == 0 {
		fees = DefaultFeeLevels
	}

	bench, err := backtest.Benchmark(p, base.Backtest.InitCash)
	if err != nil {
		return nil, err
	}

	batches := make(map[float64]montecarlo.Aggregate, len(fees)+1)
	run := func(fee float64) error {
		if _, done := batches[fee]; done {
			return nil
		}
		spec := base
		spec.Backtest.TransactionCostPct = fee
		report, err := s.runner.Run(ctx, p, spec, iterations)
		if err != nil {
			return fmt.Errorf("fee %.4f: %w", fee, err)
		}
		batches[fee] = report.Aggregate
		s.logger.Info("fee level done",
			zap.Float64("fee_rate", fee),
			zap.Float64("mean_return_pct", report.Aggregate.TotalReturn.Mean),
			zap.Float64("mean_fees", report.Aggregate.TotalFees.Mean),
		)
		return nil
	}

	if err := run(0); err != nil {
		return nil, err
	}
	for _, fee := range fees {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := run(fee); err != nil {
			return nil, err
		}
	}

	zero := batches[0].TotalReturn.Mean
	out := make([]CostResult, 0, len(fees))
	for _, fee := range fees {
		agg := batches[fee]
		out = append(out, CostResult{
			FeeRate:          fee,
			MeanReturn:       agg.TotalReturn.Mean,
			StdReturn:        agg.TotalReturn.Std,
			MeanSharpe:       agg.SharpeRatio.Mean,
			MeanFees:         agg.TotalFees.Mean,
			MeanTransactions: agg.Transactions.Mean,
			Impact:           zero - agg.TotalReturn.Mean,
			Outperformance:   agg.TotalReturn.Mean - bench.Stats.TotalReturn,
			Aggregate:        agg,
		})
	}
	return out, nil
}
