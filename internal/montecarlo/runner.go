// Package montecarlo repeats a backtest over many seeds and aggregates
// the outcomes.
package montecarlo

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/backtest"
	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/metrics"
	"github.com/newthinker/stockpick/internal/panel"
	"github.com/newthinker/stockpick/internal/strategy"
)

// Spec describes the backtest to repeat
type Spec struct {
	Strategy string          `json:"strategy"`
	Params   strategy.Params `json:"params"`
	Backtest backtest.Config `json:"backtest"`
}

// Run is the outcome of one iteration
type Run struct {
	Seed    uint64            `json:"seed"`
	Stats   backtest.Stats    `json:"stats"`
	Samples []backtest.Sample `json:"samples,omitempty"`
}

// Aggregate summarises every metric across runs
type Aggregate struct {
	TotalReturn  Summary `json:"total_return_pct"`
	SharpeRatio  Summary `json:"sharpe_ratio"`
	MaxDrawdown  Summary `json:"max_drawdown_pct"`
	Volatility   Summary `json:"volatility_pct"`
	FinalValue   Summary `json:"final_value"`
	Transactions Summary `json:"num_transactions"`
	TotalFees    Summary `json:"total_fees"`
	WinRate      float64 `json:"win_rate_pct"` // share of runs with positive return
}

// Report is the full Monte Carlo output. Runs are ordered by seed.
type Report struct {
	Spec       Spec      `json:"spec"`
	Iterations int       `json:"iterations"`
	Runs       []Run     `json:"runs"`
	Aggregate  Aggregate `json:"aggregate"`
}

// Runner executes Monte Carlo batches on a bounded worker pool
type Runner struct {
	registry    *strategy.Registry
	backtester  *backtest.Backtester
	workers     int
	keepSamples bool
	logger      *zap.Logger
	metrics     *metrics.Registry
}

// Option configures a Runner
type Option func(*Runner)

// WithWorkers bounds the number of concurrent iterations
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics attaches a metrics registry
func WithMetrics(m *metrics.Registry) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithBacktester replaces the default backtester
func WithBacktester(b *backtest.Backtester) Option {
	return func(r *Runner) {
		if b != nil {
			r.backtester = b
		}
	}
}

// WithSamples keeps each run's value samples in the report
func WithSamples(keep bool) Option {
	return func(r *Runner) {
		r.keepSamples = keep
	}
}

// NewRunner creates a Runner building policies from registry
func NewRunner(registry *strategy.Registry, opts ...Option) *Runner {
	r := &Runner{
		registry:   registry,
		backtester: backtest.New(),
		workers:    runtime.GOMAXPROCS(0),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes n backtests with seeds 0..n-1. Every iteration builds its
// own policy and ledger; only the panel is shared. The first failing
// iteration cancels the rest.
func (r *Runner) Run(ctx context.Context, p *panel.Panel, spec Spec, n int) (*Report, error) {
	if n <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("iterations must be positive, got %d", n))
	}
	if !r.registry.Has(spec.Strategy) {
		return nil, core.WrapError(core.ErrStrategyUnknown, fmt.Errorf("kind %q", spec.Strategy))
	}

	start := time.Now()
	runs := make([]Run, n)

	wp := pool.New().
		WithMaxGoroutines(min(r.workers, n)).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for i := 0; i < n; i++ {
		seed := uint64(i)
		wp.Go(func(ctx context.Context) error {
			policy, err := r.registry.Build(spec.Strategy, spec.Params, seed)
			if err != nil {
				return err
			}
			res, err := r.backtester.Run(ctx, p, policy, spec.Backtest)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			run := Run{Seed: seed, Stats: res.Stats}
			if r.keepSamples {
				run.Samples = res.Samples
			}
			runs[seed] = run
			return nil
		})
	}

	err := wp.Wait()
	if r.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		r.metrics.RecordSimulation(spec.Strategy, status, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}

	report := &Report{
		Spec:       spec,
		Iterations: n,
		Runs:       runs,
		Aggregate:  Aggregated(runs),
	}

	r.logger.Info("monte carlo complete",
		zap.String("strategy", spec.Strategy),
		zap.Int("iterations", n),
		zap.Float64("mean_return_pct", report.Aggregate.TotalReturn.Mean),
		zap.Float64("win_rate_pct", report.Aggregate.WinRate),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// Aggregated summarises runs
func Aggregated(runs []Run) Aggregate {
	n := len(runs)
	ret := make([]float64, n)
	sharpe := make([]float64, n)
	dd := make([]float64, n)
	vol := make([]float64, n)
	final := make([]float64, n)
	txs := make([]float64, n)
	fees := make([]float64, n)

	wins := 0
	for i, run := range runs {
		s := run.Stats
		ret[i] = s.TotalReturn
		sharpe[i] = s.SharpeRatio
		dd[i] = s.MaxDrawdown
		vol[i] = s.Volatility
		final[i] = s.FinalValue
		txs[i] = float64(s.NumTransactions)
		fees[i] = s.TotalFees
		if s.TotalReturn > 0 {
			wins++
		}
	}

	var winRate float64
	if n > 0 {
		winRate = float64(wins) / float64(n) * 100
	}

	return Aggregate{
		TotalReturn:  Summarize(ret),
		SharpeRatio:  Summarize(sharpe),
		MaxDrawdown:  Summarize(dd),
		Volatility:   Summarize(vol),
		FinalValue:   Summarize(final),
		Transactions: Summarize(txs),
		TotalFees:    Summarize(fees),
		WinRate:      winRate,
	}
}
