package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/metrics"
	"github.com/newthinker/stockpick/internal/panel"
	"github.com/newthinker/stockpick/internal/portfolio"
	"github.com/newthinker/stockpick/internal/schedule"
	"github.com/newthinker/stockpick/internal/strategy"
)

// Backtester simulates a selection policy over a price panel
type Backtester struct {
	logger  *zap.Logger
	metrics *metrics.Registry
}

// Option configures a Backtester
type Option func(*Backtester)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics attaches a metrics registry
func WithMetrics(m *metrics.Registry) Option {
	return func(b *Backtester) {
		b.metrics = m
	}
}

// New creates a new Backtester
func New(opts ...Option) *Backtester {
	b := &Backtester{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes one backtest. The policy must be fresh: stateful policies
// carry their portfolio between calls. The panel is only read.
func (b *Backtester) Run(ctx context.Context, p *panel.Panel, policy strategy.Policy, cfg Config) (*Result, error) {
	if p == nil || p.Len() == 0 {
		return nil, core.ErrEmptyPanel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := b.run(ctx, p, policy, cfg)
	if b.metrics != nil {
		b.metrics.RecordBacktest(policy.Name(), runStatus(err), time.Since(start).Seconds())
	}
	return res, err
}

func (b *Backtester) run(ctx context.Context, p *panel.Panel, policy strategy.Policy, cfg Config) (*Result, error) {
	freq, _ := schedule.ParseFrequency(string(cfg.Frequency))
	indices := schedule.Indices(p.Dates(), freq)
	ledger := portfolio.New(cfg.InitCash, cfg.TransactionCostPct)
	log := b.logger.With(zap.String("strategy", policy.Name()))

	res := &Result{
		Strategy:  policy.Name(),
		StartDate: p.First(),
		EndDate:   p.End(),
		Config:    cfg,
	}

	var target []string
	for _, i := range indices {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row := p.Row(i)
		date := row.Date()
		res.Samples = append(res.Samples, Sample{Date: date, Value: ledger.ValueAt(row)})

		next, err := policy.Select(strategy.SelectionContext{
			Date:    date,
			History: p.Head(i + 1),
			Held:    clone(target),
		})
		if err != nil {
			if !strategy.IsNoChange(err) {
				return nil, core.WrapError(core.ErrStrategyFailed, fmt.Errorf("%s on %s: %w", policy.Name(), date.Format(time.DateOnly), err))
			}
			log.Debug("no rebalance", zap.Time("date", date), zap.Error(err))
			b.recordRebalance(policy.Name(), "no_change")
			res.Rebalances = append(res.Rebalances, Rebalance{
				Date:     date,
				Target:   clone(target),
				Held:     ledger.Held(),
				NoChange: err.Error(),
				Cash:     ledger.Cash(),
			})
			continue
		}

		rb := Rebalance{Date: date}
		toSell := difference(target, next)
		toBuy := difference(next, target)

		for _, a := range toSell {
			tx, err := ledger.Sell(date, a, row)
			if err != nil {
				b.skip(log, &rb, date, a, portfolio.SideSell, err)
				continue
			}
			b.fill(res, &rb, tx)
		}

		if len(toBuy) > 0 {
			budget := ledger.Cash() / float64(len(toBuy))
			for _, a := range toBuy {
				tx, err := ledger.Buy(date, a, budget, row)
				if err != nil {
					b.skip(log, &rb, date, a, portfolio.SideBuy, err)
					continue
				}
				b.fill(res, &rb, tx)
			}
		}

		target = clone(next)
		rb.Target = clone(target)
		rb.Held = ledger.Held()
		rb.Cash = ledger.Cash()
		res.Rebalances = append(res.Rebalances, rb)

		outcome := "hold"
		if len(rb.Sold)+len(rb.Bought) > 0 {
			outcome = "traded"
		}
		b.recordRebalance(policy.Name(), outcome)
	}

	stats := Analyze(res.Samples, cfg.InitCash)
	stats.NumTransactions = len(res.Transactions)
	for _, tx := range res.Transactions {
		stats.TotalFees += tx.Fee
		switch tx.Side {
		case portfolio.SideBuy:
			stats.BuyVolume += tx.Gross
		case portfolio.SideSell:
			stats.SellVolume += tx.Gross
		}
	}

	res.Stats = stats
	res.FinalTarget = target
	res.FinalHeld = ledger.Held()
	res.Holdings = ledger.Holdings()
	res.Cash = ledger.Cash()

	log.Debug("backtest complete",
		zap.Int("rebalances", len(indices)),
		zap.Int("transactions", stats.NumTransactions),
		zap.Float64("total_return_pct", stats.TotalReturn),
	)
	return res, nil
}

func (b *Backtester) fill(res *Result, rb *Rebalance, tx portfolio.Transaction) {
	res.Transactions = append(res.Transactions, tx)
	if tx.Side == portfolio.SideSell {
		rb.Sold = append(rb.Sold, tx.Asset)
	} else {
		rb.Bought = append(rb.Bought, tx.Asset)
	}
	if b.metrics != nil {
		b.metrics.RecordTransaction(string(tx.Side))
	}
}

func (b *Backtester) skip(log *zap.Logger, rb *Rebalance, date time.Time, asset string, side portfolio.Side, err error) {
	log.Debug("order skipped",
		zap.Time("date", date),
		zap.String("asset", asset),
		zap.String("side", string(side)),
		zap.Error(err),
	)
	reason := skipReason(err)
	rb.Skipped = append(rb.Skipped, SkippedOrder{Asset: asset, Side: side, Reason: reason})
	if b.metrics != nil {
		b.metrics.RecordSkippedOrder(string(side), reason)
	}
}

func (b *Backtester) recordRebalance(name, outcome string) {
	if b.metrics != nil {
		b.metrics.RecordRebalance(name, outcome)
	}
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, portfolio.ErrNoPosition):
		return "no_position"
	case errors.Is(err, portfolio.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, portfolio.ErrZeroQuantity):
		return "zero_quantity"
	case errors.Is(err, portfolio.ErrInsufficientCash):
		return "insufficient_cash"
	default:
		return "other"
	}
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// difference returns the items of a not in b, in the order of a
func difference(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, s := range b {
		in[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := in[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func clone(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
