// Package report exports backtest, Monte Carlo and sweep outputs as CSV
// tables and PNG charts.
package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/stockpick/internal/backtest"
	"github.com/newthinker/stockpick/internal/montecarlo"
	"github.com/newthinker/stockpick/internal/sweep"
)

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteEquity writes the portfolio value curve. When bench is non-nil its
// value on each sample date is added; dates absent from bench are blank.
func WriteEquity(w io.Writer, samples, bench []backtest.Sample) error {
	header := []string{"date", "portfolio_value"}
	byDate := make(map[time.Time]float64, len(bench))
	if bench != nil {
		header = append(header, "benchmark_value")
		for _, s := range bench {
			byDate[s.Date] = s.Value
		}
	}

	rows := make([][]string, 0, len(samples))
	for _, s := range samples {
		row := []string{s.Date.Format(time.DateOnly), ff(s.Value)}
		if bench != nil {
			if v, ok := byDate[s.Date]; ok {
				row = append(row, ff(v))
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}
	return writeAll(w, header, rows)
}

// WriteTransactions writes the fill log of a backtest
func WriteTransactions(w io.Writer, res *backtest.Result) error {
	rows := make([][]string, 0, len(res.Transactions))
	for _, tx := range res.Transactions {
		rows = append(rows, []string{
			tx.Date.Format(time.DateOnly),
			tx.Asset,
			string(tx.Side),
			strconv.FormatInt(tx.Quantity, 10),
			ff(tx.Price),
			ff(tx.Gross),
			ff(tx.Fee),
			ff(tx.CashDelta),
		})
	}
	return writeAll(w, []string{"date", "asset", "side", "quantity", "price", "gross", "fee", "cash_delta"}, rows)
}

// WriteRebalances writes one line per rebalance date
func WriteRebalances(w io.Writer, res *backtest.Result) error {
	rows := make([][]string, 0, len(res.Rebalances))
	for _, rb := range res.Rebalances {
		rows = append(rows, []string{
			rb.Date.Format(time.DateOnly),
			join(rb.Target),
			join(rb.Held),
			join(rb.Sold),
			join(rb.Bought),
			strconv.Itoa(len(rb.Skipped)),
			rb.NoChange,
			ff(rb.Cash),
		})
	}
	return writeAll(w, []string{"date", "target", "held", "sold", "bought", "skipped", "no_change", "cash"}, rows)
}

// WriteRuns writes the Monte Carlo table, one row per iteration
func WriteRuns(w io.Writer, runs []montecarlo.Run) error {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			strconv.FormatUint(r.Seed, 10),
			ff(r.Stats.TotalReturn),
			ff(r.Stats.SharpeRatio),
			ff(r.Stats.MaxDrawdown),
			ff(r.Stats.Volatility),
			ff(r.Stats.FinalValue),
			strconv.Itoa(r.Stats.NumTransactions),
			ff(r.Stats.TotalFees),
		})
	}
	return writeAll(w, []string{
		"seed", "total_return_pct", "sharpe_ratio", "max_drawdown_pct",
		"volatility_pct", "final_value", "num_transactions", "total_fees",
	}, rows)
}

// WriteGrid writes one row per grid point
func WriteGrid(w io.Writer, results []sweep.GridResult) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		a := r.Aggregate
		rows = append(rows, []string{
			strconv.Itoa(r.Point.Params.NStocks),
			strconv.Itoa(r.Point.Params.LookbackMonths),
			string(r.Point.Frequency),
			ff(r.Point.Params.StopLossThreshold),
			ff(a.TotalReturn.Mean),
			ff(a.TotalReturn.Std),
			ff(a.TotalReturn.Median),
			ff(a.SharpeRatio.Mean),
			ff(a.MaxDrawdown.Mean),
			ff(a.WinRate),
			ff(r.RiskAdjustedReturn),
			ff(r.ReturnSharpe),
			ff(r.Outperformance),
		})
	}
	return writeAll(w, []string{
		"n_stocks", "lookback_months", "rebalancing_freq", "stop_loss_threshold",
		"mean_return_pct", "std_return_pct", "median_return_pct", "mean_sharpe",
		"mean_drawdown_pct", "win_rate_pct", "risk_adjusted_return",
		"sharpe_of_returns", "outperformance_pct",
	}, rows)
}

// WriteCosts writes one row per fee level
func WriteCosts(w io.Writer, results []sweep.CostResult) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			ff(r.FeeRate * 100),
			ff(r.MeanReturn),
			ff(r.StdReturn),
			ff(r.MeanSharpe),
			ff(r.MeanFees),
			ff(r.MeanTransactions),
			ff(r.Impact),
			ff(r.Outperformance),
		})
	}
	return writeAll(w, []string{
		"fee_pct", "mean_return_pct", "std_return_pct", "mean_sharpe",
		"mean_fees", "mean_transactions", "impact_pct", "outperformance_pct",
	}, rows)
}

func join(xs []string) string {
	return strings.Join(xs, ";")
}
