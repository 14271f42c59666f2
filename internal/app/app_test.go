package app

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/stockpick/internal/collector"
	"github.com/newthinker/stockpick/internal/config"
	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/panel"
	"github.com/newthinker/stockpick/internal/storage/runs"
)

func weekdays(start time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for d := start; len(out) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

func price(asset, i int) float64 {
	return 100 * math.Pow(1+0.0004*float64(asset+1), float64(i)) * (1 + 0.05*math.Sin(float64(i)/15+float64(asset)))
}

func writePanel(t *testing.T) string {
	t.Helper()
	dates := weekdays(time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), 400)
	assets := []string{"AAA", "BBB", "CCC", "DDD"}
	rows := make([][]float64, len(dates))
	for i := range dates {
		rows[i] = make([]float64, len(assets))
		for j := range assets {
			rows[i][j] = price(j, i)
		}
	}
	p, err := panel.New(dates, assets, rows)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "prices.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, panel.WriteCSV(f, p))
	require.NoError(t, f.Close())
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Data.Source = "csv"
	cfg.Data.CSVPath = writePanel(t)
	cfg.Data.Start = "2023-01-01"
	cfg.Data.End = "2024-12-31"
	cfg.Strategy.NStocks = 2
	cfg.Strategy.LookbackMonths = 3
	cfg.MonteCarlo.Iterations = 4
	cfg.MonteCarlo.Workers = 2
	cfg.Sweep.NStocks = []int{1, 2}
	cfg.Sweep.LookbackMonths = []int{3}
	cfg.Sweep.Frequencies = []string{"monthly"}
	cfg.Sweep.Iterations = 2
	cfg.Sweep.FeeLevels = []float64{0, 0.01}
	cfg.Storage.Cache.Type = "none"
	cfg.Storage.RunsDB = filepath.Join(dir, "runs.db")
	cfg.Output.Dir = filepath.Join(dir, "results")
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Backtest.InitCash = -1

	_, err := New(context.Background(), cfg, nil)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestApp_Registries(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	assert.Equal(t, []string{"momentum", "random_stoploss"}, a.Strategies())
	assert.Equal(t, []string{"yahoo"}, a.Collectors())
	assert.NotNil(t, a.Runs())
	assert.Nil(t, a.Cache())
}

func TestApp_Backtest(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	ctx := context.Background()

	out, err := a.Backtest(ctx, a.DefaultStudy())
	require.NoError(t, err)

	res := out.Result
	assert.Equal(t, "momentum", res.Strategy)
	assert.NotEmpty(t, res.Rebalances)
	assert.NotEmpty(t, res.Transactions)
	assert.Len(t, res.FinalTarget, 2)
	assert.Len(t, out.Benchmark.Samples, 400)

	require.NotEmpty(t, out.RunID)
	rec, err := a.Runs().Get(ctx, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, runs.KindBacktest, rec.Kind)
	assert.InDelta(t, res.Stats.TotalReturn, rec.TotalReturn, 1e-9)
	assert.Equal(t, "monthly", rec.Params["rebalancing_freq"])

	files, err := a.ExportBacktest(out, t.TempDir())
	require.NoError(t, err)
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}
	assert.Equal(t, []string{"summary.json", "equity.csv", "transactions.csv", "rebalances.csv", "equity.png"}, names)
}

func TestApp_BacktestFrequencyAlias(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	s := a.DefaultStudy()
	s.Frequency = "Q"
	out, err := a.Backtest(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "quarterly", string(out.Study.Frequency))
}

func TestApp_BacktestErrors(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	ctx := context.Background()

	s := a.DefaultStudy()
	s.Strategy = "astrology"
	_, err := a.Backtest(ctx, s)
	assert.True(t, errors.Is(err, core.ErrStrategyUnknown))

	s = a.DefaultStudy()
	s.NStocks = 0
	_, err = a.Backtest(ctx, s)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	s = a.DefaultStudy()
	s.Strategy = "random_stoploss"
	s.StopLossThreshold = 0.5
	_, err = a.Backtest(ctx, s)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid), "got %v", err)

	s = a.DefaultStudy()
	s.Start, s.End = "2030-01-01", "2031-01-01"
	_, err = a.Backtest(ctx, s)
	assert.True(t, errors.Is(err, core.ErrEmptyPanel))
}

func TestApp_MonteCarlo(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	ctx := context.Background()

	s := a.DefaultStudy()
	s.Strategy = "random_stoploss"
	out, err := a.MonteCarlo(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Report.Iterations)
	assert.Len(t, out.Report.Runs, 4)

	rec, err := a.Runs().Get(ctx, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, runs.KindMonteCarlo, rec.Kind)
	assert.Equal(t, 4, rec.Iterations)

	files, err := a.ExportMonteCarlo(out, t.TempDir())
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestApp_GridAndCosts(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	ctx := context.Background()

	grid, err := a.Grid(ctx, a.DefaultStudy(), GridOptions{Objective: "return"})
	require.NoError(t, err)
	assert.Len(t, grid.Results, 2)
	assert.Equal(t, "return", string(grid.Objective))

	costs, err := a.Costs(ctx, a.DefaultStudy(), nil)
	require.NoError(t, err)
	require.Len(t, costs.Results, 2)
	assert.Equal(t, 0.0, costs.Results[0].Impact)

	all, err := a.Runs().List(ctx, runs.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = a.ExportGrid(grid, t.TempDir())
	require.NoError(t, err)
	_, err = a.ExportCosts(costs, t.TempDir())
	require.NoError(t, err)
}

// fakeYahoo serves synthetic closes for any symbol
type fakeYahoo struct {
	calls atomic.Int32
}

func (f *fakeYahoo) Name() string                    { return "yahoo" }
func (f *fakeYahoo) SupportedMarkets() []core.Market { return []core.Market{core.MarketUS} }
func (f *fakeYahoo) Init(collector.Config) error     { return nil }
func (f *fakeYahoo) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*core.Series, error) {
	f.calls.Add(1)
	s := &core.Series{Symbol: symbol}
	k := int(symbol[0]) % 4
	for i, d := range weekdays(start, 300) {
		if d.After(end) {
			break
		}
		s.Points = append(s.Points, core.Point{Time: d, Close: price(k, i)})
	}
	return s, nil
}

func TestApp_LoadPanelUsesCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.Source = "yahoo"
	cfg.Storage.Cache.Type = "localfs"
	cfg.Storage.Cache.Path = t.TempDir()

	fake := &fakeYahoo{}
	a := newTestApp(t, cfg, WithCollector(fake))
	ctx := context.Background()
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)

	p, err := a.LoadPanel(ctx, "geo_etf", start, end)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Width())
	assert.Equal(t, int32(10), fake.calls.Load())

	again, err := a.LoadPanel(ctx, "geo_etf", start, end)
	require.NoError(t, err)
	assert.Equal(t, p.Len(), again.Len())
	assert.Equal(t, int32(10), fake.calls.Load(), "second load should hit the cache")

	_, err = a.FetchPanel(ctx, "SPY,QQQ", start, end)
	require.NoError(t, err)
	assert.Equal(t, int32(12), fake.calls.Load())
}
