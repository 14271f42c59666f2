// Package app wires collectors, storage, strategies and the simulation
// engines into the operations exposed by the CLI and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/backtest"
	"github.com/newthinker/stockpick/internal/collector"
	"github.com/newthinker/stockpick/internal/collector/yahoo"
	"github.com/newthinker/stockpick/internal/config"
	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/metrics"
	"github.com/newthinker/stockpick/internal/montecarlo"
	"github.com/newthinker/stockpick/internal/panel"
	"github.com/newthinker/stockpick/internal/storage/archive"
	"github.com/newthinker/stockpick/internal/storage/panelcache"
	"github.com/newthinker/stockpick/internal/storage/runs"
	"github.com/newthinker/stockpick/internal/strategy"
	"github.com/newthinker/stockpick/internal/strategy/builtin"
	"github.com/newthinker/stockpick/internal/sweep"
	"github.com/newthinker/stockpick/internal/universe"
)

// App is the main application orchestrator
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *metrics.Registry
	collectors *collector.Registry
	strategies *strategy.Registry
	backtester *backtest.Backtester
	runner     *montecarlo.Runner
	sweeper    *sweep.Sweeper
	cache      *panelcache.Cache
	runs       *runs.Store
}

// Option configures an App
type Option func(*App)

// WithMetrics shares a metrics registry
func WithMetrics(m *metrics.Registry) Option {
	return func(a *App) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithCollector registers c, replacing a built-in collector of the same name
func WithCollector(c collector.Collector) Option {
	return func(a *App) {
		a.collectors.Register(c)
	}
}

// New builds an App from cfg. Storage backends are opened here; Close
// releases them.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics.NewRegistry(),
		collectors: collector.NewRegistry(),
		strategies: builtin.Registry(logger),
	}

	for _, opt := range opts {
		opt(a)
	}
	if _, ok := a.collectors.Get("yahoo"); !ok {
		if err := a.registerYahoo(); err != nil {
			return nil, err
		}
	}

	a.backtester = backtest.New(
		backtest.WithLogger(logger.Named("backtest")),
		backtest.WithMetrics(a.metrics),
	)
	a.runner = montecarlo.NewRunner(a.strategies,
		montecarlo.WithWorkers(cfg.MonteCarlo.Workers),
		montecarlo.WithLogger(logger.Named("montecarlo")),
		montecarlo.WithMetrics(a.metrics),
		montecarlo.WithBacktester(a.backtester),
	)
	a.sweeper = sweep.New(a.runner, logger.Named("sweep"))

	if err := a.openCache(); err != nil {
		return nil, err
	}
	if err := a.openRuns(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) registerYahoo() error {
	yc := a.cfg.Data.Yahoo
	y := yahoo.New().WithMetrics(a.metrics)
	err := y.Init(collector.Config{
		Enabled:           true,
		BaseURL:           yc.BaseURL,
		Timeout:           time.Duration(yc.TimeoutSeconds) * time.Second,
		RequestsPerSecond: yc.RequestsPerSecond,
		Burst:             yc.Burst,
		BreakerFailures:   yc.BreakerFailures,
		BreakerCooldown:   time.Duration(yc.BreakerCooldownSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("initializing yahoo collector: %w", err)
	}
	a.collectors.Register(y)
	return nil
}

func (a *App) openCache() error {
	var store archive.Storage
	cc := a.cfg.Storage.Cache
	switch cc.Type {
	case "localfs":
		fs, err := archive.NewLocalFS(cc.Path)
		if err != nil {
			return err
		}
		store = fs
	case "s3":
		s3, err := archive.NewS3(archive.S3Config{
			Bucket:    cc.S3.Bucket,
			Endpoint:  cc.S3.Endpoint,
			Region:    cc.S3.Region,
			AccessKey: cc.S3.AccessKey,
			SecretKey: cc.S3.SecretKey,
			Prefix:    cc.S3.Prefix,
		})
		if err != nil {
			return err
		}
		store = s3
	default:
		return nil
	}
	a.cache = panelcache.New(store,
		panelcache.WithLogger(a.logger.Named("cache")),
		panelcache.WithMetrics(a.metrics))
	return nil
}

func (a *App) openRuns(ctx context.Context) error {
	path := a.cfg.Storage.RunsDB
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return core.WrapError(core.ErrStorageFailed, err)
		}
	}
	store, err := runs.Open(ctx, path)
	if err != nil {
		return err
	}
	a.runs = store
	return nil
}

// Close releases storage handles
func (a *App) Close() error {
	if a.runs != nil {
		return a.runs.Close()
	}
	return nil
}

func (a *App) Config() *config.Config { return a.cfg }
func (a *App) Logger() *zap.Logger { return a.logger }
func (a *App) Metrics() *metrics.Registry { return a.metrics }
func (a *App) Runs() *runs.Store { return a.runs }
func (a *App) Strategies() []string { return a.strategies.Kinds() }
func (a *App) Collectors() []string { return a.collectors.Names() }
func (a *App) Cache() *panelcache.Cache { return a.cache }
func (a *App) Registry() *strategy.Registry { return a.strategies }

// LoadPanel returns the price panel for universeName over [start, end].
// With a CSV source the file is read and sliced and universeName is
// ignored. Otherwise the panel comes from the cache or is downloaded and
// cached.
func (a *App) LoadPanel(ctx context.Context, universeName string, start, end time.Time) (*panel.Panel, error) {
	if a.cfg.Data.Source == "csv" {
		return a.loadCSV(start, end)
	}

	u, err := universe.Resolve(universeName)
	if err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context) (*panel.Panel, error) {
		return a.download(ctx, u, start, end)
	}
	if a.cache == nil {
		return fetch(ctx)
	}

	p, hit, err := a.cache.GetOrFetch(ctx, cacheKey(u, start, end), fetch)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("panel loaded",
		zap.String("universe", u.Name),
		zap.Bool("cache_hit", hit),
		zap.Int("assets", p.Width()),
		zap.Int("rows", p.Len()))
	return p, nil
}

func (a *App) loadCSV(start, end time.Time) (*panel.Panel, error) {
	f, err := os.Open(a.cfg.Data.CSVPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.WrapError(core.ErrNotFound, err)
		}
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer f.Close()

	p, err := panel.ReadCSV(f)
	if err != nil {
		return nil, err
	}
	return panel.Slice(p, start, end)
}

// FetchPanel always downloads from the source collector, bypassing and
// then refreshing the cache.
func (a *App) FetchPanel(ctx context.Context, universeName string, start, end time.Time) (*panel.Panel, error) {
	u, err := universe.Resolve(universeName)
	if err != nil {
		return nil, err
	}
	p, err := a.download(ctx, u, start, end)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		if err := a.cache.Put(ctx, cacheKey(u, start, end), p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (a *App) download(ctx context.Context, u universe.Universe, start, end time.Time) (*panel.Panel, error) {
	c, ok := a.collectors.Get("yahoo")
	if !ok {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("yahoo collector not registered"))
	}

	a.logger.Info("downloading universe",
		zap.String("universe", u.Name),
		zap.Int("symbols", len(u.Symbols)),
		zap.String("start", start.Format(time.DateOnly)),
		zap.String("end", end.Format(time.DateOnly)))

	p, failures, err := collector.Download(ctx, c, u.Symbols, start, end, collector.DownloadOptions{
		Workers:     a.cfg.Data.Workers,
		MinCoverage: a.cfg.Data.MinCoverage,
		Logger:      a.logger.Named("download"),
	})
	if err != nil {
		return nil, err
	}
	for _, f := range failures {
		a.logger.Warn("symbol skipped", zap.String("symbol", f.Symbol), zap.Error(f.Err))
	}
	return p, nil
}

// cacheKey names a panel by universe; ad hoc ticker lists are keyed by a
// hash of their symbols
func cacheKey(u universe.Universe, start, end time.Time) string {
	name := u.Name
	if _, builtin := universe.Get(u.Name); !builtin {
		h := fnv.New64a()
		h.Write([]byte(strings.Join(u.Symbols, ",")))
		name = fmt.Sprintf("%s_%x", u.Name, h.Sum64())
	}
	return panelcache.Key(name, start, end)
}
