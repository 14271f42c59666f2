package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/schedule"
	"github.com/newthinker/stockpick/internal/strategy"
	"github.com/newthinker/stockpick/internal/strategy/randomstop"
	"github.com/newthinker/stockpick/internal/sweep"
)

type Config struct {
	Data       DataConfig       `mapstructure:"data"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	Backtest   BacktestConfig   `mapstructure:"backtest"`
	MonteCarlo MonteCarloConfig `mapstructure:"montecarlo"`
	Sweep      SweepConfig      `mapstructure:"sweep"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Output     OutputConfig     `mapstructure:"output"`
	Server     ServerConfig     `mapstructure:"server"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	// Notifiers is keyed by notifier type: "webhook" or "telegram"
	Notifiers map[string]NotifierConfig `mapstructure:"notifiers"`
}

// DataConfig selects where price panels come from
type DataConfig struct {
	Source      string          `mapstructure:"source"` // "yahoo" or "csv"
	CSVPath     string          `mapstructure:"csv_path"`
	Universe    string          `mapstructure:"universe"`
	Start       string          `mapstructure:"start"`
	End         string          `mapstructure:"end"`
	MinCoverage float64         `mapstructure:"min_coverage"`
	Workers     int             `mapstructure:"workers"`
	Yahoo       CollectorConfig `mapstructure:"yahoo"`
}

type CollectorConfig struct {
	BaseURL                string  `mapstructure:"base_url"`
	TimeoutSeconds         int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond      float64 `mapstructure:"requests_per_second"`
	Burst                  int     `mapstructure:"burst"`
	BreakerFailures        uint32  `mapstructure:"breaker_failures"`
	BreakerCooldownSeconds int     `mapstructure:"breaker_cooldown_seconds"`
}

type StrategyConfig struct {
	Kind              string  `mapstructure:"kind"`
	NStocks           int     `mapstructure:"n_stocks"`
	LookbackMonths    int     `mapstructure:"lookback_months"`
	StopLossThreshold float64 `mapstructure:"stop_loss_threshold"`
	Seed              uint64  `mapstructure:"seed"`
}

type BacktestConfig struct {
	InitCash           float64 `mapstructure:"init_cash"`
	TransactionCostPct float64 `mapstructure:"transaction_cost_pct"`
	RebalancingFreq    string  `mapstructure:"rebalancing_freq"`
}

type MonteCarloConfig struct {
	Iterations int `mapstructure:"iterations"`
	Workers    int `mapstructure:"workers"`
}

type SweepConfig struct {
	NStocks        []int     `mapstructure:"n_stocks"`
	LookbackMonths []int     `mapstructure:"lookback_months"`
	Frequencies    []string  `mapstructure:"rebalancing_freq"`
	StopLoss       []float64 `mapstructure:"stop_loss_threshold"`
	Iterations     int       `mapstructure:"iterations"`
	Objective      string    `mapstructure:"objective"`
	FeeLevels      []float64 `mapstructure:"fee_levels"`
}

type StorageConfig struct {
	Cache  CacheConfig `mapstructure:"cache"`
	RunsDB string      `mapstructure:"runs_db"` // empty disables run history
}

// CacheConfig configures the panel cache. Type "none" disables it.
type CacheConfig struct {
	Type string   `mapstructure:"type"` // "localfs", "s3" or "none"
	Path string   `mapstructure:"path"`
	S3   S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Charts bool   `mapstructure:"charts"`
}

type ServerConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	APIKey            string `mapstructure:"api_key"`
	JobTTLHours       int    `mapstructure:"job_ttl_hours"`
	MaxJobs           int    `mapstructure:"max_jobs"`
	JobTimeoutMinutes int    `mapstructure:"job_timeout_minutes"`
}

// NotifierConfig configures one job notification channel
type NotifierConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	BotToken string            `mapstructure:"bot_token"`
	ChatID   string            `mapstructure:"chat_id"`
	BaseURL  string            `mapstructure:"base_url"`
	URL      string            `mapstructure:"url"`
	Headers  map[string]string `mapstructure:"headers"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from file over Defaults. An empty path loads
// defaults plus STOCKPICK_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("stockpick")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := Defaults()
	for key, val := range flatten(cfg) {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if ok && strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// flatten lists the scalar defaults viper must know for env overrides
func flatten(c *Config) map[string]any {
	return map[string]any{
		"data.source":                    c.Data.Source,
		"data.csv_path":                  c.Data.CSVPath,
		"data.universe":                  c.Data.Universe,
		"data.start":                     c.Data.Start,
		"data.end":                       c.Data.End,
		"data.min_coverage":              c.Data.MinCoverage,
		"data.workers":                   c.Data.Workers,
		"data.yahoo.base_url":            c.Data.Yahoo.BaseURL,
		"data.yahoo.timeout_seconds":     c.Data.Yahoo.TimeoutSeconds,
		"data.yahoo.requests_per_second": c.Data.Yahoo.RequestsPerSecond,
		"strategy.kind":                  c.Strategy.Kind,
		"strategy.n_stocks":              c.Strategy.NStocks,
		"strategy.lookback_months":       c.Strategy.LookbackMonths,
		"strategy.stop_loss_threshold":   c.Strategy.StopLossThreshold,
		"strategy.seed":                  c.Strategy.Seed,
		"backtest.init_cash":             c.Backtest.InitCash,
		"backtest.transaction_cost_pct":  c.Backtest.TransactionCostPct,
		"backtest.rebalancing_freq":      c.Backtest.RebalancingFreq,
		"montecarlo.iterations":          c.MonteCarlo.Iterations,
		"montecarlo.workers":             c.MonteCarlo.Workers,
		"sweep.iterations":               c.Sweep.Iterations,
		"sweep.objective":                c.Sweep.Objective,
		"storage.cache.type":             c.Storage.Cache.Type,
		"storage.cache.path":             c.Storage.Cache.Path,
		"storage.cache.s3.bucket":        c.Storage.Cache.S3.Bucket,
		"storage.cache.s3.endpoint":      c.Storage.Cache.S3.Endpoint,
		"storage.cache.s3.region":        c.Storage.Cache.S3.Region,
		"storage.cache.s3.access_key":    c.Storage.Cache.S3.AccessKey,
		"storage.cache.s3.secret_key":    c.Storage.Cache.S3.SecretKey,
		"storage.cache.s3.prefix":        c.Storage.Cache.S3.Prefix,
		"storage.runs_db":                c.Storage.RunsDB,
		"output.dir":                     c.Output.Dir,
		"output.charts":                  c.Output.Charts,
		"server.host":                    c.Server.Host,
		"server.port":                    c.Server.Port,
		"server.api_key":                 c.Server.APIKey,
		"metrics.enabled":                c.Metrics.Enabled,
		"metrics.path":                   c.Metrics.Path,
		"logging.level":                  c.Logging.Level,
		"logging.development":            c.Logging.Development,
	}
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Data: DataConfig{
			Source:      "yahoo",
			Universe:    "sp100",
			Start:       "2018-01-01",
			End:         "2024-12-31",
			MinCoverage: 0.8,
			Workers:     4,
			Yahoo: CollectorConfig{
				TimeoutSeconds:         15,
				RequestsPerSecond:      2,
				Burst:                  1,
				BreakerFailures:        5,
				BreakerCooldownSeconds: 30,
			},
		},
		Strategy: StrategyConfig{
			Kind:              "momentum",
			NStocks:           10,
			LookbackMonths:    6,
			StopLossThreshold: -0.10,
		},
		Backtest: BacktestConfig{
			InitCash:           10000,
			TransactionCostPct: 0.001,
			RebalancingFreq:    "monthly",
		},
		MonteCarlo: MonteCarloConfig{
			Iterations: 100,
		},
		Sweep: SweepConfig{
			NStocks:        []int{5, 10, 15, 20},
			LookbackMonths: []int{3, 6, 12},
			Frequencies:    []string{"monthly", "quarterly"},
			StopLoss:       []float64{-0.10},
			Iterations:     20,
			Objective:      "sharpe",
			FeeLevels:      append([]float64(nil), sweep.DefaultFeeLevels...),
		},
		Storage: StorageConfig{
			Cache:  CacheConfig{Type: "localfs", Path: "data/cache"},
			RunsDB: "data/runs.db",
		},
		Output: OutputConfig{
			Dir:    "results",
			Charts: true,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			JobTTLHours:       1,
			MaxJobs:           100,
			JobTimeoutMinutes: 30,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DateRange parses Data.Start and Data.End
func (c *Config) DateRange() (time.Time, time.Time, error) {
	start, err := time.Parse(time.DateOnly, c.Data.Start)
	if err != nil {
		return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("data.start: %w", err))
	}
	end, err := time.Parse(time.DateOnly, c.Data.End)
	if err != nil {
		return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("data.end: %w", err))
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.end %s must be after data.start %s", c.Data.End, c.Data.Start))
	}
	return start, end, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Data.Source {
	case "yahoo":
	case "csv":
		if c.Data.CSVPath == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("data.csv_path required when source is csv"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown data.source %q", c.Data.Source))
	}
	if _, _, err := c.DateRange(); err != nil {
		return err
	}
	if c.Data.MinCoverage < 0 || c.Data.MinCoverage > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("min_coverage must be between 0 and 1, got %f", c.Data.MinCoverage))
	}

	if c.Strategy.Kind == randomstop.Kind {
		p := strategy.Params{StopLossThreshold: c.Strategy.StopLossThreshold}
		if err := p.ValidateStopLoss(); err != nil {
			return err
		}
	}
	for _, sl := range c.Sweep.StopLoss {
		if err := (strategy.Params{StopLossThreshold: sl}).ValidateStopLoss(); err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
	}

	// Backtest validation
	if c.Backtest.InitCash <= 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("init_cash must be positive, got %f", c.Backtest.InitCash))
	}
	if c.Backtest.TransactionCostPct < 0 || c.Backtest.TransactionCostPct >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("transaction_cost_pct must be in [0, 1), got %f", c.Backtest.TransactionCostPct))
	}
	if _, err := schedule.ParseFrequency(c.Backtest.RebalancingFreq); err != nil {
		return err
	}
	for _, f := range c.Sweep.Frequencies {
		if _, err := schedule.ParseFrequency(f); err != nil {
			return err
		}
	}
	if _, err := sweep.ParseObjective(c.Sweep.Objective); err != nil {
		return err
	}
	if c.MonteCarlo.Iterations <= 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("montecarlo.iterations must be positive, got %d", c.MonteCarlo.Iterations))
	}

	switch c.Storage.Cache.Type {
	case "none", "":
	case "localfs":
		if c.Storage.Cache.Path == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.cache.path required for localfs"))
		}
	case "s3":
		if c.Storage.Cache.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.cache.s3.bucket required for s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage.cache.type %q", c.Storage.Cache.Type))
	}

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	for name, n := range c.Notifiers {
		if !n.Enabled {
			continue
		}
		switch name {
		case "webhook":
			if n.URL == "" {
				return core.WrapError(core.ErrConfigMissing, fmt.Errorf("notifiers.webhook.url required"))
			}
		case "telegram":
			if n.BotToken == "" || n.ChatID == "" {
				return core.WrapError(core.ErrConfigMissing, fmt.Errorf("notifiers.telegram needs bot_token and chat_id"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown notifier %q", name))
		}
	}
	return nil
}
