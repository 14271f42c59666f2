package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/newthinker/stockpick/internal/collector"
	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/metrics"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	userAgent      = "Mozilla/5.0 (compatible; stockpick/1.0)"
)

// validSymbol matches tickers like AAPL, BRK-B, MC.PA, ^GSPC
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9-]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo implements the Yahoo Finance collector. Requests are rate
// limited and guarded by a circuit breaker.
type Yahoo struct {
	client  *http.Client
	config  collector.Config
	baseURL string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Registry
}

// New creates a new Yahoo collector with default limits
func New() *Yahoo {
	y := &Yahoo{}
	y.configure(collector.Config{Enabled: true})
	return y
}

// WithMetrics attaches a metrics registry
func (y *Yahoo) WithMetrics(m *metrics.Registry) *Yahoo {
	y.metrics = m
	return y
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

func (y *Yahoo) SupportedMarkets() []core.Market {
	return []core.Market{core.MarketUS, core.MarketEU, core.MarketGlobal}
}

// Init applies cfg; zero fields take defaults. It never fails.
func (y *Yahoo) Init(cfg collector.Config) error {
	y.configure(cfg)
	return nil
}

func (y *Yahoo) configure(cfg collector.Config) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	y.config = cfg
	y.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	if y.baseURL == "" {
		y.baseURL = defaultBaseURL
	}
	y.client = &http.Client{Timeout: cfg.Timeout}
	y.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)

	failures := cfg.BreakerFailures
	y.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "yahoo",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// unknown symbols are the caller's problem, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, core.ErrSymbolNotFound)
		},
	})
}

// FetchHistory fetches daily adjusted closes. Bars without a close are
// skipped; the unadjusted close is used when Yahoo omits adjclose.
func (y *Yahoo) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*core.Series, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, core.WrapError(core.ErrSymbolNotFound, err)
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, core.WrapError(core.ErrCollectorTimeout, err)
	}

	out, err := y.breaker.Execute(func() (any, error) {
		return y.fetch(ctx, symbol, start, end)
	})
	y.record(err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("yahoo breaker open: %w", err))
		}
		return nil, err
	}
	return out.(*core.Series), nil
}

func (y *Yahoo) fetch(ctx context.Context, symbol string, start, end time.Time) (*core.Series, error) {
	url := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d&events=div%%2Csplits&includeAdjustedClose=true",
		y.baseURL, symbol, start.Unix(), end.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.WrapError(core.ErrCollectorTimeout, err)
		}
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching history: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("%s", symbol))
	case resp.StatusCode != http.StatusOK:
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("decoding response: %w", err))
	}
	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}
	if len(result.Chart.Result) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no data for symbol: %s", symbol))
	}

	return toSeries(symbol, result.Chart.Result[0]), nil
}

func toSeries(symbol string, r chartResult) *core.Series {
	var closes, adj []*float64
	if len(r.Indicators.Quote) > 0 {
		closes = r.Indicators.Quote[0].Close
	}
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	s := &core.Series{Symbol: symbol, Points: make([]core.Point, 0, len(r.Timestamp))}
	for i, ts := range r.Timestamp {
		v := pick(adj, i)
		if math.IsNaN(v) {
			v = pick(closes, i)
		}
		pt := core.Point{Time: time.Unix(ts, 0).UTC(), Close: v}
		if !pt.IsValid() {
			continue
		}
		s.Points = append(s.Points, pt)
	}
	return s
}

func pick(xs []*float64, i int) float64 {
	if i >= len(xs) || xs[i] == nil {
		return math.NaN()
	}
	return *xs[i]
}

func (y *Yahoo) record(err error) {
	if y.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, core.ErrSymbolNotFound):
		status = "not_found"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status = "breaker_open"
	default:
		status = "error"
	}
	y.metrics.RecordCollectorRequest(y.Name(), status)
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type indicators struct {
	Quote    []quoteIndicator    `json:"quote"`
	AdjClose []adjCloseIndicator `json:"adjclose"`
}

type quoteIndicator struct {
	Close []*float64 `json:"close"`
}

type adjCloseIndicator struct {
	AdjClose []*float64 `json:"adjclose"`
}
