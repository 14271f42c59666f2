// Package handler implements the JSON endpoints of the stockpick API.
// Studies run asynchronously: a POST returns a job id, the job is polled
// through /jobs/{id} and the finished run is also written to run history.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/api/job"
	"github.com/newthinker/stockpick/internal/app"
	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/metrics"
	"github.com/newthinker/stockpick/internal/storage/runs"
)

const defaultJobTimeout = 30 * time.Minute

// Service runs studies. *app.App satisfies it.
type Service interface {
	DefaultStudy() app.Study
	Strategies() []string
	Backtest(ctx context.Context, s app.Study) (*app.BacktestOutcome, error)
	MonteCarlo(ctx context.Context, s app.Study) (*app.MonteCarloOutcome, error)
	Grid(ctx context.Context, s app.Study, g app.GridOptions) (*app.GridOutcome, error)
	Costs(ctx context.Context, s app.Study, fees []float64) (*app.CostsOutcome, error)
}

// RunStore reads run history. *runs.Store satisfies it.
type RunStore interface {
	Get(ctx context.Context, id string) (runs.Record, error)
	List(ctx context.Context, f runs.Filter) ([]runs.Record, error)
}

// Handler serves the API endpoints.
type Handler struct {
	svc      Service
	runs     RunStore
	jobs     *job.Store
	metrics  *metrics.Registry
	notifier Notifier
	logger   *zap.Logger
	timeout  time.Duration
}

// Option configures a Handler
type Option func(*Handler)

// WithMetrics reports active job gauges to reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(h *Handler) { h.metrics = reg }
}

// WithJobTimeout bounds how long a single job may run
func WithJobTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithRuns enables the run history endpoints
func WithRuns(store RunStore) Option {
	return func(h *Handler) { h.runs = store }
}

// New creates a handler.
func New(svc Service, jobs *job.Store, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		svc:     svc,
		jobs:    jobs,
		logger:  logger,
		timeout: defaultJobTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// decode reads an optional JSON body into v. An empty body leaves v as is.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	return nil
}
