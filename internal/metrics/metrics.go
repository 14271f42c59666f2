// Package metrics exposes Prometheus instrumentation for backtests,
// simulations, data collection and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "stockpick"

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Engine metrics
	backtestsTotal    *prometheus.CounterVec
	backtestDuration  prometheus.Histogram
	rebalancesTotal   *prometheus.CounterVec
	transactionsTotal *prometheus.CounterVec
	skippedOrders     *prometheus.CounterVec
	simulationsTotal  *prometheus.CounterVec
	simulationTime    prometheus.Histogram
	jobsActive        *prometheus.GaugeVec

	// Data metrics
	collectorRequests *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),

		backtestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtests_total",
				Help:      "Completed backtest runs",
			},
			[]string{"strategy", "status"},
		),
		backtestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backtest_duration_seconds",
				Help:      "Wall time of a single backtest run",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		rebalancesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rebalances_total",
				Help:      "Rebalance dates processed, by outcome",
			},
			[]string{"strategy", "outcome"},
		),
		transactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Executed simulated orders",
			},
			[]string{"side"},
		),
		skippedOrders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_orders_total",
				Help:      "Simulated orders skipped by the ledger",
			},
			[]string{"side", "reason"},
		),
		simulationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "montecarlo_simulations_total",
				Help:      "Completed Monte Carlo batches",
			},
			[]string{"strategy", "status"},
		),
		simulationTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "montecarlo_duration_seconds",
				Help:      "Wall time of a Monte Carlo batch",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300},
			},
		),
		jobsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_active",
				Help:      "Number of running API jobs",
			},
			[]string{"type"},
		),
		collectorRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collector_requests_total",
				Help:      "Upstream price history requests",
			},
			[]string{"collector", "status"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "panel_cache_lookups_total",
				Help:      "Panel cache lookups by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		r.httpRequestsTotal,
		r.httpRequestDuration,
		r.httpRequestsInFlight,
		r.backtestsTotal,
		r.backtestDuration,
		r.rebalancesTotal,
		r.transactionsTotal,
		r.skippedOrders,
		r.simulationsTotal,
		r.simulationTime,
		r.jobsActive,
		r.collectorRequests,
		r.cacheLookups,
	)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	r.httpRequestsTotal.WithLabelValues(method, path, statusToString(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordBacktest records a finished backtest run.
func (r *Registry) RecordBacktest(strategy, status string, duration float64) {
	r.backtestsTotal.WithLabelValues(strategy, status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordRebalance counts a rebalance date. outcome is "traded", "hold"
// or "no_change".
func (r *Registry) RecordRebalance(strategy, outcome string) {
	r.rebalancesTotal.WithLabelValues(strategy, outcome).Inc()
}

// RecordTransaction counts an executed order.
func (r *Registry) RecordTransaction(side string) {
	r.transactionsTotal.WithLabelValues(side).Inc()
}

// RecordSkippedOrder counts an order the ledger refused.
func (r *Registry) RecordSkippedOrder(side, reason string) {
	r.skippedOrders.WithLabelValues(side, reason).Inc()
}

// RecordSimulation records a finished Monte Carlo batch.
func (r *Registry) RecordSimulation(strategy, status string, duration float64) {
	r.simulationsTotal.WithLabelValues(strategy, status).Inc()
	r.simulationTime.Observe(duration)
}

// SetJobsActive sets the number of active jobs of a type.
func (r *Registry) SetJobsActive(jobType string, count int) {
	r.jobsActive.WithLabelValues(jobType).Set(float64(count))
}

// RecordCollectorRequest counts an upstream data request.
func (r *Registry) RecordCollectorRequest(collector, status string) {
	r.collectorRequests.WithLabelValues(collector, status).Inc()
}

// RecordCacheLookup counts a panel cache hit or miss.
func (r *Registry) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
