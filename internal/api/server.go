// Package api serves the stockpick HTTP API.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/api/handler"
	"github.com/newthinker/stockpick/internal/api/job"
	"github.com/newthinker/stockpick/internal/api/middleware"
	"github.com/newthinker/stockpick/internal/metrics"
)

// Server represents the HTTP server for stockpick
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	router     *mux.Router
	jobs       *job.Store
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MaxJobs     int
	JobTTL      time.Duration
	JobTimeout  time.Duration
	MetricsPath string
}

// Dependencies are the services routes are backed by. Everything but
// Service is optional.
type Dependencies struct {
	Service  handler.Service
	Runs     handler.RunStore
	Metrics  *metrics.Registry
	Notifier handler.Notifier
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger: logger,
		router: mux.NewRouter(),
		jobs:   job.NewStore(cfg.MaxJobs, cfg.JobTTL),
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes(cfg, deps)
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	opts := []handler.Option{handler.WithJobTimeout(cfg.JobTimeout)}
	if deps.Runs != nil {
		opts = append(opts, handler.WithRuns(deps.Runs))
	}
	if deps.Notifier != nil {
		opts = append(opts, handler.WithNotifier(deps.Notifier))
	}
	if deps.Metrics != nil {
		opts = append(opts, handler.WithMetrics(deps.Metrics))
		s.router.Use(metrics.HTTPMiddleware(deps.Metrics))
	}
	s.router.Use(metrics.LoggingMiddleware(s.logger))

	h := handler.New(deps.Service, s.jobs, s.logger, opts...)

	s.router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	if deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.router.Handle(path, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(middleware.APIKeyAuth(cfg.APIKey))

	v1.HandleFunc("/strategies", h.Strategies).Methods(http.MethodGet)
	v1.HandleFunc("/universes", h.Universes).Methods(http.MethodGet)
	v1.HandleFunc("/defaults", h.DefaultStudy).Methods(http.MethodGet)

	v1.HandleFunc("/backtests", h.CreateBacktest).Methods(http.MethodPost)
	v1.HandleFunc("/montecarlo", h.CreateMonteCarlo).Methods(http.MethodPost)
	v1.HandleFunc("/sweeps/grid", h.CreateGrid).Methods(http.MethodPost)
	v1.HandleFunc("/sweeps/costs", h.CreateCosts).Methods(http.MethodPost)

	v1.HandleFunc("/jobs", h.ListJobs).Methods(http.MethodGet)
	v1.HandleFunc("/jobs/{id}", h.GetJob).Methods(http.MethodGet)
	v1.HandleFunc("/jobs/{id}", h.CancelJob).Methods(http.MethodDelete)

	v1.HandleFunc("/runs", h.ListRuns).Methods(http.MethodGet)
	v1.HandleFunc("/runs/{id}", h.GetRun).Methods(http.MethodGet)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
