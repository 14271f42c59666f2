package handler

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/api/job"
	"github.com/newthinker/stockpick/internal/api/response"
	"github.com/newthinker/stockpick/internal/app"
	"github.com/newthinker/stockpick/internal/core"
)

// Job types, also used as metric labels
const (
	JobBacktest   = "backtest"
	JobMonteCarlo = "montecarlo"
	JobGrid       = "grid"
	JobCosts      = "costs"
)

type gridRequest struct {
	app.Study
	Grid app.GridOptions `json:"grid"`
}

type costsRequest struct {
	app.Study
	Fees []float64 `json:"fees"`
}

// CreateBacktest starts a single backtest.
func (h *Handler) CreateBacktest(w http.ResponseWriter, r *http.Request) {
	s, ok := h.study(w, r)
	if !ok {
		return
	}
	h.submit(w, JobBacktest, func(ctx context.Context) (any, error) {
		return h.svc.Backtest(ctx, *s)
	})
}

// CreateMonteCarlo starts a Monte Carlo simulation.
func (h *Handler) CreateMonteCarlo(w http.ResponseWriter, r *http.Request) {
	s, ok := h.study(w, r)
	if !ok {
		return
	}
	if s.Iterations < 0 {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, fmt.Errorf("iterations must not be negative, got %d", s.Iterations)))
		return
	}
	h.submit(w, JobMonteCarlo, func(ctx context.Context) (any, error) {
		return h.svc.MonteCarlo(ctx, *s)
	})
}

// CreateGrid starts a parameter grid sweep.
func (h *Handler) CreateGrid(w http.ResponseWriter, r *http.Request) {
	req := &gridRequest{Study: h.svc.DefaultStudy()}
	if err := decode(r, req); err != nil {
		response.Fail(w, err)
		return
	}
	if !h.check(w, &req.Study) {
		return
	}
	h.submit(w, JobGrid, func(ctx context.Context) (any, error) {
		return h.svc.Grid(ctx, req.Study, req.Grid)
	})
}

// CreateCosts starts a transaction cost sweep.
func (h *Handler) CreateCosts(w http.ResponseWriter, r *http.Request) {
	req := &costsRequest{Study: h.svc.DefaultStudy()}
	if err := decode(r, req); err != nil {
		response.Fail(w, err)
		return
	}
	if !h.check(w, &req.Study) {
		return
	}
	for _, fee := range req.Fees {
		if fee < 0 || fee >= 1 {
			response.Error(w, http.StatusBadRequest,
				core.WrapError(core.ErrConfigInvalid, fmt.Errorf("fee %v outside [0, 1)", fee)))
			return
		}
	}
	h.submit(w, JobCosts, func(ctx context.Context) (any, error) {
		return h.svc.Costs(ctx, req.Study, req.Fees)
	})
}

// study decodes the body over the configured defaults and validates it
func (h *Handler) study(w http.ResponseWriter, r *http.Request) (*app.Study, bool) {
	s := new(app.Study)
	*s = h.svc.DefaultStudy()
	if err := decode(r, s); err != nil {
		response.Fail(w, err)
		return nil, false
	}
	return s, h.check(w, s)
}

func (h *Handler) check(w http.ResponseWriter, s *app.Study) bool {
	if !slices.Contains(h.svc.Strategies(), s.Strategy) {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrStrategyUnknown, fmt.Errorf("strategy %q", s.Strategy)))
		return false
	}
	if err := s.Validate(); err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// submit registers a job and runs fn in the background
func (h *Handler) submit(w http.ResponseWriter, jobType string, fn func(ctx context.Context) (any, error)) {
	j := h.jobs.Create(jobType)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	h.jobs.SetCancel(j.ID, cancel)
	h.trackActive(jobType)

	go h.run(ctx, cancel, j.ID, jobType, fn)

	w.Header().Set("Location", "/api/v1/jobs/"+j.ID)
	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"type":   j.Type,
		"status": j.Status,
	})
}

func (h *Handler) run(ctx context.Context, cancel context.CancelFunc, id, jobType string, fn func(ctx context.Context) (any, error)) {
	defer cancel()
	defer h.notify(id)
	defer h.trackActive(jobType)

	h.jobs.Update(id, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	result, err := fn(ctx)
	if err != nil {
		h.logger.Warn("job failed",
			zap.String("job_id", id),
			zap.String("type", jobType),
			zap.Error(err),
		)
		h.jobs.Update(id, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = job.Failure(err)
		})
		return
	}

	h.logger.Info("job complete", zap.String("job_id", id), zap.String("type", jobType))
	h.jobs.Update(id, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Result = result
	})
}

func (h *Handler) trackActive(jobType string) {
	if h.metrics != nil {
		h.metrics.SetJobsActive(jobType, h.jobs.Active(jobType))
	}
}
