package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/api/job"
	"github.com/newthinker/stockpick/internal/app"
	"github.com/newthinker/stockpick/internal/notifier"
)

const notifyTimeout = 15 * time.Second

// Notifier fans a finished-job event out to external channels.
// *notifier.Registry satisfies it.
type Notifier interface {
	NotifyAll(ctx context.Context, event notifier.Event) map[string]error
}

// WithNotifier announces every finished job through n
func WithNotifier(n Notifier) Option {
	return func(h *Handler) { h.notifier = n }
}

func (h *Handler) notify(id string) {
	if h.notifier == nil {
		return
	}
	j, err := h.jobs.Get(id)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	for name, err := range h.notifier.NotifyAll(ctx, eventFor(j)) {
		h.logger.Warn("notification failed",
			zap.String("notifier", name),
			zap.String("job_id", id),
			zap.Error(err),
		)
	}
}

// eventFor flattens a job and its outcome into headline metrics
func eventFor(j *job.Job) notifier.Event {
	e := notifier.Event{
		JobID:      j.ID,
		Type:       j.Type,
		Status:     string(j.Status),
		FinishedAt: j.UpdatedAt,
	}
	if j.Error != nil {
		e.Error = j.Error.Code + ": " + j.Error.Message
	}

	switch out := j.Result.(type) {
	case *app.BacktestOutcome:
		e.Strategy, e.RunID = out.Study.Strategy, out.RunID
		if out.Result != nil {
			st := out.Result.Stats
			e.TotalReturn, e.SharpeRatio, e.MaxDrawdown = st.TotalReturn, st.SharpeRatio, st.MaxDrawdown
		}
	case *app.MonteCarloOutcome:
		e.Strategy, e.RunID = out.Study.Strategy, out.RunID
		if out.Report != nil {
			agg := out.Report.Aggregate
			e.TotalReturn, e.SharpeRatio, e.MaxDrawdown = agg.TotalReturn.Mean, agg.SharpeRatio.Mean, agg.MaxDrawdown.Mean
		}
	case *app.GridOutcome:
		e.Strategy, e.RunID = out.Study.Strategy, out.RunID
		agg := out.Best.Aggregate
		e.TotalReturn, e.SharpeRatio, e.MaxDrawdown = agg.TotalReturn.Mean, agg.SharpeRatio.Mean, agg.MaxDrawdown.Mean
	case *app.CostsOutcome:
		e.Strategy, e.RunID = out.Study.Strategy, out.RunID
		if len(out.Results) > 0 {
			r := out.Results[0]
			e.TotalReturn, e.SharpeRatio, e.MaxDrawdown = r.MeanReturn, r.MeanSharpe, r.Aggregate.MaxDrawdown.Mean
		}
	}
	return e
}
