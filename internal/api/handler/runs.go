package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/newthinker/stockpick/internal/api/response"
	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/storage/runs"
)

const maxRunsLimit = 500

var runKinds = map[runs.Kind]bool{
	runs.KindBacktest:   true,
	runs.KindMonteCarlo: true,
	runs.KindGrid:       true,
	runs.KindCosts:      true,
}

// ListRuns returns run history, newest first. Supports kind, strategy and
// limit query parameters.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		response.Fail(w, core.WrapError(core.ErrNotFound, fmt.Errorf("run history disabled")))
		return
	}

	q := r.URL.Query()
	f := runs.Filter{
		Kind:     runs.Kind(q.Get("kind")),
		Strategy: q.Get("strategy"),
		Limit:    50,
	}
	if f.Kind != "" && !runKinds[f.Kind] {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown kind %q", f.Kind)))
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			response.Error(w, http.StatusBadRequest,
				core.WrapError(core.ErrConfigInvalid, fmt.Errorf("limit %q", raw)))
			return
		}
		f.Limit = min(limit, maxRunsLimit)
	}

	records, err := h.runs.List(r.Context(), f)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, records)
}

// GetRun returns a single run record.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		response.Fail(w, core.WrapError(core.ErrNotFound, fmt.Errorf("run history disabled")))
		return
	}
	rec, err := h.runs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, rec)
}
