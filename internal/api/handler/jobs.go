package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/newthinker/stockpick/internal/api/response"
)

// ListJobs returns every tracked job without results.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.jobs.List())
}

// GetJob returns a job including its result once complete.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(mux.Vars(r)["id"])
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, j)
}

// CancelJob stops a pending or running job.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	j, err := h.jobs.Cancel(id)
	if err != nil {
		response.Fail(w, err)
		return
	}
	h.trackActive(j.Type)
	response.JSON(w, http.StatusOK, j)
}
