package handler

import (
	"net/http"

	"github.com/newthinker/stockpick/internal/api/response"
	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/universe"
)

type universeInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Market      core.Market `json:"market"`
	Size        int         `json:"size"`
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Strategies lists the registered selection policies.
func (h *Handler) Strategies(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{"strategies": h.svc.Strategies()})
}

// Universes lists the built-in ticker universes.
func (h *Handler) Universes(w http.ResponseWriter, r *http.Request) {
	names := universe.Names()
	out := make([]universeInfo, 0, len(names))
	for _, name := range names {
		u, _ := universe.Get(name)
		out = append(out, universeInfo{
			Name:        u.Name,
			Description: u.Description,
			Market:      u.Market,
			Size:        len(u.Symbols),
		})
	}
	response.JSON(w, http.StatusOK, out)
}

// DefaultStudy returns the study POST bodies are decoded over.
func (h *Handler) DefaultStudy(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.svc.DefaultStudy())
}
