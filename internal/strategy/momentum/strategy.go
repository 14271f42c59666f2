package momentum

import (
	"fmt"
	"math"
	"sort"

	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/panel"
	"github.com/newthinker/stockpick/internal/strategy"
)

// Kind is the registry name of the policy
const Kind = "momentum"

// Momentum holds the assets with the highest trailing return
type Momentum struct {
	nStocks int
	window  int
}

// New creates a momentum policy. It is stateless and deterministic.
func New(p strategy.Params) *Momentum {
	return &Momentum{
		nStocks: p.NStocks,
		window:  p.Window(),
	}
}

// Factory satisfies strategy.Factory; the seed is ignored.
func Factory(p strategy.Params, _ uint64) (strategy.Policy, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return New(p), nil
}

func (m *Momentum) Name() string {
	return Kind
}

func (m *Momentum) Description() string {
	return fmt.Sprintf("Momentum top %d over %d days", m.nStocks, m.window)
}

// Select ranks every asset by trailing return and keeps the top
// min(n_stocks, #assets).
func (m *Momentum) Select(ctx strategy.SelectionContext) ([]string, error) {
	h := ctx.History
	if h == nil || h.Len() < m.window {
		have := 0
		if h != nil {
			have = h.Len()
		}
		return nil, core.WrapError(core.ErrInsufficientHistory,
			fmt.Errorf("have %d rows, need %d", have, m.window))
	}

	scores := Rank(h, m.window)
	n := min(m.nStocks, len(scores))

	finite := 0
	for _, s := range scores {
		if !math.IsInf(s.Momentum, -1) {
			finite++
		}
	}
	if finite < n {
		return nil, core.WrapError(core.ErrInsufficientCandidates,
			fmt.Errorf("%d assets with finite momentum, need %d", finite, n))
	}

	target := make([]string, n)
	for i := 0; i < n; i++ {
		target[i] = scores[i].Asset
	}
	return target, nil
}

// Score is the trailing return of one asset
type Score struct {
	Asset    string
	Momentum float64
}

// Rank scores every asset of h over the last window rows and sorts them
// best first. Ties keep panel column order. Assets with a missing or
// non-positive start price, or a missing end price, score -Inf.
func Rank(h *panel.Panel, window int) []Score {
	startRow := h.Len() - window
	endRow := h.Len() - 1

	assets := h.Assets()
	scores := make([]Score, len(assets))
	for j, a := range assets {
		scores[j] = Score{Asset: a, Momentum: trailingReturn(h, startRow, endRow, a)}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Momentum > scores[j].Momentum
	})
	return scores
}

func trailingReturn(h *panel.Panel, startRow, endRow int, asset string) float64 {
	start, okStart := h.Price(startRow, asset)
	end, okEnd := h.Price(endRow, asset)
	if !okStart || !okEnd || start <= 0 {
		return math.Inf(-1)
	}
	r := (end - start) / start
	if math.IsNaN(r) {
		return math.Inf(-1)
	}
	return r
}
