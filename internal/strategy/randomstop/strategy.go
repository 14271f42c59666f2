// Package randomstop holds a random basket of assets and replaces the ones
// whose trailing return falls below a stop-loss threshold.
package randomstop

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/panel"
	"github.com/newthinker/stockpick/internal/strategy"
)

// Kind is the registry name of the policy
const Kind = "random_stoploss"

// seedStream decorrelates the second PCG word from the seed
const seedStream = 0x9e3779b97f4a7c15

// RandomStopLoss draws its portfolio at random and evicts losers. Each
// instance owns its generator, so runs with equal seeds are identical.
type RandomStopLoss struct {
	nStocks   int
	window    int
	threshold float64

	rng     *rand.Rand
	held    []string
	started bool
}

// New creates a policy seeded with seed
func New(p strategy.Params, seed uint64) *RandomStopLoss {
	return &RandomStopLoss{
		nStocks:   p.NStocks,
		window:    p.Window(),
		threshold: p.StopLossThreshold,
		rng:       rand.New(rand.NewPCG(seed, seed^seedStream)),
	}
}

// Factory satisfies strategy.Factory
func Factory(p strategy.Params, seed uint64) (strategy.Policy, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := p.ValidateStopLoss(); err != nil {
		return nil, err
	}
	return New(p, seed), nil
}

func (r *RandomStopLoss) Name() string {
	return Kind
}

func (r *RandomStopLoss) Description() string {
	return fmt.Sprintf("Random %d with %.1f%% stop-loss over %d days", r.nStocks, r.threshold*100, r.window)
}

// Select draws the initial basket on the first call. Later calls evict
// held assets whose return over the window is below the threshold and
// draw replacements from the assets not held. When there are too few
// replacements nothing changes.
func (r *RandomStopLoss) Select(ctx strategy.SelectionContext) ([]string, error) {
	h := ctx.History
	if h == nil {
		return nil, core.WrapError(core.ErrInsufficientHistory, fmt.Errorf("no history"))
	}
	assets := h.Assets()
	if r.nStocks > len(assets) {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("n_stocks %d exceeds universe of %d assets", r.nStocks, len(assets)))
	}

	if !r.started {
		r.held = r.sample(assets, r.nStocks)
		r.started = true
		return r.target(), nil
	}

	if h.Len() < r.window {
		return nil, core.WrapError(core.ErrInsufficientHistory,
			fmt.Errorf("have %d rows, need %d", h.Len(), r.window))
	}

	var evict []int
	for k, a := range r.held {
		if perf, ok := trailingReturn(h, r.window, a); ok && perf < r.threshold {
			evict = append(evict, k)
		}
	}
	if len(evict) == 0 {
		return r.target(), nil
	}

	held := make(map[string]bool, len(r.held))
	for _, a := range r.held {
		held[a] = true
	}
	available := make([]string, 0, len(assets))
	for _, a := range assets {
		if !held[a] {
			available = append(available, a)
		}
	}
	if len(available) < len(evict) {
		return nil, core.WrapError(core.ErrInsufficientReplacements,
			fmt.Errorf("%d evictions, %d assets available", len(evict), len(available)))
	}

	repl := r.sample(available, len(evict))
	for i, k := range evict {
		r.held[k] = repl[i]
	}
	return r.target(), nil
}

// sample draws k distinct items uniformly with a partial Fisher-Yates
// shuffle over a copy of pool.
func (r *RandomStopLoss) sample(pool []string, k int) []string {
	buf := make([]string, len(pool))
	copy(buf, pool)
	for i := 0; i < k; i++ {
		j := i + r.rng.IntN(len(buf)-i)
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf[:k:k]
}

func (r *RandomStopLoss) target() []string {
	out := make([]string, len(r.held))
	copy(out, r.held)
	return out
}

// trailingReturn is (last - first) / first over the final window rows.
// ok is false when either price is missing.
func trailingReturn(h *panel.Panel, window int, asset string) (float64, bool) {
	first, ok1 := h.Price(h.Len()-window, asset)
	last, ok2 := h.Price(h.Len()-1, asset)
	if !ok1 || !ok2 || first <= 0 {
		return 0, false
	}
	perf := (last - first) / first
	return perf, !math.IsNaN(perf)
}
