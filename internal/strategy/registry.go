package strategy

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/core"
)

// Factory builds a fresh policy. seed drives any randomness the policy
// uses; deterministic policies ignore it.
type Factory func(p Params, seed uint64) (Policy, error)

// Registry maps strategy kinds to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger ...*zap.Logger) *Registry {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    l,
	}
}

// Register adds a factory under kind, replacing any previous one
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Has reports whether kind is registered
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[kind]
	return ok
}

// Kinds returns the registered kinds in sorted order
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build creates a policy of the given kind
func (r *Registry) Build(kind string, p Params, seed uint64) (Policy, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, core.WrapError(core.ErrStrategyUnknown, fmt.Errorf("kind %q", kind))
	}

	policy, err := f(p, seed)
	if err != nil {
		r.logger.Warn("policy build failed",
			zap.String("kind", kind),
			zap.Error(err),
		)
		return nil, err
	}
	return policy, nil
}
