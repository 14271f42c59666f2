// Package builtin registers the bundled selection policies.
package builtin

import (
	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/strategy"
	"github.com/newthinker/stockpick/internal/strategy/momentum"
	"github.com/newthinker/stockpick/internal/strategy/randomstop"
)

// Registry returns a registry holding momentum and random_stoploss
func Registry(logger *zap.Logger) *strategy.Registry {
	r := strategy.NewRegistry(logger)
	r.Register(momentum.Kind, momentum.Factory)
	r.Register(randomstop.Kind, randomstop.Factory)
	return r
}
