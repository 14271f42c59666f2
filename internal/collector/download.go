package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/panel"
)

// DefaultMinCoverage is the share of dates an asset must cover to be kept
const DefaultMinCoverage = 0.8

// DownloadOptions tunes Download
type DownloadOptions struct {
	Workers     int     // concurrent requests, default 4
	MinCoverage float64 // default DefaultMinCoverage
	Logger      *zap.Logger
}

// Failure records a symbol that could not be fetched
type Failure struct {
	Symbol string
	Err    error
}

// Download fetches every symbol, aligns the histories on their common
// calendar, drops sparse assets and fills the remaining gaps. Symbols
// that fail are reported and left out; the call fails only when nothing
// usable remains or ctx is done.
func Download(ctx context.Context, c Collector, symbols []string, start, end time.Time, opts DownloadOptions) (*panel.Panel, []Failure, error) {
	if len(symbols) == 0 {
		return nil, nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("no symbols to download"))
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MinCoverage <= 0 {
		opts.MinCoverage = DefaultMinCoverage
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	series := make([]*core.Series, len(symbols))
	errs := make([]error, len(symbols))

	wp := pool.New().WithMaxGoroutines(opts.Workers).WithContext(ctx)
	for i, sym := range symbols {
		wp.Go(func(ctx context.Context) error {
			s, err := c.FetchHistory(ctx, sym, start, end)
			if err != nil {
				errs[i] = err
				return nil
			}
			series[i] = s
			return nil
		})
	}
	_ = wp.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var kept []core.Series
	var failures []Failure
	for i, sym := range symbols {
		switch {
		case errs[i] != nil:
			failures = append(failures, Failure{Symbol: sym, Err: errs[i]})
			log.Warn("download failed", zap.String("collector", c.Name()), zap.String("symbol", sym), zap.Error(errs[i]))
		case series[i] == nil || len(series[i].Points) == 0:
			failures = append(failures, Failure{Symbol: sym, Err: core.ErrNoData})
			log.Warn("no data", zap.String("collector", c.Name()), zap.String("symbol", sym))
		default:
			kept = append(kept, *series[i])
		}
	}
	if len(kept) == 0 {
		return nil, failures, core.WrapError(core.ErrNoData, errors.Join(failureErrs(failures)...))
	}

	raw, err := panel.FromSeries(kept)
	if err != nil {
		return nil, failures, err
	}
	cleaned, err := panel.Clean(raw, opts.MinCoverage)
	if err != nil {
		return nil, failures, err
	}

	log.Info("download complete",
		zap.String("collector", c.Name()),
		zap.Int("requested", len(symbols)),
		zap.Int("fetched", len(kept)),
		zap.Int("kept", cleaned.Width()),
		zap.Int("days", cleaned.Len()),
	)
	return cleaned, failures, nil
}

func failureErrs(failures []Failure) []error {
	out := make([]error, len(failures))
	for i, f := range failures {
		out[i] = fmt.Errorf("%s: %w", f.Symbol, f.Err)
	}
	return out
}
