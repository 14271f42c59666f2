package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/report"
)

// OutputDir names a fresh directory under output.dir for one result
func (a *App) OutputDir(kind, strategy string) string {
	return filepath.Join(a.cfg.Output.Dir, fmt.Sprintf("%s_%s_%s", kind, strategy, time.Now().Format("20060102_150405")))
}

type exporter struct {
	dir   string
	files []string
}

func newExporter(dir string) (*exporter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return &exporter{dir: dir}, nil
}

func (e *exporter) write(name string, fn func(io.Writer) error) error {
	path := filepath.Join(e.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	e.files = append(e.files, path)
	return nil
}

func (e *exporter) bytes(name string, data []byte) error {
	return e.write(name, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func (e *exporter) json(name string, v any) error {
	return e.write(name, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// ExportBacktest writes the summary, equity curve, fills and rebalances
// of out into dir, plus an equity chart when charts are enabled. It
// returns the files written.
func (a *App) ExportBacktest(out *BacktestOutcome, dir string) ([]string, error) {
	e, err := newExporter(dir)
	if err != nil {
		return nil, err
	}
	res := out.Result

	summary := map[string]any{
		"study":        out.Study,
		"run_id":       out.RunID,
		"stats":        res.Stats,
		"benchmark":    out.Benchmark.Stats,
		"final_target": res.FinalTarget,
		"final_held":   res.FinalHeld,
		"holdings":     res.Holdings,
		"cash":         res.Cash,
	}
	if err := e.json("summary.json", summary); err != nil {
		return nil, err
	}
	if err := e.write("equity.csv", func(w io.Writer) error {
		return report.WriteEquity(w, res.Samples, out.Benchmark.Samples)
	}); err != nil {
		return nil, err
	}
	if err := e.write("transactions.csv", func(w io.Writer) error { return report.WriteTransactions(w, res) }); err != nil {
		return nil, err
	}
	if err := e.write("rebalances.csv", func(w io.Writer) error { return report.WriteRebalances(w, res) }); err != nil {
		return nil, err
	}

	if a.cfg.Output.Charts && len(res.Samples) >= 2 {
		title := fmt.Sprintf("%s vs equal-weight benchmark", res.Strategy)
		img, err := report.EquityChart(title, res.Samples, out.Benchmark.Samples)
		if err != nil {
			return nil, err
		}
		if err := e.bytes("equity.png", img); err != nil {
			return nil, err
		}
	}
	return e.files, nil
}

// ExportMonteCarlo writes the aggregate, the per-seed table and a return
// distribution chart
func (a *App) ExportMonteCarlo(out *MonteCarloOutcome, dir string) ([]string, error) {
	e, err := newExporter(dir)
	if err != nil {
		return nil, err
	}

	summary := map[string]any{
		"study":      out.Study,
		"run_id":     out.RunID,
		"iterations": out.Report.Iterations,
		"aggregate":  out.Report.Aggregate,
		"benchmark":  out.Benchmark,
	}
	if err := e.json("summary.json", summary); err != nil {
		return nil, err
	}
	if err := e.write("runs.csv", func(w io.Writer) error { return report.WriteRuns(w, out.Report.Runs) }); err != nil {
		return nil, err
	}

	if a.cfg.Output.Charts {
		title := fmt.Sprintf("%s total return over %d runs", out.Study.Strategy, out.Report.Iterations)
		img, err := report.ReturnDistribution(title, out.Report.Runs, 20)
		if err != nil {
			return nil, err
		}
		if err := e.bytes("distribution.png", img); err != nil {
			return nil, err
		}
	}
	return e.files, nil
}

// ExportGrid writes every grid point and the best one
func (a *App) ExportGrid(out *GridOutcome, dir string) ([]string, error) {
	e, err := newExporter(dir)
	if err != nil {
		return nil, err
	}
	if err := e.json("best.json", map[string]any{
		"study":     out.Study,
		"run_id":    out.RunID,
		"objective": out.Objective,
		"best":      out.Best,
	}); err != nil {
		return nil, err
	}
	if err := e.write("grid.csv", func(w io.Writer) error { return report.WriteGrid(w, out.Results) }); err != nil {
		return nil, err
	}
	return e.files, nil
}

// ExportCosts writes the fee sensitivity table
func (a *App) ExportCosts(out *CostsOutcome, dir string) ([]string, error) {
	e, err := newExporter(dir)
	if err != nil {
		return nil, err
	}
	if err := e.write("costs.csv", func(w io.Writer) error { return report.WriteCosts(w, out.Results) }); err != nil {
		return nil, err
	}
	return e.files, nil
}
