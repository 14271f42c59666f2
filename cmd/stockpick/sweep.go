package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/app"
)

var (
	gridFlags  studyFlags
	grid       app.GridOptions
	costsFlags studyFlags
	costsFees  []float64
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Parameter and cost sweeps built on Monte Carlo batches",
}

var sweepGridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Search the parameter grid and report the best point",
	Args:  cobra.NoArgs,
	RunE:  runSweepGrid,
}

var sweepCostsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Measure return sensitivity to transaction costs",
	Args:  cobra.NoArgs,
	RunE:  runSweepCosts,
}

func init() {
	gridFlags.register(sweepGridCmd, true)
	fs := sweepGridCmd.Flags()
	fs.IntSliceVar(&grid.NStocks, "grid-n-stocks", nil, "n_stocks values to try")
	fs.IntSliceVar(&grid.LookbackMonths, "grid-lookback", nil, "lookback months to try")
	fs.StringSliceVar(&grid.Frequencies, "grid-freq", nil, "rebalancing frequencies to try")
	fs.Float64SliceVar(&grid.StopLoss, "grid-stop-loss", nil, "stop-loss thresholds to try")
	fs.StringVar(&grid.Objective, "objective", "", "sharpe, return, risk_adjusted, balanced or outperformance")

	costsFlags.register(sweepCostsCmd, true)
	sweepCostsCmd.Flags().Float64SliceVar(&costsFees, "fees", nil, "fee levels as fractions, e.g. 0,0.001,0.01")

	sweepCmd.AddCommand(sweepGridCmd, sweepCostsCmd)
	rootCmd.AddCommand(sweepCmd)
}

func runSweepGrid(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, log, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	s := a.DefaultStudy()
	gridFlags.apply(cmd, &s)

	out, err := a.Grid(ctx, s, grid)
	if err != nil {
		return fmt.Errorf("grid sweep: %w", err)
	}

	fmt.Printf("=== stockpick grid sweep (%s, objective %s) ===\n\n", out.Study.Strategy, out.Objective)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "n_stocks\tlookback\tfreq\tstop_loss\tmean ret %\tsharpe\tdrawdown %\trisk adj\tvs bench %\t")
	for _, r := range out.Results {
		pt := r.Point
		fmt.Fprintf(tw, "%d\t%d\t%s\t%.2f\t%.2f\t%.3f\t%.2f\t%.3f\t%.2f\t\n",
			pt.Params.NStocks, pt.Params.LookbackMonths, pt.Frequency, pt.Params.StopLossThreshold,
			r.Aggregate.TotalReturn.Mean, r.Aggregate.SharpeRatio.Mean, r.Aggregate.MaxDrawdown.Mean,
			r.RiskAdjustedReturn, r.Outperformance)
	}
	tw.Flush()

	best := out.Best.Point
	fmt.Printf("\nBest: n_stocks=%d lookback=%d freq=%s stop_loss=%.2f\n",
		best.Params.NStocks, best.Params.LookbackMonths, best.Frequency, best.Params.StopLossThreshold)

	if gridFlags.noExport {
		return nil
	}
	files, err := a.ExportGrid(out, a.OutputDir("grid", out.Study.Strategy))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	log.Info("results written", zap.Strings("files", files))
	return nil
}

func runSweepCosts(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, log, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	s := a.DefaultStudy()
	costsFlags.apply(cmd, &s)

	out, err := a.Costs(ctx, s, costsFees)
	if err != nil {
		return fmt.Errorf("cost sweep: %w", err)
	}

	fmt.Printf("=== stockpick cost sweep (%s) ===\n\n", out.Study.Strategy)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "fee %\tmean ret %\tstd %\tsharpe\tfees\ttrades\timpact %\tvs bench %\t")
	for _, r := range out.Results {
		fmt.Fprintf(tw, "%.2f\t%.2f\t%.2f\t%.3f\t%.2f\t%.1f\t%.2f\t%.2f\t\n",
			r.FeeRate*100, r.MeanReturn, r.StdReturn, r.MeanSharpe, r.MeanFees,
			r.MeanTransactions, r.Impact, r.Outperformance)
	}
	tw.Flush()

	if costsFlags.noExport {
		return nil
	}
	files, err := a.ExportCosts(out, a.OutputDir("costs", out.Study.Strategy))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	log.Info("results written", zap.Strings("files", files))
	return nil
}
