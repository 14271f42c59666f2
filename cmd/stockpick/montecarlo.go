package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/montecarlo"
)

var mcFlags studyFlags

var montecarloCmd = &cobra.Command{
	Use:     "montecarlo",
	Aliases: []string{"mc"},
	Short:   "Run a Monte Carlo batch over seeds 0..N-1",
	Args:    cobra.NoArgs,
	RunE:    runMonteCarlo,
}

func init() {
	mcFlags.register(montecarloCmd, true)
	rootCmd.AddCommand(montecarloCmd)
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, log, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	s := a.DefaultStudy()
	mcFlags.apply(cmd, &s)

	out, err := a.MonteCarlo(ctx, s)
	if err != nil {
		return fmt.Errorf("monte carlo: %w", err)
	}

	agg := out.Report.Aggregate
	fmt.Println("=== stockpick monte carlo ===")
	fmt.Printf("Strategy:   %s\n", out.Study.Strategy)
	fmt.Printf("Iterations: %d\n", out.Report.Iterations)
	fmt.Printf("Win rate:   %.1f%%\n", agg.WinRate)
	fmt.Printf("Benchmark:  %.2f%% return, sharpe %.3f\n\n", out.Benchmark.TotalReturn, out.Benchmark.SharpeRatio)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "metric\tmean\tstd\tmin\tp5\tmedian\tp95\tmax\t")
	summaryRow(tw, "total return %", agg.TotalReturn)
	summaryRow(tw, "sharpe", agg.SharpeRatio)
	summaryRow(tw, "max drawdown %", agg.MaxDrawdown)
	summaryRow(tw, "volatility %", agg.Volatility)
	summaryRow(tw, "fees", agg.TotalFees)
	tw.Flush()

	if mcFlags.noExport {
		return nil
	}
	files, err := a.ExportMonteCarlo(out, a.OutputDir("montecarlo", out.Study.Strategy))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	log.Info("results written", zap.Strings("files", files))
	return nil
}

func summaryRow(tw *tabwriter.Writer, name string, s montecarlo.Summary) {
	fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
		name, s.Mean, s.Std, s.Min, s.P5, s.Median, s.P95, s.Max)
}
