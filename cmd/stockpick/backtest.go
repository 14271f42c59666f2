package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/backtest"
)

var backtestFlags studyFlags

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a single backtest",
	Long:  "Run one selection policy over the universe and compare it with the equal-weight benchmark",
	Args:  cobra.NoArgs,
	RunE:  runBacktest,
}

func init() {
	backtestFlags.register(backtestCmd, false)
	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, log, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	s := a.DefaultStudy()
	backtestFlags.apply(cmd, &s)

	out, err := a.Backtest(ctx, s)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	fmt.Println("=== stockpick backtest ===")
	fmt.Printf("Strategy: %s (seed %d)\n", out.Study.Strategy, out.Study.Seed)
	fmt.Printf("Universe: %s\n", out.Study.Universe)
	fmt.Printf("Period:   %s to %s\n", out.Result.StartDate.Format("2006-01-02"), out.Result.EndDate.Format("2006-01-02"))
	fmt.Println()
	printStats(out.Result.Stats, out.Benchmark.Stats)
	fmt.Printf("\nFinal holdings: %v\n", out.Result.FinalHeld)

	if backtestFlags.noExport {
		return nil
	}
	files, err := a.ExportBacktest(out, a.OutputDir("backtest", out.Study.Strategy))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	log.Info("results written", zap.Strings("files", files))
	return nil
}

func printStats(strat, bench backtest.Stats) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "metric\tstrategy\tbenchmark\t")
	fmt.Fprintf(tw, "total return %%\t%.2f\t%.2f\t\n", strat.TotalReturn, bench.TotalReturn)
	fmt.Fprintf(tw, "sharpe\t%.3f\t%.3f\t\n", strat.SharpeRatio, bench.SharpeRatio)
	fmt.Fprintf(tw, "max drawdown %%\t%.2f\t%.2f\t\n", strat.MaxDrawdown, bench.MaxDrawdown)
	fmt.Fprintf(tw, "volatility %%\t%.2f\t%.2f\t\n", strat.Volatility, bench.Volatility)
	fmt.Fprintf(tw, "final value\t%.2f\t%.2f\t\n", strat.FinalValue, bench.FinalValue)
	fmt.Fprintf(tw, "transactions\t%d\t\t\n", strat.NumTransactions)
	fmt.Fprintf(tw, "fees paid\t%.2f\t\t\n", strat.TotalFees)
	tw.Flush()
}
