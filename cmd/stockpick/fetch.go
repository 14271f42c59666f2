package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/panel"
)

var (
	fetchUniverse string
	fetchStart    string
	fetchEnd      string
	fetchOut      string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download a universe from Yahoo and refresh the panel cache",
	Args:  cobra.NoArgs,
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchUniverse, "universe", "u", "", "universe name or comma-separated tickers")
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "start date YYYY-MM-DD")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "end date YYYY-MM-DD")
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "", "also write the panel as CSV to this path")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, log, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	cfg := a.Config()
	name := pickString(fetchUniverse, cfg.Data.Universe)
	start, err := time.Parse(time.DateOnly, pickString(fetchStart, cfg.Data.Start))
	if err != nil {
		return fmt.Errorf("invalid start date (expected YYYY-MM-DD): %w", err)
	}
	end, err := time.Parse(time.DateOnly, pickString(fetchEnd, cfg.Data.End))
	if err != nil {
		return fmt.Errorf("invalid end date (expected YYYY-MM-DD): %w", err)
	}

	p, err := a.FetchPanel(ctx, name, start, end)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	fmt.Printf("%s: %d assets x %d days (%s to %s)\n",
		name, p.Width(), p.Len(), p.First().Format(time.DateOnly), p.End().Format(time.DateOnly))

	if fetchOut == "" {
		return nil
	}
	f, err := os.Create(fetchOut)
	if err != nil {
		return fmt.Errorf("creating %s: %w", fetchOut, err)
	}
	defer f.Close()
	if err := panel.WriteCSV(f, p); err != nil {
		return fmt.Errorf("writing %s: %w", fetchOut, err)
	}
	log.Info("panel written", zap.String("path", fetchOut))
	return nil
}

func pickString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
