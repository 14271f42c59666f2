package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/storage/runs"
)

var (
	runsKind     string
	runsStrategy string
	runsLimit    int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print one run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

func init() {
	runsCmd.Flags().StringVar(&runsKind, "kind", "", "filter by kind (backtest, montecarlo, grid, costs)")
	runsCmd.Flags().StringVarP(&runsStrategy, "strategy", "s", "", "filter by strategy")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "l", 20, "maximum rows")

	runsCmd.AddCommand(runsShowCmd, runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}

func openRuns(cmd *cobra.Command) (*runs.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.RunsDB == "" {
		return nil, nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.runs_db is not set"))
	}
	store, err := runs.Open(cmd.Context(), cfg.Storage.RunsDB)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	store, closeFn, err := openRuns(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	records, err := store.List(cmd.Context(), runs.Filter{
		Kind:     runs.Kind(runsKind),
		Strategy: runsStrategy,
		Limit:    runsLimit,
	})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTRATEGY\tITER\tPERIOD\tRETURN %\tSHARPE\tCREATED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s..%s\t%.2f\t%.3f\t%s\n",
			r.ID, r.Kind, r.Strategy, r.Iterations,
			r.StartDate.Format(time.DateOnly), r.EndDate.Format(time.DateOnly),
			r.TotalReturn, r.SharpeRatio, r.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	store, closeFn, err := openRuns(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	rec, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	store, closeFn, err := openRuns(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}
