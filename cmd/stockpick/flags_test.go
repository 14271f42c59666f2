package main

import (
	"testing"

	"github.com/spf13/cobra"

	"github.com/newthinker/stockpick/internal/app"
	"github.com/newthinker/stockpick/internal/schedule"
	"github.com/newthinker/stockpick/internal/strategy"
)

func TestStudyFlags_ApplyOnlyChanged(t *testing.T) {
	var f studyFlags
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd, true)

	if err := cmd.ParseFlags([]string{"-n", "3", "--freq", "quarterly", "--seed", "42", "-i", "7"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	s := app.Study{
		Universe: "sp100",
		Strategy: "momentum",
		Params:   strategy.Params{NStocks: 10, LookbackMonths: 6},
	}
	f.apply(cmd, &s)

	if s.NStocks != 3 {
		t.Errorf("NStocks = %d, want 3", s.NStocks)
	}
	if s.LookbackMonths != 6 {
		t.Errorf("LookbackMonths = %d, want untouched 6", s.LookbackMonths)
	}
	if s.Frequency != schedule.Quarterly {
		t.Errorf("Frequency = %s, want quarterly", s.Frequency)
	}
	if s.Seed != 42 || s.Iterations != 7 {
		t.Errorf("Seed/Iterations = %d/%d, want 42/7", s.Seed, s.Iterations)
	}
	if s.Universe != "sp100" || s.Strategy != "momentum" {
		t.Errorf("unset flags changed the study: %+v", s)
	}
}

func TestStudyFlags_ZeroValueOverride(t *testing.T) {
	var f studyFlags
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd, false)

	if err := cmd.ParseFlags([]string{"--fee", "0"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	s := app.Study{}
	s.TransactionCostPct = 0.001
	f.apply(cmd, &s)

	if s.TransactionCostPct != 0 {
		t.Errorf("explicit --fee 0 must override, got %v", s.TransactionCostPct)
	}
	if cmd.Flags().Lookup("iterations") != nil {
		t.Error("iterations flag registered without withIterations")
	}
}
