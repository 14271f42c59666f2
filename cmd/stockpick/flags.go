package main

import (
	"github.com/spf13/cobra"

	"github.com/newthinker/stockpick/internal/app"
	"github.com/newthinker/stockpick/internal/schedule"
)

// studyFlags overrides the configured study; only flags that were set apply
type studyFlags struct {
	universe   string
	start      string
	end        string
	strategy   string
	nStocks    int
	lookback   int
	stopLoss   float64
	freq       string
	fee        float64
	cash       float64
	seed       uint64
	iterations int
	noExport   bool
}

func (f *studyFlags) register(cmd *cobra.Command, withIterations bool) {
	fs := cmd.Flags()
	fs.StringVarP(&f.universe, "universe", "u", "", "universe name or comma-separated tickers")
	fs.StringVar(&f.start, "start", "", "start date YYYY-MM-DD")
	fs.StringVar(&f.end, "end", "", "end date YYYY-MM-DD")
	fs.StringVarP(&f.strategy, "strategy", "s", "", "selection policy (momentum, random_stoploss)")
	fs.IntVarP(&f.nStocks, "n-stocks", "n", 0, "number of assets held")
	fs.IntVar(&f.lookback, "lookback", 0, "momentum lookback in months")
	fs.Float64Var(&f.stopLoss, "stop-loss", 0, "stop-loss threshold, e.g. -0.1")
	fs.StringVar(&f.freq, "freq", "", "rebalancing frequency (monthly, quarterly)")
	fs.Float64Var(&f.fee, "fee", 0, "transaction cost as a fraction of notional")
	fs.Float64Var(&f.cash, "cash", 0, "initial cash")
	fs.Uint64Var(&f.seed, "seed", 0, "random seed")
	fs.BoolVar(&f.noExport, "no-export", false, "skip writing result files")
	if withIterations {
		fs.IntVarP(&f.iterations, "iterations", "i", 0, "Monte Carlo iterations")
	}
}

func (f *studyFlags) apply(cmd *cobra.Command, s *app.Study) {
	fs := cmd.Flags()
	if fs.Changed("universe") {
		s.Universe = f.universe
	}
	if fs.Changed("start") {
		s.Start = f.start
	}
	if fs.Changed("end") {
		s.End = f.end
	}
	if fs.Changed("strategy") {
		s.Strategy = f.strategy
	}
	if fs.Changed("n-stocks") {
		s.NStocks = f.nStocks
	}
	if fs.Changed("lookback") {
		s.LookbackMonths = f.lookback
	}
	if fs.Changed("stop-loss") {
		s.StopLossThreshold = f.stopLoss
	}
	if fs.Changed("freq") {
		s.Frequency = schedule.Frequency(f.freq)
	}
	if fs.Changed("fee") {
		s.TransactionCostPct = f.fee
	}
	if fs.Changed("cash") {
		s.InitCash = f.cash
	}
	if fs.Changed("seed") {
		s.Seed = f.seed
	}
	if fs.Changed("iterations") {
		s.Iterations = f.iterations
	}
}
