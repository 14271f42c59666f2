// Package universe names the ticker lists backtests are run against.
package universe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/newthinker/stockpick/internal/core"
)

// Universe is a named list of Yahoo tickers
type Universe struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Market      core.Market `json:"market"`
	Symbols     []string    `json:"symbols"`
}

var builtin = map[string]Universe{
	"sp100": {
		Name:        "sp100",
		Description: "Top 100 S&P 500 constituents by market cap",
		Market:      core.MarketUS,
		Symbols: []string{
			"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "UNH", "JNJ", "JPM",
			"V", "PG", "MA", "HD", "CVX", "MRK", "LLY", "PEP", "KO", "ABBV",
			"BAC", "AVGO", "TMO", "COST", "DIS", "PFE", "ABT", "ACN", "WMT", "MCD",
			"ADBE", "CSCO", "VZ", "NKE", "TXN", "CMCSA", "CRM", "DHR", "BMY", "NEE",
			"PM", "RTX", "HON", "LIN", "UNP", "IBM", "LOW", "UPS", "QCOM", "AMGN",
			"SPGI", "CAT", "MS", "GS", "BLK", "INTU", "PLD", "DE", "MDT", "AXP",
			"LMT", "AMAT", "BKNG", "TJX", "CI", "GILD", "ADI", "C", "SBUX", "MMC",
			"VRTX", "ISRG", "MDLZ", "SYK", "ADP", "REGN", "ZTS", "SO", "BSX", "ELV",
			"TMUS", "LRCX", "EOG", "FIS", "ETN", "ITW", "SLB", "CME", "BDX", "TGT",
			"AON", "CL", "MU", "CSX", "WM", "FCX", "NOC", "HUM", "PYPL", "AMT",
		},
	},
	"eu50": {
		Name:        "eu50",
		Description: "Large European caps across CAC 40, DAX, AEX, IBEX, FTSE MIB and SMI",
		Market:      core.MarketEU,
		Symbols: []string{
			"MC.PA", "OR.PA", "SAN.PA", "AIR.PA", "EL.PA", "AI.PA", "BNP.PA",
			"CS.PA", "CAP.PA", "SGO.PA", "VIV.PA", "VIE.PA", "SU.PA", "ACA.PA",
			"SAP.DE", "SIE.DE", "ALV.DE", "DTE.DE", "MRK.DE", "BAS.DE", "BAYN.DE",
			"RWE.DE", "HEI.DE", "IFX.DE", "LIN.DE", "MTX.DE", "SHL.DE", "SY1.DE",
			"ASML.AS", "REN.AS", "AD.AS", "ASRNL.AS",
			"ITX.MC", "SAN.MC", "BBVA.MC", "TEF.MC", "REP.MC", "AENA.MC", "COL.MC",
			"ENEL.MI", "ENI.MI", "ISP.MI", "UCG.MI", "G.MI", "TEN.MI", "SRG.MI",
			"NESN.SW", "NOVN.SW", "ROG.SW", "ZURN.SW", "ABBN.SW", "UBSG.SW", "SCMN.SW",
			"VER.VI", "BIRG.IR", "STLA",
		},
	},
	"geo_etf": {
		Name:        "geo_etf",
		Description: "Regional equity ETFs for geographic rotation",
		Market:      core.MarketGlobal,
		Symbols:     []string{"SPY", "VEA", "IEFA", "EEM", "VWO", "IEV", "EWJ", "EPP", "ACWI", "VT"},
	},
}

// Names returns the built-in universe names, sorted
func Names() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns a copy of a built-in universe
func Get(name string) (Universe, bool) {
	u, ok := builtin[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Universe{}, false
	}
	u.Symbols = append([]string(nil), u.Symbols...)
	return u, true
}

// Resolve accepts a built-in name or a comma-separated ticker list.
// Duplicate tickers in a list are dropped, first occurrence wins.
func Resolve(spec string) (Universe, error) {
	if u, ok := Get(spec); ok {
		return u, nil
	}
	if !strings.Contains(spec, ",") {
		return Universe{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown universe %q (known: %s)", spec, strings.Join(Names(), ", ")))
	}

	seen := make(map[string]bool)
	var symbols []string
	for _, s := range strings.Split(spec, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	if len(symbols) == 0 {
		return Universe{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("empty ticker list"))
	}
	return Universe{Name: "custom", Description: "user supplied tickers", Market: core.MarketGlobal, Symbols: symbols}, nil
}
