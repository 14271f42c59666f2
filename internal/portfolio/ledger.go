package portfolio

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Ledger holds cash and whole-share positions. Cash never goes negative
// and quantities are never fractional. A Ledger belongs to one run and is
// not safe for concurrent use.
type Ledger struct {
	cash     float64
	feeRate  float64
	holdings map[string]int64
}

// New creates a ledger funded with initCash. feeRate is the proportional
// transaction cost charged on both sides.
func New(initCash, feeRate float64) *Ledger {
	return &Ledger{
		cash:     initCash,
		feeRate:  feeRate,
		holdings: make(map[string]int64),
	}
}

// Cash returns uninvested cash
func (l *Ledger) Cash() float64 {
	return l.cash
}

// FeeRate returns the proportional transaction cost
func (l *Ledger) FeeRate() float64 {
	return l.feeRate
}

// Quantity returns the shares held of asset
func (l *Ledger) Quantity(asset string) int64 {
	return l.holdings[asset]
}

// Holdings returns a copy of the non-zero positions
func (l *Ledger) Holdings() map[string]int64 {
	out := make(map[string]int64, len(l.holdings))
	for a, q := range l.holdings {
		if q > 0 {
			out[a] = q
		}
	}
	return out
}

// Held returns the assets with a position, sorted
func (l *Ledger) Held() []string {
	out := make([]string, 0, len(l.holdings))
	for a, q := range l.holdings {
		if q > 0 {
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}

// ValueAt returns cash plus the market value of every position.
// Positions without a usable price contribute zero.
func (l *Ledger) ValueAt(prices Prices) float64 {
	value := l.cash
	for a, q := range l.holdings {
		if p, ok := validPrice(prices, a); ok {
			value += float64(q) * p
		}
	}
	return value
}

// Sell liquidates the whole position in asset at its price on date.
func (l *Ledger) Sell(date time.Time, asset string, prices Prices) (Transaction, error) {
	q := l.holdings[asset]
	if q <= 0 {
		return Transaction{}, fmt.Errorf("sell %s: %w", asset, ErrNoPosition)
	}
	p, ok := validPrice(prices, asset)
	if !ok {
		return Transaction{}, fmt.Errorf("sell %s: %w", asset, ErrInvalidPrice)
	}

	gross := p * float64(q)
	fee := gross * l.feeRate
	l.cash += gross - fee
	delete(l.holdings, asset)

	return Transaction{
		Date:      date,
		Asset:     asset,
		Side:      SideSell,
		Quantity:  q,
		Price:     p,
		Gross:     gross,
		Fee:       fee,
		CashDelta: gross - fee,
	}, nil
}

// Buy spends at most budget on whole shares of asset. The order is all or
// nothing: it fails when the budget buys no share or the fee-inclusive
// cost exceeds cash.
func (l *Ledger) Buy(date time.Time, asset string, budget float64, prices Prices) (Transaction, error) {
	p, ok := validPrice(prices, asset)
	if !ok {
		return Transaction{}, fmt.Errorf("buy %s: %w", asset, ErrInvalidPrice)
	}

	q := int64(math.Floor(budget / p))
	if q <= 0 {
		return Transaction{}, fmt.Errorf("buy %s with %.2f at %.2f: %w", asset, budget, p, ErrZeroQuantity)
	}

	gross := p * float64(q)
	fee := gross * l.feeRate
	cost := gross + fee
	if cost > l.cash {
		return Transaction{}, fmt.Errorf("buy %d %s costs %.2f, cash %.2f: %w", q, asset, cost, l.cash, ErrInsufficientCash)
	}

	l.cash -= cost
	l.holdings[asset] += q

	return Transaction{
		Date:      date,
		Asset:     asset,
		Side:      SideBuy,
		Quantity:  q,
		Price:     p,
		Gross:     gross,
		Fee:       fee,
		CashDelta: -cost,
	}, nil
}

func validPrice(prices Prices, asset string) (float64, bool) {
	p, ok := prices.Price(asset)
	if !ok || math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return 0, false
	}
	return p, true
}
