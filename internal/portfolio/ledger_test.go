package portfolio_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/newthinker/stockpick/internal/portfolio"
)

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestLedger_BuyChargesFee(t *testing.T) {
	l := portfolio.New(2000, 0.01)

	tx, err := l.Buy(day, "AAPL", 1000, portfolio.PriceMap{"AAPL": 100})
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	if tx.Quantity != 10 {
		t.Errorf("expected 10 shares, got %d", tx.Quantity)
	}
	if math.Abs(tx.Fee-10) > 1e-9 {
		t.Errorf("expected fee 10, got %v", tx.Fee)
	}
	if math.Abs(-tx.CashDelta-1010) > 1e-9 {
		t.Errorf("expected cost 1010, got %v", -tx.CashDelta)
	}
	if math.Abs(l.Cash()-990) > 1e-9 {
		t.Errorf("expected cash 990, got %v", l.Cash())
	}
	if tx.Side != portfolio.SideBuy {
		t.Errorf("expected BUY, got %s", tx.Side)
	}
}

func TestLedger_BuyInsufficientCash(t *testing.T) {
	// 10 shares x 100 x 1.01 = 1010 > 1000
	l := portfolio.New(1000, 0.01)

	_, err := l.Buy(day, "AAPL", 1000, portfolio.PriceMap{"AAPL": 100})
	if !errors.Is(err, portfolio.ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash, got %v", err)
	}
	if l.Cash() != 1000 || l.Quantity("AAPL") != 0 {
		t.Error("failed buy must not change the ledger")
	}
}

func TestLedger_BuyErrors(t *testing.T) {
	tests := []struct {
		name   string
		budget float64
		prices portfolio.PriceMap
		want   error
	}{
		{"below one share", 50, portfolio.PriceMap{"A": 100}, portfolio.ErrZeroQuantity},
		{"missing price", 500, portfolio.PriceMap{}, portfolio.ErrInvalidPrice},
		{"nan price", 500, portfolio.PriceMap{"A": math.NaN()}, portfolio.ErrInvalidPrice},
		{"zero price", 500, portfolio.PriceMap{"A": 0}, portfolio.ErrInvalidPrice},
		{"negative price", 500, portfolio.PriceMap{"A": -1}, portfolio.ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := portfolio.New(1000, 0)
			_, err := l.Buy(day, "A", tt.budget, tt.prices)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if l.Cash() != 1000 {
				t.Errorf("cash changed to %v", l.Cash())
			}
		})
	}
}

func TestLedger_BuyFloorsQuantity(t *testing.T) {
	l := portfolio.New(1000, 0)
	tx, err := l.Buy(day, "A", 999, portfolio.PriceMap{"A": 100})
	if err != nil {
		t.Fatal(err)
	}
	if tx.Quantity != 9 || l.Cash() != 100 {
		t.Errorf("got %d shares and cash %v, want 9 and 100", tx.Quantity, l.Cash())
	}
}

func TestLedger_SellLiquidates(t *testing.T) {
	l := portfolio.New(1000, 0.01)
	if _, err := l.Buy(day, "A", 500, portfolio.PriceMap{"A": 100}); err != nil {
		t.Fatal(err)
	}
	cashAfterBuy := l.Cash()

	tx, err := l.Sell(day, "A", portfolio.PriceMap{"A": 120})
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if tx.Quantity != 5 {
		t.Errorf("expected 5 shares sold, got %d", tx.Quantity)
	}
	wantCredit := 5 * 120 * 0.99
	if math.Abs(l.Cash()-(cashAfterBuy+wantCredit)) > 1e-9 {
		t.Errorf("expected cash %v, got %v", cashAfterBuy+wantCredit, l.Cash())
	}
	if l.Quantity("A") != 0 || len(l.Held()) != 0 {
		t.Error("position should be closed")
	}
}

func TestLedger_SellErrors(t *testing.T) {
	l := portfolio.New(1000, 0)
	if _, err := l.Sell(day, "A", portfolio.PriceMap{"A": 10}); !errors.Is(err, portfolio.ErrNoPosition) {
		t.Errorf("expected ErrNoPosition, got %v", err)
	}

	if _, err := l.Buy(day, "A", 100, portfolio.PriceMap{"A": 10}); err != nil {
		t.Fatal(err)
	}
	_, err := l.Sell(day, "A", portfolio.PriceMap{"A": math.NaN()})
	if !errors.Is(err, portfolio.ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
	if l.Quantity("A") != 10 {
		t.Errorf("holding must be untouched, got %d", l.Quantity("A"))
	}
}

func TestLedger_SellRebuyNeutralWithoutFees(t *testing.T) {
	l := portfolio.New(1000, 0)
	prices := portfolio.PriceMap{"A": 37}
	if _, err := l.Buy(day, "A", 1000, prices); err != nil {
		t.Fatal(err)
	}
	before := l.ValueAt(prices)

	if _, err := l.Sell(day, "A", prices); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Buy(day, "A", l.Cash(), prices); err != nil {
		t.Fatal(err)
	}

	if after := l.ValueAt(prices); math.Abs(after-before) > 1e-9 {
		t.Errorf("value changed from %v to %v", before, after)
	}
}

func TestLedger_ValueAtSkipsMissingPrices(t *testing.T) {
	l := portfolio.New(1000, 0)
	if _, err := l.Buy(day, "A", 500, portfolio.PriceMap{"A": 10}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Buy(day, "B", 500, portfolio.PriceMap{"B": 20}); err != nil {
		t.Fatal(err)
	}

	got := l.ValueAt(portfolio.PriceMap{"A": math.NaN(), "B": 30})
	if got != 0+25*30 {
		t.Errorf("expected 750, got %v", got)
	}
	if l.Quantity("A") != 50 {
		t.Error("valuation must not touch shares")
	}

	held := l.Held()
	if len(held) != 2 || held[0] != "A" || held[1] != "B" {
		t.Errorf("Held() = %v", held)
	}
}

func TestLedger_CashNeverNegative(t *testing.T) {
	l := portfolio.New(1000, 0.005)
	prices := portfolio.PriceMap{"A": 33.3, "B": 71.7, "C": 12.9}
	for i := 0; i < 20; i++ {
		for _, a := range []string{"A", "B", "C"} {
			_, _ = l.Buy(day, a, l.Cash()/2, prices)
			if l.Cash() < 0 {
				t.Fatalf("cash went negative: %v", l.Cash())
			}
		}
		for _, a := range l.Held() {
			_, _ = l.Sell(day, a, prices)
		}
	}
}
