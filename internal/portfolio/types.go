// Package portfolio tracks the cash and share holdings of a simulated
// portfolio and applies equal-dollar buy and full-liquidation sell orders.
package portfolio

import (
	"errors"
	"time"
)

// Ledger errors. None of them change the ledger.
var (
	// ErrNoPosition indicates a sell of an asset that is not held.
	ErrNoPosition = errors.New("portfolio: no position")
	// ErrInvalidPrice indicates a missing, NaN or non-positive price.
	ErrInvalidPrice = errors.New("portfolio: invalid price")
	// ErrZeroQuantity indicates the budget buys less than one share.
	ErrZeroQuantity = errors.New("portfolio: budget below one share")
	// ErrInsufficientCash indicates the fee-inclusive cost exceeds cash.
	ErrInsufficientCash = errors.New("portfolio: insufficient cash")
)

// Side is the direction of a transaction
type Side string

const (
	// SideBuy adds shares.
	SideBuy Side = "BUY"
	// SideSell removes shares.
	SideSell Side = "SELL"
)

// Transaction records one executed order
type Transaction struct {
	Date      time.Time `json:"date"`
	Asset     string    `json:"asset"`
	Side      Side      `json:"side"`
	Quantity  int64     `json:"quantity"`
	Price     float64   `json:"price"`
	Gross     float64   `json:"gross"` // price x quantity
	Fee       float64   `json:"fee"`
	CashDelta float64   `json:"cash_delta"` // signed change in cash
}

// Prices looks up the close of an asset on a single date.
// panel.Row satisfies it.
type Prices interface {
	Price(asset string) (float64, bool)
}

// PriceMap is a Prices backed by a map, handy for tests and fixtures.
type PriceMap map[string]float64

// Price implements Prices
func (m PriceMap) Price(asset string) (float64, bool) {
	v, ok := m[asset]
	return v, ok
}
