package core

import "time"

// Market represents the market a universe trades in
type Market string

const (
	MarketUS     Market = "US"
	MarketEU     Market = "EU"
	MarketGlobal Market = "GLOBAL"
)

// Point is a single daily adjusted close observation
type Point struct {
	Time  time.Time
	Close float64
}

// IsValid checks that the observation carries a usable price
func (p Point) IsValid() bool {
	return !p.Time.IsZero() && p.Close > 0
}

// Series is the close history of one asset, oldest first
type Series struct {
	Symbol string
	Points []Point
}
