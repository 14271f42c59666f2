package core

import (
	"testing"
	"time"
)

func TestPoint_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		want  bool
	}{
		{"valid", Point{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 101.5}, true},
		{"zero time", Point{Close: 101.5}, false},
		{"zero price", Point{Time: time.Now(), Close: 0}, false},
		{"negative price", Point{Time: time.Now(), Close: -3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.point.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMarket_Constants(t *testing.T) {
	markets := []Market{MarketUS, MarketEU, MarketGlobal}
	expected := []string{"US", "EU", "GLOBAL"}

	for i, m := range markets {
		if string(m) != expected[i] {
			t.Errorf("expected %s, got %s", expected[i], m)
		}
	}
}
