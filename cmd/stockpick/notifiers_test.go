package main

import (
	"testing"

	"github.com/newthinker/stockpick/internal/config"
)

func TestBuildNotifiers(t *testing.T) {
	reg, err := buildNotifiers(map[string]config.NotifierConfig{
		"webhook":  {Enabled: true, URL: "http://hooks.local/x"},
		"telegram": {Enabled: false},
	})
	if err != nil {
		t.Fatalf("buildNotifiers: %v", err)
	}
	if got := reg.Names(); len(got) != 1 || got[0] != "webhook" {
		t.Errorf("Names() = %v, want [webhook]", got)
	}

	reg, err = buildNotifiers(nil)
	if err != nil || reg != nil {
		t.Errorf("expected nil registry without notifiers, got %v, %v", reg, err)
	}

	if _, err := buildNotifiers(map[string]config.NotifierConfig{"telegram": {Enabled: true}}); err == nil {
		t.Error("expected error for telegram without token")
	}
}
