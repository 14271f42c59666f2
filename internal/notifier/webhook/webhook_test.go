package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newthinker/stockpick/internal/notifier"
)

func TestWebhook_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Webhook)(nil)
}

func TestWebhook_Init(t *testing.T) {
	w := &Webhook{}
	if err := w.Init(notifier.Config{Params: map[string]any{}}); err == nil {
		t.Error("expected error for missing URL")
	}

	w = &Webhook{}
	err := w.Init(notifier.Config{Params: map[string]any{
		"url":     "http://example.com/hook",
		"headers": map[string]any{"X-Token": "abc"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.url != "http://example.com/hook" || w.headers["X-Token"] != "abc" {
		t.Errorf("unexpected webhook %+v", w)
	}
	if w.client == nil {
		t.Error("Init should create a client")
	}
}

func TestWebhook_Send(t *testing.T) {
	var payload struct {
		Type  string         `json:"type"`
		Event notifier.Event `json:"event"`
	}
	var token string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("X-Token")
		json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := New(server.URL, map[string]string{"X-Token": "abc"})
	err := w.Send(context.Background(), notifier.Event{
		JobID:       "j1",
		Type:        "backtest",
		Status:      "complete",
		Strategy:    "momentum",
		TotalReturn: 12.5,
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if payload.Type != "job_finished" {
		t.Errorf("expected job_finished, got %s", payload.Type)
	}
	if payload.Event.JobID != "j1" || payload.Event.TotalReturn != 12.5 {
		t.Errorf("unexpected event %+v", payload.Event)
	}
	if token != "abc" {
		t.Errorf("expected custom header, got %q", token)
	}
}

func TestWebhook_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if err := New(server.URL, nil).Send(context.Background(), notifier.Event{}); err == nil {
		t.Error("expected error on 500")
	}
}
