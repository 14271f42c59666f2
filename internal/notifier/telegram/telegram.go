package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/stockpick/internal/notifier"
)

const defaultBaseURL = "https://api.telegram.org"

// Telegram implements the Notifier interface for Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// New creates a new Telegram notifier
func New(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  defaultBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Init(cfg notifier.Config) error {
	if token, ok := cfg.Params["bot_token"].(string); ok {
		t.botToken = token
	}
	if chatID, ok := cfg.Params["chat_id"].(string); ok {
		t.chatID = chatID
	}
	if base, ok := cfg.Params["base_url"].(string); ok && base != "" {
		t.baseURL = strings.TrimRight(base, "/")
	}

	if t.botToken == "" {
		return fmt.Errorf("telegram: bot_token is required")
	}
	if t.chatID == "" {
		return fmt.Errorf("telegram: chat_id is required")
	}
	if t.baseURL == "" {
		t.baseURL = defaultBaseURL
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 30 * time.Second}
	}

	return nil
}

func (t *Telegram) Send(ctx context.Context, event notifier.Event) error {
	return t.sendMessage(ctx, formatEvent(event))
}

func formatEvent(e notifier.Event) string {
	var sb strings.Builder

	if e.Failed() {
		sb.WriteString(fmt.Sprintf("❌ *%s %s*\n", e.Type, e.Status))
		sb.WriteString(fmt.Sprintf("Job: `%s`\n", e.JobID))
		sb.WriteString(fmt.Sprintf("Error: %s", e.Error))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("✅ *%s complete*\n", e.Type))
	if e.Strategy != "" {
		sb.WriteString(fmt.Sprintf("🎯 Strategy: %s\n", e.Strategy))
	}
	sb.WriteString(fmt.Sprintf("📈 Return: %.2f%%\n", e.TotalReturn))
	sb.WriteString(fmt.Sprintf("📊 Sharpe: %.3f\n", e.SharpeRatio))
	sb.WriteString(fmt.Sprintf("📉 Max drawdown: %.2f%%\n", e.MaxDrawdown))
	if e.RunID != "" {
		sb.WriteString(fmt.Sprintf("🗂 Run: `%s`\n", e.RunID))
	}
	sb.WriteString(fmt.Sprintf("⏰ %s", e.FinishedAt.Format("2006-01-02 15:04:05")))

	return sb.String()
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result)
	}

	return nil
}
