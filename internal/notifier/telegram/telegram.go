// Package telegram sends run events through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/quantbench/internal/notifier"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// Telegram implements the Notifier interface for Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// Option customises a Telegram notifier.
type Option func(*Telegram)

// WithBaseURL points the notifier at another Bot API host.
func WithBaseURL(u string) Option {
	return func(t *Telegram) {
		if u != "" {
			t.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout bounds each delivery.
func WithTimeout(d time.Duration) Option {
	return func(t *Telegram) {
		if d > 0 {
			t.client.Timeout = d
		}
	}
}

// New creates a new Telegram notifier
func New(botToken, chatID string, opts ...Option) (*Telegram, error) {
	if botToken == "" {
		return nil, fmt.Errorf("telegram: bot_token is required")
	}
	if chatID == "" {
		return nil, fmt.Errorf("telegram: chat_id is required")
	}
	t := &Telegram{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  DefaultBaseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Notify(ctx context.Context, event notifier.Event) error {
	return t.sendMessage(ctx, formatEvent(event))
}

func formatEvent(event notifier.Event) string {
	var sb strings.Builder

	if event.Type == notifier.EventRunFailed {
		sb.WriteString(fmt.Sprintf("❌ *%s* %s failed\n", event.Symbol, event.Strategy))
		sb.WriteString(fmt.Sprintf("⚠️ %s (%s)\n", event.Error, event.ErrorCode))
	} else {
		emoji := "📈"
		if event.TotalReturn < 0 {
			emoji = "📉"
		}
		sb.WriteString(fmt.Sprintf("%s *%s* %s %+.2f%%\n", emoji, event.Symbol, event.Strategy, event.TotalReturn))
		sb.WriteString(fmt.Sprintf("📊 Buy & hold: %+.2f%%\n", event.Benchmark))
		sb.WriteString(fmt.Sprintf("🎯 Sharpe: %.2f, max drawdown %.2f%%\n", event.Sharpe, event.MaxDrawdown))
		if event.Verdict != "" {
			sb.WriteString(fmt.Sprintf("💡 Verdict: %s\n", event.Verdict))
		}
	}

	if event.Scenario != "" {
		sb.WriteString(fmt.Sprintf("🗂 Scenario: %s\n", event.Scenario))
	}
	if event.RunID != "" {
		sb.WriteString(fmt.Sprintf("🆔 %s\n", event.RunID))
	}
	sb.WriteString(fmt.Sprintf("⏰ Time: %s", event.OccurredAt.Format("2006-01-02 15:04:05")))

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
		_ = json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result)
	}

	return nil
}
