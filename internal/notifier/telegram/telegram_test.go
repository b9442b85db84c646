package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/quantbench/internal/notifier"
)

func TestTelegram_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Telegram)(nil)
}

func TestTelegram_Name(t *testing.T) {
	tg, err := New("token", "chatid")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tg.Name() != "telegram" {
		t.Errorf("expected 'telegram', got '%s'", tg.Name())
	}
}

func TestTelegram_New_MissingToken(t *testing.T) {
	if _, err := New("", "test-chat"); err == nil {
		t.Error("expected error for missing bot_token")
	}
}

func TestTelegram_New_MissingChatID(t *testing.T) {
	if _, err := New("test-token", ""); err == nil {
		t.Error("expected error for missing chat_id")
	}
}

func TestTelegram_Notify(t *testing.T) {
	var receivedPayload map[string]any
	var receivedPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&receivedPayload)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	tg, err := New("test-token", "test-chat", WithBaseURL(server.URL+"/"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	event := notifier.Event{
		Type:        notifier.EventRunCompleted,
		RunID:       "run-42",
		Symbol:      "BTC/USDT",
		Strategy:    "sma_crossover",
		Scenario:    "covid_crash",
		TotalReturn: 12.5,
		Benchmark:   -3,
		Sharpe:      1.4,
		MaxDrawdown: -9.1,
		Verdict:     "STRUCTURAL_EDGE",
		OccurredAt:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
	if err := tg.Notify(context.Background(), event); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if receivedPath != "/bottest-token/sendMessage" {
		t.Errorf("unexpected path %s", receivedPath)
	}
	if receivedPayload["chat_id"] != "test-chat" {
		t.Errorf("expected chat_id test-chat, got %v", receivedPayload["chat_id"])
	}
	if receivedPayload["parse_mode"] != "Markdown" {
		t.Errorf("expected Markdown parse mode, got %v", receivedPayload["parse_mode"])
	}
	text, _ := receivedPayload["text"].(string)
	for _, want := range []string{"📈", "BTC/USDT", "+12.50%", "-3.00%", "STRUCTURAL_EDGE", "covid_crash", "run-42", "2024-01-15 10:30:00"} {
		if !strings.Contains(text, want) {
			t.Errorf("message missing %q: %s", want, text)
		}
	}
}

func TestTelegram_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer server.Close()

	tg, _ := New("test-token", "test-chat", WithBaseURL(server.URL))
	err := tg.Notify(context.Background(), notifier.Event{Type: notifier.EventRunCompleted, Symbol: "BTC/USDT"})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestTelegram_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	tg, _ := New("test-token", "test-chat", WithBaseURL(server.URL), WithTimeout(20*time.Millisecond))
	if err := tg.Notify(context.Background(), notifier.Event{Symbol: "BTC/USDT"}); err == nil {
		t.Error("expected timeout error")
	}
}

func TestTelegram_FormatEvent_Failed(t *testing.T) {
	text := formatEvent(notifier.Event{
		Type:      notifier.EventRunFailed,
		Symbol:    "ETH/USDT",
		Strategy:  "rsi_reversion",
		Error:     "no bars",
		ErrorCode: "NO_DATA",
	})

	if !strings.Contains(text, "❌") || !strings.Contains(text, "failed") {
		t.Errorf("failed run should be flagged: %s", text)
	}
	if !strings.Contains(text, "no bars (NO_DATA)") {
		t.Errorf("failed run should carry the error: %s", text)
	}
	if strings.Contains(text, "Sharpe") {
		t.Errorf("failed run has no metrics: %s", text)
	}
}

func TestTelegram_FormatEvent_Loss(t *testing.T) {
	text := formatEvent(notifier.Event{Type: notifier.EventRunCompleted, Symbol: "SOL/USDT", TotalReturn: -4})
	if !strings.Contains(text, "📉") {
		t.Errorf("losing run should have 📉 emoji: %s", text)
	}
}
