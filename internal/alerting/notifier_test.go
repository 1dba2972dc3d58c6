package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func sampleNotification() Notification {
	return Notification{
		Pool:           "WETH/USDC",
		Timestamp:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		PoolPrice:      decimal.NewFromInt(3010),
		ReferencePrice: decimal.NewFromInt(3000),
		DivergencePct:  decimal.RequireFromString("0.333"),
		NetProfitUSD:   decimal.RequireFromString("8.20"),
		ROIPct:         decimal.RequireFromString("0.273"),
		TradeSizeETH:   decimal.RequireFromString("0.1"),
		Direction:      "Buy on Binance → Sell on Aerodrome",
		Channels:       []string{"telegram"},
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	text := received["text"]
	for _, want := range []string{"WETH/USDC", "$3010.00", "$3000.00", "Buy on Binance", "ROI 0.273%"} {
		if !strings.Contains(text, want) {
			t.Fatalf("message missing %q:\n%s", want, text)
		}
	}
}

func TestTelegramNotifierRejectsNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("expected error on ok=false")
	}
}

func TestTelegramNotifierRejectsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("expected error on HTTP 502")
	}
}

func TestRenderMessageIncludesWarnings(t *testing.T) {
	note := sampleNotification()
	note.Warnings = []string{"short-term volatility elevated"}
	text := renderMessage(note)
	if !strings.Contains(text, "Warnings: short-term volatility elevated") {
		t.Fatalf("message missing warnings line:\n%s", text)
	}
}
