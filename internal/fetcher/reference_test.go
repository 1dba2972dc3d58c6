package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/resilience"
)

func newTestReference(t *testing.T, handler http.HandlerFunc) (*Reference, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ref := NewReference(ReferenceOptions{
		BaseURL: server.URL,
		Symbol:  "ETHUSDC",
		Timeout: 2 * time.Second,
	}, zerolog.Nop())
	ref.retry.InitialDelay = time.Millisecond
	ref.retry.MaxDelay = 5 * time.Millisecond
	return ref, server
}

func TestFetchPriceSuccess(t *testing.T) {
	ref, _ := newTestReference(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != referenceTickerPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "ETHUSDC" {
			t.Errorf("symbol = %q", got)
		}
		w.Write([]byte(`{"symbol":"ETHUSDC","price":"3000.50"}`))
	})

	price, err := ref.FetchPrice(context.Background())
	if err != nil {
		t.Fatalf("FetchPrice: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("3000.50")) {
		t.Fatalf("price = %s, want 3000.50", price)
	}
}

func TestFetchPriceRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	ref, _ := newTestReference(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"symbol":"ETHUSDC","price":"2987.12"}`))
	})

	price, err := ref.FetchPrice(context.Background())
	if err != nil {
		t.Fatalf("FetchPrice: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("2987.12")) {
		t.Fatalf("price = %s, want 2987.12", price)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("server saw %d calls, want 3", got)
	}
}

func TestFetchPriceExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	ref, _ := newTestReference(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	_, err := ref.FetchPrice(context.Background())
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if !resilience.IsKind(err, resilience.KindNetwork) {
		t.Fatalf("error kind = %v, want network", err)
	}
	if got := calls.Load(); got != 5 {
		t.Fatalf("server saw %d calls, want all 5 attempts", got)
	}
}

func TestFetchPriceSanityBand(t *testing.T) {
	cases := []struct {
		name  string
		price string
	}{
		{"below band", "50"},
		{"above band", "250000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ref, _ := newTestReference(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"symbol":"ETHUSDC","price":"` + tc.price + `"}`))
			})
			_, err := ref.FetchPrice(context.Background())
			if !resilience.IsKind(err, resilience.KindPriceValidation) {
				t.Fatalf("error = %v, want price validation", err)
			}
		})
	}
}

func TestFetchPriceMalformedResponse(t *testing.T) {
	ref, _ := newTestReference(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"ETHUSDC"}`))
	})
	ref.retry.MaxAttempts = 1

	_, err := ref.FetchPrice(context.Background())
	if err == nil {
		t.Fatal("expected error for missing price field")
	}
}
