package resilience

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestRecoveryRetryThenEscalate(t *testing.T) {
	r := NewRecovery()
	netErr := NetworkErr("fetch failed", errors.New("timeout"), 3)

	for i := 0; i < 5; i++ {
		action := r.HandleError(netErr)
		if action.Kind != ActionRetry {
			t.Fatalf("occurrence %d should retry, got %v", i+1, action.Kind)
		}
	}

	action := r.HandleError(netErr)
	if action.Kind != ActionEscalate {
		t.Fatalf("6th network error should escalate, got %v", action.Kind)
	}
}

func TestRecoveryResetAllowsRetryAgain(t *testing.T) {
	r := NewRecovery()
	netErr := NetworkErr("fetch failed", nil, 1)

	for i := 0; i < 6; i++ {
		r.HandleError(netErr)
	}
	r.ResetCount("network_timeout")

	if action := r.HandleError(netErr); action.Kind != ActionRetry {
		t.Fatalf("after reset the strategy should retry again, got %v", action.Kind)
	}
}

func TestRecoverySkipAndFallback(t *testing.T) {
	r := NewRecovery()

	priceErr := PriceValidationErr("Binance", decimal.NewFromInt(2), "outside valid range")
	action := r.HandleError(priceErr)
	if action.Kind != ActionSkip {
		t.Fatalf("invalid_price should skip, got %v", action.Kind)
	}
	if action.Level != zerolog.WarnLevel {
		t.Fatalf("skip should carry warn level, got %v", action.Level)
	}

	contractErr := ContractErr("0xabc", "bad call", errors.New("revert"))
	action = r.HandleError(contractErr)
	if action.Kind != ActionFallback {
		t.Fatalf("contract_error should fall back, got %v", action.Kind)
	}
	if action.Source != "backup_pool" {
		t.Fatalf("fallback should name backup_pool, got %q", action.Source)
	}
}

func TestRecoveryUnmappedEscalates(t *testing.T) {
	r := NewRecovery()

	if action := r.HandleError(errors.New("mystery")); action.Kind != ActionEscalate {
		t.Fatalf("unclassified error should escalate, got %v", action.Kind)
	}

	liqErr := LiquidityErr("WETH/USDC", "reserves below floor")
	if action := r.HandleError(liqErr); action.Kind != ActionEscalate {
		t.Fatalf("low_liquidity has no strategy and should escalate, got %v", action.Kind)
	}
}

func TestRecoveryCountsAreCopied(t *testing.T) {
	r := NewRecovery()
	r.HandleError(NetworkErr("x", nil, 1))

	counts := r.Counts()
	counts["network_timeout"] = 99

	if got := r.Counts()["network_timeout"]; got != 1 {
		t.Fatalf("internal counts must not be mutated through the copy, got %d", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NetworkErr("x", nil, 0), "network_timeout"},
		{PriceValidationErr("DEX", decimal.Zero, "zero"), "invalid_price"},
		{ContractErr("0x1", "x", nil), "contract_error"},
		{LiquidityErr("p", "x"), "low_liquidity"},
		{ParseErr("x", nil), "parse_error"},
		{BreakerOpenErr("x", 0), "circuit_breaker"},
		{errors.New("other"), "unknown"},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Fatalf("Classify(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}
