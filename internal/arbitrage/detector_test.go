package arbitrage

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/volatility"
)

func testParams() Params {
	return Params{
		MinDivergencePct:       decimal.RequireFromString("0.05"),
		GasCostUSD:             decimal.RequireFromString("0.02"),
		MaxPriceDeviationPct:   decimal.NewFromInt(10),
		MaxSlippageBps:         decimal.NewFromInt(100),
		VolatilityThresholdPct: decimal.NewFromInt(5),
	}
}

func TestDetectBelowThreshold(t *testing.T) {
	d := NewDetector(testParams(), zerolog.Nop())
	// 0.03% divergence, under the 0.05% minimum.
	opp := d.Detect("weth-usdc", decimal.RequireFromString("3000.9"), decimal.NewFromInt(3000), decimal.RequireFromString("0.1"))
	if opp != nil {
		t.Fatalf("expected nil opportunity, got divergence %s", opp.DivergencePct)
	}
}

func TestDetectProfitArithmetic(t *testing.T) {
	d := NewDetector(testParams(), zerolog.Nop())
	opp := d.Detect("weth-usdc", decimal.NewFromInt(3010), decimal.NewFromInt(3000), decimal.RequireFromString("0.1"))
	if opp == nil {
		t.Fatal("expected an opportunity at 0.33% divergence")
	}
	if opp.Direction != DirectionBuyRef {
		t.Fatalf("direction = %q, want %q", opp.Direction, DirectionBuyRef)
	}
	if !opp.GrossProfitUSD.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("gross = %s, want 1", opp.GrossProfitUSD)
	}
	if !opp.NetProfitUSD.Equal(decimal.RequireFromString("0.98")) {
		t.Fatalf("net = %s, want 0.98", opp.NetProfitUSD)
	}
	wantROI := decimal.RequireFromString("0.98").Div(decimal.RequireFromString("300")).Mul(decimal.NewFromInt(100))
	if !opp.ROIPct.Equal(wantROI) {
		t.Fatalf("roi = %s, want %s", opp.ROIPct, wantROI)
	}
	if opp.ID == "" || opp.DetectedAt.IsZero() {
		t.Fatal("opportunity must carry identity and timestamp")
	}
	if opp.DetectedAt.Location() != opp.DetectedAt.UTC().Location() {
		t.Fatal("timestamp must be UTC")
	}
}

func TestDetectDirectionByPriceSign(t *testing.T) {
	d := NewDetector(testParams(), zerolog.Nop())
	opp := d.Detect("weth-usdc", decimal.NewFromInt(2990), decimal.NewFromInt(3000), decimal.RequireFromString("0.1"))
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	if opp.Direction != DirectionBuyPool {
		t.Fatalf("direction = %q, want %q", opp.Direction, DirectionBuyPool)
	}
	if !opp.DivergencePct.IsNegative() {
		t.Fatalf("divergence %s should be negative when the pool trades below reference", opp.DivergencePct)
	}
}

func TestDetectMonotonic(t *testing.T) {
	d := NewDetector(testParams(), zerolog.Nop())
	ref := decimal.NewFromInt(3000)
	size := decimal.RequireFromString("0.1")
	seen := false
	// Widen the gap in $0.50 steps; once an opportunity appears it must not
	// disappear again.
	for cents := int64(0); cents <= 4000; cents += 50 {
		poolPrice := ref.Add(decimal.New(cents, -2))
		opp := d.Detect("weth-usdc", poolPrice, ref, size)
		if opp != nil {
			seen = true
		} else if seen {
			t.Fatalf("opportunity vanished at pool price %s", poolPrice)
		}
	}
	if !seen {
		t.Fatal("no opportunity detected across the sweep")
	}
}

func TestDetectZeroReference(t *testing.T) {
	d := NewDetector(testParams(), zerolog.Nop())
	if opp := d.Detect("weth-usdc", decimal.NewFromInt(3000), decimal.Zero, decimal.RequireFromString("0.1")); opp != nil {
		t.Fatal("zero reference price must not produce an opportunity")
	}
}

func TestTradeType(t *testing.T) {
	buyPool := &Opportunity{Direction: DirectionBuyPool}
	if buyPool.TradeType() != "buy_pool" {
		t.Fatalf("trade type = %s", buyPool.TradeType())
	}
	buyRef := &Opportunity{Direction: DirectionBuyRef}
	if buyRef.TradeType() != "sell_pool" {
		t.Fatalf("trade type = %s", buyRef.TradeType())
	}
}

func calmMetrics() volatility.Metrics {
	return volatility.Metrics{
		ShortTerm: decimal.NewFromInt(1),
		Trend:     volatility.TrendStable,
		Impact:    volatility.ImpactLow,
		Adjust: volatility.Adjustments{
			SpreadMultiplier:   decimal.NewFromInt(1),
			PositionSizeFactor: decimal.NewFromInt(1),
			Urgency:            volatility.UrgencyFast,
		},
	}
}
