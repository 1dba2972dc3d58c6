package arbitrage

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/pools"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/volatility"
)

func deepPool() pools.Depth {
	return pools.AnalyzeDepth(decimal.NewFromInt(1000), decimal.NewFromInt(3_000_000), decimal.NewFromInt(3000))
}

func detectValid(t *testing.T) *Opportunity {
	t.Helper()
	d := NewDetector(testParams(), zerolog.Nop())
	opp := d.Detect("weth-usdc", decimal.NewFromInt(3010), decimal.NewFromInt(3000), decimal.RequireFromString("0.1"))
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	return opp
}

func TestValidateAllChecksPass(t *testing.T) {
	v := NewValidator(testParams(), zerolog.Nop())
	res := v.Validate(detectValid(t), deepPool(), calmMetrics())
	if !res.Passed {
		t.Fatalf("expected pass, warnings: %v", res.Warnings)
	}
	if !res.PriceSane || !res.LiquidityOK || !res.GasEconomical || !res.SlippageOK || !res.VolatilityOK {
		t.Fatalf("all checks should pass: %+v", res)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
}

func TestValidatePriceSanityCeiling(t *testing.T) {
	d := NewDetector(testParams(), zerolog.Nop())
	// 20% divergence is above the 10% ceiling.
	opp := d.Detect("weth-usdc", decimal.NewFromInt(3600), decimal.NewFromInt(3000), decimal.RequireFromString("0.1"))
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	v := NewValidator(testParams(), zerolog.Nop())
	res := v.Validate(opp, deepPool(), calmMetrics())
	if res.PriceSane || res.Passed {
		t.Fatalf("20%% divergence must fail price sanity: %+v", res)
	}
	if !hasWarning(res, "sanity ceiling") {
		t.Fatalf("missing sanity warning: %v", res.Warnings)
	}
}

func TestValidateThinReserves(t *testing.T) {
	v := NewValidator(testParams(), zerolog.Nop())
	thin := pools.AnalyzeDepth(decimal.RequireFromString("0.05"), decimal.NewFromInt(50), decimal.NewFromInt(3000))
	res := v.Validate(detectValid(t), thin, calmMetrics())
	if res.LiquidityOK || res.Passed {
		t.Fatalf("thin reserves must fail liquidity: %+v", res)
	}
}

func TestValidatePoolImpactLimit(t *testing.T) {
	v := NewValidator(testParams(), zerolog.Nop())
	// Reserves clear the floors but a 0.1 ETH trade is 2% of 5 WETH.
	shallow := pools.AnalyzeDepth(decimal.NewFromInt(5), decimal.NewFromInt(15_000), decimal.NewFromInt(3000))
	res := v.Validate(detectValid(t), shallow, calmMetrics())
	if res.LiquidityOK || res.Passed {
		t.Fatalf("2%% pool impact must fail liquidity: %+v", res)
	}
	if !hasWarning(res, "impact limit") {
		t.Fatalf("missing impact warning: %v", res.Warnings)
	}
}

func TestValidateGasEconomics(t *testing.T) {
	// Gas above gross profit drives net profit negative.
	params := testParams()
	params.GasCostUSD = decimal.NewFromInt(2)
	d := NewDetector(params, zerolog.Nop())
	opp := d.Detect("weth-usdc", decimal.NewFromInt(3010), decimal.NewFromInt(3000), decimal.RequireFromString("0.1"))
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	v := NewValidator(params, zerolog.Nop())
	res := v.Validate(opp, deepPool(), calmMetrics())
	if res.GasEconomical || res.Passed {
		t.Fatalf("negative net profit must fail gas economics: %+v", res)
	}
}

func TestValidateSlippageScalesWithVolatility(t *testing.T) {
	v := NewValidator(testParams(), zerolog.Nop())

	// 0.5 ETH at 50 bps/ETH is 25 bps at multiplier 1, 75 bps at 3.
	d := NewDetector(testParams(), zerolog.Nop())
	opp := d.Detect("weth-usdc", decimal.NewFromInt(3010), decimal.NewFromInt(3000), decimal.RequireFromString("0.5"))
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	res := v.Validate(opp, deepPool(), calmMetrics())
	if !res.SlippageOK {
		t.Fatalf("25 bps should clear the 100 bps ceiling: %v", res.Warnings)
	}

	// 3 ETH at multiplier 1 is 150 bps.
	opp = d.Detect("weth-usdc", decimal.NewFromInt(3010), decimal.NewFromInt(3000), decimal.NewFromInt(3))
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	res = v.Validate(opp, deepPool(), calmMetrics())
	if res.SlippageOK {
		t.Fatal("150 bps must fail the slippage check")
	}

	// 1 ETH clears at multiplier 1 (50 bps) but fails under extreme
	// volatility (x3 = 150 bps).
	opp = d.Detect("weth-usdc", decimal.NewFromInt(3010), decimal.NewFromInt(3000), decimal.NewFromInt(1))
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	extreme := calmMetrics()
	extreme.Impact = volatility.ImpactExtreme
	extreme.Adjust.SpreadMultiplier = decimal.NewFromInt(3)
	if res := v.Validate(opp, deepPool(), extreme); res.SlippageOK {
		t.Fatal("extreme-volatility multiplier must push 50 bps past the ceiling")
	}
}

func TestValidateVolatilityWarnsOnly(t *testing.T) {
	v := NewValidator(testParams(), zerolog.Nop())
	hot := calmMetrics()
	hot.ShortTerm = decimal.NewFromInt(8)
	res := v.Validate(detectValid(t), deepPool(), hot)
	if res.VolatilityOK {
		t.Fatal("8% short-term volatility must fail the volatility check")
	}
	if !res.Passed {
		t.Fatalf("volatility alone must not gate the aggregate pass: %+v", res)
	}
	if !hasWarning(res, "volatility") {
		t.Fatalf("missing volatility warning: %v", res.Warnings)
	}
}

func hasWarning(res ValidationResult, substr string) bool {
	for _, w := range res.Warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
