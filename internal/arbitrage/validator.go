package arbitrage

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/pools"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/volatility"
)

// ValidationResult holds the five independent safety checks. Passed reflects
// price sanity, liquidity, gas economics and slippage; the volatility check
// only contributes a warning.
type ValidationResult struct {
	PriceSane     bool
	LiquidityOK   bool
	GasEconomical bool
	SlippageOK    bool
	VolatilityOK  bool
	Passed        bool
	Warnings      []string
}

var (
	minWETHReserve    = decimal.RequireFromString("0.1")
	minUSDReserve     = decimal.NewFromInt(100)
	maxPoolImpactPct  = decimal.NewFromInt(1)
	minROIPct         = decimal.RequireFromString("0.01")
	slippageBpsPerETH = decimal.NewFromInt(50)
)

// Validator scores detected opportunities against liquidity, profitability,
// volatility and slippage constraints.
type Validator struct {
	params Params
	logger zerolog.Logger
}

func NewValidator(params Params, logger zerolog.Logger) *Validator {
	return &Validator{
		params: params,
		logger: logger.With().Str("component", "validator").Logger(),
	}
}

// Validate runs every check regardless of earlier failures so the warning
// list is complete.
func (v *Validator) Validate(opp *Opportunity, depth pools.Depth, vm volatility.Metrics) ValidationResult {
	var res ValidationResult

	if opp.DivergencePct.Abs().LessThan(v.params.MaxPriceDeviationPct) {
		res.PriceSane = true
	} else {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"price divergence %s%% exceeds %s%% sanity ceiling, likely stale or manipulated data",
			opp.DivergencePct.Abs().StringFixed(2), v.params.MaxPriceDeviationPct))
	}

	res.LiquidityOK = true
	if depth.WETHReserves.LessThan(minWETHReserve) || depth.USDReserves.LessThan(minUSDReserve) {
		res.LiquidityOK = false
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"pool reserves too thin (%s WETH / %s USD)",
			depth.WETHReserves.StringFixed(4), depth.USDReserves.StringFixed(2)))
	}
	if depth.WETHReserves.IsPositive() {
		impactPct := opp.TradeSizeETH.Div(depth.WETHReserves).Mul(hundred)
		if impactPct.GreaterThan(maxPoolImpactPct) {
			res.LiquidityOK = false
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"trade size is %s%% of pool reserves, above the %s%% impact limit",
				impactPct.StringFixed(2), maxPoolImpactPct))
		}
	}

	if opp.NetProfitUSD.IsPositive() && opp.ROIPct.GreaterThan(minROIPct) {
		res.GasEconomical = true
	} else {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"net profit %s USD / ROI %s%% does not cover gas",
			opp.NetProfitUSD.StringFixed(4), opp.ROIPct.StringFixed(4)))
	}

	estimatedBps := opp.TradeSizeETH.Mul(slippageBpsPerETH).Mul(vm.Adjust.SpreadMultiplier)
	if estimatedBps.LessThan(v.params.MaxSlippageBps) {
		res.SlippageOK = true
	} else {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"estimated slippage %s bps exceeds the %s bps ceiling",
			estimatedBps.StringFixed(1), v.params.MaxSlippageBps))
	}

	if vm.ShortTerm.LessThan(v.params.VolatilityThresholdPct) {
		res.VolatilityOK = true
	} else {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"short-term volatility %s%% above the %s%% comfort threshold",
			vm.ShortTerm.StringFixed(2), v.params.VolatilityThresholdPct))
	}

	res.Passed = res.PriceSane && res.LiquidityOK && res.GasEconomical && res.SlippageOK
	if !res.Passed {
		v.logger.Debug().
			Str("pool", opp.PoolName).
			Strs("warnings", res.Warnings).
			Msg("opportunity rejected by safety checks")
	}
	return res
}
