// Package arbitrage detects and validates cross-venue price divergence
// between a tracked DEX pool and the centralized reference market.
package arbitrage

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/execution"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/volatility"
)

// Direction strings as rendered in alerts and persisted records.
const (
	DirectionBuyPool = "Buy on Aerodrome → Sell on Binance"
	DirectionBuyRef  = "Buy on Binance → Sell on Aerodrome"
)

// Opportunity is one detected divergence. Immutable after validation is
// attached; the Volatility and Execution attachments are filled later in
// the same cycle.
type Opportunity struct {
	ID             string
	DetectedAt     time.Time
	PoolName       string
	Direction      string
	PoolPrice      decimal.Decimal
	ReferencePrice decimal.Decimal
	DivergencePct  decimal.Decimal
	TradeSizeETH   decimal.Decimal
	GrossProfitUSD decimal.Decimal
	NetProfitUSD   decimal.Decimal
	ROIPct         decimal.Decimal

	Validation *ValidationResult
	Volatility *volatility.Metrics
	Execution  *execution.Record
}

// TradeType maps the opportunity direction onto the simulated venue leg.
func (o *Opportunity) TradeType() execution.TradeType {
	if o.Direction == DirectionBuyPool {
		return execution.TradeBuyPool
	}
	return execution.TradeSellPool
}

// Params are the read-only detection and validation thresholds.
type Params struct {
	MinDivergencePct       decimal.Decimal
	GasCostUSD             decimal.Decimal
	MaxPriceDeviationPct   decimal.Decimal
	MaxSlippageBps         decimal.Decimal
	VolatilityThresholdPct decimal.Decimal
}

// Detector computes candidate opportunities from a pool price and a
// reference price. It holds no mutable state.
type Detector struct {
	params Params
	logger zerolog.Logger
	now    func() time.Time
}

func NewDetector(params Params, logger zerolog.Logger) *Detector {
	return &Detector{
		params: params,
		logger: logger.With().Str("component", "arbitrage").Logger(),
		now:    time.Now,
	}
}

// Detect returns an opportunity when the absolute percentage divergence
// between the two prices meets the configured minimum, or nil otherwise.
func (d *Detector) Detect(poolName string, poolPrice, referencePrice, tradeSize decimal.Decimal) *Opportunity {
	if referencePrice.IsZero() {
		return nil
	}
	divergencePct := poolPrice.Sub(referencePrice).Div(referencePrice).Mul(hundred)
	if divergencePct.Abs().LessThan(d.params.MinDivergencePct) {
		return nil
	}

	direction := DirectionBuyPool
	if poolPrice.GreaterThan(referencePrice) {
		direction = DirectionBuyRef
	}

	gross := tradeSize.Mul(poolPrice.Sub(referencePrice).Abs())
	net := gross.Sub(d.params.GasCostUSD)
	roi := net.Div(tradeSize.Mul(referencePrice)).Mul(hundred)

	opp := &Opportunity{
		ID:             uuid.NewString(),
		DetectedAt:     d.now().UTC(),
		PoolName:       poolName,
		Direction:      direction,
		PoolPrice:      poolPrice,
		ReferencePrice: referencePrice,
		DivergencePct:  divergencePct,
		TradeSizeETH:   tradeSize,
		GrossProfitUSD: gross,
		NetProfitUSD:   net,
		ROIPct:         roi,
	}

	d.logger.Debug().
		Str("pool", poolName).
		Str("direction", direction).
		Str("divergence_pct", divergencePct.StringFixed(4)).
		Str("net_profit_usd", net.StringFixed(4)).
		Msg("divergence above threshold")
	return opp
}

var hundred = decimal.NewFromInt(100)
