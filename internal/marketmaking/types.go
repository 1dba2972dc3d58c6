// Package marketmaking generates liquidity provision signals from fair
// value, pool state and volatility conditions.
package marketmaking

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/pools"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/volatility"
)

// SpreadEnvironment classifies how far the pool trades from fair value.
type SpreadEnvironment int

const (
	SpreadTight SpreadEnvironment = iota
	SpreadNormal
	SpreadWide
	SpreadVeryWide
)

func (s SpreadEnvironment) String() string {
	switch s {
	case SpreadTight:
		return "Tight"
	case SpreadNormal:
		return "Normal"
	case SpreadWide:
		return "Wide"
	default:
		return "VeryWide"
	}
}

// MarketTrend is the short-horizon direction read from pool price vs fair value.
type MarketTrend int

const (
	TrendSideways MarketTrend = iota
	TrendBullish
	TrendBearish
)

func (t MarketTrend) String() string {
	switch t {
	case TrendBullish:
		return "Bullish"
	case TrendBearish:
		return "Bearish"
	default:
		return "Sideways"
	}
}

// VolumeProfile grades expected activity from total pool liquidity.
type VolumeProfile int

const (
	VolumeLow VolumeProfile = iota
	VolumeNormal
	VolumeHigh
)

func (v VolumeProfile) String() string {
	switch v {
	case VolumeHigh:
		return "High"
	case VolumeNormal:
		return "Normal"
	default:
		return "Low"
	}
}

// InventoryImbalance buckets the deviation of the simulated WETH ratio from
// its target, direction-sensitive for the non-extreme tiers.
type InventoryImbalance int

const (
	InventoryBalanced InventoryImbalance = iota
	InventorySlightlyLong
	InventorySlightlyShort
	InventorySignificantlyLong
	InventorySignificantlyShort
	InventoryCritical
)

func (i InventoryImbalance) String() string {
	switch i {
	case InventorySlightlyLong:
		return "SlightlyLong"
	case InventorySlightlyShort:
		return "SlightlyShort"
	case InventorySignificantlyLong:
		return "SignificantlyLong"
	case InventorySignificantlyShort:
		return "SignificantlyShort"
	case InventoryCritical:
		return "CriticallyImbalanced"
	default:
		return "Balanced"
	}
}

// StrategyType names the liquidity provision approach for this cycle.
type StrategyType int

const (
	StrategyTrendFollowing StrategyType = iota
	StrategyTightSpread
	StrategyWideSpread
	StrategyInventoryManagement
	StrategyVolatilityAdaptive
)

func (s StrategyType) String() string {
	switch s {
	case StrategyTightSpread:
		return "TightSpread"
	case StrategyWideSpread:
		return "WideSpread"
	case StrategyInventoryManagement:
		return "InventoryManagement"
	case StrategyVolatilityAdaptive:
		return "VolatilityAdaptive"
	default:
		return "TrendFollowing"
	}
}

// RiskLevel grades the strategy by 1-hour volatility tier.
type RiskLevel int

const (
	RiskConservative RiskLevel = iota
	RiskModerate
	RiskAggressive
	RiskSpeculative
)

func (r RiskLevel) String() string {
	switch r {
	case RiskModerate:
		return "Moderate"
	case RiskAggressive:
		return "Aggressive"
	case RiskSpeculative:
		return "Speculative"
	default:
		return "Conservative"
	}
}

// ExecutionPriority orders how urgently a signal should be acted on.
type ExecutionPriority int

const (
	PriorityLow ExecutionPriority = iota
	PriorityMedium
	PriorityHigh
	PriorityImmediate
	PriorityHold
)

func (p ExecutionPriority) String() string {
	switch p {
	case PriorityImmediate:
		return "Immediate"
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityHold:
		return "Hold"
	default:
		return "Low"
	}
}

// MarketConditions is the per-cycle market snapshot feeding every downstream
// decision.
type MarketConditions struct {
	Volatility1h decimal.Decimal
	Depth        pools.Depth
	Environment  SpreadEnvironment
	Trend        MarketTrend
	Volume       VolumeProfile
}

// InventoryAnalysis describes the simulated book relative to its target split.
type InventoryAnalysis struct {
	WETHBalance        decimal.Decimal
	USDBalance         decimal.Decimal
	TotalValueUSD      decimal.Decimal
	WETHRatio          decimal.Decimal
	TargetWETHRatio    decimal.Decimal
	Imbalance          InventoryImbalance
	RebalanceNeeded    bool
	RebalanceAmountETH decimal.Decimal
}

// RangeBounds is the price band the strategy expects to operate within.
type RangeBounds struct {
	Lower      decimal.Decimal
	Upper      decimal.Decimal
	Confidence decimal.Decimal
}

// Strategy holds the selected approach and its sizing.
type Strategy struct {
	Type                StrategyType
	BidSizeETH          decimal.Decimal
	AskSizeETH          decimal.Decimal
	Bounds              RangeBounds
	DurationEstimate    time.Duration
	ExpectedDailyVolETH decimal.Decimal
	RiskLevel           RiskLevel
}

// RiskMetrics carries the 0-100 tier scores and derived exposure limits.
type RiskMetrics struct {
	ValueAtRisk1d          decimal.Decimal
	MaxDrawdownUSD         decimal.Decimal
	InventoryRiskScore     decimal.Decimal
	LiquidityRiskScore     decimal.Decimal
	VolatilityRiskScore    decimal.Decimal
	OverallRiskScore       decimal.Decimal
	RecommendedMaxExposure decimal.Decimal
}

// Signal is one complete market-making recommendation for a pool.
type Signal struct {
	ID              string
	GeneratedAt     time.Time
	Pool            string
	FairValue       decimal.Decimal
	PoolPrice       decimal.Decimal
	TargetBid       decimal.Decimal
	TargetAsk       decimal.Decimal
	SpreadBps       int64
	PositionSizeETH decimal.Decimal
	Inventory       InventoryAnalysis
	Conditions      MarketConditions
	Strategy        Strategy
	Risk            RiskMetrics
	Volatility      volatility.Metrics
	Priority        ExecutionPriority
	Rationale       string
}
