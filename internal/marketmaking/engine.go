package marketmaking

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/pools"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/volatility"
)

// Params are the read-only market-making knobs.
type Params struct {
	BaseSpreadBps        int64
	MinSpreadBps         int64
	MaxSpreadBps         int64
	MaxPositionSizeETH   decimal.Decimal
	MinTradeSizeETH      decimal.Decimal
	InventoryTargetRatio decimal.Decimal
	RebalanceThreshold   decimal.Decimal
	VarDayScaling        decimal.Decimal
	VarZScore            decimal.Decimal
}

// Engine turns a fair value, a pool price and liquidity state into a signal.
// It keeps only the last signal per pool as mutable state.
type Engine struct {
	params Params
	logger zerolog.Logger
	now    func() time.Time

	mu          sync.RWMutex
	lastSignals map[string]*Signal
}

func NewEngine(params Params, logger zerolog.Logger) *Engine {
	return &Engine{
		params:      params,
		logger:      logger.With().Str("component", "marketmaking").Logger(),
		now:         time.Now,
		lastSignals: make(map[string]*Signal),
	}
}

// Generate produces a complete signal for the pool and caches it as the
// latest one, overwriting any previous signal for the same pool.
func (e *Engine) Generate(pool string, fairValue, poolPrice decimal.Decimal, depth pools.Depth, vm volatility.Metrics) *Signal {
	conditions := e.analyzeConditions(vm.LongTerm, depth, poolPrice, fairValue)
	inventory := e.analyzeInventory(fairValue, depth)
	spreadBps := e.dynamicSpreadBps(conditions, inventory, vm, fairValue)
	size := e.positionSize(inventory, depth, vm)
	strategy := e.selectStrategy(conditions, inventory, poolPrice, fairValue)
	risk := e.riskMetrics(size, fairValue, vm, depth)
	priority := e.executionPriority(conditions, inventory, risk, vm, poolPrice, fairValue)

	halfSpread := fairValue.Mul(decimal.NewFromInt(spreadBps)).Div(tenThousand).Div(two)

	sig := &Signal{
		ID:              uuid.NewString(),
		GeneratedAt:     e.now().UTC(),
		Pool:            pool,
		FairValue:       fairValue,
		PoolPrice:       poolPrice,
		TargetBid:       fairValue.Sub(halfSpread),
		TargetAsk:       fairValue.Add(halfSpread),
		SpreadBps:       spreadBps,
		PositionSizeETH: size,
		Inventory:       inventory,
		Conditions:      conditions,
		Strategy:        strategy,
		Risk:            risk,
		Volatility:      vm,
		Priority:        priority,
		Rationale:       e.rationale(conditions, inventory, strategy, vm, spreadBps, fairValue, poolPrice),
	}

	e.mu.Lock()
	e.lastSignals[pool] = sig
	e.mu.Unlock()

	e.logger.Debug().
		Str("pool", pool).
		Int64("spread_bps", spreadBps).
		Str("position_size_eth", size.StringFixed(4)).
		Str("strategy", strategy.Type.String()).
		Str("priority", priority.String()).
		Msg("market making signal generated")
	return sig
}

// LastSignal returns the most recent signal for a pool, if any.
func (e *Engine) LastSignal(pool string) (*Signal, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sig, ok := e.lastSignals[pool]
	return sig, ok
}

func (e *Engine) analyzeConditions(vol1h decimal.Decimal, depth pools.Depth, poolPrice, fairValue decimal.Decimal) MarketConditions {
	deviation := deviationPct(poolPrice, fairValue)

	env := SpreadVeryWide
	switch {
	case deviation.LessThan(decimal.RequireFromString("0.2")):
		env = SpreadTight
	case deviation.LessThan(decimal.RequireFromString("0.5")):
		env = SpreadNormal
	case deviation.LessThan(decimal.NewFromInt(1)):
		env = SpreadWide
	}

	trend := TrendSideways
	if poolPrice.GreaterThan(fairValue.Mul(decimal.RequireFromString("1.002"))) {
		trend = TrendBullish
	} else if poolPrice.LessThan(fairValue.Mul(decimal.RequireFromString("0.998"))) {
		trend = TrendBearish
	}

	volume := VolumeLow
	switch {
	case depth.TotalLiquidityUSD.GreaterThan(decimal.NewFromInt(1_000_000)):
		volume = VolumeHigh
	case depth.TotalLiquidityUSD.GreaterThan(decimal.NewFromInt(100_000)):
		volume = VolumeNormal
	}

	return MarketConditions{
		Volatility1h: vol1h,
		Depth:        depth,
		Environment:  env,
		Trend:        trend,
		Volume:       volume,
	}
}

// The book is simulated: a 40/60 WETH/USD split of the configured maximum
// position, with the WETH side capped at 10% of pool reserves.
func (e *Engine) analyzeInventory(fairValue decimal.Decimal, depth pools.Depth) InventoryAnalysis {
	wethBalance := e.params.MaxPositionSizeETH.Mul(decimal.RequireFromString("0.4"))
	usdBalance := e.params.MaxPositionSizeETH.Mul(fairValue).Mul(decimal.RequireFromString("0.6"))

	maxFeasible := depth.WETHReserves.Mul(decimal.RequireFromString("0.1"))
	if wethBalance.GreaterThan(maxFeasible) {
		wethBalance = maxFeasible
	}

	totalValue := wethBalance.Mul(fairValue).Add(usdBalance)
	wethRatio := decimal.Zero
	if totalValue.IsPositive() {
		wethRatio = wethBalance.Mul(fairValue).Div(totalValue)
	}
	target := e.params.InventoryTargetRatio
	ratioDiff := wethRatio.Sub(target).Abs()

	imbalance := InventoryCritical
	switch {
	case ratioDiff.LessThan(decimal.RequireFromString("0.05")):
		imbalance = InventoryBalanced
	case ratioDiff.LessThan(decimal.RequireFromString("0.15")):
		imbalance = InventorySlightlyShort
		if wethRatio.GreaterThan(target) {
			imbalance = InventorySlightlyLong
		}
	case ratioDiff.LessThan(decimal.RequireFromString("0.30")):
		imbalance = InventorySignificantlyShort
		if wethRatio.GreaterThan(target) {
			imbalance = InventorySignificantlyLong
		}
	}

	rebalanceNeeded := ratioDiff.GreaterThan(e.params.RebalanceThreshold)
	rebalanceAmount := decimal.Zero
	if rebalanceNeeded && fairValue.IsPositive() {
		rebalanceAmount = target.Sub(wethRatio).Mul(totalValue).Div(fairValue)
	}

	return InventoryAnalysis{
		WETHBalance:        wethBalance,
		USDBalance:         usdBalance,
		TotalValueUSD:      totalValue,
		WETHRatio:          wethRatio,
		TargetWETHRatio:    target,
		Imbalance:          imbalance,
		RebalanceNeeded:    rebalanceNeeded,
		RebalanceAmountETH: rebalanceAmount,
	}
}

func (e *Engine) dynamicSpreadBps(conditions MarketConditions, inventory InventoryAnalysis, vm volatility.Metrics, fairValue decimal.Decimal) int64 {
	spread := decimal.NewFromInt(e.params.BaseSpreadBps).Mul(vm.Adjust.SpreadMultiplier).Floor()

	switch vm.Trend {
	case volatility.TrendIncreasing:
		spread = spread.Mul(decimal.RequireFromString("1.2")).Floor()
	case volatility.TrendVolatile:
		spread = spread.Mul(decimal.RequireFromString("1.3")).Floor()
	}

	if fairValue.GreaterThan(decimal.NewFromInt(5000)) || fairValue.LessThan(decimal.NewFromInt(1000)) {
		spread = spread.Mul(decimal.RequireFromString("1.2")).Floor()
	}

	switch inventory.Imbalance {
	case InventorySlightlyLong, InventorySlightlyShort:
		spread = spread.Mul(decimal.RequireFromString("1.1")).Floor()
	case InventorySignificantlyLong, InventorySignificantlyShort:
		spread = spread.Mul(decimal.RequireFromString("1.25")).Floor()
	case InventoryCritical:
		spread = spread.Mul(decimal.RequireFromString("1.5")).Floor()
	}

	switch conditions.Depth.Quality {
	case pools.DepthGood:
		spread = spread.Mul(decimal.RequireFromString("1.05")).Floor()
	case pools.DepthFair:
		spread = spread.Mul(decimal.RequireFromString("1.15")).Floor()
	case pools.DepthPoor:
		spread = spread.Mul(decimal.RequireFromString("1.3")).Floor()
	}

	switch conditions.Environment {
	case SpreadTight:
		spread = spread.Mul(decimal.RequireFromString("0.8")).Floor()
	case SpreadWide:
		spread = spread.Mul(decimal.RequireFromString("1.2")).Floor()
	case SpreadVeryWide:
		spread = spread.Mul(decimal.RequireFromString("1.5")).Floor()
	}

	bps := spread.IntPart()
	if bps < e.params.MinSpreadBps {
		bps = e.params.MinSpreadBps
	}
	if bps > e.params.MaxSpreadBps {
		bps = e.params.MaxSpreadBps
	}
	return bps
}

func (e *Engine) positionSize(inventory InventoryAnalysis, depth pools.Depth, vm volatility.Metrics) decimal.Decimal {
	size := e.params.MaxPositionSizeETH.Mul(decimal.RequireFromString("0.1"))
	size = size.Mul(vm.Adjust.PositionSizeFactor)

	switch {
	case vm.Impact == volatility.ImpactExtreme:
		size = size.Mul(decimal.RequireFromString("0.5"))
	case vm.Impact == volatility.ImpactHigh && vm.Trend == volatility.TrendIncreasing:
		size = size.Mul(decimal.RequireFromString("0.7"))
	}

	if depth.WETHReserves.IsPositive() {
		impact := size.Div(depth.WETHReserves)
		if impact.GreaterThan(decimal.RequireFromString("0.01")) {
			size = depth.WETHReserves.Mul(decimal.RequireFromString("0.005"))
		}
	}

	switch inventory.Imbalance {
	case InventoryCritical:
		size = size.Mul(decimal.RequireFromString("0.3"))
	case InventorySignificantlyLong, InventorySignificantlyShort:
		size = size.Mul(decimal.RequireFromString("0.7"))
	}

	if size.LessThan(e.params.MinTradeSizeETH) {
		size = e.params.MinTradeSizeETH
	}
	if size.GreaterThan(e.params.MaxPositionSizeETH) {
		size = e.params.MaxPositionSizeETH
	}
	return size
}

func (e *Engine) selectStrategy(conditions MarketConditions, inventory InventoryAnalysis, poolPrice, fairValue decimal.Decimal) Strategy {
	deviation := deviationPct(poolPrice, fairValue)

	stype := StrategyTrendFollowing
	switch {
	case conditions.Volatility1h.GreaterThan(decimal.NewFromInt(15)):
		stype = StrategyVolatilityAdaptive
	case inventory.Imbalance == InventorySignificantlyLong || inventory.Imbalance == InventorySignificantlyShort:
		stype = StrategyInventoryManagement
	case conditions.Environment == SpreadTight && deviation.LessThan(decimal.RequireFromString("0.1")):
		stype = StrategyTightSpread
	case conditions.Environment == SpreadWide || conditions.Environment == SpreadVeryWide:
		stype = StrategyWideSpread
	}

	baseSize := e.params.MaxPositionSizeETH.Mul(decimal.RequireFromString("0.1"))
	bidSize, askSize := baseSize, baseSize
	if stype == StrategyInventoryManagement {
		if inventory.Imbalance == InventorySignificantlyLong {
			bidSize = baseSize.Mul(decimal.RequireFromString("0.3"))
			askSize = baseSize.Mul(decimal.RequireFromString("1.5"))
		} else if inventory.Imbalance == InventorySignificantlyShort {
			bidSize = baseSize.Mul(decimal.RequireFromString("1.5"))
			askSize = baseSize.Mul(decimal.RequireFromString("0.3"))
		}
	}

	durations := map[StrategyType]time.Duration{
		StrategyTightSpread:         5 * time.Minute,
		StrategyWideSpread:          time.Hour,
		StrategyInventoryManagement: 30 * time.Minute,
		StrategyTrendFollowing:      2 * time.Hour,
		StrategyVolatilityAdaptive:  10 * time.Minute,
	}

	risk := RiskConservative
	switch {
	case conditions.Volatility1h.GreaterThan(decimal.NewFromInt(20)):
		risk = RiskSpeculative
	case conditions.Volatility1h.GreaterThan(decimal.NewFromInt(10)):
		risk = RiskAggressive
	case conditions.Volatility1h.GreaterThan(decimal.NewFromInt(5)):
		risk = RiskModerate
	}

	return Strategy{
		Type:       stype,
		BidSizeETH: bidSize,
		AskSizeETH: askSize,
		Bounds: RangeBounds{
			Lower:      fairValue.Mul(decimal.RequireFromString("0.95")),
			Upper:      fairValue.Mul(decimal.RequireFromString("1.05")),
			Confidence: decimal.RequireFromString("0.95"),
		},
		DurationEstimate:    durations[stype],
		ExpectedDailyVolETH: baseSize.Mul(decimal.NewFromInt(10)),
		RiskLevel:           risk,
	}
}

func (e *Engine) riskMetrics(size, fairValue decimal.Decimal, vm volatility.Metrics, depth pools.Depth) RiskMetrics {
	value := size.Mul(fairValue)

	dailyVol := vm.ShortTerm.Mul(e.params.VarDayScaling)
	varOneDay := value.Mul(dailyVol).Div(hundred).Mul(e.params.VarZScore)

	inventoryScore := hundred
	if e.params.MaxPositionSizeETH.IsPositive() {
		inventoryScore = size.Div(e.params.MaxPositionSizeETH).Mul(hundred)
		if inventoryScore.GreaterThan(hundred) {
			inventoryScore = hundred
		}
	}

	liquidityScore := decimal.NewFromInt(80)
	switch depth.Quality {
	case pools.DepthExcellent:
		liquidityScore = decimal.NewFromInt(10)
	case pools.DepthGood:
		liquidityScore = decimal.NewFromInt(25)
	case pools.DepthFair:
		liquidityScore = decimal.NewFromInt(50)
	}

	volatilityScore := decimal.NewFromInt(90)
	switch vm.Impact {
	case volatility.ImpactLow:
		volatilityScore = decimal.NewFromInt(10)
	case volatility.ImpactModerate:
		volatilityScore = decimal.NewFromInt(30)
	case volatility.ImpactHigh:
		volatilityScore = decimal.NewFromInt(60)
	}

	shortCapped := vm.ShortTerm
	if shortCapped.GreaterThan(decimal.NewFromInt(50)) {
		shortCapped = decimal.NewFromInt(50)
	}

	overall := inventoryScore.Mul(decimal.RequireFromString("0.3")).
		Add(liquidityScore.Mul(decimal.RequireFromString("0.25"))).
		Add(volatilityScore.Mul(decimal.RequireFromString("0.35"))).
		Add(shortCapped.Mul(decimal.RequireFromString("0.1")))

	return RiskMetrics{
		ValueAtRisk1d:          varOneDay,
		MaxDrawdownUSD:         value.Mul(decimal.RequireFromString("0.1")),
		InventoryRiskScore:     inventoryScore,
		LiquidityRiskScore:     liquidityScore,
		VolatilityRiskScore:    volatilityScore,
		OverallRiskScore:       overall,
		RecommendedMaxExposure: e.params.MaxPositionSizeETH.Mul(hundred.Sub(overall)).Div(hundred),
	}
}

// First matching rule wins; the order is part of the contract.
func (e *Engine) executionPriority(conditions MarketConditions, inventory InventoryAnalysis, risk RiskMetrics, vm volatility.Metrics, poolPrice, fairValue decimal.Decimal) ExecutionPriority {
	deviation := deviationPct(poolPrice, fairValue)

	switch vm.Adjust.Urgency {
	case volatility.UrgencyFast:
		if deviation.GreaterThan(decimal.RequireFromString("0.5")) {
			return PriorityImmediate
		}
	case volatility.UrgencyCautious:
		return PriorityLow
	}

	if inventory.Imbalance == InventoryCritical {
		return PriorityImmediate
	}
	if risk.OverallRiskScore.GreaterThan(decimal.NewFromInt(80)) {
		return PriorityHold
	}
	if deviation.GreaterThan(decimal.NewFromInt(1)) &&
		(vm.Impact == volatility.ImpactLow || vm.Impact == volatility.ImpactModerate) {
		return PriorityImmediate
	}
	if conditions.Volatility1h.GreaterThan(decimal.NewFromInt(15)) {
		return PriorityHigh
	}
	if deviation.GreaterThan(decimal.RequireFromString("0.3")) {
		return PriorityHigh
	}
	if deviation.GreaterThan(decimal.RequireFromString("0.1")) {
		return PriorityMedium
	}
	return PriorityLow
}

func (e *Engine) rationale(conditions MarketConditions, inventory InventoryAnalysis, strategy Strategy, vm volatility.Metrics, spreadBps int64, fairValue, poolPrice decimal.Decimal) string {
	var b strings.Builder

	signedDeviation := decimal.Zero
	if fairValue.IsPositive() {
		signedDeviation = poolPrice.Sub(fairValue).Div(fairValue).Mul(hundred)
	}
	fmt.Fprintf(&b, "Market Analysis: Current price $%s vs fair value $%s (%s%% deviation). ",
		poolPrice.StringFixed(4), fairValue.StringFixed(4), signedDeviation.StringFixed(2))

	fmt.Fprintf(&b, "Volatility: Short=%s%%, Medium=%s%%, Long=%s%% (Trend: %s, Impact: %s). ",
		vm.ShortTerm.StringFixed(1), vm.MediumTerm.StringFixed(1), vm.LongTerm.StringFixed(1),
		vm.Trend, vm.Impact)

	fmt.Fprintf(&b, "Effective spread: %d bps. ", spreadBps)

	switch strategy.Type {
	case StrategyTightSpread:
		b.WriteString("TIGHT SPREAD strategy selected due to stable conditions and tight current spreads. ")
	case StrategyWideSpread:
		b.WriteString("WIDE SPREAD strategy selected to capture larger price movements in volatile environment. ")
	case StrategyInventoryManagement:
		fmt.Fprintf(&b, "INVENTORY MANAGEMENT strategy selected due to %s position. ", inventory.Imbalance)
	case StrategyTrendFollowing:
		fmt.Fprintf(&b, "TREND FOLLOWING strategy selected based on %s market trend. ", conditions.Trend)
	case StrategyVolatilityAdaptive:
		b.WriteString("VOLATILITY ADAPTIVE strategy selected due to high market volatility requiring frequent adjustments. ")
	}

	if vm.Impact == volatility.ImpactHigh || vm.Impact == volatility.ImpactExtreme {
		reduction := decimal.NewFromInt(1).Sub(vm.Adjust.PositionSizeFactor).Mul(hundred)
		fmt.Fprintf(&b, "High volatility detected, spreads widened by %sx, position size reduced by %s%%. ",
			vm.Adjust.SpreadMultiplier.StringFixed(1), reduction.StringFixed(0))
	}

	switch strategy.RiskLevel {
	case RiskConservative:
		b.WriteString("Conservative sizing due to uncertain conditions. ")
	case RiskModerate:
		b.WriteString("Moderate risk profile with balanced exposure. ")
	case RiskAggressive:
		b.WriteString("Aggressive positioning to capitalize on clear opportunities. ")
	case RiskSpeculative:
		b.WriteString("Speculative approach warranted by extreme conditions. ")
	}

	if inventory.RebalanceNeeded {
		fmt.Fprintf(&b, "Portfolio rebalancing needed: %s%% WETH vs %s%% target. ",
			inventory.WETHRatio.Mul(hundred).StringFixed(1),
			inventory.TargetWETHRatio.Mul(hundred).StringFixed(1))
	}

	return b.String()
}

func deviationPct(poolPrice, fairValue decimal.Decimal) decimal.Decimal {
	if fairValue.IsZero() {
		return decimal.Zero
	}
	return poolPrice.Sub(fairValue).Abs().Div(fairValue).Mul(hundred)
}

var (
	hundred     = decimal.NewFromInt(100)
	two         = decimal.NewFromInt(2)
	tenThousand = decimal.NewFromInt(10_000)
)
