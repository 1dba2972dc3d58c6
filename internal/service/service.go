// Package service runs the monitoring loop: reference and pool prices in,
// opportunities, signals, executions, and alerts out.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/alerting"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/arbitrage"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/config"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/execution"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/fetcher"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/marketmaking"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/metrics"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/pools"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/resilience"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/scheduler"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/storage"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/volatility"
)

// Consecutive reference failures tolerated on the stale-price fallback before
// the failure feeds the circuit breaker.
const maxStaleReferenceTicks = 3

// PoolReader supplies per-pool price and depth reads.
type PoolReader interface {
	Price(ctx context.Context, info pools.Info) (decimal.Decimal, error)
	Depth(ctx context.Context, info pools.Info, fairValue decimal.Decimal) (pools.Depth, error)
}

// RecordStore persists the loop's outputs.
type RecordStore interface {
	InsertOpportunity(ctx context.Context, rec storage.OpportunityRecord) error
	InsertSignal(ctx context.Context, rec storage.SignalRecord) error
	InsertExecution(ctx context.Context, rec storage.ExecutionRecord) error
}

// EventPublisher pushes opportunities and signals onto the bus.
type EventPublisher interface {
	PublishOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error
	PublishSignal(ctx context.Context, sig *marketmaking.Signal) error
}

// WatchedPool is a pool whose identity was validated at startup.
type WatchedPool struct {
	Name string
	Info pools.Info
}

// Deps are the externally constructed collaborators. Store, Publisher,
// Notifier, and Simulator may be nil to disable the corresponding output.
type Deps struct {
	Scheduler *scheduler.Scheduler
	Reference fetcher.ReferencePriceFetcher
	Pools     PoolReader
	Store     RecordStore
	Publisher EventPublisher
	Notifier  alerting.Notifier
	Metrics   *metrics.Metrics
	Simulator *execution.Simulator
}

// Service orchestrates the per-tick pipeline across all watched pools.
type Service struct {
	scheduler *scheduler.Scheduler
	reference fetcher.ReferencePriceFetcher
	poolRead  PoolReader
	store     RecordStore
	publisher EventPublisher
	notifier  alerting.Notifier
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	tracker   *volatility.Tracker
	detector  *arbitrage.Detector
	validator *arbitrage.Validator
	engine    *marketmaking.Engine
	simulator *execution.Simulator
	breaker   *resilience.CircuitBreaker
	recovery  *resilience.Recovery

	watched        []WatchedPool
	tradeSize      decimal.Decimal
	minProfit      decimal.Decimal
	safetyChecks   bool
	alertsOn       bool
	alertMinProfit decimal.Decimal
	channels       []string
	healthInterval time.Duration
	maxTotalErrors int

	startedAt              time.Time
	lastHealthAt           time.Time
	lastReference          decimal.Decimal
	lastReferenceAt        time.Time
	consecutiveRefFailures int
	stats                  Stats

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// New constructs the monitoring service. The strategy components are built
// from cfg; disabled features leave their collaborator nil.
func New(cfg *config.Config, watched []WatchedPool, deps Deps, logger zerolog.Logger) *Service {
	params := arbitrage.Params{
		MinDivergencePct:       decimal.NewFromFloat(cfg.Trading.MinDivergencePct),
		GasCostUSD:             decimal.NewFromFloat(cfg.Trading.GasCostUSD),
		MaxPriceDeviationPct:   decimal.NewFromFloat(cfg.Trading.MaxPriceDeviationPct),
		MaxSlippageBps:         decimal.NewFromInt(int64(cfg.Trading.MaxSlippageBps)),
		VolatilityThresholdPct: decimal.NewFromFloat(cfg.Volatility.ThresholdPct),
	}

	var engine *marketmaking.Engine
	if cfg.MarketMaking.Enabled {
		engine = marketmaking.NewEngine(marketmaking.Params{
			BaseSpreadBps:        int64(cfg.MarketMaking.BaseSpreadBps),
			MinSpreadBps:         int64(cfg.MarketMaking.MinSpreadBps),
			MaxSpreadBps:         int64(cfg.MarketMaking.MaxSpreadBps),
			MaxPositionSizeETH:   decimal.NewFromFloat(cfg.MarketMaking.MaxPositionSizeETH),
			MinTradeSizeETH:      decimal.NewFromFloat(cfg.MarketMaking.MinTradeSizeETH),
			InventoryTargetRatio: decimal.NewFromFloat(cfg.MarketMaking.InventoryTargetRatio),
			RebalanceThreshold:   decimal.NewFromFloat(cfg.MarketMaking.RebalanceThreshold),
			VarDayScaling:        decimal.NewFromFloat(cfg.Risk.VarDayScaling),
			VarZScore:            decimal.NewFromFloat(cfg.Risk.VarZScore),
		}, logger)
	}

	simulator := deps.Simulator
	if simulator == nil && cfg.Execution.Enabled {
		simulator = execution.NewSimulator(execution.Options{
			Logger:       logger,
			Network:      cfg.Execution.Network,
			Timeout:      cfg.Execution.Timeout,
			BaseGasGwei:  int64(cfg.Execution.MaxGasPriceGwei),
			ToleranceBps: int64(cfg.Execution.SlippageToleranceBps),
		})
	}

	var notifier alerting.Notifier
	if cfg.Alerting.Enabled {
		notifier = deps.Notifier
	}

	now := time.Now().UTC()
	return &Service{
		scheduler: deps.Scheduler,
		reference: deps.Reference,
		poolRead:  deps.Pools,
		store:     deps.Store,
		publisher: deps.Publisher,
		notifier:  notifier,
		metrics:   deps.Metrics,
		logger:    logger.With().Str("component", "service").Logger(),

		tracker:   volatility.NewTracker(logger),
		detector:  arbitrage.NewDetector(params, logger),
		validator: arbitrage.NewValidator(params, logger),
		engine:    engine,
		simulator: simulator,
		breaker:   resilience.NewCircuitBreaker(cfg.Breaker.MaxConsecutiveErrors, cfg.Breaker.Cooldown, logger),
		recovery:  resilience.NewRecovery(),

		watched:        watched,
		tradeSize:      decimal.NewFromFloat(cfg.Trading.TradeSizeETH),
		minProfit:      decimal.NewFromFloat(cfg.Trading.MinProfitUSD),
		safetyChecks:   cfg.Trading.EnableSafetyChecks,
		alertsOn:       cfg.Alerting.Enabled,
		alertMinProfit: decimal.NewFromFloat(cfg.Alerting.MinProfitUSD),
		channels:       cfg.Alerting.Channels,
		healthInterval: cfg.Monitor.HealthInterval,
		maxTotalErrors: cfg.Monitor.MaxTotalErrors,

		startedAt: now,
		stats:     newStats(),

		now: time.Now,
		sleep: func(ctx context.Context, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		},
	}
}

// Run drives the tick loop until the context is cancelled or a recovery
// strategy requests shutdown.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	s.logger.Info().Int("pools", len(s.watched)).Msg("monitoring loop starting")
	return s.scheduler.Run(ctx, s.Tick)
}

// Tick executes one pass of the pipeline. A skipped tick is not an error;
// only a shutdown decision propagates, as scheduler.ErrStop.
func (s *Service) Tick(ctx context.Context, now time.Time) error {
	s.stats.Ticks++
	s.metrics.TicksTotal.Inc()
	started := s.now()
	defer func() {
		s.metrics.TickLatencySeconds.Observe(s.now().Sub(started).Seconds())
	}()

	if !s.breaker.CanProceed() {
		s.metrics.SetBreakerOpen(true)
		s.logger.Warn().
			Dur("cooldown_remaining", s.breaker.CooldownRemaining()).
			Msg("circuit breaker open, skipping tick")
		return nil
	}
	s.metrics.SetBreakerOpen(false)

	if s.healthInterval > 0 && now.Sub(s.lastHealthAt) >= s.healthInterval {
		s.reportHealth(now)
		s.lastHealthAt = now
	}

	ref, ok, stop := s.referencePrice(ctx)
	if stop {
		return scheduler.ErrStop
	}
	if !ok {
		return nil
	}

	s.tracker.AddPrice(ref)
	refFloat, _ := ref.Float64()
	s.metrics.ReferencePrice.Set(refFloat)

	vm := s.tracker.Metrics()
	shortVol, _ := vm.ShortTerm.Float64()
	s.metrics.ShortTermVolatility.Set(shortVol)

	for _, wp := range s.watched {
		if err := s.processPool(ctx, wp, ref, vm); err != nil {
			s.recordPoolError(wp.Name, err)
		}
	}
	return nil
}

// referencePrice fetches the CEX price, dispatching classified failures
// through the recovery table. Returns (price, usable, shutdown).
func (s *Service) referencePrice(ctx context.Context) (decimal.Decimal, bool, bool) {
	price, err := s.reference.FetchPrice(ctx)
	if err == nil {
		s.breaker.RecordSuccess()
		s.recovery.ResetCount(resilience.KindNetwork.Classification())
		s.consecutiveRefFailures = 0
		s.lastReference = price
		s.lastReferenceAt = s.now().UTC()
		return price, true, false
	}

	s.consecutiveRefFailures++
	classification := resilience.Classify(err)
	s.countError(classification)
	s.metrics.RecordError(classification)

	action := s.recovery.HandleError(err)
	switch action.Kind {
	case resilience.ActionRetry:
		s.logger.Warn().Err(err).
			Dur("delay", action.Delay).
			Int("consecutive_failures", s.consecutiveRefFailures).
			Msg("reference fetch failed, backing off until next tick")
		s.sleep(ctx, action.Delay)
		return decimal.Zero, false, false
	case resilience.ActionSkip:
		if s.consecutiveRefFailures <= maxStaleReferenceTicks && !s.lastReference.IsZero() {
			s.logger.Warn().Err(err).
				Int("consecutive_failures", s.consecutiveRefFailures).
				Str("stale_price", s.lastReference.String()).
				Msg("reference fetch failed, reusing last good price")
			return s.lastReference, true, false
		}
		s.breaker.RecordError()
		s.logger.Error().Err(err).
			Int("consecutive_failures", s.consecutiveRefFailures).
			Msg("reference price unavailable beyond stale tolerance, skipping tick")
		return decimal.Zero, false, false
	case resilience.ActionShutdown:
		s.logger.Error().Err(err).Str("reason", action.Reason).
			Msg("recovery table requested shutdown")
		return decimal.Zero, false, true
	default:
		s.breaker.RecordError()
		s.logger.Error().Err(err).
			Str("action", action.Kind.String()).
			Str("classification", classification).
			Msg("reference fetch failed, no recovery path")
		return decimal.Zero, false, false
	}
}

func (s *Service) processPool(ctx context.Context, wp WatchedPool, ref decimal.Decimal, vm volatility.Metrics) error {
	price, err := s.poolRead.Price(ctx, wp.Info)
	if err != nil {
		return err
	}
	priceFloat, _ := price.Float64()
	s.metrics.PoolPrice.WithLabelValues(wp.Name).Set(priceFloat)

	depth, err := s.poolRead.Depth(ctx, wp.Info, ref)
	if err != nil {
		return err
	}

	if opp := s.detector.Detect(wp.Name, price, ref, s.tradeSize); opp != nil {
		s.handleOpportunity(ctx, opp, depth, vm)
	}

	if s.engine != nil {
		if sig := s.engine.Generate(wp.Name, ref, price, depth, vm); sig != nil {
			s.handleSignal(ctx, sig)
		}
	}
	return nil
}

func (s *Service) handleOpportunity(ctx context.Context, opp *arbitrage.Opportunity, depth pools.Depth, vm volatility.Metrics) {
	s.stats.Opportunities++
	vmCopy := vm
	opp.Volatility = &vmCopy

	passed := true
	if s.safetyChecks {
		result := s.validator.Validate(opp, depth, vm)
		opp.Validation = &result
		passed = result.Passed
	}

	outcome := "rejected"
	if passed {
		outcome = "validated"
	}
	s.metrics.OpportunitiesTotal.WithLabelValues(opp.PoolName, outcome).Inc()

	if passed && opp.NetProfitUSD.GreaterThan(s.minProfit) {
		s.stats.Profitable++
		s.stats.TotalProfitUSD = s.stats.TotalProfitUSD.Add(opp.NetProfitUSD)
	}

	s.logger.Info().
		Str("id", opp.ID).
		Str("pool", opp.PoolName).
		Str("direction", opp.Direction).
		Str("divergence_pct", opp.DivergencePct.StringFixed(3)).
		Str("net_profit_usd", opp.NetProfitUSD.StringFixed(2)).
		Bool("passed", passed).
		Msg("arbitrage opportunity")

	if passed && s.simulator != nil {
		rec, err := s.simulator.Simulate(ctx, opp.ID, opp.TradeType(), opp.NetProfitUSD, vm)
		if err != nil {
			s.logger.Error().Err(err).Str("id", opp.ID).Msg("execution simulation aborted")
		} else {
			opp.Execution = &rec
			s.stats.Executions++
			s.metrics.ExecutionsTotal.WithLabelValues(rec.Status.String()).Inc()
			s.persistExecution(ctx, rec)
		}
	}

	s.persistOpportunity(ctx, opp, passed)

	if s.publisher != nil {
		if err := s.publisher.PublishOpportunity(ctx, opp); err != nil {
			s.logger.Error().Err(err).Str("id", opp.ID).Msg("failed to publish opportunity")
		}
	}

	if passed && s.alertsOn && s.notifier != nil && opp.NetProfitUSD.GreaterThan(s.alertMinProfit) {
		s.alert(ctx, opp)
	}
}

func (s *Service) handleSignal(ctx context.Context, sig *marketmaking.Signal) {
	s.stats.Signals++
	s.metrics.SignalsTotal.WithLabelValues(sig.Pool, sig.Priority.String()).Inc()

	s.logger.Info().
		Str("id", sig.ID).
		Str("pool", sig.Pool).
		Str("strategy", sig.Strategy.Type.String()).
		Int64("spread_bps", sig.SpreadBps).
		Str("priority", sig.Priority.String()).
		Msg("market-making signal")

	s.persistSignal(ctx, sig)

	if s.publisher != nil {
		if err := s.publisher.PublishSignal(ctx, sig); err != nil {
			s.logger.Error().Err(err).Str("id", sig.ID).Msg("failed to publish signal")
		}
	}
}

func (s *Service) alert(ctx context.Context, opp *arbitrage.Opportunity) {
	note := alerting.Notification{
		Pool:           opp.PoolName,
		Timestamp:      opp.DetectedAt,
		PoolPrice:      opp.PoolPrice,
		ReferencePrice: opp.ReferencePrice,
		DivergencePct:  opp.DivergencePct,
		NetProfitUSD:   opp.NetProfitUSD,
		ROIPct:         opp.ROIPct,
		TradeSizeETH:   opp.TradeSizeETH,
		Direction:      opp.Direction,
		Channels:       s.channels,
	}
	if opp.Validation != nil {
		note.Warnings = opp.Validation.Warnings
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("id", opp.ID).Msg("failed to dispatch alert")
	}
}

func (s *Service) persistOpportunity(ctx context.Context, opp *arbitrage.Opportunity, passed bool) {
	if s.store == nil {
		return
	}
	rec := storage.OpportunityRecord{
		ID:             opp.ID,
		DetectedAt:     opp.DetectedAt,
		Pool:           opp.PoolName,
		Direction:      opp.Direction,
		PoolPrice:      opp.PoolPrice,
		ReferencePrice: opp.ReferencePrice,
		DivergencePct:  opp.DivergencePct,
		TradeSizeETH:   opp.TradeSizeETH,
		GrossProfitUSD: opp.GrossProfitUSD,
		NetProfitUSD:   opp.NetProfitUSD,
		ROIPct:         opp.ROIPct,
		Passed:         passed,
	}
	if opp.Validation != nil {
		rec.Warnings = opp.Validation.Warnings
	}
	if err := s.store.InsertOpportunity(ctx, rec); err != nil {
		s.countError("storage")
		s.metrics.RecordError("storage")
		s.logger.Error().Err(err).Str("id", opp.ID).Msg("failed to persist opportunity")
	}
}

func (s *Service) persistSignal(ctx context.Context, sig *marketmaking.Signal) {
	if s.store == nil {
		return
	}
	rec := storage.SignalRecord{
		ID:              sig.ID,
		GeneratedAt:     sig.GeneratedAt,
		Pool:            sig.Pool,
		FairValue:       sig.FairValue,
		PoolPrice:       sig.PoolPrice,
		TargetBid:       sig.TargetBid,
		TargetAsk:       sig.TargetAsk,
		SpreadBps:       sig.SpreadBps,
		PositionSizeETH: sig.PositionSizeETH,
		Strategy:        sig.Strategy.Type.String(),
		Priority:        sig.Priority.String(),
		OverallRisk:     sig.Risk.OverallRiskScore,
		Rationale:       sig.Rationale,
	}
	if err := s.store.InsertSignal(ctx, rec); err != nil {
		s.countError("storage")
		s.metrics.RecordError("storage")
		s.logger.Error().Err(err).Str("id", sig.ID).Msg("failed to persist signal")
	}
}

func (s *Service) persistExecution(ctx context.Context, rec execution.Record) {
	if s.store == nil {
		return
	}
	row := storage.ExecutionRecord{
		OpportunityID:  rec.OpportunityID,
		Network:        rec.Network,
		TradeType:      string(rec.TradeType),
		Status:         rec.Status.String(),
		ExpectedProfit: rec.ExpectedProfit,
		ActualProfit:   rec.ActualProfit,
		SlippageBps:    rec.SlippageBps,
		GasPriceGwei:   rec.GasPriceGwei,
		LatencyMs:      rec.Latency.Milliseconds(),
		SimulatedAt:    rec.SimulatedAt,
	}
	if rec.FailureReason != "" {
		reason := rec.FailureReason
		row.FailureReason = &reason
	}
	if err := s.store.InsertExecution(ctx, row); err != nil {
		s.countError("storage")
		s.metrics.RecordError("storage")
		s.logger.Error().Err(err).Str("opportunity_id", rec.OpportunityID).Msg("failed to persist execution")
	}
}

// recordPoolError classifies a per-pool failure. Liquidity floors are routine,
// contract failures feed the circuit breaker, everything else is logged.
func (s *Service) recordPoolError(pool string, err error) {
	classification := resilience.Classify(err)
	s.countError(classification)
	s.metrics.RecordError(classification)

	switch {
	case resilience.IsKind(err, resilience.KindInsufficientLiquidity):
		s.logger.Debug().Err(err).Str("pool", pool).Msg("pool below liquidity floor")
	case resilience.IsKind(err, resilience.KindContract):
		s.breaker.RecordError()
		s.logger.Error().Err(err).Str("pool", pool).Msg("contract interaction failed")
	default:
		s.logger.Error().Err(err).Str("pool", pool).
			Str("classification", classification).
			Msg("pool processing failed")
	}
}

func (s *Service) countError(classification string) {
	s.stats.TotalErrors++
	s.stats.ErrorCounts[classification]++
}
