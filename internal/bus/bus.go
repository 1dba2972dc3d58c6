// Package bus publishes signals and opportunities to Redis for downstream
// consumers, and keeps the latest signal per pool in a key for introspection.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/arbitrage"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/config"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/marketmaking"
)

const lastSignalKeyPrefix = "mm:last_signal:"

// lastSignalTTL bounds how long a stale snapshot survives after shutdown.
const lastSignalTTL = 24 * time.Hour

// Publisher pushes domain events onto Redis Pub/Sub channels.
type Publisher struct {
	rdb                *redis.Client
	logger             zerolog.Logger
	signalChannel      string
	opportunityChannel string
}

// NewPublisher connects a Redis-backed publisher from runtime settings.
func NewPublisher(cfg config.RedisConfig, logger zerolog.Logger) *Publisher {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Publisher{
		rdb:                rdb,
		logger:             logger.With().Str("component", "bus").Logger(),
		signalChannel:      cfg.SignalChannel,
		opportunityChannel: cfg.OpportunityChannel,
	}
}

// Ping verifies connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	if err := p.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (p *Publisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}

// PublishSignal broadcasts a signal and overwrites the pool's latest-signal key.
func (p *Publisher) PublishSignal(ctx context.Context, sig *marketmaking.Signal) error {
	payload, err := json.Marshal(signalEvent(sig))
	if err != nil {
		return fmt.Errorf("bus: marshal signal: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.signalChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.signalChannel, err)
	}
	if err := p.rdb.Set(ctx, lastSignalKeyPrefix+sig.Pool, payload, lastSignalTTL).Err(); err != nil {
		return fmt.Errorf("redis: set last signal for %s: %w", sig.Pool, err)
	}
	return nil
}

// PublishOpportunity broadcasts a validated opportunity.
func (p *Publisher) PublishOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error {
	payload, err := json.Marshal(opportunityEvent(opp))
	if err != nil {
		return fmt.Errorf("bus: marshal opportunity: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.opportunityChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.opportunityChannel, err)
	}
	return nil
}

// LastSignal returns the most recently published signal payload for a pool,
// or nil when none is stored.
func (p *Publisher) LastSignal(ctx context.Context, pool string) ([]byte, error) {
	payload, err := p.rdb.Get(ctx, lastSignalKeyPrefix+pool).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get last signal for %s: %w", pool, err)
	}
	return payload, nil
}

// SignalEvent is the wire shape for published signals.
type SignalEvent struct {
	ID              string    `json:"id"`
	GeneratedAt     time.Time `json:"generated_at"`
	Pool            string    `json:"pool"`
	FairValue       string    `json:"fair_value"`
	PoolPrice       string    `json:"pool_price"`
	TargetBid       string    `json:"target_bid"`
	TargetAsk       string    `json:"target_ask"`
	SpreadBps       int64     `json:"spread_bps"`
	PositionSizeETH string    `json:"position_size_eth"`
	Strategy        string    `json:"strategy"`
	Priority        string    `json:"priority"`
	OverallRisk     string    `json:"overall_risk"`
}

// OpportunityEvent is the wire shape for published opportunities.
type OpportunityEvent struct {
	ID             string    `json:"id"`
	DetectedAt     time.Time `json:"detected_at"`
	Pool           string    `json:"pool"`
	Direction      string    `json:"direction"`
	PoolPrice      string    `json:"pool_price"`
	ReferencePrice string    `json:"reference_price"`
	DivergencePct  string    `json:"divergence_pct"`
	NetProfitUSD   string    `json:"net_profit_usd"`
	Passed         bool      `json:"passed"`
}

func signalEvent(sig *marketmaking.Signal) SignalEvent {
	return SignalEvent{
		ID:              sig.ID,
		GeneratedAt:     sig.GeneratedAt,
		Pool:            sig.Pool,
		FairValue:       sig.FairValue.String(),
		PoolPrice:       sig.PoolPrice.String(),
		TargetBid:       sig.TargetBid.String(),
		TargetAsk:       sig.TargetAsk.String(),
		SpreadBps:       sig.SpreadBps,
		PositionSizeETH: sig.PositionSizeETH.String(),
		Strategy:        sig.Strategy.Type.String(),
		Priority:        sig.Priority.String(),
		OverallRisk:     sig.Risk.OverallRiskScore.StringFixed(1),
	}
}

func opportunityEvent(opp *arbitrage.Opportunity) OpportunityEvent {
	ev := OpportunityEvent{
		ID:             opp.ID,
		DetectedAt:     opp.DetectedAt,
		Pool:           opp.PoolName,
		Direction:      opp.Direction,
		PoolPrice:      opp.PoolPrice.String(),
		ReferencePrice: opp.ReferencePrice.String(),
		DivergencePct:  opp.DivergencePct.String(),
		NetProfitUSD:   opp.NetProfitUSD.String(),
	}
	if opp.Validation != nil {
		ev.Passed = opp.Validation.Passed
	}
	return ev
}
