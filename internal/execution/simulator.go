// Package execution simulates on-chain trade execution for detected
// opportunities without submitting transactions.
package execution

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/volatility"
)

// Status is the terminal state of a simulated execution.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailed
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "timed_out"
	}
}

// TradeType names the simulated venue leg.
type TradeType string

const (
	TradeBuyPool  TradeType = "buy_pool"
	TradeSellPool TradeType = "sell_pool"
)

// Record captures the outcome of one simulated execution.
type Record struct {
	OpportunityID  string
	Network        string
	TradeType      TradeType
	Status         Status
	ExpectedProfit decimal.Decimal
	ActualProfit   decimal.Decimal
	SlippageBps    int64
	GasPriceGwei   int64
	Latency        time.Duration
	SimulatedAt    time.Time
	FailureReason  string
}

// Options configure a Simulator. ToleranceBps is the configured minimum-out
// bound reported alongside each fill; it does not alter simulated slippage.
type Options struct {
	Logger       zerolog.Logger
	Network      string
	Timeout      time.Duration
	BaseGasGwei  int64
	ToleranceBps int64
	Rand         *rand.Rand
	Now          func() time.Time
}

// Simulator models execution latency, success probability and slippage as a
// function of prevailing volatility conditions.
type Simulator struct {
	logger       zerolog.Logger
	network      string
	timeout      time.Duration
	baseGasGwei  int64
	toleranceBps int64
	rand         *rand.Rand
	now          func() time.Time
	latencyBase  time.Duration
}

func NewSimulator(opts Options) *Simulator {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BaseGasGwei <= 0 {
		opts.BaseGasGwei = 50
	}
	if opts.ToleranceBps <= 0 {
		opts.ToleranceBps = 50
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Simulator{
		logger:       opts.Logger.With().Str("component", "execution").Logger(),
		network:      opts.Network,
		timeout:      opts.Timeout,
		baseGasGwei:  opts.BaseGasGwei,
		toleranceBps: opts.ToleranceBps,
		rand:         opts.Rand,
		now:          opts.Now,
		latencyBase:  100 * time.Millisecond,
	}
}

// Simulate runs one execution for the given opportunity. It returns a
// completed Record even on failure or timeout; only context cancellation
// before completion yields an error.
func (s *Simulator) Simulate(ctx context.Context, oppID string, trade TradeType, expectedProfit decimal.Decimal, vm volatility.Metrics) (Record, error) {
	latency := s.latencyFor(vm.Impact)
	rec := Record{
		OpportunityID:  oppID,
		Network:        s.network,
		TradeType:      trade,
		ExpectedProfit: expectedProfit,
		GasPriceGwei:   s.baseGasGwei,
		Latency:        latency,
		SimulatedAt:    s.now(),
	}

	done := time.NewTimer(latency)
	defer done.Stop()
	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()

	select {
	case <-ctx.Done():
		return rec, ctx.Err()
	case <-deadline.C:
		rec.Status = StatusTimedOut
		rec.ActualProfit = decimal.Zero
		rec.FailureReason = fmt.Sprintf("execution exceeded %s timeout", s.timeout)
		s.logger.Warn().Str("opportunity_id", oppID).Dur("latency", latency).Msg("simulated execution timed out")
		return rec, nil
	case <-done.C:
	}

	if s.rand.Float64() >= s.successRateFor(vm.Impact) {
		rec.Status = StatusFailed
		rec.ActualProfit = decimal.Zero
		rec.FailureReason = "transaction reverted under simulated network conditions"
		s.logger.Warn().Str("opportunity_id", oppID).Str("impact", vm.Impact.String()).Msg("simulated execution failed")
		return rec, nil
	}

	rec.Status = StatusSuccess
	rec.SlippageBps = s.slippageFor(vm.Impact)
	slipFraction := decimal.NewFromInt(rec.SlippageBps).Div(decimal.NewFromInt(10_000))
	rec.ActualProfit = expectedProfit.Mul(decimal.NewFromInt(1).Sub(slipFraction))

	s.logger.Info().
		Str("opportunity_id", oppID).
		Str("trade_type", string(trade)).
		Str("expected_profit", expectedProfit.StringFixed(4)).
		Str("actual_profit", rec.ActualProfit.StringFixed(4)).
		Int64("slippage_bps", rec.SlippageBps).
		Int64("slippage_tolerance_bps", s.toleranceBps).
		Dur("latency", latency).
		Msg("simulated execution complete")
	return rec, nil
}

// Higher volatility widens the gap between blocks landing and worsens fill
// quality, so latency, failure odds and realized slippage all scale with the
// impact tier. At the default 100ms base the tiers land at 100/150/250/400ms.
func (s *Simulator) latencyFor(impact volatility.Impact) time.Duration {
	extra := time.Duration(0)
	switch impact {
	case volatility.ImpactModerate:
		extra = s.latencyBase / 2
	case volatility.ImpactHigh:
		extra = 3 * s.latencyBase / 2
	case volatility.ImpactExtreme:
		extra = 3 * s.latencyBase
	}
	return s.latencyBase + extra
}

func (s *Simulator) successRateFor(impact volatility.Impact) float64 {
	switch impact {
	case volatility.ImpactLow:
		return 0.95
	case volatility.ImpactModerate:
		return 0.85
	case volatility.ImpactHigh:
		return 0.70
	default:
		return 0.50
	}
}

// Slippage is a fixed 25bps floor plus a per-tier surcharge.
func (s *Simulator) slippageFor(impact volatility.Impact) int64 {
	extra := int64(0)
	switch impact {
	case volatility.ImpactModerate:
		extra = 25
	case volatility.ImpactHigh:
		extra = 75
	case volatility.ImpactExtreme:
		extra = 150
	}
	return 25 + extra
}
