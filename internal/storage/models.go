package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpportunityRecord is a persisted arbitrage detection.
type OpportunityRecord struct {
	ID             string
	DetectedAt     time.Time
	Pool           string
	Direction      string
	PoolPrice      decimal.Decimal
	ReferencePrice decimal.Decimal
	DivergencePct  decimal.Decimal
	TradeSizeETH   decimal.Decimal
	GrossProfitUSD decimal.Decimal
	NetProfitUSD   decimal.Decimal
	ROIPct         decimal.Decimal
	Passed         bool
	Warnings       []string
	CreatedAt      time.Time
}

// SignalRecord is a persisted market-making signal.
type SignalRecord struct {
	ID              string
	GeneratedAt     time.Time
	Pool            string
	FairValue       decimal.Decimal
	PoolPrice       decimal.Decimal
	TargetBid       decimal.Decimal
	TargetAsk       decimal.Decimal
	SpreadBps       int64
	PositionSizeETH decimal.Decimal
	Strategy        string
	Priority        string
	OverallRisk     decimal.Decimal
	Rationale       string
	CreatedAt       time.Time
}

// ExecutionRecord is a persisted simulated execution outcome.
type ExecutionRecord struct {
	ID             int64
	OpportunityID  string
	Network        string
	TradeType      string
	Status         string
	ExpectedProfit decimal.Decimal
	ActualProfit   decimal.Decimal
	SlippageBps    int64
	GasPriceGwei   int64
	LatencyMs      int64
	SimulatedAt    time.Time
	FailureReason  *string
	CreatedAt      time.Time
}
