package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertOpportunitySQL = `INSERT INTO opportunities (
        id,
        detected_at,
        pool,
        direction,
        pool_price,
        reference_price,
        divergence_pct,
        trade_size_eth,
        gross_profit_usd,
        net_profit_usd,
        roi_pct,
        passed,
        warnings
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
    )
    ON CONFLICT (id) DO NOTHING;`

	listRecentOpportunitiesSQL = `SELECT
        id,
        detected_at,
        pool,
        direction,
        pool_price,
        reference_price,
        divergence_pct,
        trade_size_eth,
        gross_profit_usd,
        net_profit_usd,
        roi_pct,
        passed,
        warnings,
        created_at
    FROM opportunities
    ORDER BY detected_at DESC
    LIMIT $1;`

	countOpportunitiesSQL = `SELECT COUNT(*) FROM opportunities;`

	insertSignalSQL = `INSERT INTO signals (
        id,
        generated_at,
        pool,
        fair_value,
        pool_price,
        target_bid,
        target_ask,
        spread_bps,
        position_size_eth,
        strategy,
        priority,
        overall_risk,
        rationale
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
    )
    ON CONFLICT (id) DO NOTHING;`

	listRecentSignalsSQL = `SELECT
        id,
        generated_at,
        pool,
        fair_value,
        pool_price,
        target_bid,
        target_ask,
        spread_bps,
        position_size_eth,
        strategy,
        priority,
        overall_risk,
        rationale,
        created_at
    FROM signals
    ORDER BY generated_at DESC
    LIMIT $1;`

	insertExecutionSQL = `INSERT INTO executions (
        opportunity_id,
        network,
        trade_type,
        status,
        expected_profit_usd,
        actual_profit_usd,
        slippage_bps,
        gas_price_gwei,
        latency_ms,
        simulated_at,
        failure_reason
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    );`

	listRecentExecutionsSQL = `SELECT
        id,
        opportunity_id,
        network,
        trade_type,
        status,
        expected_profit_usd,
        actual_profit_usd,
        slippage_bps,
        gas_price_gwei,
        latency_ms,
        simulated_at,
        failure_reason,
        created_at
    FROM executions
    ORDER BY simulated_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// OpportunityStore defines persistence for arbitrage detections.
type OpportunityStore interface {
	InsertOpportunity(ctx context.Context, rec OpportunityRecord) error
	ListRecentOpportunities(ctx context.Context, limit int) ([]OpportunityRecord, error)
	CountOpportunities(ctx context.Context) (int64, error)
}

// SignalStore defines persistence for market-making signals.
type SignalStore interface {
	InsertSignal(ctx context.Context, rec SignalRecord) error
	ListRecentSignals(ctx context.Context, limit int) ([]SignalRecord, error)
}

// ExecutionStore defines persistence for simulated executions.
type ExecutionStore interface {
	InsertExecution(ctx context.Context, rec ExecutionRecord) error
	ListRecentExecutions(ctx context.Context, limit int) ([]ExecutionRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to opportunities, signals and executions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertOpportunity persists a detected opportunity.
func (s *Store) InsertOpportunity(ctx context.Context, rec OpportunityRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertOpportunitySQL,
		rec.ID,
		rec.DetectedAt,
		rec.Pool,
		rec.Direction,
		rec.PoolPrice.String(),
		rec.ReferencePrice.String(),
		rec.DivergencePct.String(),
		rec.TradeSizeETH.String(),
		rec.GrossProfitUSD.String(),
		rec.NetProfitUSD.String(),
		rec.ROIPct.String(),
		rec.Passed,
		rec.Warnings,
	)
	if execErr != nil {
		return fmt.Errorf("insert opportunity: %w", execErr)
	}
	return nil
}

// ListRecentOpportunities lists the most recent detections.
func (s *Store) ListRecentOpportunities(ctx context.Context, limit int) ([]OpportunityRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentOpportunitiesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent opportunities: %w", queryErr)
	}
	defer rows.Close()

	recs := make([]OpportunityRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanOpportunity(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		recs = append(recs, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return recs, nil
}

// CountOpportunities counts stored opportunities.
func (s *Store) CountOpportunities(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countOpportunitiesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count opportunities: %w", scanErr)
	}
	return count, nil
}

// InsertSignal persists a market-making signal.
func (s *Store) InsertSignal(ctx context.Context, rec SignalRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertSignalSQL,
		rec.ID,
		rec.GeneratedAt,
		rec.Pool,
		rec.FairValue.String(),
		rec.PoolPrice.String(),
		rec.TargetBid.String(),
		rec.TargetAsk.String(),
		rec.SpreadBps,
		rec.PositionSizeETH.String(),
		rec.Strategy,
		rec.Priority,
		rec.OverallRisk.String(),
		rec.Rationale,
	)
	if execErr != nil {
		return fmt.Errorf("insert signal: %w", execErr)
	}
	return nil
}

// ListRecentSignals lists the most recent signals.
func (s *Store) ListRecentSignals(ctx context.Context, limit int) ([]SignalRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSignalsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent signals: %w", queryErr)
	}
	defer rows.Close()

	recs := make([]SignalRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanSignal(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		recs = append(recs, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return recs, nil
}

// InsertExecution persists a simulated execution outcome.
func (s *Store) InsertExecution(ctx context.Context, rec ExecutionRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var reason interface{}
	if rec.FailureReason != nil {
		reason = *rec.FailureReason
	}

	_, execErr := pool.Exec(ctx, insertExecutionSQL,
		rec.OpportunityID,
		rec.Network,
		rec.TradeType,
		rec.Status,
		rec.ExpectedProfit.String(),
		rec.ActualProfit.String(),
		rec.SlippageBps,
		rec.GasPriceGwei,
		rec.LatencyMs,
		rec.SimulatedAt,
		reason,
	)
	if execErr != nil {
		return fmt.Errorf("insert execution: %w", execErr)
	}
	return nil
}

// ListRecentExecutions lists the most recent execution records.
func (s *Store) ListRecentExecutions(ctx context.Context, limit int) ([]ExecutionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentExecutionsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent executions: %w", queryErr)
	}
	defer rows.Close()

	recs := make([]ExecutionRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanExecution(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		recs = append(recs, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return recs, nil
}

func scanOpportunity(rows pgx.Rows) (OpportunityRecord, error) {
	var (
		rec       OpportunityRecord
		poolPrice string
		refPrice  string
		diverg    string
		size      string
		gross     string
		net       string
		roi       string
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.DetectedAt,
		&rec.Pool,
		&rec.Direction,
		&poolPrice,
		&refPrice,
		&diverg,
		&size,
		&gross,
		&net,
		&roi,
		&rec.Passed,
		&rec.Warnings,
		&rec.CreatedAt,
	); err != nil {
		return OpportunityRecord{}, err
	}

	fields := []struct {
		dst  *decimal.Decimal
		src  string
		name string
	}{
		{&rec.PoolPrice, poolPrice, "pool price"},
		{&rec.ReferencePrice, refPrice, "reference price"},
		{&rec.DivergencePct, diverg, "divergence pct"},
		{&rec.TradeSizeETH, size, "trade size"},
		{&rec.GrossProfitUSD, gross, "gross profit"},
		{&rec.NetProfitUSD, net, "net profit"},
		{&rec.ROIPct, roi, "roi pct"},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.src)
		if err != nil {
			return OpportunityRecord{}, fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return rec, nil
}

func scanSignal(rows pgx.Rows) (SignalRecord, error) {
	var (
		rec  SignalRecord
		fair string
		pp   string
		bid  string
		ask  string
		size string
		risk string
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.GeneratedAt,
		&rec.Pool,
		&fair,
		&pp,
		&bid,
		&ask,
		&rec.SpreadBps,
		&size,
		&rec.Strategy,
		&rec.Priority,
		&risk,
		&rec.Rationale,
		&rec.CreatedAt,
	); err != nil {
		return SignalRecord{}, err
	}

	fields := []struct {
		dst  *decimal.Decimal
		src  string
		name string
	}{
		{&rec.FairValue, fair, "fair value"},
		{&rec.PoolPrice, pp, "pool price"},
		{&rec.TargetBid, bid, "target bid"},
		{&rec.TargetAsk, ask, "target ask"},
		{&rec.PositionSizeETH, size, "position size"},
		{&rec.OverallRisk, risk, "overall risk"},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.src)
		if err != nil {
			return SignalRecord{}, fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return rec, nil
}

func scanExecution(rows pgx.Rows) (ExecutionRecord, error) {
	var (
		rec      ExecutionRecord
		expected string
		actual   string
		reason   sql.NullString
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.OpportunityID,
		&rec.Network,
		&rec.TradeType,
		&rec.Status,
		&expected,
		&actual,
		&rec.SlippageBps,
		&rec.GasPriceGwei,
		&rec.LatencyMs,
		&rec.SimulatedAt,
		&reason,
		&rec.CreatedAt,
	); err != nil {
		return ExecutionRecord{}, err
	}

	var err error
	if rec.ExpectedProfit, err = decimal.NewFromString(expected); err != nil {
		return ExecutionRecord{}, fmt.Errorf("parse expected profit: %w", err)
	}
	if rec.ActualProfit, err = decimal.NewFromString(actual); err != nil {
		return ExecutionRecord{}, fmt.Errorf("parse actual profit: %w", err)
	}
	if reason.Valid {
		msg := reason.String
		rec.FailureReason = &msg
	}
	return rec, nil
}
