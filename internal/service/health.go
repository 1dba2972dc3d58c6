package service

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stats accumulates per-session counters. The tick loop is the only writer.
type Stats struct {
	Ticks          int64
	Opportunities  int64
	Profitable     int64
	TotalProfitUSD decimal.Decimal
	Signals        int64
	Executions     int64
	TotalErrors    int64
	ErrorCounts    map[string]int64
}

func newStats() Stats {
	return Stats{
		TotalProfitUSD: decimal.Zero,
		ErrorCounts:    make(map[string]int64),
	}
}

func (st Stats) clone() Stats {
	out := st
	out.ErrorCounts = make(map[string]int64, len(st.ErrorCounts))
	for k, v := range st.ErrorCounts {
		out.ErrorCounts[k] = v
	}
	return out
}

// Stats returns a copy of the session counters.
func (s *Service) Stats() Stats {
	return s.stats.clone()
}

// reportHealth logs a snapshot of loop state, data freshness, and session
// counters. An exceeded error ceiling is a warning, never a stop condition.
func (s *Service) reportHealth(now time.Time) {
	short, medium, long := s.tracker.SampleCounts()
	breaker := s.breaker.Snapshot()

	event := s.logger.Info().
		Dur("uptime", now.Sub(s.startedAt)).
		Int64("ticks", s.stats.Ticks).
		Int64("opportunities", s.stats.Opportunities).
		Int64("profitable", s.stats.Profitable).
		Str("total_profit_usd", s.stats.TotalProfitUSD.StringFixed(2)).
		Int64("signals", s.stats.Signals).
		Int64("executions", s.stats.Executions).
		Int64("total_errors", s.stats.TotalErrors).
		Bool("breaker_open", breaker.Open).
		Int("breaker_consecutive_errors", breaker.ConsecutiveErrors).
		Int("reference_failures", s.consecutiveRefFailures).
		Int("vol_samples_short", short).
		Int("vol_samples_medium", medium).
		Int("vol_samples_long", long)
	if !s.lastReferenceAt.IsZero() {
		event = event.Time("last_reference_at", s.lastReferenceAt).
			Str("last_reference_price", s.lastReference.StringFixed(2))
	}
	event.Msg("health report")

	for classification, count := range s.recovery.Counts() {
		s.logger.Debug().Str("classification", classification).Int("count", count).
			Msg("open recovery counter")
	}

	if s.maxTotalErrors > 0 && s.stats.TotalErrors > int64(s.maxTotalErrors) {
		s.logger.Warn().
			Int64("total_errors", s.stats.TotalErrors).
			Int("ceiling", s.maxTotalErrors).
			Msg("session error count exceeds configured ceiling")
	}
}
