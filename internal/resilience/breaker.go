package resilience

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BreakerState is a snapshot-consistent copy of the circuit breaker state.
type BreakerState struct {
	Open              bool
	ConsecutiveErrors int
	OpenedAt          time.Time
}

// CircuitBreaker is the single process-wide gate consulted once per tick.
// Transitions are serialized under a mutex; readers receive copies.
type CircuitBreaker struct {
	mu          sync.Mutex
	consecutive int
	open        bool
	openedAt    time.Time

	threshold int
	cooldown  time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewCircuitBreaker constructs a closed breaker.
func NewCircuitBreaker(threshold int, cooldown time.Duration, logger zerolog.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		logger:    logger.With().Str("component", "circuit_breaker").Logger(),
		now:       time.Now,
	}
}

// RecordSuccess resets the error counter and closes the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutive = 0
	cb.open = false
}

// RecordError increments the consecutive error counter and opens the breaker
// once the threshold is reached. Returns whether the breaker is now open.
func (cb *CircuitBreaker) RecordError() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutive++
	if cb.consecutive >= cb.threshold {
		cb.open = true
		cb.openedAt = cb.now()
		cb.logger.Error().Int("consecutive_errors", cb.consecutive).Msg("circuit breaker OPEN")
		return true
	}
	return false
}

// CanProceed returns true when the breaker is closed. An open breaker
// auto-resets once the cooldown has elapsed since it opened.
func (cb *CircuitBreaker) CanProceed() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open {
		return true
	}
	if cb.now().Sub(cb.openedAt) > cb.cooldown {
		cb.logger.Info().Msg("circuit breaker cooldown complete, resetting")
		cb.open = false
		cb.consecutive = 0
		return true
	}
	return false
}

// CooldownRemaining reports how long until an open breaker resets.
func (cb *CircuitBreaker) CooldownRemaining() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.open {
		return 0
	}
	remaining := cb.cooldown - cb.now().Sub(cb.openedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Snapshot returns a self-consistent copy for health reporting.
func (cb *CircuitBreaker) Snapshot() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerState{
		Open:              cb.open,
		ConsecutiveErrors: cb.consecutive,
		OpenedAt:          cb.openedAt,
	}
}
