package resilience

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig tunes the exponential-backoff retry executor.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
}

// DefaultRetryConfig mirrors the defaults used for most upstream calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		ExponentialBase: 2.0,
	}
}

// Retry runs op until it succeeds or cfg.MaxAttempts is reached. The
// operation always runs at least once. On exhaustion the last error is
// wrapped into a terminal network error carrying the attempt count.
func Retry[T any](ctx context.Context, cfg RetryConfig, label string, logger zerolog.Logger, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := cfg.InitialDelay
	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= attempts {
			return zero, NetworkErr(
				fmt.Sprintf("%s failed after %d attempts", label, attempt),
				err, attempt,
			)
		}

		logger.Warn().
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Str("operation", label).
			Dur("delay", delay).
			Err(err).
			Msg("attempt failed, retrying")

		if err := sleepCtx(ctx, jittered(delay)); err != nil {
			return zero, NetworkErr(fmt.Sprintf("%s cancelled during backoff", label), err, attempt)
		}
		delay = nextDelay(delay, cfg)
	}
}

// nextDelay grows the backoff geometrically, capped at MaxDelay.
func nextDelay(current time.Duration, cfg RetryConfig) time.Duration {
	base := cfg.ExponentialBase
	if base <= 1 {
		base = 2.0
	}
	grown := time.Duration(float64(current) * base)
	if cfg.MaxDelay > 0 && grown > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return grown
}

// jittered applies ±5% symmetric jitter after capping.
func jittered(d time.Duration) time.Duration {
	jitter := time.Duration(float64(d) * 0.1 * (rand.Float64() - 0.5))
	return d + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
