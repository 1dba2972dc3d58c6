package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrStop signals that the loop should terminate cleanly.
var ErrStop = errors.New("scheduler: stop requested")

// TickFunc is invoked on every interval. Returning ErrStop ends the loop;
// any other error is logged and the loop continues.
type TickFunc func(ctx context.Context, now time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
}

// Scheduler drives the fixed-interval monitoring loop.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function at each interval until ctx is
// cancelled or the tick requests a stop. An in-flight tick always finishes
// before the loop exits.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.logger.Debug().Time("tick", now).Msg("executing scheduled tick")
			if err := tick(ctx, now.UTC()); err != nil {
				if errors.Is(err, ErrStop) {
					s.logger.Info().Msg("tick requested loop stop")
					return nil
				}
				s.logger.Error().Err(err).Msg("tick execution failed")
			}
		}
	}
}
