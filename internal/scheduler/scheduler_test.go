package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewPanicsOnNonPositiveInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero interval")
		}
	}()
	New(Options{Interval: 0}, zerolog.Nop())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	var ticks atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, now time.Time) error {
			if ticks.Add(1) >= 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after cancel")
	}
	if got := ticks.Load(); got < 3 {
		t.Fatalf("got %d ticks, want at least 3", got)
	}
}

func TestRunStopsOnErrStop(t *testing.T) {
	s := New(Options{Interval: time.Millisecond}, zerolog.Nop())

	var ticks int
	err := s.Run(context.Background(), func(ctx context.Context, now time.Time) error {
		ticks++
		if ticks == 2 {
			return ErrStop
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run returned %v, want nil after ErrStop", err)
	}
	if ticks != 2 {
		t.Fatalf("got %d ticks, want 2", ticks)
	}
}

func TestRunContinuesAfterTickError(t *testing.T) {
	s := New(Options{Interval: time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks int
	_ = s.Run(ctx, func(ctx context.Context, now time.Time) error {
		ticks++
		if ticks == 1 {
			return errors.New("transient")
		}
		cancel()
		return nil
	})
	if ticks < 2 {
		t.Fatalf("loop stopped after error, got %d ticks", ticks)
	}
}

func TestRunHonorsStartupDelayCancellation(t *testing.T) {
	s := New(Options{Interval: time.Millisecond, StartupDelay: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, func(ctx context.Context, now time.Time) error {
		t.Fatal("tick must not run during startup delay")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}
