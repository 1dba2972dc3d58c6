package resilience

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, zerolog.Nop())

	if !cb.CanProceed() {
		t.Fatal("new breaker should be closed")
	}

	if cb.RecordError() {
		t.Fatal("breaker should not open after 1 error")
	}
	if cb.RecordError() {
		t.Fatal("breaker should not open after 2 errors")
	}
	if !cb.RecordError() {
		t.Fatal("breaker should open after 3 errors")
	}
	if cb.CanProceed() {
		t.Fatal("open breaker must not proceed before cooldown")
	}
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, zerolog.Nop())

	cb.RecordError()
	cb.RecordError()
	cb.RecordSuccess()
	cb.RecordError()
	cb.RecordError()

	if !cb.CanProceed() {
		t.Fatal("intervening success should have reset the counter")
	}

	state := cb.Snapshot()
	if state.Open {
		t.Fatal("breaker should be closed")
	}
	if state.ConsecutiveErrors != 2 {
		t.Fatalf("expected 2 consecutive errors, got %d", state.ConsecutiveErrors)
	}
}

func TestBreakerCooldownReset(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute, zerolog.Nop())
	current := time.Now()
	cb.now = func() time.Time { return current }

	cb.RecordError()
	if !cb.RecordError() {
		t.Fatal("breaker should open at threshold")
	}
	if cb.CanProceed() {
		t.Fatal("breaker should stay open within cooldown")
	}

	current = current.Add(time.Minute + time.Second)
	if !cb.CanProceed() {
		t.Fatal("breaker should reset after cooldown elapses")
	}

	state := cb.Snapshot()
	if state.ConsecutiveErrors != 0 {
		t.Fatalf("reset should zero the counter, got %d", state.ConsecutiveErrors)
	}
	if state.Open {
		t.Fatal("breaker should be closed after reset")
	}
}

func TestBreakerCooldownRemaining(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute, zerolog.Nop())
	current := time.Now()
	cb.now = func() time.Time { return current }

	if got := cb.CooldownRemaining(); got != 0 {
		t.Fatalf("closed breaker should report zero cooldown, got %v", got)
	}

	cb.RecordError()
	current = current.Add(40 * time.Second)
	if got := cb.CooldownRemaining(); got != 20*time.Second {
		t.Fatalf("expected 20s remaining, got %v", got)
	}
}
