package volatility

import (
	"math"
	"testing"
	"time"
)

func TestWindowEvictsBeyondLookback(t *testing.T) {
	w := NewWindow(5 * time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 20; i++ {
		w.Add(base.Add(time.Duration(i)*time.Minute), 3000)
	}

	if w.Span() > 5*time.Minute {
		t.Fatalf("window span %v exceeds lookback", w.Span())
	}
	// Samples at minutes 14..19 remain (age ≤ 5m relative to minute 19).
	if w.Len() != 6 {
		t.Fatalf("expected 6 surviving samples, got %d", w.Len())
	}
}

func TestWindowDropsFutureSamples(t *testing.T) {
	w := NewWindow(time.Hour)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	w.Add(base.Add(time.Minute), 3000)
	dropped := w.Add(base, 3001)

	if dropped != 1 {
		t.Fatalf("expected 1 future-stamped sample dropped, got %d", dropped)
	}
	if w.Len() != 1 {
		t.Fatalf("expected only the new sample retained, got %d", w.Len())
	}
}

func TestVolatilityUndefinedBelowTenSamples(t *testing.T) {
	w := NewWindow(time.Hour)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 9; i++ {
		w.Add(base.Add(time.Duration(i)*time.Second), 3000+float64(i))
	}
	if _, ok := w.Volatility(); ok {
		t.Fatal("volatility must be undefined with 9 samples")
	}
	if _, ok := w.VolatilityPct(); ok {
		t.Fatal("volatility percentage must be undefined with 9 samples")
	}

	w.Add(base.Add(9*time.Second), 3009)
	if _, ok := w.Volatility(); !ok {
		t.Fatal("volatility must be defined with 10 samples")
	}
}

func TestUndefinedIsDistinctFromZeroObserved(t *testing.T) {
	w := NewWindow(time.Hour)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Ten identical prices: 0% observed volatility, but defined.
	for i := 0; i < 10; i++ {
		w.Add(base.Add(time.Duration(i)*time.Second), 3000)
	}
	pct, ok := w.VolatilityPct()
	if !ok {
		t.Fatal("constant prices should still yield a defined volatility")
	}
	if pct != 0 {
		t.Fatalf("constant prices should yield 0%%, got %v", pct)
	}
}

func TestPopulationStandardDeviation(t *testing.T) {
	w := NewWindow(time.Hour)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Alternating 2990/3010 around a 3000 mean: population stddev is 10.
	for i := 0; i < 10; i++ {
		price := 2990.0
		if i%2 == 1 {
			price = 3010.0
		}
		w.Add(base.Add(time.Duration(i)*time.Second), price)
	}

	stddev, ok := w.Volatility()
	if !ok {
		t.Fatal("volatility should be defined")
	}
	if math.Abs(stddev-10.0) > 1e-9 {
		t.Fatalf("expected population stddev 10, got %v", stddev)
	}

	pct, _ := w.VolatilityPct()
	if math.Abs(pct-10.0/3000*100) > 1e-9 {
		t.Fatalf("expected %.6f%%, got %v", 10.0/3000*100, pct)
	}
}
