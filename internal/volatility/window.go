// Package volatility maintains multi-timeframe time-windowed price series
// and derives trend, impact, and strategy adjustment recommendations.
package volatility

import (
	"math"
	"time"
)

type sample struct {
	ts    time.Time
	price float64
}

// minSamples is the population size below which the standard deviation is
// considered undefined.
const minSamples = 10

// Window is an ordered, time-bounded price series limited to a fixed
// lookback. Samples are appended in caller order; eviction only removes from
// the oldest end. Not safe for concurrent use; the Tracker serializes access.
type Window struct {
	lookback time.Duration
	samples  []sample
}

// NewWindow constructs an empty window with the given lookback.
func NewWindow(lookback time.Duration) *Window {
	return &Window{lookback: lookback}
}

// Add appends a sample and evicts entries older than the lookback. A sample
// already in the window whose timestamp lies in the future relative to now is
// evicted as clock skew. Returns the number of future-stamped samples dropped.
func (w *Window) Add(now time.Time, price float64) int {
	w.samples = append(w.samples, sample{ts: now, price: price})

	dropped := 0
	for len(w.samples) > 0 {
		front := w.samples[0]
		if front.ts.After(now) {
			w.samples = w.samples[1:]
			dropped++
			continue
		}
		if now.Sub(front.ts) > w.lookback {
			w.samples = w.samples[1:]
			continue
		}
		break
	}
	return dropped
}

// Len returns the number of in-window samples.
func (w *Window) Len() int { return len(w.samples) }

// Span returns the duration covered by the oldest and newest samples.
func (w *Window) Span() time.Duration {
	if len(w.samples) < 2 {
		return 0
	}
	return w.samples[len(w.samples)-1].ts.Sub(w.samples[0].ts)
}

// Volatility returns the population standard deviation of in-window prices.
// The second return is false while the window holds fewer than 10 samples.
func (w *Window) Volatility() (float64, bool) {
	if len(w.samples) < minSamples {
		return 0, false
	}

	mean := w.mean()
	variance := 0.0
	for _, s := range w.samples {
		d := s.price - mean
		variance += d * d
	}
	variance /= float64(len(w.samples))
	return math.Sqrt(variance), true
}

// VolatilityPct returns the standard deviation as a percentage of the
// in-window mean. Undefined below 10 samples or with a non-positive mean.
func (w *Window) VolatilityPct() (float64, bool) {
	stddev, ok := w.Volatility()
	if !ok {
		return 0, false
	}
	mean := w.mean()
	if mean <= 0 {
		return 0, false
	}
	return stddev / mean * 100, true
}

func (w *Window) mean() float64 {
	sum := 0.0
	for _, s := range w.samples {
		sum += s.price
	}
	return sum / float64(len(w.samples))
}
