package volatility

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Trend classifies how volatility is evolving across timeframes.
type Trend int

const (
	TrendIncreasing Trend = iota
	TrendDecreasing
	TrendStable
	TrendVolatile
)

func (t Trend) String() string {
	switch t {
	case TrendIncreasing:
		return "Increasing"
	case TrendDecreasing:
		return "Decreasing"
	case TrendStable:
		return "Stable"
	default:
		return "Volatile"
	}
}

// Impact classifies how disruptive current variance is to strategy decisions.
type Impact int

const (
	ImpactLow Impact = iota
	ImpactModerate
	ImpactHigh
	ImpactExtreme
)

func (i Impact) String() string {
	switch i {
	case ImpactLow:
		return "Low"
	case ImpactModerate:
		return "Moderate"
	case ImpactHigh:
		return "High"
	default:
		return "Extreme"
	}
}

// Urgency recommends how quickly signals should be acted on.
type Urgency int

const (
	UrgencyFast Urgency = iota
	UrgencyNormal
	UrgencyCautious
)

func (u Urgency) String() string {
	switch u {
	case UrgencyFast:
		return "Fast"
	case UrgencyCautious:
		return "Cautious"
	default:
		return "Normal"
	}
}

// Adjustments are recommended strategy knobs keyed off the impact tier.
type Adjustments struct {
	SpreadMultiplier   decimal.Decimal
	PositionSizeFactor decimal.Decimal
	Urgency            Urgency
}

// Metrics is an immutable snapshot derived from the three windows. Undefined
// window volatility degrades to zero here; callers needing the distinction
// query the windows directly.
type Metrics struct {
	ShortTerm  decimal.Decimal
	MediumTerm decimal.Decimal
	LongTerm   decimal.Decimal
	Trend      Trend
	Impact     Impact
	Adjust     Adjustments
}

// Default lookbacks for the three timeframes.
const (
	ShortLookback  = 5 * time.Minute
	MediumLookback = 30 * time.Minute
	LongLookback   = time.Hour
)

// Tracker feeds prices into short/medium/long windows and derives Metrics.
// All operations are serialized under a mutex; Metrics returns value copies.
type Tracker struct {
	mu     sync.Mutex
	short  *Window
	medium *Window
	long   *Window
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker builds a tracker with the default 5m/30m/1h lookbacks.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		short:  NewWindow(ShortLookback),
		medium: NewWindow(MediumLookback),
		long:   NewWindow(LongLookback),
		logger: logger.With().Str("component", "volatility_tracker").Logger(),
		now:    time.Now,
	}
}

// AddPrice pushes a sample into all three windows.
func (t *Tracker) AddPrice(price decimal.Decimal) {
	p, _ := price.Float64()
	now := t.now().UTC()

	t.mu.Lock()
	dropped := t.short.Add(now, p)
	dropped += t.medium.Add(now, p)
	dropped += t.long.Add(now, p)
	t.mu.Unlock()

	if dropped > 0 {
		t.logger.Warn().Int("dropped", dropped).Msg("dropped future-stamped volatility samples")
	}
}

// SampleCounts reports in-window sample counts for health reporting.
func (t *Tracker) SampleCounts() (short, medium, long int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.short.Len(), t.medium.Len(), t.long.Len()
}

// Metrics derives a fresh snapshot. Idempotent with respect to AddPrice.
func (t *Tracker) Metrics() Metrics {
	t.mu.Lock()
	shortVol := pctOrZero(t.short)
	mediumVol := pctOrZero(t.medium)
	longVol := pctOrZero(t.long)
	t.mu.Unlock()

	trend := classifyTrend(shortVol, mediumVol, longVol)
	impact := classifyImpact(shortVol)

	return Metrics{
		ShortTerm:  shortVol,
		MediumTerm: mediumVol,
		LongTerm:   longVol,
		Trend:      trend,
		Impact:     impact,
		Adjust: Adjustments{
			SpreadMultiplier:   spreadMultiplier(impact),
			PositionSizeFactor: positionSizeFactor(impact),
			Urgency:            urgency(impact, trend),
		},
	}
}

func pctOrZero(w *Window) decimal.Decimal {
	pct, ok := w.VolatilityPct()
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromFloat(pct)
}

var (
	ratioHigh = decimal.NewFromFloat(1.2)
	ratioLow  = decimal.NewFromFloat(0.8)
)

func classifyTrend(short, medium, long decimal.Decimal) Trend {
	switch {
	case short.GreaterThan(medium.Mul(ratioHigh)) && medium.GreaterThan(long.Mul(ratioHigh)):
		return TrendIncreasing
	case short.LessThan(medium.Mul(ratioLow)) && medium.LessThan(long.Mul(ratioLow)):
		return TrendDecreasing
	case short.Sub(long).Abs().LessThan(decimal.NewFromInt(1)):
		return TrendStable
	default:
		return TrendVolatile
	}
}

func classifyImpact(short decimal.Decimal) Impact {
	switch {
	case short.LessThan(decimal.NewFromInt(2)):
		return ImpactLow
	case short.LessThan(decimal.NewFromInt(5)):
		return ImpactModerate
	case short.LessThan(decimal.NewFromInt(10)):
		return ImpactHigh
	default:
		return ImpactExtreme
	}
}

func spreadMultiplier(i Impact) decimal.Decimal {
	switch i {
	case ImpactLow:
		return decimal.NewFromFloat(1.0)
	case ImpactModerate:
		return decimal.NewFromFloat(1.5)
	case ImpactHigh:
		return decimal.NewFromFloat(2.0)
	default:
		return decimal.NewFromFloat(3.0)
	}
}

func positionSizeFactor(i Impact) decimal.Decimal {
	switch i {
	case ImpactLow:
		return decimal.NewFromFloat(1.0)
	case ImpactModerate:
		return decimal.NewFromFloat(0.8)
	case ImpactHigh:
		return decimal.NewFromFloat(0.5)
	default:
		return decimal.NewFromFloat(0.25)
	}
}

func urgency(i Impact, t Trend) Urgency {
	switch {
	case i == ImpactExtreme:
		return UrgencyCautious
	case i == ImpactHigh && t == TrendIncreasing:
		return UrgencyCautious
	case t == TrendStable:
		return UrgencyFast
	default:
		return UrgencyNormal
	}
}
