package resilience

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// StrategyKind enumerates configured recovery strategies.
type StrategyKind int

const (
	StrategyRetry StrategyKind = iota
	StrategyFallback
	StrategySkip
	StrategyShutdown
)

// Strategy is a static recovery policy bound to an error classification.
type Strategy struct {
	Kind        StrategyKind
	MaxAttempts int
	Delay       time.Duration
	Source      string
	Level       zerolog.Level
	Reason      string
}

// ActionKind enumerates dispatched recovery actions.
type ActionKind int

const (
	ActionRetry ActionKind = iota
	ActionFallback
	ActionSkip
	ActionEscalate
	ActionShutdown
)

func (a ActionKind) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFallback:
		return "fallback"
	case ActionSkip:
		return "skip"
	case ActionShutdown:
		return "shutdown"
	default:
		return "escalate"
	}
}

// Action is the dispatched response to a classified error.
type Action struct {
	Kind   ActionKind
	Delay  time.Duration
	Source string
	Level  zerolog.Level
	Reason string
}

// Recovery maps error classifications to strategies and tracks
// per-classification occurrence counts for retry-exhaustion decisions.
type Recovery struct {
	mu         sync.Mutex
	counts     map[string]int
	strategies map[string]Strategy
}

// NewRecovery builds the static recovery table.
func NewRecovery() *Recovery {
	return &Recovery{
		counts: make(map[string]int),
		strategies: map[string]Strategy{
			"network_timeout": {
				Kind:        StrategyRetry,
				MaxAttempts: 5,
				Delay:       time.Second,
			},
			"invalid_price": {
				Kind:  StrategySkip,
				Level: zerolog.WarnLevel,
			},
			"contract_error": {
				Kind:   StrategyFallback,
				Source: "backup_pool",
			},
		},
	}
}

// HandleError classifies err, increments its occurrence counter, and returns
// the dispatched action. Unmapped classifications escalate; a Retry strategy
// escalates once its occurrence count exceeds the configured max attempts.
func (r *Recovery) HandleError(err error) Action {
	classification := Classify(err)

	r.mu.Lock()
	r.counts[classification]++
	count := r.counts[classification]
	strategy, ok := r.strategies[classification]
	r.mu.Unlock()

	if !ok {
		return Action{Kind: ActionEscalate}
	}

	switch strategy.Kind {
	case StrategyRetry:
		if count <= strategy.MaxAttempts {
			return Action{Kind: ActionRetry, Delay: strategy.Delay}
		}
		return Action{Kind: ActionEscalate}
	case StrategyFallback:
		return Action{Kind: ActionFallback, Source: strategy.Source}
	case StrategySkip:
		return Action{Kind: ActionSkip, Level: strategy.Level}
	case StrategyShutdown:
		return Action{Kind: ActionShutdown, Reason: strategy.Reason}
	default:
		return Action{Kind: ActionEscalate}
	}
}

// ResetCount zeroes the occurrence counter for a classification, letting a
// Retry strategy recover after a successful call.
func (r *Recovery) ResetCount(classification string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.counts, classification)
}

// Counts returns a copy of the occurrence counters for health reporting.
func (r *Recovery) Counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}
