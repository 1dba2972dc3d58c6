// Package resilience implements the failure-handling layer: a typed error
// taxonomy, a process-wide circuit breaker, retry with exponential backoff,
// and a classification-driven recovery table.
package resilience

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies an error into the closed taxonomy.
type Kind int

const (
	KindNetwork Kind = iota
	KindContract
	KindPriceValidation
	KindInsufficientLiquidity
	KindDataParsing
	KindCircuitBreakerOpen
)

// Classification returns the recovery-table key for the kind.
func (k Kind) Classification() string {
	switch k {
	case KindNetwork:
		return "network_timeout"
	case KindContract:
		return "contract_error"
	case KindPriceValidation:
		return "invalid_price"
	case KindInsufficientLiquidity:
		return "low_liquidity"
	case KindDataParsing:
		return "parse_error"
	case KindCircuitBreakerOpen:
		return "circuit_breaker"
	default:
		return "unknown"
	}
}

func (k Kind) String() string { return k.Classification() }

// Error is the typed error carried through classified failure paths.
type Error struct {
	Kind       Kind
	Message    string
	Cause      error
	RetryCount int

	// Contract errors carry the offending contract address, price validation
	// errors the rejected value, breaker errors the remaining cooldown.
	Contract          string
	Source            string
	Price             decimal.Decimal
	Pool              string
	CooldownRemaining time.Duration
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("network error: %s", e.Message)
	case KindContract:
		return fmt.Sprintf("contract interaction failed: %s - %s", e.Contract, e.Message)
	case KindPriceValidation:
		return fmt.Sprintf("price validation failed: %s price $%s is invalid - %s", e.Source, e.Price.String(), e.Message)
	case KindInsufficientLiquidity:
		return fmt.Sprintf("insufficient liquidity: %s - %s", e.Pool, e.Message)
	case KindDataParsing:
		return fmt.Sprintf("data parsing error: %s", e.Message)
	case KindCircuitBreakerOpen:
		return fmt.Sprintf("circuit breaker active: %s", e.Message)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NetworkErr wraps a transient failure after retries were exhausted.
func NetworkErr(message string, cause error, retryCount int) *Error {
	return &Error{Kind: KindNetwork, Message: message, Cause: cause, RetryCount: retryCount}
}

// ContractErr marks a semantic failure interpreting an on-chain call.
func ContractErr(contract, message string, cause error) *Error {
	return &Error{Kind: KindContract, Contract: contract, Message: message, Cause: cause}
}

// PriceValidationErr rejects a price outside the accepted domain.
func PriceValidationErr(source string, price decimal.Decimal, reason string) *Error {
	return &Error{Kind: KindPriceValidation, Source: source, Price: price, Message: reason}
}

// LiquidityErr marks a pool with insufficient reserves.
func LiquidityErr(pool, details string) *Error {
	return &Error{Kind: KindInsufficientLiquidity, Pool: pool, Message: details}
}

// ParseErr marks unparseable upstream data.
func ParseErr(context string, cause error) *Error {
	return &Error{Kind: KindDataParsing, Message: context, Cause: cause}
}

// BreakerOpenErr signals self-imposed backpressure.
func BreakerOpenErr(reason string, cooldownRemaining time.Duration) *Error {
	return &Error{Kind: KindCircuitBreakerOpen, Message: reason, CooldownRemaining: cooldownRemaining}
}

// Classify maps an error to its recovery-table key. Errors outside the
// taxonomy classify as "unknown", which the recovery table escalates.
func Classify(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.Classification()
	}
	return "unknown"
}

// IsKind reports whether err carries the given classification kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
