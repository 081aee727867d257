package broker

import (
	"errors"
	"fmt"
	"time"
)

// ConnectionError marks transient transport failures. The engine retries
// these with backoff before counting them against its error threshold.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: broker not connected", e.Op)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// OrderRejectedError is a business-rule rejection. It carries the rejected
// order, is never retried and never fatal.
type OrderRejectedError struct {
	Reason string
	Order  *Order
}

func (e *OrderRejectedError) Error() string {
	return "order rejected: " + e.Reason
}

// InsufficientFundsError is fatal for the session; the engine halts rather
// than trade unboundedly against an empty account.
type InsufficientFundsError struct {
	Need float64
	Have float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %.2f, have %.2f", e.Need, e.Have)
}

// RateLimitError carries the broker-supplied retry interval. The engine
// sleeps it off and continues without counting an error.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// PriceUnavailableError means no market price and no limit price were
// available to resolve a fill. A caller/configuration problem, not
// retryable.
type PriceUnavailableError struct {
	Symbol string
}

func (e *PriceUnavailableError) Error() string {
	return "no price available for " + e.Symbol
}

func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

func IsOrderRejected(err error) bool {
	var re *OrderRejectedError
	return errors.As(err, &re)
}

func IsInsufficientFunds(err error) bool {
	var fe *InsufficientFundsError
	return errors.As(err, &fe)
}

func IsPriceUnavailable(err error) bool {
	var pe *PriceUnavailableError
	return errors.As(err, &pe)
}

// AsRateLimit extracts a RateLimitError if err is one.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
