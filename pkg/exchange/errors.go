package exchange

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies exchange failures so callers can decide whether to wait,
// retry, or give up on the current decision.
type ErrorKind int

const (
	// KindUnknown is reported for errors that did not originate from an exchange call.
	KindUnknown ErrorKind = iota
	// KindRateLimited means the venue throttled or banned the caller.
	KindRateLimited
	// KindNetwork covers transport failures, timeouts and 5xx responses after retries.
	KindNetwork
	// KindInvalidOrder is a permanent rejection of order parameters.
	KindInvalidOrder
	// KindInsufficientBalance is a permanent rejection for lack of margin.
	KindInsufficientBalance
	// KindAPI is any other provider error. Not retryable.
	KindAPI
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindNetwork:
		return "network"
	case KindInvalidOrder:
		return "invalid_order"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

// ErrUnexpectedShape is returned by endpoint helpers when a response does not
// have the top-level JSON type they require.
var ErrUnexpectedShape = errors.New("exchange: unexpected response shape")

// Error is the tagged error value returned by exchange clients.
type Error struct {
	Kind       ErrorKind
	Status     int
	Code       int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("exchange %s (http %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("exchange %s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the error kind from err, or KindUnknown when err is not an *Error.
func KindOf(err error) ErrorKind {
	var exErr *Error
	if errors.As(err, &exErr) {
		return exErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the provided kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTransient reports whether waiting and retrying the same request may succeed.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindNetwork:
		return true
	default:
		return false
	}
}

// NewError is a small constructor used by providers.
func NewError(kind ErrorKind, status int, message string, cause error) *Error {
	return &Error{Kind: kind, Status: status, Message: message, Err: cause}
}
