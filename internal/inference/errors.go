package inference

import (
	"errors"
	"fmt"
)

// Failure kinds. An *Error returned by Gateway.Infer matches its Kind and,
// through Cause, the kind of the last failed attempt.
var (
	ErrNetwork       = errors.New("network failure")
	ErrTimeout       = errors.New("attempt timed out")
	ErrHTTPStatus    = errors.New("unexpected http status")
	ErrEmptyResponse = errors.New("empty response")
	ErrExhausted     = errors.New("inference attempts exhausted")
	ErrCancelled     = errors.New("inference cancelled")
)

// StatusError is a non-2xx answer from the inference service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status error, got status %d. with response body %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrHTTPStatus }

// Error is the failed outcome of a logical inference request.
type Error struct {
	Kind        error
	Attempts    int
	LastRawText string
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%v after %d attempts", e.Kind, e.Attempts)
	}
	return fmt.Sprintf("%v after %d attempts: %v", e.Kind, e.Attempts, e.Cause)
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// classify maps a transport error onto a failure kind.
func classify(err error) error {
	var statusErr *StatusError
	switch {
	case errors.Is(err, ErrEmptyResponse):
		return ErrEmptyResponse
	case errors.As(err, &statusErr):
		return ErrHTTPStatus
	case errors.Is(err, ErrTimeout):
		return ErrTimeout
	default:
		return ErrNetwork
	}
}

func kindLabel(kind error) string {
	switch kind {
	case ErrTimeout:
		return "timeout"
	case ErrHTTPStatus:
		return "http_status"
	case ErrEmptyResponse:
		return "empty"
	case ErrCancelled:
		return "cancelled"
	case ErrExhausted:
		return "exhausted"
	default:
		return "network"
	}
}
