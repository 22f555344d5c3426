package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures into the small set of categories
// the Throttler and DAG Executor care about for retry decisions.
type ErrorKind string

const (
	ErrorKindAuth           ErrorKind = "auth"
	ErrorKindInvalidRequest ErrorKind = "invalid_request"
	ErrorKindRateLimited    ErrorKind = "rate_limited"
	ErrorKindUnavailable    ErrorKind = "unavailable"
	ErrorKindUnknown        ErrorKind = "unknown"
)

// ProviderError describes a failure returned by a model provider. Adapters
// wrap every SDK API error (an error response carrying an HTTP status) in a
// ProviderError so callers upstream (the Plan Compiler, the Throttler's
// Report call) can classify the failure without importing provider-specific
// error types. Other errors, such as transport failures, are wrapped with
// fmt.Errorf and are not ProviderErrors.
type ProviderError struct {
	Provider  string
	Kind      ErrorKind
	HTTP      int
	Code      string
	Message   string
	Retryable bool
	cause     error
}

// NewProviderError constructs a ProviderError. provider and kind are
// required; cause may be nil but is recommended to preserve the chain.
func NewProviderError(provider string, kind ErrorKind, httpStatus int, code, message string, retryable bool, cause error) *ProviderError {
	if provider == "" {
		panic("model: provider is required")
	}
	if kind == "" {
		panic("model: error kind is required")
	}
	return &ProviderError{
		Provider:  provider,
		Kind:      kind,
		HTTP:      httpStatus,
		Code:      code,
		Message:   message,
		Retryable: retryable,
		cause:     cause,
	}
}

func (e *ProviderError) Error() string {
	status := ""
	if e.HTTP > 0 {
		status = fmt.Sprintf("%d ", e.HTTP)
	}
	code := ""
	if e.Code != "" {
		code = e.Code + ": "
	}
	msg := e.Message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if msg == "" {
		msg = "provider error"
	}
	return fmt.Sprintf("%s %s%s(%s%s)", e.Provider, status, e.Kind, code, msg)
}

func (e *ProviderError) Unwrap() error { return e.cause }

// AsProviderError returns the first ProviderError in err's chain, if any.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRateLimited reports whether err is (or wraps) a ProviderError classified
// as rate_limited, the signal the Throttler's Report call maps to
// OutcomeRateLimited.
func IsRateLimited(err error) bool {
	pe, ok := AsProviderError(err)
	return ok && pe.Kind == ErrorKindRateLimited
}
