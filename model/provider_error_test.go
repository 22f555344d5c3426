package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProviderErrorPanicsOnMissingProvider(t *testing.T) {
	assert.Panics(t, func() {
		NewProviderError("", ErrorKindUnknown, 0, "", "", false, nil)
	})
}

func TestNewProviderErrorPanicsOnMissingKind(t *testing.T) {
	assert.Panics(t, func() {
		NewProviderError("anthropic", "", 0, "", "", false, nil)
	})
}

func TestProviderErrorMessageIncludesStatusAndCode(t *testing.T) {
	pe := NewProviderError("anthropic", ErrorKindRateLimited, 429, "rate_limit_error", "too many requests", true, nil)
	msg := pe.Error()
	assert.Contains(t, msg, "anthropic")
	assert.Contains(t, msg, "429")
	assert.Contains(t, msg, "rate_limit_error")
	assert.Contains(t, msg, "too many requests")
}

func TestProviderErrorMessageFallsBackToCause(t *testing.T) {
	cause := errors.New("connection reset")
	pe := NewProviderError("openai", ErrorKindUnavailable, 0, "", "", false, cause)
	assert.Contains(t, pe.Error(), "connection reset")
}

func TestProviderErrorMessageFallsBackToGenericText(t *testing.T) {
	pe := NewProviderError("openai", ErrorKindUnknown, 0, "", "", false, nil)
	assert.Contains(t, pe.Error(), "provider error")
}

func TestProviderErrorUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("boom")
	pe := NewProviderError("openai", ErrorKindUnknown, 0, "", "", false, cause)
	assert.Same(t, cause, errors.Unwrap(pe))
}

func TestAsProviderErrorFindsWrappedError(t *testing.T) {
	pe := NewProviderError("openai", ErrorKindAuth, 401, "", "bad key", false, nil)
	wrapped := fmt.Errorf("calling model: %w", pe)

	got, ok := AsProviderError(wrapped)
	require := assert.New(t)
	require.True(ok)
	require.Same(pe, got)
}

func TestAsProviderErrorFalseForPlainError(t *testing.T) {
	_, ok := AsProviderError(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsRateLimitedTrueOnlyForRateLimitedKind(t *testing.T) {
	rl := NewProviderError("groq", ErrorKindRateLimited, 429, "", "", true, nil)
	assert.True(t, IsRateLimited(rl))

	other := NewProviderError("groq", ErrorKindUnavailable, 503, "", "", true, nil)
	assert.False(t, IsRateLimited(other))

	assert.False(t, IsRateLimited(errors.New("plain")))
}
