// Package telemetry defines the logging, metrics, and tracing facades used
// throughout the engine. The interfaces are intentionally small so callers
// can substitute no-op implementations in tests and a Clue/OpenTelemetry
// backed implementation in production, without the engine depending
// directly on either.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used throughout the engine.
// Implementations typically delegate to goa.design/clue/log but the
// interface stays small so tests can provide lightweight stubs.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter, timer, and gauge helpers for engine
// instrumentation (node durations, throttler backoffs, plan-compile
// retries).
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so engine code stays agnostic of the
// underlying OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// NodeTelemetry captures observability metadata collected during a single
// DAG node execution. Extra holds tool-specific data the engine does not
// otherwise model (provider response headers, cache keys, and so on).
type NodeTelemetry struct {
	// DurationMs is the wall-clock execution time in milliseconds.
	DurationMs int64
	// Attempts is the total number of invocation attempts (1 + retries).
	Attempts int
	// TokensUsed tracks tokens consumed, populated for reasoning-domain nodes.
	TokensUsed int
	// Model identifies the LLM model used, when applicable.
	Model string
	// Extra holds tool-specific metadata not captured by the fields above.
	Extra map[string]any
}
