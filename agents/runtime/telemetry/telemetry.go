// Package telemetry gives the runtime a small, swappable observability
// surface. Components accept a Logger (and, where they record metrics, a
// Metrics) through their Options struct; a nil value is substituted with a
// noop implementation so callers never need to nil-check before use. No
// Options struct in this module takes a Tracer.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the structured logging surface used throughout the runtime.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter, timer, and gauge instrumentation.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so runtime code stays agnostic of the
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

// InvocationTelemetry captures observability metadata collected during an
// agent invocation. Extra holds kind-specific metadata (vendor usage
// payloads, rate-limit headers, session identifiers) not covered by the
// common fields.
type InvocationTelemetry struct {
	DurationMs   int64
	InputTokens  int
	OutputTokens int
	Model        string
	Provider     string
	Extra        map[string]any
}
