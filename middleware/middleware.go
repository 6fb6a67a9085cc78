// Package middleware composes an ordered chain of wrappers around each
// agent invocation, the way the runtime's hook bus decouples event
// producers from consumers but applied as a synchronous onion rather than
// fan-out pub-sub: each middleware may inspect, modify, retry, or short
// circuit an invocation before and after it runs.
package middleware

import (
	"context"

	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/supervisor"
)

// Invoke runs one agent invocation and returns its result. It is the
// innermost function every Middleware eventually wraps.
type Invoke func(ctx context.Context, spec plan.AgentSpec) (supervisor.Result, string, error)

// StreamInvoke is the streaming counterpart of Invoke: onEvent is called for
// every Event as it arrives, in addition to the final result being
// returned.
type StreamInvoke func(ctx context.Context, spec plan.AgentSpec, onEvent func(supervisor.Event)) (supervisor.Result, string, error)

// Middleware wraps an Invoke/StreamInvoke pair, producing a new pair that
// layers its own behavior around next. Composition order is outside-in:
// the first Middleware in a Chain is the outermost layer.
type Middleware interface {
	WrapExecute(next Invoke) Invoke
	WrapStream(next StreamInvoke) StreamInvoke
}

// Chain composes an ordered list of Middleware around a base Invoke/
// StreamInvoke pair.
type Chain struct {
	middlewares []Middleware
}

// New constructs a Chain. Middlewares are applied outside-in: New(a, b)
// produces a(b(base)).
func New(middlewares ...Middleware) Chain {
	return Chain{middlewares: middlewares}
}

// Wrap returns an Invoke that runs base through every middleware in the
// chain, outermost first.
func (c Chain) Wrap(base Invoke) Invoke {
	wrapped := base
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		wrapped = c.middlewares[i].WrapExecute(wrapped)
	}
	return wrapped
}

// WrapStream returns a StreamInvoke that runs base through every middleware
// in the chain, outermost first.
func (c Chain) WrapStream(base StreamInvoke) StreamInvoke {
	wrapped := base
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		wrapped = c.middlewares[i].WrapStream(wrapped)
	}
	return wrapped
}
