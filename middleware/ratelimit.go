package middleware

import (
	"context"

	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/ratelimit"
	"github.com/conductor-run/conductor/supervisor"
)

// modelProvider maps an AgentSpec to the (provider, model) budget key the
// Governor tracks. Different agent kinds front different vendor APIs, so
// this indirection lives at the middleware boundary rather than inside the
// Governor itself.
type modelProvider func(spec plan.AgentSpec) (provider, model string)

// RateLimit blocks each invocation until the governor reports capacity for
// its (provider, model) budget, implementing the gate stage of the
// middleware chain ahead of dispatch.
type RateLimit struct {
	Governor *ratelimit.Governor
	Resolve  modelProvider
}

// NewRateLimit constructs a RateLimit middleware. resolve maps an
// AgentSpec's kind/model to the governor's (provider, model) budget key;
// DefaultModelProvider is used when resolve is nil.
func NewRateLimit(g *ratelimit.Governor, resolve modelProvider) RateLimit {
	if resolve == nil {
		resolve = DefaultModelProvider
	}
	return RateLimit{Governor: g, Resolve: resolve}
}

// DefaultModelProvider treats the agent kind as a stand-in for provider
// when no clearer mapping is available (e.g. "claude" -> "anthropic",
// "codex" -> "openai"); unknown kinds pass the kind through unchanged.
func DefaultModelProvider(spec plan.AgentSpec) (string, string) {
	switch spec.AgentKind {
	case "claude":
		return "anthropic", spec.Model
	case "codex":
		return "openai", spec.Model
	default:
		return spec.AgentKind, spec.Model
	}
}

func (r RateLimit) WrapExecute(next Invoke) Invoke {
	return func(ctx context.Context, spec plan.AgentSpec) (supervisor.Result, string, error) {
		provider, model := r.Resolve(spec)
		if err := r.Governor.Wait(ctx, provider, model); err != nil {
			return supervisor.Result{}, "", err
		}
		return next(ctx, spec)
	}
}

func (r RateLimit) WrapStream(next StreamInvoke) StreamInvoke {
	return func(ctx context.Context, spec plan.AgentSpec, onEvent func(supervisor.Event)) (supervisor.Result, string, error) {
		provider, model := r.Resolve(spec)
		if err := r.Governor.Wait(ctx, provider, model); err != nil {
			return supervisor.Result{}, "", err
		}
		return next(ctx, spec, onEvent)
	}
}
