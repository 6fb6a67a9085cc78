// Package policy lets a host application gate or adjust agent dispatch
// beyond the plan's static caps: dynamic retry limits, tool allowlists, and
// circuit breaking in response to repeated failures. The engine is
// optional; the orchestration engine falls back to AllowAll when none is
// configured.
package policy

import (
	"context"

	"github.com/conductor-run/conductor/plan"
)

// Engine decides whether, and how, to adjust an agent invocation before the
// supervisor dispatches it. The engine is consulted once per agent node,
// before its dispatch; schema-validation retries inside that dispatch do
// not consult it again.
type Engine interface {
	Decide(ctx context.Context, input Input) (Decision, error)
}

// Input groups everything a policy decision needs.
type Input struct {
	ExecutionID    string
	NodeKey        string
	Spec           plan.AgentSpec
	Attempt        int // always 0 from the orchestration engine, which decides once per node
	PriorFailures  int // consecutive failures observed for this node across the execution
}

// Decision is the policy engine's verdict for one dispatch.
type Decision struct {
	Allow      bool
	Reason     string
	MaxRetries int // overrides Spec.MaxRetries when >= 0; -1 means "use spec default"
}

type allowAll struct{}

// AllowAll is the default Engine: every dispatch is allowed unchanged.
var AllowAll Engine = allowAll{}

func (allowAll) Decide(context.Context, Input) (Decision, error) {
	return Decision{Allow: true, MaxRetries: -1}, nil
}

// CircuitBreaker denies dispatch once a node has failed MaxConsecutiveFailures
// times in a row within the same execution, grounded on the supervisor's
// own loop-detection posture: stop retrying pathological failures rather
// than burning budget indefinitely.
type CircuitBreaker struct {
	MaxConsecutiveFailures int
}

func (c CircuitBreaker) Decide(_ context.Context, input Input) (Decision, error) {
	if c.MaxConsecutiveFailures > 0 && input.PriorFailures >= c.MaxConsecutiveFailures {
		return Decision{Allow: false, Reason: "circuit breaker: too many consecutive failures"}, nil
	}
	return Decision{Allow: true, MaxRetries: -1}, nil
}
