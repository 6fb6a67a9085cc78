package middleware

import (
	"context"
	"time"

	"github.com/conductor-run/conductor/agents/runtime/telemetry"
	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/supervisor"
)

// Logging logs the start, outcome, and duration of every agent invocation.
type Logging struct {
	Logger telemetry.Logger
}

// NewLogging constructs a Logging middleware. A nil Logger is replaced with
// a noop implementation.
func NewLogging(logger telemetry.Logger) Logging {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return Logging{Logger: logger}
}

func (l Logging) WrapExecute(next Invoke) Invoke {
	return func(ctx context.Context, spec plan.AgentSpec) (supervisor.Result, string, error) {
		start := time.Now()
		l.Logger.Info(ctx, "middleware: invocation started", "kind", spec.AgentKind, "model", spec.Model)
		result, output, err := next(ctx, spec)
		if err != nil {
			l.Logger.Error(ctx, "middleware: invocation failed", "kind", spec.AgentKind, "error", err, "duration", time.Since(start))
			return result, output, err
		}
		l.Logger.Info(ctx, "middleware: invocation completed", "kind", spec.AgentKind, "exit_code", result.ExitCode, "duration", time.Since(start))
		return result, output, nil
	}
}

func (l Logging) WrapStream(next StreamInvoke) StreamInvoke {
	return func(ctx context.Context, spec plan.AgentSpec, onEvent func(supervisor.Event)) (supervisor.Result, string, error) {
		start := time.Now()
		l.Logger.Info(ctx, "middleware: stream invocation started", "kind", spec.AgentKind)
		result, output, err := next(ctx, spec, onEvent)
		if err != nil {
			l.Logger.Error(ctx, "middleware: stream invocation failed", "kind", spec.AgentKind, "error", err, "duration", time.Since(start))
			return result, output, err
		}
		l.Logger.Info(ctx, "middleware: stream invocation completed", "kind", spec.AgentKind, "duration", time.Since(start))
		return result, output, nil
	}
}
