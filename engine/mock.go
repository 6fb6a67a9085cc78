package engine

import (
	"context"
	"time"

	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/supervisor"
)

// mockInvoke stands in for a real process spawn when the engine is run
// with Options.Mock, and backs the deterministic scenario tests. It never
// touches a filesystem or external process; its transcript comes entirely
// from spec.Mock.
func (e *Engine) mockInvoke(ctx context.Context, spec plan.AgentSpec, onEvent func(supervisor.Event)) (supervisor.Result, string, error) {
	script := spec.Mock
	if script == nil {
		script = &plan.MockScript{Outputs: []string{""}}
	}
	if script.Delay > 0 {
		select {
		case <-time.After(script.Delay):
		case <-ctx.Done():
			return supervisor.Result{}, "", ctx.Err()
		}
	}

	if len(script.Turns) > 0 {
		return e.mockStream(ctx, spec, script.Turns, onEvent)
	}
	return e.mockSchemaRetry(spec, script.Outputs, onEvent)
}

// mockStream emits one assistant-text event per turn, checking stop
// conditions after each the same way the real supervisor checks them
// per line, and reports a StopConditionError if one fires before the
// transcript ends.
func (e *Engine) mockStream(ctx context.Context, spec plan.AgentSpec, turns []string, onEvent func(supervisor.Event)) (supervisor.Result, string, error) {
	var events []supervisor.Event
	for i, text := range turns {
		select {
		case <-ctx.Done():
			return supervisor.Result{Events: events}, "", ctx.Err()
		default:
		}
		ev := supervisor.Event{Type: supervisor.EventAssistantText, Text: text}
		events = append(events, ev)
		if onEvent != nil {
			onEvent(ev)
		}
		if reason, fire := supervisor.EvaluateStopConditions(spec.StopConditions, []supervisor.Event{ev}, i+1, 0); fire {
			return supervisor.Result{Events: events}, "", &supervisor.StopConditionError{Kind: spec.AgentKind, Reason: reason}
		}
	}
	return supervisor.Result{Events: events}, concatAssistantTextFromEvents(events), nil
}

// mockSchemaRetry replays outputs in order (clamping to the last entry once
// exhausted), validating each against spec.Schema when set, so the
// structured-output retry loop can be exercised without a real process.
func (e *Engine) mockSchemaRetry(spec plan.AgentSpec, outputs []string, onEvent func(supervisor.Event)) (supervisor.Result, string, error) {
	if len(outputs) == 0 {
		outputs = []string{""}
	}
	maxRetries := spec.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastEvents []supervisor.Event
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		idx := attempt
		if idx >= len(outputs) {
			idx = len(outputs) - 1
		}
		ev := supervisor.Event{Type: supervisor.EventAssistantText, Text: outputs[idx]}
		if onEvent != nil {
			onEvent(ev)
		}
		lastEvents = []supervisor.Event{ev}

		if spec.Schema == nil {
			return supervisor.Result{Events: lastEvents}, outputs[idx], nil
		}

		valid, err := supervisor.ExtractAndValidate(outputs[idx], spec.Schema)
		if err == nil {
			return supervisor.Result{Events: lastEvents}, valid, nil
		}
		lastErr = err
	}

	detail := ""
	if lastErr != nil {
		detail = lastErr.Error()
	}
	return supervisor.Result{Events: lastEvents}, "", &supervisor.SchemaValidationError{
		Kind: spec.AgentKind, Attempts: maxRetries + 1, LastDetail: detail,
	}
}
