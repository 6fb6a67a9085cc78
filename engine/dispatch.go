package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-run/conductor/effect"
	"github.com/conductor-run/conductor/middleware"
	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/policy"
	"github.com/conductor-run/conductor/reconcile"
	"github.com/conductor-run/conductor/store"
	"github.com/conductor-run/conductor/supervisor"
)

// dispatchAgentNode runs one KindAgent node to completion: it decodes the
// AgentSpec, consults the policy engine, runs the middleware-wrapped
// invoker, and persists the invocation row, every frame/event it produced,
// and (if the node names one) the result's state cell. A node is dispatched
// at most once per execution; subsequent passes skip it via r.done.
func (e *Engine) dispatchAgentNode(ctx context.Context, execID string, r *run, node plan.Node) (bool, error) {
	if r.alreadyDone(node.Key) {
		return false, nil
	}
	defer r.markDone(node.Key)

	spec, err := plan.AgentSpecFromProps(node.Props)
	if err != nil {
		e.logger.Error(ctx, "engine: invalid agent node", "node_key", node.Key, "error", err)
		return true, nil
	}

	decision, err := e.policy.Decide(ctx, policy.Input{
		ExecutionID:   execID,
		NodeKey:       node.Key,
		Spec:          spec,
		Attempt:       0,
		PriorFailures: r.failuresFor(node.Key),
	})
	if err != nil {
		e.logger.Error(ctx, "engine: policy decide failed", "node_key", node.Key, "error", err)
		return true, nil
	}
	if !decision.Allow {
		e.logger.Info(ctx, "engine: policy denied dispatch", "node_key", node.Key, "reason", decision.Reason)
		return true, nil
	}
	if decision.MaxRetries >= 0 {
		spec.MaxRetries = decision.MaxRetries
	}

	provider, model := middleware.DefaultModelProvider(spec)
	invocationID := uuid.NewString()
	startedAt := time.Now()

	if err := e.store.CreateAgentInvocation(ctx, store.AgentInvocation{
		ID:                invocationID,
		ExecutionID:       execID,
		NodeKey:           node.Key,
		Kind:              spec.AgentKind,
		Status:            store.InvocationRunning,
		Session:           spec.Session,
		Model:             model,
		Provider:          provider,
		Prompt:            spec.Prompt,
		SchemaFingerprint: plan.SchemaFingerprint(spec.Schema),
		StartedAt:         startedAt,
	}); err != nil {
		return true, fmt.Errorf("engine: create invocation: %w", err)
	}

	onEvent := func(ev supervisor.Event) {
		r.recordEvents([]supervisor.Event{ev})
		if perr := e.persistAgentEvent(ctx, execID, invocationID, ev); perr != nil {
			e.logger.Error(ctx, "engine: persist agent event failed", "node_key", node.Key, "error", perr)
		}
	}

	wrapped := e.chain.WrapStream(middleware.StreamInvoke(e.invoke))
	result, output, runErr := wrapped(ctx, spec, onEvent)

	e.persistRateLimitSnapshot(ctx, provider, model)

	status, errMsg := classifyInvocationOutcome(runErr)
	inputTokens, outputTokens, turns := tallyUsage(result.Events)
	outputText := output
	if outputText == "" {
		outputText = concatAssistantTextFromEvents(result.Events)
	}
	structuredOutput := ""
	if spec.Schema != nil {
		structuredOutput = output
	}
	if err := e.store.FinishAgentInvocation(ctx, invocationID, store.FinishOutcome{
		Status:           status,
		ExitCode:         result.ExitCode,
		Error:            errMsg,
		InputTokens:      inputTokens,
		OutputTokens:     outputTokens,
		Turns:            turns,
		OutputText:       outputText,
		StructuredOutput: structuredOutput,
	}); err != nil {
		e.logger.Error(ctx, "engine: finish invocation failed", "node_key", node.Key, "error", err)
	}
	r.recordOutcome(node.Key, status == store.InvocationFailed)

	summary, _ := json.Marshal(map[string]any{
		"node_key": node.Key, "status": status, "output": output, "error": errMsg,
	})
	if err := e.appendStreamEvent(ctx, r, execID, invocationID, "agent_result", string(summary)); err != nil {
		e.logger.Error(ctx, "engine: persist agent result failed", "node_key", node.Key, "error", err)
	}

	if status == store.InvocationCompleted {
		if cell, ok := node.Props["result_cell"].(string); ok && cell != "" {
			encoded, err := json.Marshal(outputText)
			if err != nil {
				return true, nil
			}
			if err := e.store.SetStateCell(ctx, execID, cell, string(encoded)); err != nil {
				return true, fmt.Errorf("engine: set result cell %q: %w", cell, err)
			}
		}
		if cell, ok := node.Props["set_cell"].(string); ok && cell != "" {
			encoded, err := json.Marshal(node.Props["set_value"])
			if err != nil {
				return true, nil
			}
			if err := e.store.SetStateCell(ctx, execID, cell, string(encoded)); err != nil {
				return true, fmt.Errorf("engine: set cell %q: %w", cell, err)
			}
		}
	}

	return true, nil
}

// classifyInvocationOutcome maps a supervisor error into the invocation's
// terminal status. A fired stop condition is a normal termination, not a
// failure, per the documented error taxonomy.
func classifyInvocationOutcome(err error) (store.InvocationStatus, string) {
	if err == nil {
		return store.InvocationCompleted, ""
	}
	if _, ok := err.(*supervisor.StopConditionError); ok {
		return store.InvocationCompleted, err.Error()
	}
	return store.InvocationFailed, err.Error()
}

func (e *Engine) persistAgentEvent(ctx context.Context, execID, invocationID string, ev supervisor.Event) error {
	role := store.FrameRoleSystem
	switch ev.Type {
	case supervisor.EventAssistantText, supervisor.EventResult:
		role = store.FrameRoleAssistant
	case supervisor.EventToolUse, supervisor.EventToolResult:
		role = store.FrameRoleTool
	}

	content, _ := json.Marshal(map[string]any{"text": ev.Text, "payload": ev.Payload})
	if _, err := e.store.AppendFrame(ctx, store.Frame{
		ID:           uuid.NewString(),
		InvocationID: invocationID,
		Role:         role,
		Content:      string(content),
	}); err != nil {
		return err
	}

	payload, _ := json.Marshal(ev)
	_, err := e.store.AppendStreamEvent(ctx, store.StreamEvent{
		ID:           uuid.NewString(),
		ExecutionID:  execID,
		InvocationID: invocationID,
		Type:         "agent_event:" + string(ev.Type),
		Payload:      string(payload),
	})
	return err
}

// dispatchEffect dispatches one reconcile.Effect to the registered handler
// and records its outcome as a stream event. A missing handler or a handler
// error is recorded but does not abort the execution; failures continue
// unless a caller explicitly escalates on the resulting error.
func (e *Engine) dispatchEffect(ctx context.Context, execID string, r *run, eff reconcile.Effect) error {
	req := effect.Request{NodeKey: eff.NodeKey, Kind: effect.Kind(eff.Kind), Props: eff.Props}
	result, dispatchErr := e.effects.Dispatch(ctx, req)

	errMsg := ""
	if dispatchErr != nil {
		errMsg = dispatchErr.Error()
	}
	summary, _ := json.Marshal(map[string]any{
		"node_key": eff.NodeKey, "kind": eff.Kind, "output": result.Output, "error": errMsg,
	})
	if err := e.appendStreamEvent(ctx, r, execID, "", "effect_result", string(summary)); err != nil {
		return err
	}
	return dispatchErr
}

// persistRateLimitSnapshot records the governor's latest observed budget
// for (provider, model) to the log, for downstream dashboards to read back.
// It is a best-effort write: a missing governor (mock runs, tests) or an
// unobserved budget is not an error.
func (e *Engine) persistRateLimitSnapshot(ctx context.Context, provider, model string) {
	if e.governor == nil {
		return
	}
	status, ok := e.governor.Snapshot(provider, model)
	if !ok {
		return
	}
	snap := store.RateLimitSnapshot{
		ID:         uuid.NewString(),
		Provider:   provider,
		Model:      model,
		ObservedAt: status.ObservedAt,
	}
	if status.Requests.Limit > 0 {
		snap.RequestsLimit = intPtr(status.Requests.Limit)
		snap.RequestsRemaining = intPtr(status.Requests.Remaining)
		snap.RequestsReset = timePtr(status.Requests.Reset)
	}
	if status.InputTokens.Limit > 0 {
		snap.InputTokensLimit = intPtr(status.InputTokens.Limit)
		snap.InputTokensRemaining = intPtr(status.InputTokens.Remaining)
		snap.InputTokensReset = timePtr(status.InputTokens.Reset)
	}
	if status.OutputTokens.Limit > 0 {
		snap.OutputTokensLimit = intPtr(status.OutputTokens.Limit)
		snap.OutputTokensRemaining = intPtr(status.OutputTokens.Remaining)
		snap.OutputTokensReset = timePtr(status.OutputTokens.Reset)
	}
	if err := e.store.RecordRateLimitSnapshot(ctx, snap); err != nil {
		e.logger.Error(ctx, "engine: record rate limit snapshot failed", "provider", provider, "model", model, "error", err)
	}
}

func intPtr(v int) *int              { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func concatAssistantTextFromEvents(events []supervisor.Event) string {
	out := ""
	for _, ev := range events {
		if ev.Type == supervisor.EventAssistantText {
			out += ev.Text
		}
	}
	return out
}

// tallyUsage sums the per-result token counts reported across an
// invocation's events and counts assistant turns, for the invocation row's
// monotonic usage counters.
func tallyUsage(events []supervisor.Event) (inputTokens, outputTokens, turns int) {
	for _, ev := range events {
		switch ev.Type {
		case supervisor.EventAssistantText:
			turns++
		case supervisor.EventResult:
			if n, ok := ev.Payload["input_tokens"].(int); ok {
				inputTokens += n
			}
			if n, ok := ev.Payload["output_tokens"].(int); ok {
				outputTokens += n
			}
		}
	}
	return inputTokens, outputTokens, turns
}
