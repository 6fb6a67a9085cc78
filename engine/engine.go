// Package engine is the outermost orchestration loop: it reconciles a plan
// against the store's state-cell snapshot, dispatches the agent and effect
// nodes the reconciled tree exposes, persists every frame and stream event
// as they occur, and repeats until the tree stops producing new work or a
// global stop condition fires. It is the one component that knows about
// every other package; only the CLI entry point (cmd/conductor) imports it.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/conductor-run/conductor/agents/runtime/telemetry"
	"github.com/conductor-run/conductor/effect"
	"github.com/conductor-run/conductor/middleware"
	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/policy"
	"github.com/conductor-run/conductor/ratelimit"
	"github.com/conductor-run/conductor/reconcile"
	"github.com/conductor-run/conductor/store"
	"github.com/conductor-run/conductor/supervisor"
)

// Invoker runs one agent invocation, streaming events via onEvent as they
// arrive. supervisor.Supervisor.RunWithSchemaRetry satisfies this directly;
// mock runs substitute mockInvoker instead.
type Invoker func(ctx context.Context, spec plan.AgentSpec, onEvent func(supervisor.Event)) (supervisor.Result, string, error)

// Options configures an Engine. Store and Effects are required; everything
// else is substituted with a conservative default when nil.
type Options struct {
	Store      *store.Store
	Supervisor *supervisor.Supervisor
	Governor   *ratelimit.Governor
	Effects    *effect.Registry
	Policy     policy.Engine
	Middleware middleware.Chain
	Logger     telemetry.Logger
	Metrics    telemetry.Metrics

	MaxIterations    int // reconciliation passes per Run, 0 = reconcile.DefaultMaxIterations
	ConcurrencyLimit int // max concurrent dispatches inside one parallel node, 0 = 8
	Mock             bool
}

// Engine runs plan executions to completion against a shared store.
type Engine struct {
	store      *store.Store
	supervisor *supervisor.Supervisor
	governor   *ratelimit.Governor
	effects    *effect.Registry
	policy     policy.Engine
	chain      middleware.Chain
	logger     telemetry.Logger
	metrics    telemetry.Metrics

	maxIterations int
	concurrency   int
	mock          bool
	invoke        Invoker
}

// New constructs an Engine from opts.
func New(opts Options) *Engine {
	if opts.Policy == nil {
		opts.Policy = policy.AllowAll
	}
	if opts.Logger == nil {
		opts.Logger = telemetry.NewNoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewNoopMetrics()
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = reconcile.DefaultMaxIterations
	}
	if opts.ConcurrencyLimit <= 0 {
		opts.ConcurrencyLimit = 8
	}
	e := &Engine{
		store:         opts.Store,
		supervisor:    opts.Supervisor,
		governor:      opts.Governor,
		effects:       opts.Effects,
		policy:        opts.Policy,
		chain:         opts.Middleware,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		maxIterations: opts.MaxIterations,
		concurrency:   opts.ConcurrencyLimit,
		mock:          opts.Mock,
	}
	if opts.Mock {
		e.invoke = e.mockInvoke
	} else {
		e.invoke = opts.Supervisor.RunWithSchemaRetry
	}
	return e
}

// RunInput names the plan to execute and its execution-level configuration.
type RunInput struct {
	ExecutionID string // generated with uuid.NewString() if empty
	PlanPath    string
	Root        plan.Node
	GlobalStops []plan.StopCondition
}

// RunResult is the terminal outcome of one Run call.
type RunResult struct {
	ExecutionID string
	Status      store.ExecutionStatus
	Passes      int
}

// run collects the mutable state one Run call threads through every pass:
// which node keys have already been dispatched or completed, and the
// accumulated text/turn/token counters global stop conditions evaluate
// against.
type run struct {
	mu           sync.Mutex
	done         map[string]bool // node keys already dispatched to completion (success or failure)
	nodeFailures map[string]int  // consecutive failures per node key, for policy.CircuitBreaker
	allEvents    []supervisor.Event
	turns        int
	startedAt    time.Time
}

func (r *run) alreadyDone(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done[key]
}

func (r *run) markDone(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done[key] = true
}

// failuresFor returns the current consecutive-failure count for a node key.
func (r *run) failuresFor(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nodeFailures[key]
}

// recordOutcome updates the consecutive-failure counter for a node key: a
// failure increments it, any other terminal status resets it to zero.
func (r *run) recordOutcome(key string, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nodeFailures == nil {
		r.nodeFailures = make(map[string]int)
	}
	if failed {
		r.nodeFailures[key]++
	} else {
		r.nodeFailures[key] = 0
	}
}

func (r *run) recordEvents(events []supervisor.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allEvents = append(r.allEvents, events...)
	for _, ev := range events {
		if ev.Type == supervisor.EventAssistantText {
			r.turns++
		}
	}
}

// Run executes input.Root to completion: it reconciles, dispatches,
// persists, and loops until the tree stabilizes with no pending work or a
// global stop condition or cancellation ends the execution early.
func (e *Engine) Run(ctx context.Context, input RunInput) (RunResult, error) {
	execID := input.ExecutionID
	if execID == "" {
		execID = uuid.NewString()
	}

	if err := e.store.CreateExecution(ctx, store.Execution{
		ID:        execID,
		PlanPath:  input.PlanPath,
		Status:    store.ExecutionRunning,
		StartedAt: time.Now(),
	}); err != nil {
		return RunResult{}, fmt.Errorf("engine: begin execution: %w", err)
	}

	r := &run{
		done:         make(map[string]bool),
		nodeFailures: make(map[string]int),
		startedAt:    time.Now(),
	}

	status, runErr := e.runLoop(ctx, execID, input, r)

	finalErr := ""
	if runErr != nil {
		finalErr = runErr.Error()
	}
	if err := e.store.UpdateExecutionStatus(ctx, execID, status, finalErr); err != nil {
		e.logger.Error(ctx, "engine: seal execution failed", "execution_id", execID, "error", err)
	}

	return RunResult{ExecutionID: execID, Status: status}, runErr
}

func (e *Engine) runLoop(ctx context.Context, execID string, input RunInput, r *run) (store.ExecutionStatus, error) {
	for pass := 0; pass < e.maxIterations; pass++ {
		select {
		case <-ctx.Done():
			e.cancelRunning(execID)
			return store.ExecutionCancelled, ctx.Err()
		default:
		}

		snapshot, err := e.store.ListStateCells(ctx, execID)
		if err != nil {
			return store.ExecutionFailed, fmt.Errorf("engine: list state cells: %w", err)
		}
		rc := &snapshotContext{executionID: execID, snapshot: snapshot}

		tree, effects, err := reconcile.Reconcile(input.Root, rc, 0)
		if err != nil {
			return store.ExecutionFailed, fmt.Errorf("engine: reconcile pass %d: %w", pass, err)
		}

		serialized, err := reconcile.Serialize(tree.Root)
		if err != nil {
			e.logger.Error(ctx, "engine: serialize tree failed", "execution_id", execID, "error", err)
		} else {
			if err := e.appendStreamEvent(ctx, r, execID, "", "frame_snapshot", serialized); err != nil {
				e.logger.Error(ctx, "engine: persist frame snapshot failed", "execution_id", execID, "error", err)
			}
			if err := e.store.UpdateExecutionTree(ctx, execID, serialized); err != nil {
				e.logger.Error(ctx, "engine: persist tree snapshot failed", "execution_id", execID, "error", err)
			}
		}

		effectsDispatched := false
		for _, eff := range effects {
			if r.alreadyDone(eff.NodeKey) {
				continue
			}
			effectsDispatched = true
			if err := e.dispatchEffect(ctx, execID, r, eff); err != nil {
				e.logger.Error(ctx, "engine: effect dispatch failed", "node_key", eff.NodeKey, "error", err)
			}
			r.markDone(eff.NodeKey)
		}

		didWork, err := e.executeNode(ctx, execID, r, tree.Root)
		if err != nil {
			return store.ExecutionFailed, fmt.Errorf("engine: execute pass %d: %w", pass, err)
		}
		didWork = didWork || effectsDispatched

		if reason, fire := e.checkGlobalStops(input.GlobalStops, r); fire {
			e.logger.Info(ctx, "engine: global stop condition fired", "execution_id", execID, "reason", reason)
			return store.ExecutionCompleted, nil
		}

		// No new dispatch happened this pass: reconciliation is a pure
		// function of the plan and the state-cell snapshot, and neither
		// changed, so nothing will differ on the next pass either.
		if !didWork {
			return store.ExecutionCompleted, nil
		}
	}

	return store.ExecutionFailed, &reconcile.ErrNotStabilized{MaxIterations: e.maxIterations}
}

// cancelRunning is a placeholder hook for the supervisor-level cancellation
// sweep; in the current single-process engine, context cancellation already
// propagates to every in-flight exec.CommandContext, so there is nothing
// additional to signal here beyond logging.
func (e *Engine) cancelRunning(execID string) {
	e.logger.Info(context.Background(), "engine: cancelling execution", "execution_id", execID)
}

// checkGlobalStops applies the same stop-condition taxonomy as a node-level
// check, but one scope up: against every event observed across every
// invocation in the execution so far.
func (e *Engine) checkGlobalStops(stops []plan.StopCondition, r *run) (string, bool) {
	if len(stops) == 0 {
		return "", false
	}
	r.mu.Lock()
	events := append([]supervisor.Event(nil), r.allEvents...)
	turns := r.turns
	elapsed := time.Since(r.startedAt)
	r.mu.Unlock()
	return supervisor.EvaluateStopConditions(stops, events, turns, elapsed)
}

// executeNode runs node and its descendants, respecting sequence/parallel
// semantics, and reports whether it dispatched any new work this call.
func (e *Engine) executeNode(ctx context.Context, execID string, r *run, node plan.Node) (bool, error) {
	switch node.Kind {
	case plan.KindParallel:
		return e.executeParallel(ctx, execID, r, node.Children)
	case plan.KindAgent:
		return e.dispatchAgentNode(ctx, execID, r, node)
	case plan.KindEffect:
		// Effects are dispatched once per pass up front (see runLoop), in
		// document order ahead of agent dispatch, so nothing to do here.
		return false, nil
	default:
		// KindSequence, KindGate (post-reconcile), and KindFunction
		// (post-expansion) all reduce to "run children in document order".
		return e.executeSequence(ctx, execID, r, node.Children)
	}
}

func (e *Engine) executeSequence(ctx context.Context, execID string, r *run, children []plan.Node) (bool, error) {
	didWork := false
	for _, child := range children {
		work, err := e.executeNode(ctx, execID, r, child)
		if err != nil {
			return didWork, err
		}
		didWork = didWork || work
	}
	return didWork, nil
}

func (e *Engine) executeParallel(ctx context.Context, execID string, r *run, children []plan.Node) (bool, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	results := make([]bool, len(children))
	for i, child := range children {
		i, child := i, child
		g.Go(func() error {
			work, err := e.executeNode(gctx, execID, r, child)
			results[i] = work
			return err
		})
	}
	err := g.Wait()
	didWork := false
	for _, w := range results {
		didWork = didWork || w
	}
	return didWork, err
}

func (e *Engine) appendStreamEvent(ctx context.Context, r *run, execID, invocationID, typ, payload string) error {
	_, err := e.store.AppendStreamEvent(ctx, store.StreamEvent{
		ID:           uuid.NewString(),
		ExecutionID:  execID,
		InvocationID: invocationID,
		Type:         typ,
		Payload:      payload,
	})
	return err
}
