// Package plan defines the tree-shaped, declarative execution plan the
// orchestration engine reconciles and runs. Plans are plain data: a Node
// names a Kind, carries Props, and either lists static Children or computes
// them from a Render function evaluated against the current state-cell
// snapshot. The author-facing language that produces Node values is out of
// scope here; this package only consumes the resulting tree.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies what a Node does when reconciled.
type Kind string

const (
	// KindSequence runs its children in order, waiting for each to settle
	// before starting the next.
	KindSequence Kind = "sequence"
	// KindParallel runs its children concurrently, bounded by the engine's
	// concurrency cap.
	KindParallel Kind = "parallel"
	// KindAgent dispatches a single agent-process invocation.
	KindAgent Kind = "agent"
	// KindEffect invokes a registered effect handler (commit, snapshot,
	// worktree management, review posting).
	KindEffect Kind = "effect"
	// KindGate renders no children until a named state cell satisfies a
	// predicate, implementing conditional branches and stop conditions at
	// the plan level.
	KindGate Kind = "gate"
	// KindFunction computes its children dynamically via Render, given the
	// current ReconcileContext; rare at the core boundary, but required for
	// plans the author layer could not fully flatten ahead of time.
	KindFunction Kind = "function"
)

// Node is one element of a plan tree. Key must be unique among siblings; it
// is the identity the reconciler uses to match nodes across passes
// (analogous to a React key).
type Node struct {
	Kind     Kind
	Key      string
	Props    map[string]any
	Children []Node
	Render   RenderFunc
}

// RenderFunc computes a Node's children dynamically. It must be pure with
// respect to everything except ctx: given the same Props and the same
// state-cell snapshot in ctx, it must return the same children, or the
// reconciler's fixed-point stabilization will never converge.
type RenderFunc func(props map[string]any, ctx ReconcileContext) ([]Node, error)

// ReconcileContext exposes the state-cell snapshot and execution identity a
// RenderFunc or gate predicate needs to decide what to render next.
type ReconcileContext interface {
	// StateCell returns the named cell's current JSON value and whether it
	// has ever been set.
	StateCell(name string) (value string, ok bool)
	// ExecutionID identifies the running execution, for correlating
	// external effects.
	ExecutionID() string
}

// AgentSpec extracts the typed agent-invocation parameters from a KindAgent
// node's Props, applying the documented defaults.
type AgentSpec struct {
	AgentKind      string // claude | codex | amp | opencode | pi
	Prompt         string
	Model          string
	Session        string
	Schema         map[string]any // JSON Schema the output must satisfy, if any
	MaxRetries     int
	StopConditions []StopCondition
	Mock           *MockScript
}

// MockScript replaces a real process spawn with a scripted transcript for
// --mock runs and deterministic tests. Like StopCondition.Predict, it is
// attached to Props directly by a Go-side caller rather than routed through
// JSON.
type MockScript struct {
	// Turns, if set, is emitted as a sequence of assistant-text events, one
	// per call to onEvent, letting a test drive stop-condition detection
	// mid-stream. Takes priority over Outputs.
	Turns []string
	// Outputs is consumed one entry per dispatch attempt (retry attempts
	// advance the index, clamped to the last entry), for exercising the
	// schema-validation retry loop without a real process.
	Outputs []string
	// Delay simulates process latency before the first event, so tests can
	// exercise the parallel group's concurrency-timing property.
	Delay time.Duration
}

// StopConditionKind selects the semantics of a StopCondition.
type StopConditionKind string

const (
	StopOnTokenLimit    StopConditionKind = "token_limit"
	StopOnTimeLimit     StopConditionKind = "time_limit"
	StopOnTurnLimit     StopConditionKind = "turn_limit"
	StopOnOutputMatches StopConditionKind = "output_matches"
	StopOnCustom        StopConditionKind = "custom"
)

// StopCondition tells the supervisor when to end an agent invocation before
// the process exits on its own.
type StopCondition struct {
	Kind    StopConditionKind
	Limit   int           // for token_limit / turn_limit
	Elapsed int64         // milliseconds, for time_limit
	Pattern string        // regex, for output_matches
	Predict func(frame string) bool // for custom; not serializable, set programmatically only
}

// AgentSpecFromProps decodes Props into an AgentSpec, applying defaults for
// MaxRetries (3, per the schema-retry contract) when unset.
func AgentSpecFromProps(props map[string]any) (AgentSpec, error) {
	spec := AgentSpec{MaxRetries: 3}
	kind, _ := props["kind"].(string)
	if kind == "" {
		return AgentSpec{}, fmt.Errorf("plan: agent node missing required prop %q", "kind")
	}
	spec.AgentKind = kind
	spec.Prompt, _ = props["prompt"].(string)
	spec.Model, _ = props["model"].(string)
	spec.Session, _ = props["session"].(string)
	if schema, ok := props["schema"].(map[string]any); ok {
		spec.Schema = schema
	}
	if retries, ok := props["max_retries"].(int); ok {
		spec.MaxRetries = retries
	}
	// StopCondition carries an unexported-from-JSON Predict func, so an
	// author layer that wants one attaches a concrete slice to Props
	// directly rather than routing it through JSON.
	if stops, ok := props["stop_conditions"].([]StopCondition); ok {
		spec.StopConditions = stops
	}
	if mock, ok := props["mock"].(*MockScript); ok {
		spec.Mock = mock
	}
	return spec, nil
}

// SchemaFingerprint returns a stable sha256 hex digest of schema, for
// recording which required-output shape an invocation was dispatched
// against without persisting the schema body itself. Returns "" for a nil
// schema. Go's encoding/json marshals map keys in sorted order, so the
// digest is stable across calls regardless of map iteration order.
func SchemaFingerprint(schema map[string]any) string {
	if schema == nil {
		return ""
	}
	encoded, err := json.Marshal(schema)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
