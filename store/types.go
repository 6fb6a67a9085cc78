package store

import "time"

// ExecutionStatus is the lifecycle state of an Execution.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionPaused    ExecutionStatus = "paused"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// Execution is a single run of a plan from root to settled tree (or
// failure/cancellation).
type Execution struct {
	ID           string
	PlanPath     string
	Status       ExecutionStatus
	StartedAt    time.Time
	FinishedAt   *time.Time
	Error        string
	TreeSnapshot string // serialized reconciled tree, for resume/inspection
}

// InvocationStatus is the lifecycle state of an AgentInvocation.
type InvocationStatus string

const (
	InvocationPending   InvocationStatus = "pending"
	InvocationRunning   InvocationStatus = "running"
	InvocationCompleted InvocationStatus = "completed"
	InvocationFailed    InvocationStatus = "failed"
	InvocationCancelled InvocationStatus = "cancelled"
)

// AgentInvocation records one dispatch of an agent-process CLI.
type AgentInvocation struct {
	ID                string
	ExecutionID       string
	NodeKey           string
	Kind              string // claude | codex | amp | opencode | pi
	Status            InvocationStatus
	Session           string
	Model             string
	Provider          string
	Prompt            string // full prompt text sent at dispatch
	SchemaFingerprint string // sha256 hex of the required-output JSON Schema, empty if none
	StartedAt         time.Time
	FinishedAt        *time.Time
	ExitCode          *int
	Error             string
	Retries           int

	// Populated at FinishAgentInvocation, once the outcome is known.
	InputTokens      int
	OutputTokens     int
	Turns            int
	OutputText       string
	StructuredOutput string // raw JSON, set only when Schema was satisfied
}

// FrameRole distinguishes the originator of a Frame.
type FrameRole string

const (
	FrameRoleUser      FrameRole = "user"
	FrameRoleAssistant FrameRole = "assistant"
	FrameRoleTool      FrameRole = "tool"
	FrameRoleSystem    FrameRole = "system"
)

// Frame is one ordered turn exchanged with an agent process.
type Frame struct {
	ID           string
	InvocationID string
	Seq          int
	Role         FrameRole
	Content      string // raw JSON payload for the turn
	CreatedAt    time.Time
}

// StreamEvent is a unit of observable progress published during an
// execution, independent of any particular invocation.
type StreamEvent struct {
	ID           string
	ExecutionID  string
	InvocationID string // empty when not tied to a single invocation
	Seq          int
	Type         string
	Payload      string // raw JSON
	CreatedAt    time.Time
}

// StateCell is a named, execution-scoped mutable JSON value read and
// written by plan nodes to drive control flow.
type StateCell struct {
	ExecutionID string
	Name        string
	Value       string // raw JSON
	UpdatedAt   time.Time
}

// RateLimitSnapshot is one observation of a provider/model's remaining
// budget, from either response headers or an out-of-band probe.
type RateLimitSnapshot struct {
	ID                    string
	Provider              string
	Model                 string
	RequestsLimit         *int
	RequestsRemaining     *int
	RequestsReset         *time.Time
	InputTokensLimit      *int
	InputTokensRemaining  *int
	InputTokensReset      *time.Time
	OutputTokensLimit     *int
	OutputTokensRemaining *int
	OutputTokensReset     *time.Time
	ObservedAt            time.Time
}
