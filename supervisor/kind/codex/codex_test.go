package codex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/supervisor"
)

func TestBuildUsesExecFullAuto(t *testing.T) {
	b := builder{}
	args := b.Build(plan.AgentSpec{Prompt: "fix the bug"})
	require.Equal(t, "exec", args[0])
	require.Contains(t, args, "--full-auto")
	require.Equal(t, "fix the bug", args[len(args)-1])
}

func TestParseLineAgentMessage(t *testing.T) {
	b := builder{}
	line := []byte(`{"type":"item.completed","item":{"type":"agent_message","text":"done"}}`)
	events := b.ParseLine(line)
	require.Len(t, events, 1)
	require.Equal(t, supervisor.EventAssistantText, events[0].Type)
}

func TestClassifyExitRateLimit(t *testing.T) {
	b := builder{}
	err := b.ClassifyExit(1, "received 429 rate_limit_exceeded")
	var rlErr *supervisor.RateLimitedError
	require.ErrorAs(t, err, &rlErr)
}
