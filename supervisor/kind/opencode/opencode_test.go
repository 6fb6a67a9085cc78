package opencode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/supervisor"
)

func TestBuildIncludesModelSessionAndPrompt(t *testing.T) {
	b := builder{}
	args := b.Build(plan.AgentSpec{Prompt: "hello", Model: "gpt-5", Session: "sess-1"})
	require.Equal(t, "run", args[0])
	require.Contains(t, args, "--model")
	require.Contains(t, args, "gpt-5")
	require.Contains(t, args, "--session")
	require.Contains(t, args, "sess-1")
	require.Equal(t, "hello", args[len(args)-1])
}

func TestBuildOmitsOptionalFlagsWhenUnset(t *testing.T) {
	b := builder{}
	args := b.Build(plan.AgentSpec{Prompt: "hello"})
	require.NotContains(t, args, "--model")
	require.NotContains(t, args, "--session")
}

func TestParseLineAssistantText(t *testing.T) {
	b := builder{}
	line := []byte(`{"type":"message.part.updated","part":{"type":"text","text":"hi there"}}`)
	events := b.ParseLine(line)
	require.Len(t, events, 1)
	require.Equal(t, supervisor.EventAssistantText, events[0].Type)
	require.Equal(t, "hi there", events[0].Text)
}

func TestParseLineToolResult(t *testing.T) {
	b := builder{}
	line := []byte(`{"type":"message.part.updated","part":{"type":"tool","text":"ran grep"}}`)
	events := b.ParseLine(line)
	require.Len(t, events, 1)
	require.Equal(t, supervisor.EventToolResult, events[0].Type)
}

func TestParseLineSessionIdleIsResult(t *testing.T) {
	b := builder{}
	events := b.ParseLine([]byte(`{"type":"session.idle"}`))
	require.Len(t, events, 1)
	require.Equal(t, supervisor.EventResult, events[0].Type)
}

func TestParseLineNonJSONFallsBackToRaw(t *testing.T) {
	b := builder{}
	events := b.ParseLine([]byte("not json"))
	require.Len(t, events, 1)
	require.Equal(t, supervisor.EventRaw, events[0].Type)
}

func TestClassifyExit(t *testing.T) {
	b := builder{}

	var authErr *supervisor.AuthError
	require.ErrorAs(t, b.ClassifyExit(1, "401 unauthorized"), &authErr)

	var rlErr *supervisor.RateLimitedError
	require.ErrorAs(t, b.ClassifyExit(1, "429 rate limit"), &rlErr)

	var exitErr *supervisor.ExitError
	require.ErrorAs(t, b.ClassifyExit(2, "boom"), &exitErr)

	require.NoError(t, b.ClassifyExit(0, ""))
}
