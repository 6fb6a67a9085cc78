package amp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/supervisor"
)

func TestBuildIncludesModelAndThread(t *testing.T) {
	b := builder{}
	args := b.Build(plan.AgentSpec{Prompt: "hello", Model: "claude-opus-4", Session: "thread-1"})
	require.Contains(t, args, "hello")
	require.Contains(t, args, "--model")
	require.Contains(t, args, "claude-opus-4")
	require.Contains(t, args, "--thread")
	require.Contains(t, args, "thread-1")
}

func TestBuildOmitsOptionalFlagsWhenUnset(t *testing.T) {
	b := builder{}
	args := b.Build(plan.AgentSpec{Prompt: "hello"})
	require.NotContains(t, args, "--model")
	require.NotContains(t, args, "--thread")
}

func TestParseLineAssistantTextAndToolUse(t *testing.T) {
	b := builder{}
	line := []byte(`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"hi"},{"type":"tool_use","name":"grep"}]}}`)
	events := b.ParseLine(line)
	require.Len(t, events, 2)
	require.Equal(t, supervisor.EventAssistantText, events[0].Type)
	require.Equal(t, "hi", events[0].Text)
	require.Equal(t, supervisor.EventToolUse, events[1].Type)
	require.Equal(t, "grep", events[1].Text)
}

func TestParseLineResult(t *testing.T) {
	b := builder{}
	events := b.ParseLine([]byte(`{"type":"result"}`))
	require.Len(t, events, 1)
	require.Equal(t, supervisor.EventResult, events[0].Type)
}

func TestParseLineResultCarriesThreadAsSessionID(t *testing.T) {
	b := builder{}
	events := b.ParseLine([]byte(`{"type":"result","thread_id":"thread-42"}`))
	require.Len(t, events, 1)
	require.Equal(t, "thread-42", events[0].SessionID)
}

func TestParseLineNonJSONFallsBackToRaw(t *testing.T) {
	b := builder{}
	events := b.ParseLine([]byte("not json"))
	require.Len(t, events, 1)
	require.Equal(t, supervisor.EventRaw, events[0].Type)
}

func TestParseLineBlankIsIgnored(t *testing.T) {
	b := builder{}
	require.Nil(t, b.ParseLine([]byte("   ")))
}

func TestClassifyExit(t *testing.T) {
	b := builder{}

	var authErr *supervisor.AuthError
	require.ErrorAs(t, b.ClassifyExit(1, "please sign in to continue"), &authErr)

	var rlErr *supervisor.RateLimitedError
	require.ErrorAs(t, b.ClassifyExit(1, "rate limit exceeded"), &rlErr)

	var exitErr *supervisor.ExitError
	require.ErrorAs(t, b.ClassifyExit(1, "boom"), &exitErr)

	require.NoError(t, b.ClassifyExit(0, ""))
}
