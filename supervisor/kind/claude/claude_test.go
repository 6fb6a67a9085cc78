package claude

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/supervisor"
)

func TestBuildIncludesModelAndSession(t *testing.T) {
	b := builder{}
	args := b.Build(plan.AgentSpec{Prompt: "hello", Model: "claude-opus-4", Session: "sess-1"})
	require.Contains(t, args, "--model")
	require.Contains(t, args, "claude-opus-4")
	require.Contains(t, args, "--resume")
	require.Contains(t, args, "sess-1")
	require.Equal(t, "hello", args[len(args)-1])
}

func TestParseLineAssistantText(t *testing.T) {
	b := builder{}
	line := []byte(`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"hi there"}]}}`)
	events := b.ParseLine(line)
	require.Len(t, events, 1)
	require.Equal(t, supervisor.EventAssistantText, events[0].Type)
	require.Equal(t, "hi there", events[0].Text)
}

func TestParseLineNonJSONFallsBackToRaw(t *testing.T) {
	b := builder{}
	events := b.ParseLine([]byte("not json at all"))
	require.Len(t, events, 1)
	require.Equal(t, supervisor.EventRaw, events[0].Type)
}

func TestParseLineResultCarriesTokenUsage(t *testing.T) {
	b := builder{}
	line := []byte(`{"type":"result","result":"done","session_id":"sess-2","usage":{"input_tokens":7,"output_tokens":42}}`)
	events := b.ParseLine(line)
	require.Len(t, events, 1)
	require.Equal(t, supervisor.EventResult, events[0].Type)
	require.Equal(t, 7, events[0].Payload["input_tokens"])
	require.Equal(t, 42, events[0].Payload["output_tokens"])
	require.Equal(t, "sess-2", events[0].SessionID)
}

func TestClassifyExitAuth(t *testing.T) {
	b := builder{}
	err := b.ClassifyExit(1, "Error: not authenticated, please run `claude login`")
	require.Error(t, err)
	var authErr *supervisor.AuthError
	require.ErrorAs(t, err, &authErr)
}
