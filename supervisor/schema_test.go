package supervisor

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conductor-run/conductor/plan"
)

func TestSessionFromResultPrefersFreshlyObservedSession(t *testing.T) {
	spec := plan.AgentSpec{Session: "stale-session"}
	result := Result{Events: []Event{
		{Type: EventAssistantText, Text: "working"},
		{Type: EventResult, Text: "done", SessionID: "fresh-session"},
	}}
	require.Equal(t, "fresh-session", sessionFromResult(spec, result))
}

func TestSessionFromResultFallsBackToSpecSession(t *testing.T) {
	spec := plan.AgentSpec{Session: "stale-session"}
	result := Result{Events: []Event{{Type: EventAssistantText, Text: "working"}}}
	require.Equal(t, "stale-session", sessionFromResult(spec, result))
}

func TestCorrectivePromptWithSessionOmitsPreviousOutput(t *testing.T) {
	prompt := correctivePrompt("", errors.New("missing field \"total\""))
	require.Contains(t, prompt, "missing field")
	require.NotContains(t, prompt, "Your previous output was")
}

func TestCorrectivePromptWithoutSessionEchoesTruncatedOutput(t *testing.T) {
	previous := strings.Repeat("x", correctivePromptOutputLimit+500)
	prompt := correctivePrompt(previous, errors.New("invalid json"))
	require.Contains(t, prompt, "Your previous output was")
	require.Contains(t, prompt, strings.Repeat("x", correctivePromptOutputLimit))
	require.NotContains(t, prompt, strings.Repeat("x", correctivePromptOutputLimit+1))
}

func TestExtractAndValidatePicksLastSatisfyingCandidate(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"total"},
		"properties": map[string]any{
			"total": map[string]any{"type": "number"},
		},
	}
	text := `thinking... {"total": "not a number"} more thinking... {"total": 42}`
	value, err := ExtractAndValidate(text, schema)
	require.NoError(t, err)
	require.Equal(t, `{"total": 42}`, value)
}

func TestExtractAndValidateErrorsWhenNoCandidateMatches(t *testing.T) {
	schema := map[string]any{"type": "object", "required": []any{"total"}}
	_, err := ExtractAndValidate(`{"other": 1}`, schema)
	require.Error(t, err)
}
