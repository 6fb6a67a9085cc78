package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conductor-run/conductor/plan"
)

func TestEvaluateStopConditionsTurnLimit(t *testing.T) {
	stops := []plan.StopCondition{{Kind: plan.StopOnTurnLimit, Limit: 3}}
	reason, fire := evaluateStopConditions(stops, nil, 3, 0)
	require.True(t, fire)
	require.Equal(t, "turn_limit", reason)
}

func TestEvaluateStopConditionsTimeLimit(t *testing.T) {
	stops := []plan.StopCondition{{Kind: plan.StopOnTimeLimit, Elapsed: 1000}}
	reason, fire := evaluateStopConditions(stops, nil, 0, 2*time.Second)
	require.True(t, fire)
	require.Equal(t, "time_limit", reason)
}

func TestEvaluateStopConditionsOutputMatches(t *testing.T) {
	stops := []plan.StopCondition{{Kind: plan.StopOnOutputMatches, Pattern: "DONE"}}
	events := []Event{{Type: EventAssistantText, Text: "task is DONE now"}}
	reason, fire := evaluateStopConditions(stops, events, 1, 0)
	require.True(t, fire)
	require.Equal(t, "output_matches", reason)
}

func TestEvaluateStopConditionsTokenLimitIsNotHandledHere(t *testing.T) {
	// Token usage is only known from EventResult payloads, checked separately
	// via checkTokenLimit once a result event arrives.
	stops := []plan.StopCondition{{Kind: plan.StopOnTokenLimit, Limit: 1}}
	_, fire := evaluateStopConditions(stops, nil, 100, time.Hour)
	require.False(t, fire)
}

func TestCheckTokenLimitFiresAtOrAboveLimit(t *testing.T) {
	stops := []plan.StopCondition{{Kind: plan.StopOnTokenLimit, Limit: 1000}}
	require.False(t, checkTokenLimit(stops, 999))
	require.True(t, checkTokenLimit(stops, 1000))
	require.True(t, checkTokenLimit(stops, 1001))
}

func TestCheckTokenLimitIgnoresUnsetLimit(t *testing.T) {
	stops := []plan.StopCondition{{Kind: plan.StopOnTokenLimit, Limit: 0}}
	require.False(t, checkTokenLimit(stops, 1_000_000))
}
