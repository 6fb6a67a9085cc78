package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowAllAlwaysAllows(t *testing.T) {
	decision, err := AllowAll.Decide(t.Context(), Input{NodeKey: "n1"})
	require.NoError(t, err)
	require.True(t, decision.Allow)
	require.Equal(t, -1, decision.MaxRetries)
}

func TestCircuitBreakerAllowsBelowThreshold(t *testing.T) {
	c := CircuitBreaker{MaxConsecutiveFailures: 3}
	decision, err := c.Decide(t.Context(), Input{NodeKey: "n1", PriorFailures: 2})
	require.NoError(t, err)
	require.True(t, decision.Allow)
}

func TestCircuitBreakerDeniesAtThreshold(t *testing.T) {
	c := CircuitBreaker{MaxConsecutiveFailures: 3}
	decision, err := c.Decide(t.Context(), Input{NodeKey: "n1", PriorFailures: 3})
	require.NoError(t, err)
	require.False(t, decision.Allow)
	require.NotEmpty(t, decision.Reason)
}

func TestCircuitBreakerDisabledWhenThresholdUnset(t *testing.T) {
	c := CircuitBreaker{}
	decision, err := c.Decide(t.Context(), Input{NodeKey: "n1", PriorFailures: 1000})
	require.NoError(t, err)
	require.True(t, decision.Allow)
}
