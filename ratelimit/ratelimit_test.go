package ratelimit

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestGovernorObserveRetunesBudget(t *testing.T) {
	g := New(Options{})
	g.Observe("anthropic", "claude-opus", Status{
		Requests:   Bucket{Limit: 50, Remaining: 10, Reset: time.Now().Add(time.Minute)},
		ObservedAt: time.Now(),
	})
	snap, ok := g.Snapshot("anthropic", "claude-opus")
	require.True(t, ok)
	require.Equal(t, 10, snap.Requests.Remaining)
}

func TestGovernorWaitReturnsErrWhenNotBlocking(t *testing.T) {
	g := New(Options{Policy: ThrottlePolicy{BlockOnLimit: false, MinDelay: time.Millisecond, MaxDelay: time.Second}})
	g.Observe("openai", "gpt-5", Status{
		Requests:   Bucket{Limit: 10, Remaining: 0, Reset: time.Now().Add(time.Hour)},
		ObservedAt: time.Now(),
	})
	err := g.Wait(t.Context(), "openai", "gpt-5")
	require.Error(t, err)
	var rl *ErrRateLimited
	require.ErrorAs(t, err, &rl)
}

// TestGovernorWaitThrottlesOnExhaustedInputTokenBudget verifies the budget
// is governed by the minimum across all three buckets: a healthy request
// budget must not mask an exhausted input-token budget.
func TestGovernorWaitThrottlesOnExhaustedInputTokenBudget(t *testing.T) {
	g := New(Options{Policy: ThrottlePolicy{BlockOnLimit: false, MinDelay: time.Millisecond, MaxDelay: time.Second}})
	g.Observe("anthropic", "claude-opus", Status{
		Requests:    Bucket{Limit: 50, Remaining: 49, Reset: time.Now().Add(time.Hour)},
		InputTokens: Bucket{Limit: 100000, Remaining: 0, Reset: time.Now().Add(time.Hour)},
		ObservedAt:  time.Now(),
	})
	err := g.Wait(t.Context(), "anthropic", "claude-opus")
	require.Error(t, err)
	var rl *ErrRateLimited
	require.ErrorAs(t, err, &rl)
}

func TestOverallRemainingFractionIsThreeWayMinimum(t *testing.T) {
	status := Status{
		Requests:     Bucket{Limit: 100, Remaining: 80},
		InputTokens:  Bucket{Limit: 100000, Remaining: 10000},
		OutputTokens: Bucket{Limit: 0, Remaining: 0}, // unconstrained, excluded
	}
	fraction, ok := overallRemainingFraction(status)
	require.True(t, ok)
	require.InDelta(t, 0.1, fraction, 0.0001)
}

func TestOverallRemainingFractionUnconstrainedWhenNoBucketsSet(t *testing.T) {
	_, ok := overallRemainingFraction(Status{})
	require.False(t, ok)
}

// TestThrottleDelayBoundProperty verifies the universal property that
// throttleDelay always returns a value within [MinDelay, MaxDelay]
// regardless of the raw input delay.
func TestThrottleDelayBoundProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("throttle delay is always clamped", prop.ForAll(
		func(rawMillis int64) bool {
			g := New(Options{Policy: ThrottlePolicy{
				MinDelay: 10 * time.Millisecond,
				MaxDelay: 5 * time.Second,
			}})
			delay := g.throttleDelay(time.Duration(rawMillis) * time.Millisecond)
			return delay >= g.policy.MinDelay && delay <= g.policy.MaxDelay
		},
		gen.Int64Range(-1000, 100000),
	))

	properties.TestingRun(t)
}
