package ratelimit

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseAnthropicHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("anthropic-ratelimit-requests-limit", "50")
	h.Set("anthropic-ratelimit-requests-remaining", "49")
	h.Set("anthropic-ratelimit-requests-reset", "2026-08-01T12:00:00Z")
	h.Set("anthropic-ratelimit-input-tokens-limit", "100000")
	h.Set("anthropic-ratelimit-input-tokens-remaining", "95000")

	status := ParseAnthropicHeaders(h)
	require.Equal(t, 50, status.Requests.Limit)
	require.Equal(t, 49, status.Requests.Remaining)
	require.Equal(t, 2026, status.Requests.Reset.Year())
	require.Equal(t, 100000, status.InputTokens.Limit)
}

func TestParseOpenAIHeadersRelativeDuration(t *testing.T) {
	h := http.Header{}
	h.Set("x-ratelimit-limit-requests", "3000")
	h.Set("x-ratelimit-remaining-requests", "2999")
	h.Set("x-ratelimit-reset-requests", "6m0s")
	h.Set("x-ratelimit-limit-tokens", "1000000")
	h.Set("x-ratelimit-remaining-tokens", "999000")
	h.Set("x-ratelimit-reset-tokens", "2ms")

	before := time.Now()
	status := ParseOpenAIHeaders(h)
	require.Equal(t, 3000, status.Requests.Limit)
	require.True(t, status.Requests.Reset.After(before.Add(5*time.Minute)))
	require.True(t, status.OutputTokens.Limit == 0, "openai output tokens bucket must be unconstrained")
}

func TestParseOpenAIResetAbsoluteTimestamp(t *testing.T) {
	got := parseOpenAIReset("2026-08-01T00:00:00Z")
	require.Equal(t, 2026, got.Year())
}

func TestParseOpenAIResetUnparseable(t *testing.T) {
	got := parseOpenAIReset("not-a-duration")
	require.True(t, got.IsZero())
}
