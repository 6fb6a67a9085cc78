package ratelimit

import (
	"net/http"
	"regexp"
	"strconv"
	"time"
)

// ParseAnthropicHeaders reads the anthropic-ratelimit-{requests,input-tokens,
// output-tokens}-{limit,remaining,reset} headers. Reset values are
// ISO-8601 timestamps.
func ParseAnthropicHeaders(h http.Header) Status {
	now := time.Now()
	return Status{
		Requests:     anthropicBucket(h, "requests"),
		InputTokens:  anthropicBucket(h, "input-tokens"),
		OutputTokens: anthropicBucket(h, "output-tokens"),
		ObservedAt:   now,
	}
}

func anthropicBucket(h http.Header, dimension string) Bucket {
	limit, _ := strconv.Atoi(h.Get("anthropic-ratelimit-" + dimension + "-limit"))
	remaining, _ := strconv.Atoi(h.Get("anthropic-ratelimit-" + dimension + "-remaining"))
	reset, _ := time.Parse(time.RFC3339, h.Get("anthropic-ratelimit-"+dimension+"-reset"))
	return Bucket{Limit: limit, Remaining: remaining, Reset: reset}
}

// ParseOpenAIHeaders reads the x-ratelimit-{limit,remaining,reset}-
// {requests,tokens} headers. Reset values are either a relative duration
// (e.g. "1s", "6m0s", "2ms") or an absolute RFC3339 timestamp; both are
// accepted. OpenAI exposes no per-output-token bucket, so OutputTokens is
// always Unconstrained, per the governor's Open Question resolution.
func ParseOpenAIHeaders(h http.Header) Status {
	return Status{
		Requests:     openAIBucket(h, "requests"),
		InputTokens:  openAIBucket(h, "tokens"),
		OutputTokens: Unconstrained(),
		ObservedAt:   time.Now(),
	}
}

func openAIBucket(h http.Header, dimension string) Bucket {
	limit, _ := strconv.Atoi(h.Get("x-ratelimit-limit-" + dimension))
	remaining, _ := strconv.Atoi(h.Get("x-ratelimit-remaining-" + dimension))
	reset := parseOpenAIReset(h.Get("x-ratelimit-reset-" + dimension))
	return Bucket{Limit: limit, Remaining: remaining, Reset: reset}
}

var relativeDurationPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)(ms|s|m|h|d)$`)

// parseOpenAIReset accepts either a relative duration like "1s", "6m0s",
// "2ms", "1d" (OpenAI's documented format extended with a day unit) or an
// absolute RFC3339 timestamp, per spec. An unparseable value yields a zero
// time, treated as "unknown" by callers.
func parseOpenAIReset(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return time.Now().Add(d)
	}
	if m := relativeDurationPattern.FindStringSubmatch(raw); m != nil {
		qty, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return time.Time{}
		}
		var unit time.Duration
		switch m[2] {
		case "ms":
			unit = time.Millisecond
		case "s":
			unit = time.Second
		case "m":
			unit = time.Minute
		case "h":
			unit = time.Hour
		case "d":
			unit = 24 * time.Hour
		}
		return time.Now().Add(time.Duration(qty * float64(unit)))
	}
	return time.Time{}
}
