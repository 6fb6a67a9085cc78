// Package ratelimit implements the cross-provider rate-limit governor: one
// budget per (provider, model), refreshed from response headers or an
// out-of-band probe, enforced with a token bucket, and throttled according
// to a configurable policy.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/conductor-run/conductor/agents/runtime/telemetry"
)

// BackoffStrategy names a backoff curve for ThrottlePolicy. The governor
// stores it but does not read it: throttleDelay applies the same clamp for
// every value.
type BackoffStrategy string

const (
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// ThrottlePolicy configures how aggressively the governor paces requests
// against a budget.
type ThrottlePolicy struct {
	TargetUtilization float64 // fraction of the limit the governor tries to stay under, e.g. 0.8
	MinDelay          time.Duration
	MaxDelay          time.Duration
	Backoff           BackoffStrategy
	BlockOnLimit      bool // when true, Wait sleeps until Reset instead of returning ErrRateLimited
}

// DefaultThrottlePolicy favors a header-driven refresh over pure AIMD: stay
// under 80% utilization, never wait less than 50ms or more than 30s at a
// time. Backoff is set to BackoffExponential, which throttleDelay does not
// read.
func DefaultThrottlePolicy() ThrottlePolicy {
	return ThrottlePolicy{
		TargetUtilization: 0.8,
		MinDelay:          50 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		Backoff:           BackoffExponential,
		BlockOnLimit:      true,
	}
}

// Bucket is a single (limit, remaining, reset) triple for one resource
// dimension (requests, input tokens, or output tokens).
type Bucket struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Status is a snapshot of a provider/model's rate-limit state, parsed from
// response headers or returned by a probe.
type Status struct {
	Requests     Bucket
	InputTokens  Bucket
	OutputTokens Bucket
	ObservedAt   time.Time
}

// Unconstrained marks a bucket as having no known limit (e.g. OpenAI's
// output-token bucket, which is never reported in headers).
func Unconstrained() Bucket { return Bucket{Limit: 0} }

func (b Bucket) constrained() bool { return b.Limit > 0 }

// overallRemainingFraction computes the three-way minimum across the
// request, input-token, and output-token buckets: the smallest fraction of
// capacity still remaining in any constrained bucket. A bucket with
// Limit == 0 is unconstrained and excluded; ok is false only when every
// bucket is unconstrained, meaning there is nothing to throttle against.
func overallRemainingFraction(status Status) (fraction float64, ok bool) {
	fraction = 1
	for _, b := range [...]Bucket{status.Requests, status.InputTokens, status.OutputTokens} {
		if !b.constrained() {
			continue
		}
		ok = true
		f := float64(b.Remaining) / float64(b.Limit)
		if f < 0 {
			f = 0
		}
		if f < fraction {
			fraction = f
		}
	}
	return fraction, ok
}

// pacingBucket picks the constrained bucket whose limit and reset set the
// token bucket's refill cadence, preferring Requests (the natural per-call
// unit) and falling back to whichever token bucket is actually constrained.
func pacingBucket(status Status) (limit int, reset time.Time, ok bool) {
	for _, b := range [...]Bucket{status.Requests, status.InputTokens, status.OutputTokens} {
		if b.constrained() {
			return b.Limit, b.Reset, true
		}
	}
	return 0, time.Time{}, false
}

// exhaustedReset returns the latest reset time among constrained buckets
// that are currently fully exhausted, so a blocking Wait sleeps long enough
// for every exhausted resource to refill, not just the first one found.
func exhaustedReset(status Status) time.Time {
	var latest time.Time
	for _, b := range [...]Bucket{status.Requests, status.InputTokens, status.OutputTokens} {
		if b.constrained() && b.Remaining <= 0 && b.Reset.After(latest) {
			latest = b.Reset
		}
	}
	return latest
}

// Provider probes a vendor out-of-band to refresh Status when no recent
// response headers are available.
type Provider interface {
	Name() string
	QueryStatus(ctx context.Context, model string) (Status, error)
}

// ErrRateLimited is returned by Wait when BlockOnLimit is false and the
// budget for a (provider, model) pair is currently exhausted.
type ErrRateLimited struct {
	Provider string
	Model    string
	Reset    time.Time
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("ratelimit: %s/%s exhausted, resets at %s", e.Provider, e.Model, e.Reset.Format(time.RFC3339))
}

type key struct {
	provider string
	model    string
}

type budget struct {
	mu      sync.Mutex
	status  Status
	limiter *rate.Limiter
}

// Governor owns one budget per (provider, model) pair and enforces
// ThrottlePolicy against it. One Governor is shared process-wide; all
// callers for a given (provider, model) draw from the same budget,
// including agents dispatched inside the same parallel group.
type Governor struct {
	mu       sync.Mutex
	budgets  map[key]*budget
	policy   ThrottlePolicy
	logger   telemetry.Logger
	metrics  telemetry.Metrics
	probeTTL time.Duration
}

// Options configures a Governor.
type Options struct {
	Policy   ThrottlePolicy
	Logger   telemetry.Logger
	Metrics  telemetry.Metrics
	ProbeTTL time.Duration // how long a Status from a probe is trusted before re-probing
}

// New constructs a Governor. A nil Logger/Metrics is replaced with a noop
// implementation.
func New(opts Options) *Governor {
	if opts.Logger == nil {
		opts.Logger = telemetry.NewNoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewNoopMetrics()
	}
	if opts.Policy == (ThrottlePolicy{}) {
		opts.Policy = DefaultThrottlePolicy()
	}
	if opts.ProbeTTL <= 0 {
		opts.ProbeTTL = 30 * time.Second
	}
	return &Governor{
		budgets:  make(map[key]*budget),
		policy:   opts.Policy,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		probeTTL: opts.ProbeTTL,
	}
}

func (g *Governor) budgetFor(provider, model string) *budget {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := key{provider, model}
	b, ok := g.budgets[k]
	if !ok {
		b = &budget{limiter: rate.NewLimiter(rate.Inf, 1)}
		g.budgets[k] = b
	}
	return b
}

// Observe records a freshly parsed Status, typically from response headers
// on the immediately preceding call. The token bucket's rate is
// recalculated from the new remaining/reset pair.
func (g *Governor) Observe(provider, model string, status Status) {
	b := g.budgetFor(provider, model)
	b.mu.Lock()
	defer b.mu.Unlock()
	if status.ObservedAt.IsZero() {
		status.ObservedAt = time.Now()
	}
	b.status = status
	b.retune(g.policy)
	g.logger.Debug(context.Background(), "ratelimit: observed status",
		"provider", provider, "model", model,
		"requests_remaining", status.Requests.Remaining, "requests_limit", status.Requests.Limit)
}

// retune recalculates the underlying token-bucket rate so the governor
// spends its overall remaining capacity (the three-way minimum across
// requests, input tokens, and output tokens) evenly until the pacing
// bucket's reset time, scaled by TargetUtilization.
func (b *budget) retune(policy ThrottlePolicy) {
	fraction, ok := overallRemainingFraction(b.status)
	if !ok {
		b.limiter.SetLimit(rate.Inf)
		return
	}
	limit, reset, ok := pacingBucket(b.status)
	if !ok {
		b.limiter.SetLimit(rate.Inf)
		return
	}
	window := time.Until(reset)
	if window <= 0 {
		b.limiter.SetLimit(rate.Inf)
		return
	}
	target := float64(limit) * fraction * policy.TargetUtilization
	if target < 0 {
		target = 0
	}
	ratePerSec := target / window.Seconds()
	b.limiter = rate.NewLimiter(rate.Limit(ratePerSec), max(1, int(target)))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Wait blocks the caller until the (provider, model) budget has capacity,
// or returns ErrRateLimited immediately when the policy does not block.
func (g *Governor) Wait(ctx context.Context, provider, model string) error {
	b := g.budgetFor(provider, model)

	b.mu.Lock()
	fraction, ok := overallRemainingFraction(b.status)
	reset := exhaustedReset(b.status)
	exhausted := ok && fraction <= 0 && !reset.IsZero() && time.Now().Before(reset)
	limiter := b.limiter
	b.mu.Unlock()

	if exhausted {
		if !g.policy.BlockOnLimit {
			return &ErrRateLimited{Provider: provider, Model: model, Reset: reset}
		}
		delay := g.throttleDelay(time.Until(reset))
		g.logger.Info(ctx, "ratelimit: blocking until reset", "provider", provider, "model", model, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("ratelimit: wait: %w", err)
	}
	g.metrics.IncCounter("ratelimit.wait", 1, "provider", provider, "model", model)
	return nil
}

// throttleDelay clamps a raw delay to [MinDelay, MaxDelay]. It does not read
// policy.Backoff: linear and exponential policies yield the same delay, and
// the delay does not grow across successive exhaustions.
func (g *Governor) throttleDelay(raw time.Duration) time.Duration {
	if raw < g.policy.MinDelay {
		return g.policy.MinDelay
	}
	if raw > g.policy.MaxDelay {
		return g.policy.MaxDelay
	}
	return raw
}

// Probe refreshes the budget for (provider, model) using p when the last
// observed status is stale or absent. It is the fallback path for
// providers (Bedrock) or configurations where response headers are
// unavailable.
func (g *Governor) Probe(ctx context.Context, p Provider, model string) error {
	b := g.budgetFor(p.Name(), model)

	b.mu.Lock()
	stale := time.Since(b.status.ObservedAt) > g.probeTTL
	b.mu.Unlock()
	if !stale {
		return nil
	}

	status, err := p.QueryStatus(ctx, model)
	if err != nil {
		return fmt.Errorf("ratelimit: probe %s: %w", p.Name(), err)
	}
	g.Observe(p.Name(), model, status)
	return nil
}

// Snapshot returns the last observed Status for a (provider, model) pair,
// used by the store layer to persist a RateLimitSnapshot row.
func (g *Governor) Snapshot(provider, model string) (Status, bool) {
	g.mu.Lock()
	b, ok := g.budgets[key{provider, model}]
	g.mu.Unlock()
	if !ok {
		return Status{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status, !b.status.ObservedAt.IsZero()
}
