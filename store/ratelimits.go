package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordRateLimitSnapshot appends an observation of a provider/model's
// remaining budget. Snapshots are append-only; LatestRateLimitSnapshot
// returns the most recent one per (provider, model). The governor keeps its
// bucket in memory and does not read snapshots back.
func (s *Store) RecordRateLimitSnapshot(ctx context.Context, snap RateLimitSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rate_limit_snapshots
		 (id, provider, model, requests_limit, requests_remaining, requests_reset,
		  input_tokens_limit, input_tokens_remaining, input_tokens_reset,
		  output_tokens_limit, output_tokens_remaining, output_tokens_reset, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Provider, snap.Model,
		nullableInt(snap.RequestsLimit), nullableInt(snap.RequestsRemaining), nullableTime(snap.RequestsReset),
		nullableInt(snap.InputTokensLimit), nullableInt(snap.InputTokensRemaining), nullableTime(snap.InputTokensReset),
		nullableInt(snap.OutputTokensLimit), nullableInt(snap.OutputTokensRemaining), nullableTime(snap.OutputTokensReset),
		snap.ObservedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: record rate limit snapshot: %w", err)
	}
	return nil
}

// LatestRateLimitSnapshot returns the most recent snapshot for a
// (provider, model) pair, or ok=false if none has been recorded.
func (s *Store) LatestRateLimitSnapshot(ctx context.Context, provider, model string) (snap RateLimitSnapshot, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, provider, model, requests_limit, requests_remaining, requests_reset,
		        input_tokens_limit, input_tokens_remaining, input_tokens_reset,
		        output_tokens_limit, output_tokens_remaining, output_tokens_reset, observed_at
		 FROM rate_limit_snapshots WHERE provider = ? AND model = ?
		 ORDER BY observed_at DESC LIMIT 1`, provider, model)

	var requestsLimit, requestsRemaining, inputLimit, inputRemaining, outputLimit, outputRemaining sql.NullInt64
	var requestsReset, inputReset, outputReset sql.NullInt64
	var observedAt int64
	if err := row.Scan(&snap.ID, &snap.Provider, &snap.Model,
		&requestsLimit, &requestsRemaining, &requestsReset,
		&inputLimit, &inputRemaining, &inputReset,
		&outputLimit, &outputRemaining, &outputReset, &observedAt); err != nil {
		if err == sql.ErrNoRows {
			return RateLimitSnapshot{}, false, nil
		}
		return RateLimitSnapshot{}, false, fmt.Errorf("store: latest rate limit snapshot: %w", err)
	}
	snap.RequestsLimit = intPtr(requestsLimit)
	snap.RequestsRemaining = intPtr(requestsRemaining)
	snap.RequestsReset = timePtr(requestsReset)
	snap.InputTokensLimit = intPtr(inputLimit)
	snap.InputTokensRemaining = intPtr(inputRemaining)
	snap.InputTokensReset = timePtr(inputReset)
	snap.OutputTokensLimit = intPtr(outputLimit)
	snap.OutputTokensRemaining = intPtr(outputRemaining)
	snap.OutputTokensReset = timePtr(outputReset)
	snap.ObservedAt = time.UnixMilli(observedAt)
	return snap, true, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UnixMilli()
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}
