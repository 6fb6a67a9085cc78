package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AppendStreamEvent inserts a stream event at the next sequence number,
// dense and strictly increasing per agent invocation. Events with no
// invocation (e.g. frame_snapshot, effect_result) draw from a separate
// counter scoped to the execution instead.
func (s *Store) AppendStreamEvent(ctx context.Context, ev StreamEvent) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: append stream event: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var maxSeq int
	var row *sql.Row
	if ev.InvocationID != "" {
		row = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), -1) FROM stream_events WHERE invocation_id = ?`, ev.InvocationID)
	} else {
		row = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), -1) FROM stream_events WHERE execution_id = ? AND invocation_id IS NULL`, ev.ExecutionID)
	}
	if err := row.Scan(&maxSeq); err != nil {
		return 0, fmt.Errorf("store: append stream event: max seq: %w", err)
	}
	seq := maxSeq + 1

	var invocationID sql.NullString
	if ev.InvocationID != "" {
		invocationID = sql.NullString{String: ev.InvocationID, Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stream_events (id, execution_id, invocation_id, seq, type, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ExecutionID, invocationID, seq, ev.Type, ev.Payload, time.Now().UnixMilli(),
	); err != nil {
		return 0, fmt.Errorf("store: append stream event: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: append stream event: commit: %w", err)
	}
	return seq, nil
}

// ListStreamEvents returns events for an execution with seq > after, in
// order, for incremental readers (e.g. a `run --follow` consumer).
func (s *Store) ListStreamEvents(ctx context.Context, executionID string, after int) ([]StreamEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, execution_id, invocation_id, seq, type, payload, created_at
		 FROM stream_events WHERE execution_id = ? AND seq > ? ORDER BY seq ASC`, executionID, after)
	if err != nil {
		return nil, fmt.Errorf("store: list stream events: %w", err)
	}
	defer rows.Close()

	var out []StreamEvent
	for rows.Next() {
		var ev StreamEvent
		var invocationID sql.NullString
		var createdAt int64
		if err := rows.Scan(&ev.ID, &ev.ExecutionID, &invocationID, &ev.Seq, &ev.Type, &ev.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan stream event: %w", err)
		}
		ev.InvocationID = invocationID.String
		ev.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, ev)
	}
	return out, rows.Err()
}
