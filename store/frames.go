package store

import (
	"context"
	"fmt"
	"time"
)

// AppendFrame inserts a frame at the next sequence number for its
// invocation. Sequence assignment happens inside a transaction so
// concurrent appends (which cannot happen under the single-writer policy,
// but may be attempted by a caller bug) never collide.
func (s *Store) AppendFrame(ctx context.Context, f Frame) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: append frame: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var maxSeq int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), -1) FROM frames WHERE invocation_id = ?`, f.InvocationID)
	if err := row.Scan(&maxSeq); err != nil {
		return 0, fmt.Errorf("store: append frame: max seq: %w", err)
	}
	seq := maxSeq + 1

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO frames (id, invocation_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.InvocationID, seq, string(f.Role), f.Content, time.Now().UnixMilli(),
	); err != nil {
		return 0, fmt.Errorf("store: append frame: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: append frame: commit: %w", err)
	}
	return seq, nil
}

// ListFrames returns every frame for an invocation in sequence order.
func (s *Store) ListFrames(ctx context.Context, invocationID string) ([]Frame, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, invocation_id, seq, role, content, created_at FROM frames
		 WHERE invocation_id = ? ORDER BY seq ASC`, invocationID)
	if err != nil {
		return nil, fmt.Errorf("store: list frames: %w", err)
	}
	defer rows.Close()

	var out []Frame
	for rows.Next() {
		var f Frame
		var role string
		var createdAt int64
		if err := rows.Scan(&f.ID, &f.InvocationID, &f.Seq, &role, &f.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan frame: %w", err)
		}
		f.Role = FrameRole(role)
		f.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}
