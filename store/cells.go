package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SetStateCell upserts a named state cell for an execution. This is the
// single source of truth for state cells: engine-local caches must always
// be refreshed from here, never the reverse.
func (s *Store) SetStateCell(ctx context.Context, executionID, name, valueJSON string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state_cells (execution_id, name, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(execution_id, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		executionID, name, valueJSON, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: set state cell: %w", err)
	}
	return nil
}

// GetStateCell reads a single cell. ok is false when the cell has never
// been set.
func (s *Store) GetStateCell(ctx context.Context, executionID, name string) (value string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM state_cells WHERE execution_id = ? AND name = ?`, executionID, name)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: get state cell: %w", err)
	}
	return value, true, nil
}

// ListStateCells returns every cell for an execution as a name -> JSON map,
// the snapshot the reconciler reads at the start of each pass.
func (s *Store) ListStateCells(ctx context.Context, executionID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM state_cells WHERE execution_id = ?`, executionID)
	if err != nil {
		return nil, fmt.Errorf("store: list state cells: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("store: scan state cell: %w", err)
		}
		out[name] = value
	}
	return out, rows.Err()
}
