package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateExecution inserts a new execution row in the running state.
func (s *Store) CreateExecution(ctx context.Context, e Execution) error {
	start := time.Now()
	s.logger.Debug("store: create execution", "id", e.ID, "plan_path", e.PlanPath)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (id, plan_path, status, started_at, tree_snapshot)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.PlanPath, string(e.Status), e.StartedAt.UnixMilli(), e.TreeSnapshot,
	)
	if err != nil {
		s.logger.Error("store: create execution failed", "id", e.ID, "error", err, "duration", time.Since(start))
		return fmt.Errorf("store: create execution: %w", err)
	}
	s.logger.Debug("store: create execution ok", "id", e.ID, "duration", time.Since(start))
	return nil
}

// UpdateExecutionStatus transitions an execution's status and, when
// terminal, records the finish time and error.
func (s *Store) UpdateExecutionStatus(ctx context.Context, id string, status ExecutionStatus, errMsg string) error {
	start := time.Now()
	s.logger.Debug("store: update execution status", "id", id, "status", status)
	var finishedAt any
	if status == ExecutionCompleted || status == ExecutionFailed || status == ExecutionCancelled {
		finishedAt = time.Now().UnixMilli()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE executions SET status = ?, finished_at = ?, error = ? WHERE id = ?`,
		string(status), finishedAt, errMsg, id,
	)
	if err != nil {
		s.logger.Error("store: update execution status failed", "id", id, "error", err, "duration", time.Since(start))
		return fmt.Errorf("store: update execution status: %w", err)
	}
	s.logger.Debug("store: update execution status ok", "id", id, "duration", time.Since(start))
	return nil
}

// UpdateExecutionTree persists the latest reconciled tree snapshot, used to
// resume an execution and for post-hoc inspection.
func (s *Store) UpdateExecutionTree(ctx context.Context, id, treeJSON string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE executions SET tree_snapshot = ? WHERE id = ?`, treeJSON, id)
	if err != nil {
		return fmt.Errorf("store: update execution tree: %w", err)
	}
	return nil
}

// GetExecution loads a single execution by id.
func (s *Store) GetExecution(ctx context.Context, id string) (Execution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, plan_path, status, started_at, finished_at, error, tree_snapshot
		 FROM executions WHERE id = ?`, id)
	return scanExecution(row)
}

func scanExecution(row *sql.Row) (Execution, error) {
	var e Execution
	var status string
	var startedAt int64
	var finishedAt sql.NullInt64
	var errMsg sql.NullString
	var tree sql.NullString
	if err := row.Scan(&e.ID, &e.PlanPath, &status, &startedAt, &finishedAt, &errMsg, &tree); err != nil {
		return Execution{}, fmt.Errorf("store: get execution: %w", err)
	}
	e.Status = ExecutionStatus(status)
	e.StartedAt = time.UnixMilli(startedAt)
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64)
		e.FinishedAt = &t
	}
	e.Error = errMsg.String
	e.TreeSnapshot = tree.String
	return e, nil
}
