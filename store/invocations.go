package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateAgentInvocation inserts a new invocation row.
func (s *Store) CreateAgentInvocation(ctx context.Context, inv AgentInvocation) error {
	start := time.Now()
	s.logger.Debug("store: create invocation", "id", inv.ID, "kind", inv.Kind, "node_key", inv.NodeKey)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_invocations
		 (id, execution_id, node_key, kind, status, session, model, provider, prompt, schema_fingerprint, started_at, retries)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.ExecutionID, inv.NodeKey, inv.Kind, string(inv.Status), inv.Session,
		inv.Model, inv.Provider, inv.Prompt, nullableString(inv.SchemaFingerprint), inv.StartedAt.UnixMilli(), inv.Retries,
	)
	if err != nil {
		s.logger.Error("store: create invocation failed", "id", inv.ID, "error", err, "duration", time.Since(start))
		return fmt.Errorf("store: create invocation: %w", err)
	}
	s.logger.Debug("store: create invocation ok", "id", inv.ID, "duration", time.Since(start))
	return nil
}

// FinishOutcome carries the fields FinishAgentInvocation records once an
// invocation's outcome is known: usage counters, turn count, and the final
// (optionally schema-validated) output.
type FinishOutcome struct {
	Status           InvocationStatus
	ExitCode         int
	Error            string
	InputTokens      int
	OutputTokens     int
	Turns            int
	OutputText       string
	StructuredOutput string // empty when Schema was unset or never satisfied
}

// FinishAgentInvocation records the terminal status, exit code, error (if
// any), usage counters, and output of an invocation.
func (s *Store) FinishAgentInvocation(ctx context.Context, id string, out FinishOutcome) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE agent_invocations
		 SET status = ?, finished_at = ?, exit_code = ?, error = ?,
		     input_tokens = ?, output_tokens = ?, turns = ?, output_text = ?, structured_output = ?
		 WHERE id = ?`,
		string(out.Status), time.Now().UnixMilli(), out.ExitCode, out.Error,
		out.InputTokens, out.OutputTokens, out.Turns, nullableString(out.OutputText), nullableString(out.StructuredOutput), id,
	)
	if err != nil {
		return fmt.Errorf("store: finish invocation: %w", err)
	}
	return nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// IncrementInvocationRetries bumps an invocation's retry counter. The schema
// validation retry loop (supervisor.RunWithSchemaRetry) does not call it.
func (s *Store) IncrementInvocationRetries(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE agent_invocations SET retries = retries + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: increment invocation retries: %w", err)
	}
	return nil
}

// ListAgentInvocations returns every invocation for an execution, ordered by
// start time.
func (s *Store) ListAgentInvocations(ctx context.Context, executionID string) ([]AgentInvocation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, execution_id, node_key, kind, status, session, model, provider, prompt, schema_fingerprint,
		        started_at, finished_at, exit_code, error, retries,
		        input_tokens, output_tokens, turns, output_text, structured_output
		 FROM agent_invocations WHERE execution_id = ? ORDER BY started_at ASC`, executionID)
	if err != nil {
		return nil, fmt.Errorf("store: list invocations: %w", err)
	}
	defer rows.Close()

	var out []AgentInvocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvocation(rows *sql.Rows) (AgentInvocation, error) {
	var inv AgentInvocation
	var status string
	var session, model, provider, errMsg, schemaFingerprint, outputText, structuredOutput sql.NullString
	var startedAt int64
	var finishedAt sql.NullInt64
	var exitCode sql.NullInt64
	if err := rows.Scan(&inv.ID, &inv.ExecutionID, &inv.NodeKey, &inv.Kind, &status,
		&session, &model, &provider, &inv.Prompt, &schemaFingerprint,
		&startedAt, &finishedAt, &exitCode, &errMsg, &inv.Retries,
		&inv.InputTokens, &inv.OutputTokens, &inv.Turns, &outputText, &structuredOutput); err != nil {
		return AgentInvocation{}, fmt.Errorf("store: scan invocation: %w", err)
	}
	inv.Status = InvocationStatus(status)
	inv.Session = session.String
	inv.Model = model.String
	inv.Provider = provider.String
	inv.SchemaFingerprint = schemaFingerprint.String
	inv.OutputText = outputText.String
	inv.StructuredOutput = structuredOutput.String
	inv.StartedAt = time.UnixMilli(startedAt)
	inv.Error = errMsg.String
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64)
		inv.FinishedAt = &t
	}
	if exitCode.Valid {
		v := int(exitCode.Int64)
		inv.ExitCode = &v
	}
	return inv, nil
}
