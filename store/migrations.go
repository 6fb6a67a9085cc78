package store

// migrations lists the DDL applied on every Open call. Each statement is
// idempotent (IF NOT EXISTS) so re-running against an already-migrated file
// is a no-op, matching the append-only evolution style used across the log.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		plan_path TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		error TEXT,
		tree_snapshot TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS agent_invocations (
		id TEXT PRIMARY KEY,
		execution_id TEXT NOT NULL,
		node_key TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		session TEXT,
		model TEXT,
		provider TEXT,
		prompt TEXT NOT NULL DEFAULT '',
		schema_fingerprint TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		exit_code INTEGER,
		error TEXT,
		retries INTEGER NOT NULL DEFAULT 0,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		turns INTEGER NOT NULL DEFAULT 0,
		output_text TEXT,
		structured_output TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_invocations_execution ON agent_invocations(execution_id)`,
	`CREATE TABLE IF NOT EXISTS frames (
		id TEXT PRIMARY KEY,
		invocation_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_frames_invocation_seq ON frames(invocation_id, seq)`,
	`CREATE TABLE IF NOT EXISTS stream_events (
		id TEXT PRIMARY KEY,
		execution_id TEXT NOT NULL,
		invocation_id TEXT,
		seq INTEGER NOT NULL,
		type TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stream_events_execution_seq ON stream_events(execution_id, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_stream_events_invocation_seq ON stream_events(invocation_id, seq)`,
	`CREATE TABLE IF NOT EXISTS state_cells (
		execution_id TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (execution_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS rate_limit_snapshots (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		requests_limit INTEGER,
		requests_remaining INTEGER,
		requests_reset INTEGER,
		input_tokens_limit INTEGER,
		input_tokens_remaining INTEGER,
		input_tokens_reset INTEGER,
		output_tokens_limit INTEGER,
		output_tokens_remaining INTEGER,
		output_tokens_reset INTEGER,
		observed_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rate_limit_snapshots_provider_model ON rate_limit_snapshots(provider, model, observed_at)`,
}
