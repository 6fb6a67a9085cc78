// Package store implements the durable execution log: a single-file,
// one-writer/many-readers embedded SQLite database holding executions,
// agent invocations, frames, stream events, state cells, and rate-limit
// snapshots.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver, no cgo
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a structured logger for the store. When unset, the store
// emits no logs.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Store is the durable execution log. One *Store per running process owns
// the single writable connection; readers may run concurrently against the
// same handle since database/sql pools reads over it.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (and creates, if absent) the SQLite file at path. Use
// "file::memory:?cache=shared" for an ephemeral in-process store suitable
// for tests. The connection pool is capped at one connection so that all
// writers serialize through a single SQLite handle, matching the concurrency
// policy the log format requires: one writer, many readers.
func New(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("store: opened", "path", path)
	return s, nil
}

// Open runs migrations against the store. Must be called once before any
// other method.
func (s *Store) Open(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug("store: migrate started")
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.Error("store: migrate failed", "error", err, "duration", time.Since(start))
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	s.logger.Debug("store: migrate ok", "duration", time.Since(start))
	return nil
}

// DB returns the underlying *sql.DB for callers that need raw access
// (e.g. integration tests asserting on row counts).
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }
