// Package effect dispatches the side effects a reconciled plan tree
// requests (commit, snapshot, worktree management, review posting) to
// registered handlers. conductor ships a reference/no-op implementation of
// each handler, suitable for --mock runs; a host embedding the engine wires
// real VCS/review integrations, which are out of scope for this module.
package effect

import (
	"context"
	"fmt"
)

// Kind identifies an effect a plan node can request.
type Kind string

const (
	KindCommit          Kind = "commit"
	KindSnapshot        Kind = "snapshot"
	KindWorktreeCreate  Kind = "worktree.create"
	KindWorktreeRemove  Kind = "worktree.remove"
	KindReviewPost      Kind = "review.post"
)

// Request is one effect dispatch, built from a reconcile.Effect.
type Request struct {
	NodeKey string
	Kind    Kind
	Props   map[string]any
}

// Result is what a Handler returns for one Request, recorded as a stream
// event by the engine.
type Result struct {
	Output map[string]any
}

// Handler executes one kind of effect.
type Handler interface {
	Handle(ctx context.Context, req Request) (Result, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

// Registry dispatches effect Requests to the Handler registered for their
// Kind.
type Registry struct {
	handlers map[Kind]Handler
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Kind]Handler)}
}

// Register installs a Handler for kind, replacing any existing one.
func (r *Registry) Register(kind Kind, h Handler) {
	r.handlers[kind] = h
}

// Dispatch runs the handler registered for req.Kind.
func (r *Registry) Dispatch(ctx context.Context, req Request) (Result, error) {
	h, ok := r.handlers[req.Kind]
	if !ok {
		return Result{}, fmt.Errorf("effect: no handler registered for kind %q", req.Kind)
	}
	return h.Handle(ctx, req)
}
