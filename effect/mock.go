package effect

import "context"

// NewMockRegistry returns a Registry whose handlers log nothing, touch no
// external system, and echo their request props back as output. It backs
// the CLI's --mock flag and is also useful for engine unit tests that do
// not want real git/VCS/review side effects.
func NewMockRegistry() *Registry {
	r := NewRegistry()
	for _, kind := range []Kind{KindCommit, KindSnapshot, KindWorktreeCreate, KindWorktreeRemove, KindReviewPost} {
		k := kind
		r.Register(k, HandlerFunc(func(_ context.Context, req Request) (Result, error) {
			return Result{Output: map[string]any{"kind": string(k), "mocked": true, "props": req.Props}}, nil
		}))
	}
	return r
}
