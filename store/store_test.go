package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("file::memory:?cache=shared")
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestExecutionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := uuid.NewString()
	require.NoError(t, s.CreateExecution(ctx, Execution{
		ID:        id,
		PlanPath:  "plan.json",
		Status:    ExecutionRunning,
		StartedAt: time.Now(),
	}))

	got, err := s.GetExecution(ctx, id)
	require.NoError(t, err)
	require.Equal(t, ExecutionRunning, got.Status)
	require.Nil(t, got.FinishedAt)

	require.NoError(t, s.UpdateExecutionStatus(ctx, id, ExecutionCompleted, ""))
	got, err = s.GetExecution(ctx, id)
	require.NoError(t, err)
	require.Equal(t, ExecutionCompleted, got.Status)
	require.NotNil(t, got.FinishedAt)
}

func TestFrameSequenceAssignment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	invocationID := uuid.NewString()

	for i := 0; i < 3; i++ {
		seq, err := s.AppendFrame(ctx, Frame{
			ID:           uuid.NewString(),
			InvocationID: invocationID,
			Role:         FrameRoleAssistant,
			Content:      `{}`,
		})
		require.NoError(t, err)
		require.Equal(t, i, seq)
	}

	frames, err := s.ListFrames(ctx, invocationID)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for i, f := range frames {
		require.Equal(t, i, f.Seq)
	}
}

func TestStreamEventSequenceIsDenseAndOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	executionID := uuid.NewString()

	for i := 0; i < 5; i++ {
		_, err := s.AppendStreamEvent(ctx, StreamEvent{
			ID:          uuid.NewString(),
			ExecutionID: executionID,
			Type:        "progress",
			Payload:     `{}`,
		})
		require.NoError(t, err)
	}

	events, err := s.ListStreamEvents(ctx, executionID, -1)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i, ev := range events {
		require.Equal(t, i, ev.Seq)
	}
}

func TestStateCellUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	executionID := uuid.NewString()

	_, ok, err := s.GetStateCell(ctx, executionID, "counter")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetStateCell(ctx, executionID, "counter", `1`))
	value, ok, err := s.GetStateCell(ctx, executionID, "counter")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `1`, value)

	require.NoError(t, s.SetStateCell(ctx, executionID, "counter", `2`))
	value, _, err = s.GetStateCell(ctx, executionID, "counter")
	require.NoError(t, err)
	require.Equal(t, `2`, value)
}

func TestRateLimitSnapshotLatestWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	limit1, remaining1 := 100, 50
	require.NoError(t, s.RecordRateLimitSnapshot(ctx, RateLimitSnapshot{
		ID: uuid.NewString(), Provider: "anthropic", Model: "claude-opus",
		RequestsLimit: &limit1, RequestsRemaining: &remaining1, ObservedAt: time.Now(),
	}))

	limit2, remaining2 := 100, 10
	require.NoError(t, s.RecordRateLimitSnapshot(ctx, RateLimitSnapshot{
		ID: uuid.NewString(), Provider: "anthropic", Model: "claude-opus",
		RequestsLimit: &limit2, RequestsRemaining: &remaining2, ObservedAt: time.Now().Add(time.Second),
	}))

	latest, ok, err := s.LatestRateLimitSnapshot(ctx, "anthropic", "claude-opus")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, remaining2, *latest.RequestsRemaining)
}
