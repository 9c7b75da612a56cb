package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/quill/internal/cache"
	"github.com/scribeworks/quill/workflow"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	snap := &Snapshot{RunID: "r1", Status: workflow.StatusRunning}
	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	// A later save for the same run replaces the snapshot.
	require.NoError(t, store.Save(ctx, &Snapshot{RunID: "r1", Status: workflow.StatusCompleted, Answer: "done"}))
	got, err = store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, got.Status)
	assert.Equal(t, "done", got.Answer)
}

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := cache.DefaultConfig()
	cfg.Addr = mr.Addr()
	manager, err := cache.NewManager(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return NewRedisStore(manager, ttl), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Hour)
	ctx := context.Background()

	snap := &Snapshot{
		RunID:         "run-42",
		Status:        workflow.StatusCompleted,
		Answer:        "the answer",
		RevisionCount: 1,
		UpdatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Get(ctx, "run-42")
	require.NoError(t, err)
	assert.Equal(t, snap.RunID, got.RunID)
	assert.Equal(t, snap.Status, got.Status)
	assert.Equal(t, snap.Answer, got.Answer)
	assert.Equal(t, snap.RevisionCount, got.RevisionCount)
}

func TestRedisStore_MissAndExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	require.NoError(t, store.Save(ctx, &Snapshot{RunID: "r1", Status: workflow.StatusRunning}))
	mr.FastForward(2 * time.Minute)

	_, err = store.Get(ctx, "r1")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSnapshotOf(t *testing.T) {
	state := workflow.NewState("q")
	state.Draft = "partial"

	snap := snapshotOf(state)
	assert.Equal(t, workflow.StatusRunning, snap.Status)
	assert.Empty(t, snap.Answer) // only terminal completed runs expose it

	state.Status = workflow.StatusCompleted
	snap = snapshotOf(state)
	assert.Equal(t, "partial", snap.Answer)

	failed := workflow.NewState("q")
	failed.Status = workflow.StatusFailed
	failed.FailedStage = "write"
	failed.Err = workflow.NewStageError(workflow.ErrProviderTimeout, "write", "slow")
	snap = snapshotOf(failed)
	assert.Equal(t, string(workflow.ErrProviderTimeout), snap.ErrorKind)
	assert.Equal(t, "write", snap.FailedStage)
}
