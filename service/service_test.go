package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/quill/rag"
	"github.com/scribeworks/quill/workflow"
)

// answerGraph is a minimal single-stage graph whose stage runs fn.
func answerGraph(t *testing.T, fn func(ctx context.Context, state *workflow.State) *workflow.StageError) *workflow.Graph {
	t.Helper()
	g := workflow.NewGraph()
	g.AddNode(&workflow.Node{Name: "answer", Stage: workflow.NewStageFunc("answer", fn)}).
		AddEdge("answer", workflow.End, nil).
		SetEntry("answer")
	require.NoError(t, g.Validate())
	return g
}

func testRetriever() *rag.HybridRetriever {
	ch := rag.NewMemoryChannel("corpus", []rag.Document{
		{Content: "raft is a consensus algorithm", Source: "notes/raft.md", RelevanceScore: 0.9},
	})
	return rag.NewHybridRetriever(ch, nil, nil, rag.DefaultHybridConfig(), nil)
}

func newTestService(t *testing.T, g *workflow.Graph) *Service {
	t.Helper()
	svc, err := New(
		g,
		workflow.RevisionPolicy{MaxRevisions: 2, LoopBackTarget: "answer"},
		workflow.NewExecutor(nil),
		testRetriever(),
		NewMemoryStore(),
		2, 8,
		nil,
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		svc.Shutdown(ctx)
	})
	return svc
}

func TestServiceSubmitAndStatus(t *testing.T) {
	g := answerGraph(t, func(ctx context.Context, state *workflow.State) *workflow.StageError {
		state.Draft = "the answer"
		return nil
	})
	svc := newTestService(t, g)

	runID, err := svc.Submit(context.Background(), "what is raft?")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.Eventually(t, func() bool {
		snap, err := svc.Status(context.Background(), runID)
		return err == nil && snap.Status == workflow.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	snap, err := svc.Status(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, runID, snap.RunID)
	assert.Equal(t, "the answer", snap.Answer)
	assert.Empty(t, snap.ErrorKind)
}

func TestServiceSubmitEmptyQuery(t *testing.T) {
	svc := newTestService(t, answerGraph(t, func(ctx context.Context, state *workflow.State) *workflow.StageError {
		return nil
	}))

	_, err := svc.Submit(context.Background(), "   ")
	assert.Error(t, err)
}

func TestServiceStatusUnknownRun(t *testing.T) {
	svc := newTestService(t, answerGraph(t, func(ctx context.Context, state *workflow.State) *workflow.StageError {
		return nil
	}))

	_, err := svc.Status(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestServiceFailedRunSnapshot(t *testing.T) {
	g := answerGraph(t, func(ctx context.Context, state *workflow.State) *workflow.StageError {
		return workflow.NewStageError(workflow.ErrMalformedOutput, "answer", "bad output")
	})
	svc := newTestService(t, g)

	runID, err := svc.Submit(context.Background(), "q")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := svc.Status(context.Background(), runID)
		return err == nil && snap.Status == workflow.StatusFailed
	}, 2*time.Second, 5*time.Millisecond)

	snap, err := svc.Status(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, string(workflow.ErrMalformedOutput), snap.ErrorKind)
	assert.Equal(t, "answer", snap.FailedStage)
	assert.Empty(t, snap.Answer)
}

func TestServiceCancel(t *testing.T) {
	started := make(chan struct{})
	g := answerGraph(t, func(ctx context.Context, state *workflow.State) *workflow.StageError {
		close(started)
		<-ctx.Done()
		return workflow.NewStageError(workflow.ErrCancelled, "answer", "cancelled").WithCause(ctx.Err())
	})
	svc := newTestService(t, g)

	runID, err := svc.Submit(context.Background(), "q")
	require.NoError(t, err)
	<-started

	assert.True(t, svc.Cancel(runID))

	require.Eventually(t, func() bool {
		snap, err := svc.Status(context.Background(), runID)
		return err == nil && snap.Status == workflow.StatusFailed
	}, 2*time.Second, 5*time.Millisecond)

	snap, err := svc.Status(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, string(workflow.ErrCancelled), snap.ErrorKind)

	// The run is no longer active once terminal.
	require.Eventually(t, func() bool {
		return !svc.Cancel(runID)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestServiceCancelUnknownRun(t *testing.T) {
	svc := newTestService(t, answerGraph(t, func(ctx context.Context, state *workflow.State) *workflow.StageError {
		return nil
	}))
	assert.False(t, svc.Cancel("no-such-run"))
}

func TestServiceSearchDocuments(t *testing.T) {
	svc := newTestService(t, answerGraph(t, func(ctx context.Context, state *workflow.State) *workflow.StageError {
		return nil
	}))

	docs, err := svc.SearchDocuments(context.Background(), "raft consensus")
	require.NoError(t, err)
	assert.NotEmpty(t, docs)

	_, err = svc.SearchDocuments(context.Background(), "")
	assert.Error(t, err)
}

func TestServiceQueuePressure(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	g := answerGraph(t, func(ctx context.Context, state *workflow.State) *workflow.StageError {
		started <- struct{}{}
		<-release
		return nil
	})
	defer close(release)

	svc, err := New(
		g,
		workflow.RevisionPolicy{LoopBackTarget: "answer"},
		workflow.NewExecutor(nil),
		testRetriever(),
		NewMemoryStore(),
		1, 1,
		nil,
	)
	require.NoError(t, err)

	// One run occupies the worker, one fills the queue; the queue rejects
	// from there on.
	_, err = svc.Submit(context.Background(), "first")
	require.NoError(t, err)
	<-started
	_, err = svc.Submit(context.Background(), "second")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := svc.Submit(context.Background(), "overflow")
		return err != nil
	}, 2*time.Second, time.Millisecond)
}
