// Package service exposes the engine's collaborator contracts: asynchronous
// run submission backed by a bounded worker pool, status lookup from the run
// store, per-run cancellation, and the direct document search path that
// bypasses the full graph.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/scribeworks/quill/internal/pool"
	"github.com/scribeworks/quill/rag"
	"github.com/scribeworks/quill/workflow"
)

// Service coordinates run execution. It is safe for concurrent use.
type Service struct {
	graph     *workflow.Graph
	policy    workflow.RevisionPolicy
	executor  *workflow.Executor
	retriever *rag.HybridRetriever
	store     RunStore
	workers   *pool.Pool
	logger    *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates a service and starts its worker pool. A nil logger disables
// logging.
func New(
	graph *workflow.Graph,
	policy workflow.RevisionPolicy,
	executor *workflow.Executor,
	retriever *rag.HybridRetriever,
	store RunStore,
	workers, queueSize int,
	logger *zap.Logger,
) (*Service, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		graph:     graph,
		policy:    policy,
		executor:  executor,
		retriever: retriever,
		store:     store,
		workers:   pool.New(workers, queueSize),
		logger:    logger.With(zap.String("component", "service")),
		cancels:   make(map[string]context.CancelFunc),
	}, nil
}

// Submit accepts a query and returns its run identifier immediately; the
// run executes asynchronously on the worker pool and its terminal state is
// written to the run store. The submission context is not inherited: a
// caller disconnecting does not abort the queued run, only Cancel does.
func (s *Service) Submit(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query must not be empty")
	}

	state := workflow.NewState(query)
	if err := s.store.Save(ctx, snapshotOf(state)); err != nil {
		return "", fmt.Errorf("failed to record submission: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[state.RunID] = cancel
	s.mu.Unlock()

	err := s.workers.Submit(runCtx, func(taskCtx context.Context) {
		defer s.forget(state.RunID)
		s.executor.Execute(taskCtx, s.graph, state, s.policy)
		if err := s.store.Save(context.Background(), snapshotOf(state)); err != nil {
			s.logger.Error("failed to store terminal run state",
				zap.String("run_id", state.RunID),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		s.forget(state.RunID)
		return "", fmt.Errorf("failed to enqueue run: %w", err)
	}

	s.logger.Info("run submitted", zap.String("run_id", state.RunID))
	return state.RunID, nil
}

// Status returns the stored snapshot of a run, terminal or in progress.
func (s *Service) Status(ctx context.Context, runID string) (*Snapshot, error) {
	return s.store.Get(ctx, runID)
}

// Cancel requests cancellation of a run. The cancellation is observed at
// the next stage boundary; an in-flight provider call is allowed to finish.
// It reports whether the run was still active.
func (s *Service) Cancel(runID string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[runID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// SearchDocuments runs the retrieval and fusion path directly, without
// research, writing or review.
func (s *Service) SearchDocuments(ctx context.Context, query string) ([]rag.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	return s.retriever.Retrieve(ctx, query)
}

// Shutdown stops accepting submissions and waits for queued runs to drain
// or ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.workers.Shutdown(ctx)
}

func (s *Service) forget(runID string) {
	s.mu.Lock()
	if cancel, ok := s.cancels[runID]; ok {
		cancel()
		delete(s.cancels, runID)
	}
	s.mu.Unlock()
}
