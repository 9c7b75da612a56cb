package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/scribeworks/quill/internal/cache"
	"github.com/scribeworks/quill/rag"
	"github.com/scribeworks/quill/workflow"
)

// ErrRunNotFound is returned by Status for an unknown run identifier.
var ErrRunNotFound = errors.New("run not found")

// Snapshot is the caller-visible view of a run, taken at submission and at
// termination. It is sourced directly from the run's state.
type Snapshot struct {
	RunID         string          `json:"run_id"`
	Status        workflow.Status `json:"status"`
	Answer        string          `json:"answer,omitempty"`
	ErrorKind     string          `json:"error_kind,omitempty"`
	FailedStage   string          `json:"failed_stage,omitempty"`
	RevisionCount int             `json:"revision_count"`
	Documents     []rag.Document  `json:"source_documents,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// snapshotOf projects a run state into its caller-visible snapshot. A
// failed run exposes the specific error kind and failing stage so callers
// can tell a transient timeout from a bad request from a system bug.
func snapshotOf(state *workflow.State) *Snapshot {
	snap := &Snapshot{
		RunID:         state.RunID,
		Status:        state.Status,
		RevisionCount: state.RevisionCount,
		Documents:     state.ContextDocuments,
		UpdatedAt:     time.Now(),
	}
	switch state.Status {
	case workflow.StatusCompleted:
		snap.Answer = state.Draft
	case workflow.StatusFailed:
		snap.FailedStage = state.FailedStage
		if state.Err != nil {
			snap.ErrorKind = string(state.Err.Kind)
		}
	}
	return snap
}

// RunStore persists run snapshots for later status lookups. Implementations
// must be safe for concurrent use.
type RunStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	Get(ctx context.Context, runID string) (*Snapshot, error)
}

// MemoryStore is a process-local RunStore.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*Snapshot)}
}

func (s *MemoryStore) Save(_ context.Context, snap *Snapshot) error {
	s.mu.Lock()
	s.runs[snap.RunID] = snap
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, runID string) (*Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRunNotFound
	}
	return snap, nil
}

// RedisStore keeps snapshots in Redis with an expiry, so replicas behind a
// load balancer resolve each other's runs.
type RedisStore struct {
	manager *cache.Manager
	ttl     time.Duration
}

// NewRedisStore wraps the shared cache manager. A non-positive ttl keeps
// snapshots for 24 hours.
func NewRedisStore(manager *cache.Manager, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{manager: manager, ttl: ttl}
}

func runKey(runID string) string { return "quill:run:" + runID }

func (s *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	return s.manager.SetJSON(ctx, runKey(snap.RunID), snap, s.ttl)
}

func (s *RedisStore) Get(ctx context.Context, runID string) (*Snapshot, error) {
	var snap Snapshot
	err := s.manager.GetJSON(ctx, runKey(runID), &snap)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
