package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/scribeworks/quill/rag"
)

// Status is the lifecycle state of a run. It is terminal once it leaves
// StatusRunning.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Field names a State slot a stage may declare as an input dependency or an
// output. The declarations are validated against the graph topology at build
// time.
type Field string

const (
	FieldQuery            Field = "query"
	FieldContextDocuments Field = "context_documents"
	FieldResearchNotes    Field = "research_notes"
	FieldDraft            Field = "draft"
	FieldReview           Field = "review"
)

// ReviewFeedback is the reviewer stage's structured verdict on a draft.
// Approved drives routing; Score is carried for observability and only
// influences routing if the reviewer itself folds it into Approved.
type ReviewFeedback struct {
	Approved bool    `json:"approved"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// StageRecord is one entry of a run's append-only stage history. A record is
// written for every attempt, including retried and failed ones.
type StageRecord struct {
	Stage    string        `json:"stage"`
	Attempt  int           `json:"attempt"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Outcome  string        `json:"outcome"` // "ok" or the error kind
	Error    string        `json:"error,omitempty"`
}

// State is the single mutable record threaded through one run of the graph.
// It is owned by exactly one run goroutine; once Status is terminal the
// executor stops mutating it and hands it to the caller.
type State struct {
	RunID string
	Query string

	// ContextDocuments is set once by the retrieval stage and read-only
	// thereafter.
	ContextDocuments []rag.Document

	ResearchNotes string
	Draft         string
	Review        *ReviewFeedback

	// RevisionFeedback accumulates reviewer feedback across loop-backs; the
	// resumed stage appends it to its input context so it sees why the work
	// is being redone.
	RevisionFeedback []string

	RevisionCount int
	StageHistory  []StageRecord

	Status      Status
	FailedStage string
	Err         *StageError

	StartedAt  time.Time
	FinishedAt time.Time
}

// NewState creates the initial state for a run over the given query.
func NewState(query string) *State {
	return &State{
		RunID:     uuid.NewString(),
		Query:     query,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
}

// Terminal reports whether the run has reached an absorbing status.
func (s *State) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

func (s *State) recordAttempt(rec StageRecord) {
	s.StageHistory = append(s.StageHistory, rec)
}

func (s *State) complete() {
	if s.Terminal() {
		return
	}
	s.Status = StatusCompleted
	s.FinishedAt = time.Now()
}

func (s *State) fail(stage string, err *StageError) {
	if s.Terminal() {
		return
	}
	s.Status = StatusFailed
	s.FailedStage = stage
	s.Err = err
	s.FinishedAt = time.Now()
}
