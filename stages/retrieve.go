package stages

import (
	"context"

	"go.uber.org/zap"

	"github.com/scribeworks/quill/rag"
	"github.com/scribeworks/quill/workflow"
)

// Stage names of the standard graph.
const (
	StageRetrieve = "retrieve"
	StageResearch = "research"
	StageWrite    = "write"
	StageReview   = "review"
)

// RetrieveStage seeds the run with its fused context set. It runs once per
// run: ContextDocuments is set at most once and read-only afterwards.
type RetrieveStage struct {
	retriever *rag.HybridRetriever
	logger    *zap.Logger
}

// NewRetrieveStage creates the retrieval stage.
func NewRetrieveStage(retriever *rag.HybridRetriever, logger *zap.Logger) *RetrieveStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrieveStage{
		retriever: retriever,
		logger:    logger.With(zap.String("stage", StageRetrieve)),
	}
}

func (s *RetrieveStage) Name() string { return StageRetrieve }

func (s *RetrieveStage) Run(ctx context.Context, state *workflow.State) *workflow.StageError {
	if state.ContextDocuments != nil {
		// Context is seeded once per run; a loop-back never re-enters here.
		return nil
	}
	docs, err := s.retriever.Retrieve(ctx, state.Query)
	if err != nil {
		return toStageError(StageRetrieve, err)
	}
	if docs == nil {
		docs = []rag.Document{}
	}
	state.ContextDocuments = docs
	s.logger.Debug("context seeded",
		zap.String("run_id", state.RunID),
		zap.Int("documents", len(docs)),
	)
	return nil
}
