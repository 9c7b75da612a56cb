package stages

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/scribeworks/quill/llm"
	"github.com/scribeworks/quill/workflow"
)

const writeSystem = "You are a technical writer. Produce a clear, well-structured answer " +
	"to the user's question from the research findings. Do not invent facts."

// WriteStage drafts the candidate answer from the research notes. On a
// loop-back it revises the previous draft against the reviewer's feedback.
type WriteStage struct {
	provider llm.Provider
	prompts  *llm.PromptBuilder
	config   GenerationConfig
	logger   *zap.Logger
}

// NewWriteStage creates the writer stage.
func NewWriteStage(provider llm.Provider, prompts *llm.PromptBuilder, config GenerationConfig, logger *zap.Logger) *WriteStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WriteStage{
		provider: provider,
		prompts:  prompts,
		config:   config,
		logger:   logger.With(zap.String("stage", StageWrite)),
	}
}

func (s *WriteStage) Name() string { return StageWrite }

func (s *WriteStage) Run(ctx context.Context, state *workflow.State) *workflow.StageError {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\nResearch findings:\n%s\n", state.Query, state.ResearchNotes)
	if state.Draft != "" {
		fmt.Fprintf(&sb, "\nPrevious draft:\n%s\n", state.Draft)
	}
	if block := s.prompts.FeedbackBlock(state.RevisionFeedback); block != "" {
		sb.WriteString("\n")
		sb.WriteString(block)
		sb.WriteString("\nRevise the draft to address every point of feedback.\n")
	}

	draft, err := s.provider.Generate(ctx, &llm.GenerateRequest{
		System:      writeSystem,
		Prompt:      sb.String(),
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	})
	if err != nil {
		return toStageError(StageWrite, err)
	}
	if strings.TrimSpace(draft) == "" {
		return workflow.NewStageError(workflow.ErrMalformedOutput, StageWrite, "provider returned an empty draft")
	}
	state.Draft = draft
	s.logger.Debug("draft produced",
		zap.String("run_id", state.RunID),
		zap.Int("revision", state.RevisionCount),
		zap.Int("length", len(draft)),
	)
	return nil
}
