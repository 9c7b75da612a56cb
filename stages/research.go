package stages

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/scribeworks/quill/llm"
	"github.com/scribeworks/quill/workflow"
)

const researchSystem = "You are a research analyst. Synthesize the supplied sources " +
	"into factual, well-organized findings for the user's question. Cite source numbers."

// GenerationConfig tunes the provider calls a stage issues.
type GenerationConfig struct {
	MaxTokens     int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature   float32 `yaml:"temperature" json:"temperature"`
	ContextBudget int     `yaml:"context_budget" json:"context_budget"`
}

// DefaultGenerationConfig returns stage generation defaults.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxTokens:     1024,
		Temperature:   0.3,
		ContextBudget: 3000,
	}
}

// ResearchStage synthesizes the fused context documents into research notes
// the writer works from. On a loop-back it re-runs with the reviewer's
// feedback appended to its input.
type ResearchStage struct {
	provider llm.Provider
	prompts  *llm.PromptBuilder
	config   GenerationConfig
	logger   *zap.Logger
}

// NewResearchStage creates the research stage.
func NewResearchStage(provider llm.Provider, prompts *llm.PromptBuilder, config GenerationConfig, logger *zap.Logger) *ResearchStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResearchStage{
		provider: provider,
		prompts:  prompts,
		config:   config,
		logger:   logger.With(zap.String("stage", StageResearch)),
	}
}

func (s *ResearchStage) Name() string { return StageResearch }

func (s *ResearchStage) Run(ctx context.Context, state *workflow.State) *workflow.StageError {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n", state.Query)
	if block := s.prompts.ContextBlock(state.ContextDocuments, s.config.ContextBudget); block != "" {
		sb.WriteString("\nSources:\n")
		sb.WriteString(block)
		sb.WriteString("\n")
	}
	if block := s.prompts.FeedbackBlock(state.RevisionFeedback); block != "" {
		sb.WriteString("\n")
		sb.WriteString(block)
		sb.WriteString("\nAddress the feedback in the revised findings.\n")
	}

	notes, err := s.provider.Generate(ctx, &llm.GenerateRequest{
		System:      researchSystem,
		Prompt:      sb.String(),
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	})
	if err != nil {
		return toStageError(StageResearch, err)
	}
	if strings.TrimSpace(notes) == "" {
		return workflow.NewStageError(workflow.ErrMalformedOutput, StageResearch, "provider returned empty research notes")
	}
	state.ResearchNotes = notes
	s.logger.Debug("research notes produced",
		zap.String("run_id", state.RunID),
		zap.Int("length", len(notes)),
	)
	return nil
}
