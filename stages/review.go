package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/scribeworks/quill/llm"
	"github.com/scribeworks/quill/workflow"
)

const reviewSystem = "You are a strict quality reviewer. Judge the draft for accuracy, " +
	"completeness, clarity and fidelity to the question. Respond with a single JSON object: " +
	`{"approved": bool, "score": number between 0 and 1, "feedback": "specific, actionable critique"}.`

type reviewVerdict struct {
	Approved bool    `json:"approved"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// ReviewStage evaluates the draft and writes the structured verdict the
// revision gate routes on. Folding the quality threshold into the approval
// flag is this stage's responsibility; the gate only ever looks at the flag.
type ReviewStage struct {
	provider  llm.Provider
	prompts   *llm.PromptBuilder
	config    GenerationConfig
	threshold float64
	logger    *zap.Logger
}

// NewReviewStage creates the reviewer stage. threshold is the minimum score
// that counts as an approval even when the verdict flag is false.
func NewReviewStage(provider llm.Provider, prompts *llm.PromptBuilder, config GenerationConfig, threshold float64, logger *zap.Logger) *ReviewStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewStage{
		provider:  provider,
		prompts:   prompts,
		config:    config,
		threshold: threshold,
		logger:    logger.With(zap.String("stage", StageReview)),
	}
}

func (s *ReviewStage) Name() string { return StageReview }

func (s *ReviewStage) Run(ctx context.Context, state *workflow.State) *workflow.StageError {
	prompt := fmt.Sprintf("Question: %s\n\nDraft to review:\n%s\n", state.Query, state.Draft)

	raw, err := s.provider.Generate(ctx, &llm.GenerateRequest{
		System:      reviewSystem,
		Prompt:      prompt,
		MaxTokens:   s.config.MaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return toStageError(StageReview, err)
	}

	verdict, perr := parseVerdict(raw)
	if perr != nil {
		return workflow.NewStageError(workflow.ErrMalformedOutput, StageReview,
			"could not parse review verdict").WithCause(perr)
	}

	approved := verdict.Approved || verdict.Score >= s.threshold
	state.Review = &workflow.ReviewFeedback{
		Approved: approved,
		Score:    verdict.Score,
		Feedback: verdict.Feedback,
	}
	s.logger.Debug("draft reviewed",
		zap.String("run_id", state.RunID),
		zap.Bool("approved", approved),
		zap.Float64("score", verdict.Score),
	)
	return nil
}

// parseVerdict extracts the verdict object from the provider output,
// tolerating prose or code fences around the JSON.
func parseVerdict(raw string) (*reviewVerdict, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in review output")
	}
	var v reviewVerdict
	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return nil, fmt.Errorf("invalid verdict JSON: %w", err)
	}
	if v.Score < 0 || v.Score > 1 {
		return nil, fmt.Errorf("verdict score %v outside [0,1]", v.Score)
	}
	return &v, nil
}
