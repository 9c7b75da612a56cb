package llm

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/scribeworks/quill/rag"
)

// PromptBuilder assembles stage prompt sections under a token budget so a
// large fused context set cannot blow past the provider's window.
type PromptBuilder struct {
	enc *tiktoken.Tiktoken
}

// NewPromptBuilder creates a builder tokenizing for the given model. Unknown
// models fall back to the cl100k_base encoding, and a missing encoding falls
// back to a character-count estimate.
func NewPromptBuilder(model string) *PromptBuilder {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, _ = tiktoken.GetEncoding("cl100k_base")
	}
	return &PromptBuilder{enc: enc}
}

// CountTokens returns the token length of s.
func (b *PromptBuilder) CountTokens(s string) int {
	if b.enc == nil {
		// Rough 4-chars-per-token estimate when no encoding is available.
		return (len(s) + 3) / 4
	}
	return len(b.enc.Encode(s, nil, nil))
}

// ContextBlock renders fused documents as a numbered source list, dropping
// trailing documents once the token budget is spent. budget <= 0 means
// unlimited.
func (b *PromptBuilder) ContextBlock(docs []rag.Document, budget int) string {
	if len(docs) == 0 {
		return ""
	}
	var sb strings.Builder
	used := 0
	for i, doc := range docs {
		entry := fmt.Sprintf("[%d] (%s) %s\n", i+1, doc.Source, doc.Content)
		if budget > 0 {
			cost := b.CountTokens(entry)
			if used+cost > budget && sb.Len() > 0 {
				break
			}
			used += cost
		}
		sb.WriteString(entry)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FeedbackBlock renders accumulated reviewer feedback for a stage that is
// redoing its work, most recent pass last.
func (b *PromptBuilder) FeedbackBlock(feedback []string) string {
	if len(feedback) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Reviewer feedback from previous passes:\n")
	for i, f := range feedback {
		sb.WriteString(fmt.Sprintf("- pass %d: %s\n", i+1, f))
	}
	return strings.TrimRight(sb.String(), "\n")
}
