package stages

import (
	"context"
	"sync"

	"github.com/scribeworks/quill/llm"
	"github.com/scribeworks/quill/rag"
	"github.com/scribeworks/quill/workflow"
)

// fakeProvider replays scripted responses and records every request it saw.
type fakeProvider struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []*llm.GenerateRequest
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Generate(ctx context.Context, req *llm.GenerateRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return "", p.err
	}
	if len(p.responses) == 0 {
		return "", &llm.Error{Code: llm.ErrEmptyOutput, Message: "no scripted response"}
	}
	resp := p.responses[0]
	if len(p.responses) > 1 {
		p.responses = p.responses[1:]
	}
	return resp, nil
}

func (p *fakeProvider) lastRequest() *llm.GenerateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	return p.requests[len(p.requests)-1]
}

// failingChannel always errors, for exercising the channel failure paths.
type failingChannel struct {
	name string
	err  error
}

func (c *failingChannel) Name() string { return c.name }

func (c *failingChannel) Search(ctx context.Context, query string, limit int) ([]rag.Document, error) {
	return nil, c.err
}

func newState(query string) *workflow.State {
	return workflow.NewState(query)
}

func testPrompts() *llm.PromptBuilder {
	return llm.NewPromptBuilder("gpt-4o-mini")
}
