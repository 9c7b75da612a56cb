package stages

import (
	"context"
	"errors"

	"github.com/scribeworks/quill/llm"
	"github.com/scribeworks/quill/rag"
	"github.com/scribeworks/quill/workflow"
)

// toStageError maps collaborator failures onto the workflow error taxonomy.
// Caller cancellation always wins over any other classification.
func toStageError(stage string, err error) *workflow.StageError {
	if errors.Is(err, context.Canceled) {
		return workflow.NewStageError(workflow.ErrCancelled, stage, "call cancelled").WithCause(err)
	}

	var rerr *rag.RetrieveError
	if errors.As(err, &rerr) {
		kind := workflow.ErrProviderRejected
		if rerr.Timeout() {
			kind = workflow.ErrProviderTimeout
		}
		return workflow.NewStageError(kind, stage, "all retrieval channels failed").WithCause(err)
	}

	perr := llm.AsError(err)
	switch perr.Code {
	case llm.ErrTimeout:
		return workflow.NewStageError(workflow.ErrProviderTimeout, stage, "provider call timed out").WithCause(err)
	case llm.ErrEmptyOutput:
		return workflow.NewStageError(workflow.ErrMalformedOutput, stage, "provider returned no usable output").WithCause(err)
	default:
		return workflow.NewStageError(workflow.ErrProviderRejected, stage, "provider rejected the call").WithCause(err)
	}
}
