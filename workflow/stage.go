package workflow

import "context"

// Stage is the uniform contract every processing capability implements.
// A stage consumes the run's State, optionally invokes external providers,
// and either mutates the State fields it owns or reports a typed failure.
// Stages must be stateless with respect to runs: one Stage value is shared
// read-only across all concurrent executions.
type Stage interface {
	// Name returns the stage's registered name.
	Name() string
	// Run executes the stage against the given state. It must confine its
	// writes to the fields the stage declares as produced, and must never
	// swallow a provider failure silently.
	Run(ctx context.Context, state *State) *StageError
}

// StageFunc adapts a plain function into a Stage.
type StageFunc struct {
	name string
	fn   func(ctx context.Context, state *State) *StageError
}

// NewStageFunc creates a function-backed stage.
func NewStageFunc(name string, fn func(ctx context.Context, state *State) *StageError) *StageFunc {
	return &StageFunc{name: name, fn: fn}
}

func (s *StageFunc) Name() string { return s.name }

func (s *StageFunc) Run(ctx context.Context, state *State) *StageError {
	return s.fn(ctx, state)
}
