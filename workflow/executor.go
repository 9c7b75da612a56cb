package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Metrics receives execution signals from the executor. Implementations must
// be safe for concurrent use; the executor tolerates a nil Metrics.
type Metrics interface {
	RunStarted()
	RunFinished(status Status, kind ErrorKind, d time.Duration)
	StageAttempt(stage, outcome string, d time.Duration)
	StageRetry(stage string)
	RevisionLoop(target string)
}

// Executor drives a run's State through a Graph one stage at a time. It owns
// retry, backoff and per-attempt timeout policy; stages only report typed
// failures. The executor itself is stateless across runs and safe to share.
type Executor struct {
	logger       *zap.Logger
	metrics      Metrics
	defaultRetry RetryPolicy
	maxSteps     int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithDefaultRetry sets the retry policy applied to nodes without an
// override.
func WithDefaultRetry(p RetryPolicy) ExecutorOption {
	return func(e *Executor) { e.defaultRetry = p }
}

// WithMetrics attaches an execution metrics sink.
func WithMetrics(m Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithMaxSteps caps the number of stage transitions per run. The revision
// gate already bounds the review loop; the step cap is a backstop against a
// misconfigured predicate cycle.
func WithMaxSteps(n int) ExecutorOption {
	return func(e *Executor) { e.maxSteps = n }
}

// NewExecutor creates an executor. A nil logger disables logging.
func NewExecutor(logger *zap.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		logger:       logger.With(zap.String("component", "executor")),
		defaultRetry: DefaultRetryPolicy(),
		maxSteps:     100,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs state through the graph until a terminal status is reached
// and returns the same state. The returned error is nil for a completed
// run (including one that exhausted its revision budget), the terminal
// StageError for a failed run, and a ConfigError when validation prevented
// the run from starting at all.
//
// Cancelling ctx stops the run at the next stage boundary; the executor
// never starts another stage after that. Stage attempt contexts derive from
// ctx, so a stage that observes its context may return early from an
// in-flight provider call, reporting ErrCancelled for the run.
func (e *Executor) Execute(ctx context.Context, g *Graph, state *State, policy RevisionPolicy) (*State, error) {
	if err := g.Validate(); err != nil {
		return e.failConfig(state, err), err
	}
	if err := g.validateGatePolicy(policy); err != nil {
		return e.failConfig(state, err), err
	}

	if e.metrics != nil {
		e.metrics.RunStarted()
	}
	log := e.logger.With(zap.String("run_id", state.RunID))
	log.Info("starting run",
		zap.String("entry", g.Entry()),
		zap.Int("max_revisions", policy.MaxRevisions),
	)

	cur := g.Entry()
	for step := 0; ; step++ {
		if step >= e.maxSteps {
			err := configErrorf("run exceeded %d stage transitions; graph likely has an unbounded cycle", e.maxSteps)
			return e.failConfig(state, err), err
		}

		// Cancellation is observed at stage boundaries: an in-flight stage
		// is allowed to finish, but no further stage starts.
		if cerr := ctx.Err(); cerr != nil {
			serr := NewStageError(ErrCancelled, cur, "run cancelled").WithCause(cerr)
			state.fail(cur, serr)
			e.finishMetrics(state)
			log.Warn("run cancelled", zap.String("stage", cur))
			return state, serr
		}

		node, _ := g.Node(cur)
		if serr := e.runStage(ctx, log, node, state); serr != nil {
			state.fail(node.Name, serr)
			e.finishMetrics(state)
			log.Error("run failed",
				zap.String("stage", node.Name),
				zap.String("kind", string(serr.Kind)),
				zap.Error(serr),
			)
			return state, serr
		}

		next, cfgErr := e.resolveNext(log, g, node, state, policy)
		if cfgErr != nil {
			return e.failConfig(state, cfgErr), cfgErr
		}
		if next == End {
			state.complete()
			e.finishMetrics(state)
			log.Info("run completed",
				zap.Int("revisions", state.RevisionCount),
				zap.Int("stages_executed", len(state.StageHistory)),
			)
			return state, nil
		}
		cur = next
	}
}

// runStage executes one node under its retry policy, recording every
// attempt in the state history.
func (e *Executor) runStage(ctx context.Context, log *zap.Logger, node *Node, state *State) *StageError {
	policy := e.defaultRetry
	if node.Retry != nil {
		policy = *node.Retry
	}
	policy = policy.normalized()

	var last *StageError
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := policy.delay(attempt)
			log.Debug("retrying stage",
				zap.String("stage", node.Name),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				serr := NewStageError(ErrCancelled, node.Name, "cancelled while waiting to retry").WithCause(ctx.Err())
				state.recordAttempt(StageRecord{
					Stage: node.Name, Attempt: attempt, Start: time.Now(), Outcome: string(ErrCancelled),
					Error: serr.Error(),
				})
				return serr
			case <-time.After(delay):
			}
			if e.metrics != nil {
				e.metrics.StageRetry(node.Name)
			}
		}

		attemptCtx := ctx
		cancel := func() {}
		if policy.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		}

		start := time.Now()
		serr := node.Stage.Run(attemptCtx, state)
		elapsed := time.Since(start)

		// A stage that surfaced the attempt deadline as a cancellation is
		// reclassified: only the caller's own cancellation is terminal.
		if serr != nil && serr.Kind == ErrCancelled && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			serr = NewStageError(ErrProviderTimeout, node.Name, "stage attempt exceeded timeout").WithCause(serr.Cause)
		}
		cancel()

		if serr == nil {
			state.recordAttempt(StageRecord{
				Stage: node.Name, Attempt: attempt, Start: start, Duration: elapsed, Outcome: "ok",
			})
			if e.metrics != nil {
				e.metrics.StageAttempt(node.Name, "ok", elapsed)
			}
			log.Debug("stage completed",
				zap.String("stage", node.Name),
				zap.Int("attempt", attempt),
				zap.Duration("duration", elapsed),
			)
			return nil
		}

		if serr.Stage == "" {
			serr.Stage = node.Name
		}
		last = serr
		state.recordAttempt(StageRecord{
			Stage: node.Name, Attempt: attempt, Start: start, Duration: elapsed,
			Outcome: string(serr.Kind), Error: serr.Error(),
		})
		if e.metrics != nil {
			e.metrics.StageAttempt(node.Name, string(serr.Kind), elapsed)
		}

		if !policy.retryable(serr) {
			return serr
		}
	}
	return last
}

// resolveNext evaluates a node's outgoing edges in declared order and
// returns the first match. Gate edges delegate to the revision gate; the
// executor applies a loop-back decision here, incrementing the revision
// count exactly once and appending the reviewer's feedback to the state the
// resumed stage reads.
func (e *Executor) resolveNext(log *zap.Logger, g *Graph, node *Node, state *State, policy RevisionPolicy) (string, error) {
	for _, edge := range g.Edges(node.Name) {
		if edge.Gate {
			decision := DecideRoute(state.Review, state.RevisionCount, policy)
			switch decision.Kind {
			case RouteApprove:
				log.Info("draft approved", zap.Int("revisions", state.RevisionCount))
				return End, nil
			case RouteExhausted:
				log.Info("revision budget exhausted, keeping best draft",
					zap.Int("revisions", state.RevisionCount),
				)
				return End, nil
			case RouteLoopBack:
				state.RevisionCount++
				if state.Review != nil && state.Review.Feedback != "" {
					state.RevisionFeedback = append(state.RevisionFeedback, state.Review.Feedback)
				}
				if e.metrics != nil {
					e.metrics.RevisionLoop(decision.Target)
				}
				log.Info("looping back for revision",
					zap.String("target", decision.Target),
					zap.Int("revision", state.RevisionCount),
				)
				return decision.Target, nil
			}
		}
		if edge.When == nil || edge.When(state) {
			return edge.To, nil
		}
	}
	return "", configErrorf("no outgoing edge of stage %q matched the current state", node.Name)
}

func (e *Executor) failConfig(state *State, err error) *State {
	state.fail("", &StageError{Kind: ErrConfiguration, Message: err.Error(), Cause: err})
	e.finishMetrics(state)
	return state
}

func (e *Executor) finishMetrics(state *State) {
	if e.metrics == nil {
		return
	}
	var kind ErrorKind
	if state.Err != nil {
		kind = state.Err.Kind
	}
	e.metrics.RunFinished(state.Status, kind, state.FinishedAt.Sub(state.StartedAt))
}
