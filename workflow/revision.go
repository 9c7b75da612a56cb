package workflow

// RouteKind is the outcome class of a revision gate decision.
type RouteKind string

const (
	// RouteApprove terminates the run with the current draft.
	RouteApprove RouteKind = "approve"
	// RouteLoopBack re-runs the graph from the policy's loop-back target.
	RouteLoopBack RouteKind = "loop_back"
	// RouteExhausted terminates the run because the revision budget is spent.
	// This is an accepted outcome, not a failure: the best available draft
	// stands.
	RouteExhausted RouteKind = "exhausted"
)

// RouteDecision is the revision gate's verdict.
type RouteDecision struct {
	Kind   RouteKind
	Target string // loop-back stage name, set only for RouteLoopBack
}

// RevisionPolicy bounds the revision loop for one run. It is immutable for
// the run's lifetime.
type RevisionPolicy struct {
	// MaxRevisions is the number of loop-backs allowed before the gate
	// reports RouteExhausted.
	MaxRevisions int `yaml:"max_revisions" json:"max_revisions"`
	// QualityThreshold is the minimum review score the reviewer stage may
	// fold into its approval flag. The gate itself never compares it; only
	// the approval flag routes.
	QualityThreshold float64 `yaml:"quality_threshold" json:"quality_threshold"`
	// LoopBackTarget is the stage a rejected draft resumes from.
	LoopBackTarget string `yaml:"loop_back_target" json:"loop_back_target"`
}

// DecideRoute maps a review outcome and the current revision count to a
// routing action. It is a pure function; the executor applies the decision,
// incrementing the revision count exactly once per loop-back.
func DecideRoute(review *ReviewFeedback, revisionCount int, policy RevisionPolicy) RouteDecision {
	if review != nil && review.Approved {
		return RouteDecision{Kind: RouteApprove}
	}
	if revisionCount >= policy.MaxRevisions {
		return RouteDecision{Kind: RouteExhausted}
	}
	return RouteDecision{Kind: RouteLoopBack, Target: policy.LoopBackTarget}
}
