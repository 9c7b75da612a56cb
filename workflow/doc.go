// Package workflow implements the directed-graph execution engine that
// drives a query through its processing stages.
//
// A Graph binds named stages (implementations of the Stage interface) with
// predicate-guarded edges. The Graph is built once, validated statically and
// shared read-only across concurrent runs; all per-run mutable data lives in
// a State instance owned by exactly one run.
//
// The Executor walks the graph one stage at a time, applying per-stage retry
// and timeout policy, recording every attempt in the state's history, and
// consulting the revision gate on gate edges to decide whether a reviewed
// draft is accepted or sent back for another pass. Revision loops are
// bounded by RevisionPolicy.MaxRevisions; exhausting the budget terminates
// the run as Completed with the best available draft.
package workflow
