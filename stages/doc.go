// Package stages implements the four processing capabilities of the answer
// pipeline — retrieval, research, writing and review — against the
// workflow.Stage interface, plus the builder for the standard graph wiring
// them together. Each stage owns a disjoint slice of the run state and maps
// its collaborators' failures to typed stage errors; none of them talk to
// the executor beyond that contract.
package stages
