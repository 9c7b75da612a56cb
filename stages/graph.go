package stages

import (
	"github.com/scribeworks/quill/workflow"
)

// BuildGraph wires the standard retrieve → research → write → review
// pipeline with the revision gate on the review stage. The gate may loop
// back to either the writer or the researcher, whichever the run policy
// selects. The graph is one valid instance among many: the executor treats
// it as opaque configuration.
func BuildGraph(retrieve, research, write, review workflow.Stage, retry *workflow.RetryPolicy) (*workflow.Graph, error) {
	g := workflow.NewGraph().
		AddNode(&workflow.Node{
			Name:     StageRetrieve,
			Stage:    retrieve,
			Retry:    retry,
			Consumes: []workflow.Field{workflow.FieldQuery},
			Produces: []workflow.Field{workflow.FieldContextDocuments},
		}).
		AddNode(&workflow.Node{
			Name:     StageResearch,
			Stage:    research,
			Retry:    retry,
			Consumes: []workflow.Field{workflow.FieldQuery, workflow.FieldContextDocuments},
			Produces: []workflow.Field{workflow.FieldResearchNotes},
		}).
		AddNode(&workflow.Node{
			Name:     StageWrite,
			Stage:    write,
			Retry:    retry,
			Consumes: []workflow.Field{workflow.FieldQuery, workflow.FieldResearchNotes},
			Produces: []workflow.Field{workflow.FieldDraft},
		}).
		AddNode(&workflow.Node{
			Name:     StageReview,
			Stage:    review,
			Retry:    retry,
			Consumes: []workflow.Field{workflow.FieldQuery, workflow.FieldDraft},
			Produces: []workflow.Field{workflow.FieldReview},
		}).
		AddEdge(StageRetrieve, StageResearch, nil).
		AddEdge(StageResearch, StageWrite, nil).
		AddEdge(StageWrite, StageReview, nil).
		AddGateEdge(StageReview, StageWrite, StageResearch).
		SetEntry(StageRetrieve)

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
