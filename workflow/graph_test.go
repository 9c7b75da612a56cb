package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopStage(name string) Stage {
	return NewStageFunc(name, func(ctx context.Context, state *State) *StageError {
		return nil
	})
}

// linearGraph builds the canonical four-stage pipeline used across the
// executor tests: retrieve -> research -> write -> review, with a gate edge
// out of review that may loop back to write or research.
func linearGraph() *Graph {
	g := NewGraph()
	g.AddNode(&Node{Name: "retrieve", Stage: noopStage("retrieve"), Produces: []Field{FieldContextDocuments}}).
		AddNode(&Node{Name: "research", Stage: noopStage("research"), Consumes: []Field{FieldContextDocuments}, Produces: []Field{FieldResearchNotes}}).
		AddNode(&Node{Name: "write", Stage: noopStage("write"), Consumes: []Field{FieldResearchNotes}, Produces: []Field{FieldDraft}}).
		AddNode(&Node{Name: "review", Stage: noopStage("review"), Consumes: []Field{FieldDraft}, Produces: []Field{FieldReview}}).
		AddEdge("retrieve", "research", nil).
		AddEdge("research", "write", nil).
		AddEdge("write", "review", nil).
		AddGateEdge("review", "write", "research").
		SetEntry("retrieve")
	return g
}

func TestGraphValidate_OK(t *testing.T) {
	require.NoError(t, linearGraph().Validate())
}

func TestGraphValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *Graph
		wantMsg string
	}{
		{
			name: "duplicate node",
			build: func() *Graph {
				g := linearGraph()
				g.AddNode(&Node{Name: "write", Stage: noopStage("write")})
				return g
			},
			wantMsg: "duplicate stage registration",
		},
		{
			name: "no entry",
			build: func() *Graph {
				g := NewGraph()
				g.AddNode(&Node{Name: "a", Stage: noopStage("a")}).AddEdge("a", End, nil)
				return g
			},
			wantMsg: "no entry stage",
		},
		{
			name: "unknown entry",
			build: func() *Graph {
				g := NewGraph()
				g.AddNode(&Node{Name: "a", Stage: noopStage("a")}).AddEdge("a", End, nil).SetEntry("missing")
				return g
			},
			wantMsg: "not registered",
		},
		{
			name: "nil stage implementation",
			build: func() *Graph {
				g := NewGraph()
				g.AddNode(&Node{Name: "a"}).AddEdge("a", End, nil).SetEntry("a")
				return g
			},
			wantMsg: "no implementation",
		},
		{
			name: "missing outgoing edge",
			build: func() *Graph {
				g := NewGraph()
				g.AddNode(&Node{Name: "a", Stage: noopStage("a")}).SetEntry("a")
				return g
			},
			wantMsg: "no outgoing edge",
		},
		{
			name: "dangling edge target",
			build: func() *Graph {
				g := NewGraph()
				g.AddNode(&Node{Name: "a", Stage: noopStage("a")}).
					AddEdge("a", "ghost", nil).
					SetEntry("a")
				return g
			},
			wantMsg: "targets unknown stage",
		},
		{
			name: "unknown gate target",
			build: func() *Graph {
				g := NewGraph()
				g.AddNode(&Node{Name: "a", Stage: noopStage("a")}).
					AddGateEdge("a", "ghost").
					SetEntry("a")
				return g
			},
			wantMsg: "unknown loop-back target",
		},
		{
			name: "unreachable stage",
			build: func() *Graph {
				g := NewGraph()
				g.AddNode(&Node{Name: "a", Stage: noopStage("a")}).
					AddNode(&Node{Name: "island", Stage: noopStage("island")}).
					AddEdge("a", End, nil).
					AddEdge("island", End, nil).
					SetEntry("a")
				return g
			},
			wantMsg: "unreachable",
		},
		{
			name: "dependency never produced",
			build: func() *Graph {
				g := NewGraph()
				g.AddNode(&Node{Name: "a", Stage: noopStage("a"), Consumes: []Field{FieldDraft}}).
					AddEdge("a", End, nil).
					SetEntry("a")
				return g
			},
			wantMsg: "no upstream stage produces",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Validate()
			require.Error(t, err)
			var cfg *ConfigError
			require.ErrorAs(t, err, &cfg)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestGraphValidate_QueryIsAlwaysAvailable(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{Name: "a", Stage: noopStage("a"), Consumes: []Field{FieldQuery}}).
		AddEdge("a", End, nil).
		SetEntry("a")
	assert.NoError(t, g.Validate())
}

func TestGraphValidate_LoopBackTargetReachability(t *testing.T) {
	// A stage only reachable through a gate's loop-back target still counts
	// as reachable.
	g := NewGraph()
	g.AddNode(&Node{Name: "review", Stage: noopStage("review")}).
		AddNode(&Node{Name: "redo", Stage: noopStage("redo")}).
		AddGateEdge("review", "redo").
		AddEdge("redo", "review", nil).
		SetEntry("review")
	assert.NoError(t, g.Validate())
}

func TestValidateGatePolicy(t *testing.T) {
	g := linearGraph()

	assert.NoError(t, g.validateGatePolicy(RevisionPolicy{MaxRevisions: 2, LoopBackTarget: "write"}))
	assert.NoError(t, g.validateGatePolicy(RevisionPolicy{MaxRevisions: 2, LoopBackTarget: "research"}))

	err := g.validateGatePolicy(RevisionPolicy{MaxRevisions: 2, LoopBackTarget: "retrieve"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not declared on the gate edge")

	// A zero budget never loops back, so any target (or none) is fine.
	assert.NoError(t, g.validateGatePolicy(RevisionPolicy{MaxRevisions: 0}))
	assert.NoError(t, g.validateGatePolicy(RevisionPolicy{MaxRevisions: 0, LoopBackTarget: "retrieve"}))
}

func TestGraphEdgesDeclaredOrder(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{Name: "a", Stage: noopStage("a")})
	g.AddEdge("a", "b", nil)
	g.AddEdge("a", "c", nil)
	g.AddEdge("a", End, nil)

	edges := g.Edges("a")
	require.Len(t, edges, 3)
	assert.Equal(t, "b", edges[0].To)
	assert.Equal(t, "c", edges[1].To)
	assert.Equal(t, End, edges[2].To)
}
