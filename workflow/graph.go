package workflow

// End is the pseudo-target that terminates a run with StatusCompleted.
const End = "__end__"

// Predicate is a pure function over run state used to guard an edge. It must
// be deterministic and free of side effects.
type Predicate func(state *State) bool

// Node binds a named stage into the graph, together with its declared state
// dependencies and an optional retry policy override.
type Node struct {
	// Name is the unique stage name within the graph.
	Name string
	// Stage is the capability implementation executed for this node.
	Stage Stage
	// Retry overrides the executor's default retry policy when non-nil.
	Retry *RetryPolicy
	// Consumes lists the state fields the stage requires to be populated.
	// FieldQuery is always available and needs no upstream producer.
	Consumes []Field
	// Produces lists the state fields the stage writes.
	Produces []Field
}

// Edge is a directed, predicate-guarded transition between stages.
type Edge struct {
	From string
	To   string
	// When guards the edge; nil means the edge always matches. Edges are
	// evaluated in declared order and the first match wins.
	When Predicate
	// Gate marks the edge as resolved by the revision gate instead of a
	// plain predicate. A gate edge always matches; its target comes from
	// the gate decision.
	Gate bool
	// GateTargets lists the loop-back stages a run policy may select
	// through this edge. Used for static validation only.
	GateTargets []string
}

// Graph is the static, immutable stage topology. It is built once at
// configuration time, validated, and shared read-only across runs.
type Graph struct {
	nodes     map[string]*Node
	nodeOrder []string
	edges     map[string][]Edge
	entry     string
	dupNodes  []string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[string][]Edge),
	}
}

// AddNode registers a stage node. Duplicate names are reported by Validate.
func (g *Graph) AddNode(node *Node) *Graph {
	if _, exists := g.nodes[node.Name]; exists {
		g.dupNodes = append(g.dupNodes, node.Name)
		return g
	}
	g.nodes[node.Name] = node
	g.nodeOrder = append(g.nodeOrder, node.Name)
	return g
}

// AddEdge adds a predicate-guarded edge. A nil predicate always matches.
func (g *Graph) AddEdge(from, to string, when Predicate) *Graph {
	g.edges[from] = append(g.edges[from], Edge{From: from, To: to, When: when})
	return g
}

// AddGateEdge adds the revision-gate edge out of the review stage. targets
// lists every stage a run policy may loop back to through this edge.
func (g *Graph) AddGateEdge(from string, targets ...string) *Graph {
	g.edges[from] = append(g.edges[from], Edge{From: from, Gate: true, GateTargets: targets})
	return g
}

// SetEntry names the stage every run starts from.
func (g *Graph) SetEntry(name string) *Graph {
	g.entry = name
	return g
}

// Entry returns the entry stage name.
func (g *Graph) Entry() string { return g.entry }

// Node returns the named node.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Edges returns the outgoing edges of a node in declared order.
func (g *Graph) Edges(from string) []Edge { return g.edges[from] }

// Validate checks the graph's static structure: a resolvable entry, no
// duplicate or dangling stage references, an outgoing edge on every stage,
// full reachability from the entry, and every declared input dependency
// produced by some upstream stage. A failed validation prevents any run
// from starting.
func (g *Graph) Validate() error {
	if len(g.dupNodes) > 0 {
		return configErrorf("duplicate stage registration: %v", g.dupNodes)
	}
	if g.entry == "" {
		return configErrorf("no entry stage set")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return configErrorf("entry stage %q not registered", g.entry)
	}
	for _, name := range g.nodeOrder {
		node := g.nodes[name]
		if node.Stage == nil {
			return configErrorf("stage %q has no implementation", name)
		}
		if len(g.edges[name]) == 0 {
			return configErrorf("stage %q has no outgoing edge", name)
		}
	}
	for from, edges := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return configErrorf("edge from unknown stage %q", from)
		}
		for _, e := range edges {
			if e.Gate {
				for _, t := range e.GateTargets {
					if _, ok := g.nodes[t]; !ok {
						return configErrorf("gate edge from %q names unknown loop-back target %q", from, t)
					}
				}
				continue
			}
			if e.To != End {
				if _, ok := g.nodes[e.To]; !ok {
					return configErrorf("edge %q -> %q targets unknown stage", from, e.To)
				}
			}
		}
	}
	reach := g.reachableFrom(g.entry)
	for _, name := range g.nodeOrder {
		if !reach[name] {
			return configErrorf("stage %q is unreachable from entry %q", name, g.entry)
		}
	}
	return g.validateDependencies()
}

// validateGatePolicy checks that a run policy's loop-back target is one the
// graph's gate edges declared. Called by the executor before a run starts.
// A zero revision budget is exempt: the gate can never emit a loop-back, so
// the target is irrelevant.
func (g *Graph) validateGatePolicy(policy RevisionPolicy) error {
	if policy.MaxRevisions <= 0 {
		return nil
	}
	for _, edges := range g.edges {
		for _, e := range edges {
			if !e.Gate {
				continue
			}
			ok := false
			for _, t := range e.GateTargets {
				if t == policy.LoopBackTarget {
					ok = true
					break
				}
			}
			if !ok {
				return configErrorf("loop-back target %q is not declared on the gate edge from %q (declared: %v)",
					policy.LoopBackTarget, e.From, e.GateTargets)
			}
		}
	}
	return nil
}

// validateDependencies checks that every field a stage consumes is produced
// by a stage that can reach it. FieldQuery is seeded into the initial state
// and exempt.
func (g *Graph) validateDependencies() error {
	for _, name := range g.nodeOrder {
		node := g.nodes[name]
		for _, field := range node.Consumes {
			if field == FieldQuery {
				continue
			}
			if !g.producedUpstream(name, field) {
				return configErrorf("stage %q consumes %q which no upstream stage produces", name, field)
			}
		}
	}
	return nil
}

func (g *Graph) producedUpstream(name string, field Field) bool {
	for _, other := range g.nodeOrder {
		if other == name {
			continue
		}
		produces := false
		for _, f := range g.nodes[other].Produces {
			if f == field {
				produces = true
				break
			}
		}
		if produces && g.reachableFrom(other)[name] {
			return true
		}
	}
	return false
}

// reachableFrom returns the set of stages reachable from start, following
// predicate edges and every declared gate target.
func (g *Graph) reachableFrom(start string) map[string]bool {
	seen := make(map[string]bool)
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		for _, e := range g.edges[cur] {
			if e.Gate {
				stack = append(stack, e.GateTargets...)
				continue
			}
			if e.To != End && !seen[e.To] {
				stack = append(stack, e.To)
			}
		}
	}
	return seen
}
