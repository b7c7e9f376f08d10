package resolver

import "sort"

// NodeID names a node in a dependency graph: a component name.
type NodeID = string

// Node is one resolved component and its immediate dependency edges, kept
// as a bare DependsOn slice like internal/dependency.Node; edges carry no
// kind or version constraint.
type Node struct {
	ID        NodeID
	DependsOn []NodeID
}

// Graph answers dependency queries over a resolved assignment: topological
// order for the lifecycle merger's stop/start phases (§4.4, §5), and cycle
// detection. It generalizes internal/dependency.Graph's map-of-nodes shape;
// unlike the teacher's graph it cannot skip cycle detection, since resolved
// component graphs are neither small nor hand-curated.
type Graph struct {
	nodes map[NodeID]*Node
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// AddNode adds or replaces a node.
func (g *Graph) AddNode(n Node) {
	if g.nodes == nil {
		g.nodes = make(map[NodeID]*Node)
	}
	deps := make([]NodeID, len(n.DependsOn))
	copy(deps, n.DependsOn)
	g.nodes[n.ID] = &Node{ID: n.ID, DependsOn: deps}
}

// Get returns the stored node, or nil if absent.
func (g *Graph) Get(id NodeID) *Node {
	return g.nodes[id]
}

// Dependencies returns id's immediate dependency IDs.
func (g *Graph) Dependencies(id NodeID) []NodeID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	out := make([]NodeID, len(n.DependsOn))
	copy(out, n.DependsOn)
	return out
}

// Dependents returns every node ID with a direct dependency on id.
func (g *Graph) Dependents(id NodeID) []NodeID {
	var out []NodeID
	for _, n := range g.nodes {
		for _, dep := range n.DependsOn {
			if dep == id {
				out = append(out, n.ID)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// DetectCycle reports the node IDs of one strongly connected component of
// size greater than one (or a single self-dependent node), using Tarjan's
// algorithm, or ok=false if the graph is acyclic.
func (g *Graph) DetectCycle() (cycle []NodeID, ok bool) {
	t := &tarjan{
		graph:   g,
		index:   make(map[NodeID]int),
		lowlink: make(map[NodeID]int),
		onStack: make(map[NodeID]bool),
	}
	for id := range g.nodes {
		if _, visited := t.index[id]; !visited {
			if c, found := t.strongConnect(id); found {
				return c, true
			}
		}
	}
	return nil, false
}

type tarjan struct {
	graph   *Graph
	counter int
	index   map[NodeID]int
	lowlink map[NodeID]int
	onStack map[NodeID]bool
	stack   []NodeID
}

func (t *tarjan) strongConnect(v NodeID) ([]NodeID, bool) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.graph.Dependencies(v) {
		if _, visited := t.index[w]; !visited {
			if c, found := t.strongConnect(w); found {
				return c, true
			}
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] != t.index[v] {
		return nil, false
	}

	var scc []NodeID
	for {
		n := len(t.stack) - 1
		w := t.stack[n]
		t.stack = t.stack[:n]
		t.onStack[w] = false
		scc = append(scc, w)
		if w == v {
			break
		}
	}

	if len(scc) > 1 {
		return scc, true
	}
	// A single-node "cycle" only counts if it depends on itself.
	for _, dep := range t.graph.Dependencies(scc[0]) {
		if dep == scc[0] {
			return scc, true
		}
	}
	return nil, false
}

// TopologicalOrder returns node IDs such that every node appears after all
// of its dependencies (forward/start order per §5). Returns an error if the
// graph contains a cycle.
func (g *Graph) TopologicalOrder() ([]NodeID, error) {
	if cycle, found := g.DetectCycle(); found {
		return nil, &CycleError{Cycle: cycle}
	}

	visited := make(map[NodeID]bool, len(g.nodes))
	var order []NodeID

	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var visit func(id NodeID)
	visit = func(id NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range g.Dependencies(id) {
			visit(dep)
		}
		order = append(order, id)
	}
	for _, id := range ids {
		visit(id)
	}
	return order, nil
}

// ReverseTopologicalOrder returns TopologicalOrder reversed (stop order per
// §5: reverse topological).
func (g *Graph) ReverseTopologicalOrder() ([]NodeID, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	out := make([]NodeID, len(order))
	for i, id := range order {
		out[len(order)-1-i] = id
	}
	return out, nil
}

// CycleError reports a detected dependency cycle.
type CycleError struct {
	Cycle []NodeID
}

func (e *CycleError) Error() string {
	return "resolver: dependency cycle detected: " + joinIDs(e.Cycle)
}

func joinIDs(ids []NodeID) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += " -> "
		}
		s += id
	}
	return s
}
