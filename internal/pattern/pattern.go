package pattern

import "fmt"

// Root is the id of the virtual root of an OrderRelation.
const Root = -1

// Node is a pattern node.
type Node struct {
	ID        int    `json:"id"`
	Signature string `json:"signature"`
}

// Edge is a pattern edge. Start and End are node ids in the owning Graph.
type Edge struct {
	ID        int    `json:"id"`
	Signature string `json:"signature"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
}

// Endpoints returns the start and end node ids.
func (e Edge) Endpoints() [2]int {
	return [2]int{e.Start, e.End}
}

func (e Edge) String() string {
	return fmt.Sprintf("e%d(%s, n%d->n%d)", e.ID, e.Signature, e.Start, e.End)
}

// Graph is the spatial relation of a pattern.
type Graph struct {
	nodes []Node
	edges []Edge
}

// NewGraph creates a Graph. Edge i must have ID i; node ids index nodes.
// The slices are copied.
func NewGraph(nodes []Node, edges []Edge) *Graph {
	g := &Graph{
		nodes: make([]Node, len(nodes)),
		edges: make([]Edge, len(edges)),
	}
	copy(g.nodes, nodes)
	copy(g.edges, edges)
	return g
}

// NumNodes returns the number of nodes.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the number of edges.
func (g *Graph) NumEdges() int { return len(g.edges) }

// Nodes returns the nodes ordered by id. Callers must not modify the slice.
func (g *Graph) Nodes() []Node { return g.nodes }

// Edges returns the edges ordered by id. Callers must not modify the slice.
func (g *Graph) Edges() []Edge { return g.edges }

// Edge returns the edge with the given id.
func (g *Graph) Edge(id int) Edge { return g.edges[id] }

// Node returns the node with the given id.
func (g *Graph) Node(id int) Node { return g.nodes[id] }

// SharedNodes returns the ids of the nodes edge a shares with edge b,
// listed from a's point of view (start first).
func (g *Graph) SharedNodes(a, b int) []int {
	ea, eb := g.edges[a], g.edges[b]
	var shared []int
	if ea.Start == eb.Start || ea.Start == eb.End {
		shared = append(shared, ea.Start)
	}
	if ea.End == eb.Start || ea.End == eb.End {
		shared = append(shared, ea.End)
	}
	return shared
}

// SharesNode reports whether edges a and b have at least one common endpoint.
func (g *Graph) SharesNode(a, b int) bool {
	ea, eb := g.edges[a], g.edges[b]
	return ea.Start == eb.Start || ea.Start == eb.End ||
		ea.End == eb.Start || ea.End == eb.End
}

// OrderRelation is the temporal dependency DAG over pattern edge ids.
// Slot 0 of each table belongs to Root; edge id i lives at slot i+1.
type OrderRelation struct {
	parents  [][]int
	children [][]int
}

// NewOrderRelation builds an OrderRelation over numEdges edges from a map of
// edge id to the ids it depends on. Edges with no entry (or an empty entry)
// depend on Root. Parent lists keep the given order.
func NewOrderRelation(numEdges int, deps map[int][]int) *OrderRelation {
	r := &OrderRelation{
		parents:  make([][]int, numEdges+1),
		children: make([][]int, numEdges+1),
	}
	for id := 0; id < numEdges; id++ {
		ps := deps[id]
		if len(ps) == 0 {
			ps = []int{Root}
		}
		for _, p := range ps {
			r.parents[id+1] = append(r.parents[id+1], p)
			r.children[p+1] = append(r.children[p+1], id)
		}
	}
	return r
}

// NumEdges returns the number of pattern edges covered by the relation.
func (r *OrderRelation) NumEdges() int { return len(r.parents) - 1 }

// Parents returns the edges id depends on (Root for independent edges).
func (r *OrderRelation) Parents(id int) []int { return r.parents[id+1] }

// Children returns the edges depending on id. Children(Root) lists every
// independent edge.
func (r *OrderRelation) Children(id int) []int { return r.children[id+1] }

// IsParent reports whether p is a direct dependency of c.
func (r *OrderRelation) IsParent(p, c int) bool {
	for _, x := range r.parents[c+1] {
		if x == p {
			return true
		}
	}
	return false
}

// Related reports whether a and b are directly related in either direction.
func (r *OrderRelation) Related(a, b int) bool {
	return r.IsParent(a, b) || r.IsParent(b, a)
}

// Pattern is the complete pattern model handed to the core.
type Pattern struct {
	Graph *Graph
	Order *OrderRelation

	// UseRegex selects how edge signatures are compared with event
	// signatures: regular expression (full match) or literal equality.
	UseRegex bool
}

// NumEdges returns the number of pattern edges.
func (p *Pattern) NumEdges() int { return p.Graph.NumEdges() }
