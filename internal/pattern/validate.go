package pattern

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Validate checks the structural invariants the matching core relies on:
//
//  1. Edge i has id i, and every endpoint is a known node.
//  2. The order relation covers exactly the graph's edges and refers only
//     to known edges (or Root).
//  3. The order relation is acyclic.
//  4. In regex mode, every signature compiles.
func (p *Pattern) Validate() error {
	if p.Graph == nil || p.Order == nil {
		return newParseError(ErrCodeFormat, "pattern has no graph or order relation")
	}
	if p.Graph.NumEdges() == 0 {
		return newParseError(ErrCodeIDs, "pattern has no edges")
	}

	for i, e := range p.Graph.Edges() {
		if e.ID != i {
			return newParseError(ErrCodeIDs, "edge at index %d has id %d", i, e.ID)
		}
		if e.Start < 0 || e.Start >= p.Graph.NumNodes() || e.End < 0 || e.End >= p.Graph.NumNodes() {
			return newParseError(ErrCodeIDs, "edge %d refers to unknown node", e.ID)
		}
	}

	if p.Order.NumEdges() != p.Graph.NumEdges() {
		return newParseError(ErrCodeIDs, "order relation covers %d edges, graph has %d",
			p.Order.NumEdges(), p.Graph.NumEdges())
	}
	for id := 0; id < p.Order.NumEdges(); id++ {
		for _, parent := range p.Order.Parents(id) {
			if parent < Root || parent >= p.Order.NumEdges() {
				return newParseError(ErrCodeIDs, "edge %d depends on unknown edge %d", id, parent)
			}
		}
	}

	if cycles := findCycles(p.Order); len(cycles) > 0 {
		return newParseError(ErrCodeCycle, "temporal dependencies form a cycle: %s", formatCycle(cycles[0]))
	}

	if p.UseRegex {
		for _, e := range p.Graph.Edges() {
			if _, err := regexp.Compile(AnchoredRegex(e.Signature)); err != nil {
				pe := newParseError(ErrCodeSignature, "edge %d has an invalid signature pattern %q", e.ID, e.Signature)
				pe.Err = err
				return pe
			}
		}
	}
	return nil
}

// AnchoredRegex wraps a signature pattern so that it must match a whole
// event signature.
func AnchoredRegex(sig string) string {
	return "^(?:" + sig + ")$"
}

// findCycles returns every strongly connected component of the order
// relation that is a cycle: size > 1, or a single edge depending on itself.
func findCycles(r *OrderRelation) [][]int {
	var cycles [][]int
	for _, scc := range tarjanSCC(r) {
		if len(scc) > 1 || r.IsParent(scc[0], scc[0]) {
			sort.Ints(scc)
			cycles = append(cycles, scc)
		}
	}
	return cycles
}

// tarjanSCC finds strongly connected components of the dependency arcs
// (parent -> child) using Tarjan's algorithm. Root is not a vertex.
func tarjanSCC(r *OrderRelation) [][]int {
	n := r.NumEdges()
	var (
		index   = 0
		stack   []int
		indices = make([]int, n)
		lowlink = make([]int, n)
		onStack = make([]bool, n)
		sccs    [][]int
	)
	for i := range indices {
		indices[i] = -1
	}

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range r.Children(v) {
			if indices[w] < 0 {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for v := 0; v < n; v++ {
		if indices[v] < 0 {
			strongConnect(v)
		}
	}
	return sccs
}

func formatCycle(scc []int) string {
	parts := make([]string, 0, len(scc)+1)
	for _, id := range scc {
		parts = append(parts, fmt.Sprintf("e%d", id))
	}
	parts = append(parts, parts[0])
	return strings.Join(parts, " → ")
}
