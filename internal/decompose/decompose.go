// Package decompose splits a pattern into time-connected sub-queries
// (TC-Queries) and precomputes which pattern edges of different
// sub-queries constrain each other.
//
// A TC-Query is an ordered list of pattern edges where every prefix is
// node-connected and every edge follows the temporal order relation. The
// selected TC-Queries partition the pattern's edges.
package decompose

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/littleponywork/IPMES/internal/pattern"
)

// TCQuery is a time-connected sub-query of a pattern.
type TCQuery struct {
	// ID is assigned after selection, in acceptance order.
	ID    int
	Edges []pattern.Edge
}

// NumEdges returns the number of pattern edges in the query.
func (q TCQuery) NumEdges() int { return len(q.Edges) }

// EdgeIDs returns the pattern edge ids in query order.
func (q TCQuery) EdgeIDs() []int {
	ids := make([]int, len(q.Edges))
	for i, e := range q.Edges {
		ids[i] = e.ID
	}
	return ids
}

func (q TCQuery) String() string {
	parts := make([]string, len(q.Edges))
	for i, e := range q.Edges {
		parts[i] = e.String()
	}
	return fmt.Sprintf("TCQ%d[%s]", q.ID, strings.Join(parts, ", "))
}

// Relation records that pattern edge ResultEdge and pattern edge EntryEdge,
// which live in different TC-Queries, are temporally or spatially related.
// When two partial results are joined, ResultEdge is looked up in the
// incoming result and EntryEdge in the buffered entry.
type Relation struct {
	ResultEdge int `json:"result_edge"`
	EntryEdge  int `json:"entry_edge"`
}

// Generator decomposes one pattern. It is stateless apart from the pattern
// and safe to reuse.
type Generator struct {
	pattern *pattern.Pattern
}

// New creates a Generator for p.
func New(p *pattern.Pattern) *Generator {
	return &Generator{pattern: p}
}

// Decompose returns the TC-Queries partitioning the pattern's edges, with
// ids 0..k-1. The result is deterministic for a given pattern.
func (g *Generator) Decompose() []TCQuery {
	var candidates []TCQuery
	var path []pattern.Edge
	for _, e := range g.pattern.Graph.Edges() {
		candidates = g.walk(e, path, candidates)
	}

	selected := g.selectQueries(candidates)
	for i := range selected {
		selected[i].ID = i
	}

	slog.Debug("pattern decomposed",
		"edges", g.pattern.NumEdges(),
		"candidates", len(candidates),
		"tc_queries", len(selected),
	)
	return selected
}

// walk is a depth-first traversal of the order relation starting at cur.
// cur extends path only when it shares a node with an edge already on the
// path; every accepted prefix becomes a candidate.
func (g *Generator) walk(cur pattern.Edge, path []pattern.Edge, out []TCQuery) []TCQuery {
	if !g.connected(cur, path) {
		return out
	}
	path = append(path, cur)

	edges := make([]pattern.Edge, len(path))
	copy(edges, path)
	out = append(out, TCQuery{Edges: edges})

	for _, child := range g.pattern.Order.Children(cur.ID) {
		out = g.walk(g.pattern.Graph.Edge(child), path, out)
	}
	return out
}

func (g *Generator) connected(e pattern.Edge, path []pattern.Edge) bool {
	if len(path) == 0 {
		return true
	}
	for _, p := range path {
		if g.pattern.Graph.SharesNode(e.ID, p.ID) {
			return true
		}
	}
	return false
}

// selectQueries greedily accepts the longest candidates whose edges are
// all still unclaimed. Ties keep discovery order.
func (g *Generator) selectQueries(candidates []TCQuery) []TCQuery {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].NumEdges() > candidates[j].NumEdges()
	})

	claimed := make([]bool, g.pattern.NumEdges())
	var selected []TCQuery
	for _, c := range candidates {
		if anyClaimed(c, claimed) {
			continue
		}
		for _, e := range c.Edges {
			claimed[e.ID] = true
		}
		selected = append(selected, c)
	}
	return selected
}

func anyClaimed(q TCQuery, claimed []bool) bool {
	for _, e := range q.Edges {
		if claimed[e.ID] {
			return true
		}
	}
	return false
}

// HasRelation reports whether pattern edges a and b are temporally related
// (direct parent or child) or spatially related (share a node).
func (g *Generator) HasRelation(a, b int) bool {
	return g.pattern.Order.Related(a, b) || g.pattern.Graph.SharesNode(a, b)
}

// Relations returns, for every TC-Query id i, the relations between an edge
// of query i (ResultEdge) and an edge of any other query (EntryEdge).
func (g *Generator) Relations(queries []TCQuery) [][]Relation {
	relations := make([][]Relation, len(queries))
	for i := range queries {
		for j := range queries {
			if i == j {
				continue
			}
			relations[i] = append(relations[i], g.Between(queries[i].Edges, queries[j].Edges)...)
		}
	}
	return relations
}

// Between lists the relations from edges in results to edges in entries.
func (g *Generator) Between(results, entries []pattern.Edge) []Relation {
	var rels []Relation
	for _, e1 := range results {
		for _, e2 := range entries {
			if g.HasRelation(e1.ID, e2.ID) {
				rels = append(rels, Relation{ResultEdge: e1.ID, EntryEdge: e2.ID})
			}
		}
	}
	return rels
}
