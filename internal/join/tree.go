package join

import (
	"fmt"

	"github.com/littleponywork/IPMES/internal/decompose"
	"github.com/littleponywork/IPMES/internal/pattern"
)

// The merge tree for k TC-Queries is a left-deep binary tree of 2k-1
// buffers stored in an array:
//
//	buffer 0      results of TC-Query 0
//	buffer 2j-1   results of TC-Query j (j >= 1)
//	buffer 2j     merged results of TC-Queries 0..j
//
// Buffers 2j-2 and 2j-1 are siblings and merge into their parent 2j. The
// root, buffer 2k-2, holds full matches.

// NumBuffers returns the number of buffers for k TC-Queries.
func NumBuffers(k int) int { return 2*k - 1 }

// RootIdx returns the root buffer index for k TC-Queries.
func RootIdx(k int) int { return 2*k - 2 }

// ToBufferIdx returns the leaf buffer holding results of TC-Query tcqID.
func ToBufferIdx(tcqID int) int {
	if tcqID == 0 {
		return 0
	}
	return 2*tcqID - 1
}

// ToTCQueryID returns the TC-Query whose results a leaf buffer holds.
func ToTCQueryID(bufferIdx int) int { return (bufferIdx + 1) / 2 }

// Sibling returns the buffer that bufferIdx is merged with.
func Sibling(bufferIdx int) int { return bufferIdx ^ 1 }

// Parent returns the buffer receiving merges of bufferIdx and its sibling.
func Parent(bufferIdx int) int {
	if bufferIdx&1 == 1 {
		return bufferIdx + 1
	}
	return bufferIdx + 2
}

// bufferQueries returns the TC-Query ids whose edges are covered by results
// in bufferIdx.
func bufferQueries(bufferIdx int) []int {
	if bufferIdx&1 == 1 {
		return []int{ToTCQueryID(bufferIdx)}
	}
	ids := make([]int, bufferIdx/2+1)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

func bufferEdges(queries []decompose.TCQuery, bufferIdx int) []pattern.Edge {
	var edges []pattern.Edge
	for _, id := range bufferQueries(bufferIdx) {
		edges = append(edges, queries[id].Edges...)
	}
	return edges
}

// TreeRelations returns, per buffer, the relations between edges covered by
// that buffer (result side) and edges covered by its sibling (entry side).
// The root has none.
func TreeRelations(g *decompose.Generator, queries []decompose.TCQuery) [][]decompose.Relation {
	k := len(queries)
	if k == 0 {
		panic("join: no TC-Queries")
	}
	rels := make([][]decompose.Relation, NumBuffers(k))
	for b := 0; b < RootIdx(k); b++ {
		rels[b] = g.Between(bufferEdges(queries, b), bufferEdges(queries, Sibling(b)))
	}
	return rels
}

// FlatRelations returns, per TC-Query id, the relations between its edges
// and the edges of every other TC-Query.
func FlatRelations(g *decompose.Generator, queries []decompose.TCQuery) [][]decompose.Relation {
	return g.Relations(queries)
}

func checkTCQueryID(tcqID, k int) {
	if tcqID < 0 || tcqID >= k {
		panic(fmt.Sprintf("join: TC-Query id %d out of range [0, %d)", tcqID, k))
	}
}
