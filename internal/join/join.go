// Package join merges partial results of different TC-Queries into full
// pattern matches.
//
// PriorityJoin is the production strategy: a left-deep binary merge tree of
// buffers encoded in an array. NaiveJoin keeps every partial result in one
// flat table and exists to cross-check PriorityJoin.
//
// Both strategies enforce the same constraints when merging a result with a
// buffered entry:
//   - the two cover disjoint pattern edges and bind no common data edge;
//   - every precomputed relation between their edges holds spatially (the
//     data edges share endpoints exactly as the pattern edges do) and
//     temporally (a child edge is not matched before its parent; equal
//     timestamps are accepted);
//   - the merged result binds every node consistently.
package join

import (
	"github.com/littleponywork/IPMES/internal/decompose"
	"github.com/littleponywork/IPMES/internal/match"
	"github.com/littleponywork/IPMES/internal/pattern"
)

// Join consumes complete TC-Query results and produces full matches.
type Join interface {
	// AddMatchResult offers a result covering every edge of TC-Query tcqID.
	AddMatchResult(result *match.MatchResult, tcqID int)
	// ExtractAnswer drains the full matches found so far.
	ExtractAnswer() []match.FullMatch
	// Flush drops every buffered partial result.
	Flush()
	// PoolSize returns the number of buffered partial results.
	PoolSize() int
	// UsageCounts returns, per TC-Query, how many results were offered.
	UsageCounts() []int
}

// checker evaluates relation constraints between two partial results.
type checker struct {
	order *pattern.OrderRelation
}

// satisfies reports whether result and entry can be merged under rels.
// A relation whose edge is not bound on either side is skipped.
func (c checker) satisfies(result, entry *match.MatchResult, rels []decompose.Relation) bool {
	for _, rel := range rels {
		r, ok := result.Get(rel.ResultEdge)
		if !ok {
			continue
		}
		e, ok := entry.Get(rel.EntryEdge)
		if !ok {
			continue
		}
		if !spatialOK(r, e) || !c.temporalOK(r, e) {
			return false
		}
	}
	return true
}

// merge joins result and entry when they are disjoint in both pattern and
// data edges, satisfy rels and bind nodes consistently.
func (c checker) merge(result, entry *match.MatchResult, rels []decompose.Relation) (*match.MatchResult, bool) {
	if result.Overlaps(entry) || result.SharesData(entry) || !c.satisfies(result, entry, rels) {
		return nil, false
	}
	merged := match.Merge(entry, result)
	if !merged.NodesConsistent() {
		return nil, false
	}
	return merged, true
}

// temporalOK checks the timestamps of two match edges against the order
// relation of their pattern edges. Comparisons are inclusive.
func (c checker) temporalOK(a, b match.MatchEdge) bool {
	switch {
	case c.order.IsParent(b.MatchID(), a.MatchID()):
		return a.Timestamp() >= b.Timestamp()
	case c.order.IsParent(a.MatchID(), b.MatchID()):
		return a.Timestamp() <= b.Timestamp()
	default:
		return true
	}
}

// spatialOK reports whether the data edges of a and b share endpoints in
// exactly the same positions as their pattern edges.
func spatialOK(a, b match.MatchEdge) bool {
	return spatialCode(a.Pattern.Endpoints(), b.Pattern.Endpoints()) ==
		spatialCode(a.DataEndpoints(), b.DataEndpoints())
}

// spatialCode packs the four endpoint equalities (start-start, start-end,
// end-start, end-end) into the low bits of a byte.
func spatialCode[T comparable](a, b [2]T) uint8 {
	var code uint8
	for _, x := range a {
		for _, y := range b {
			code <<= 1
			if x == y {
				code |= 1
			}
		}
	}
	return code
}
