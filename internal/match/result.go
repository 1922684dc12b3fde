package match

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// hashModulus is the Mersenne prime 2^31-1.
const hashModulus = 1<<31 - 1

// MatchResult is a partial match: a binding of data edges to a subset of
// pattern edges.
type MatchResult struct {
	edges    map[int]MatchEdge
	covered  *roaring.Bitmap
	earliest int64
	latest   int64
	hash     uint64
}

// NewResult returns an empty result. An empty result has no timestamps, so
// EarliestTime is math.MaxInt64 and it is never evicted by a window.
func NewResult() *MatchResult {
	return &MatchResult{
		edges:    make(map[int]MatchEdge),
		covered:  roaring.New(),
		earliest: math.MaxInt64,
		latest:   math.MinInt64,
	}
}

// Size returns the number of bound pattern edges.
func (r *MatchResult) Size() int { return len(r.edges) }

// Hash returns the additive content hash: the sum of dataID * 7^patternID
// over bound edges, modulo 2^31-1. Equal results have equal hashes.
func (r *MatchResult) Hash() uint64 { return r.hash }

// EarliestTime returns the smallest bound timestamp.
func (r *MatchResult) EarliestTime() int64 { return r.earliest }

// LatestTime returns the largest bound timestamp.
func (r *MatchResult) LatestTime() int64 { return r.latest }

// Covered returns the set of bound pattern edge ids. Callers must not
// modify it.
func (r *MatchResult) Covered() *roaring.Bitmap { return r.covered }

// Get returns the match edge bound to pattern edge id.
func (r *MatchResult) Get(patternID int) (MatchEdge, bool) {
	m, ok := r.edges[patternID]
	return m, ok
}

// Contains reports whether pattern edge id is bound.
func (r *MatchResult) Contains(patternID int) bool {
	return r.covered.Contains(uint32(patternID))
}

// Overlaps reports whether r and other bind a common pattern edge.
func (r *MatchResult) Overlaps(other *MatchResult) bool {
	return r.covered.Intersects(other.covered)
}

// SharesData reports whether r and other bind a common data edge. Callers
// merging results over disjoint pattern edges use it to keep one data edge
// from filling two pattern edges.
func (r *MatchResult) SharesData(other *MatchResult) bool {
	small, large := r, other
	if len(small.edges) > len(large.edges) {
		small, large = large, small
	}
	ids := make(map[int64]struct{}, len(small.edges))
	for _, m := range small.edges {
		ids[m.DataID()] = struct{}{}
	}
	for _, m := range large.edges {
		if _, ok := ids[m.DataID()]; ok {
			return true
		}
	}
	return false
}

// Edges returns the bound match edges ordered by pattern edge id.
func (r *MatchResult) Edges() []MatchEdge {
	out := make([]MatchEdge, 0, len(r.edges))
	for _, m := range r.edges {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID() < out[j].MatchID() })
	return out
}

// CanAdd reports whether m can extend r: its pattern edge and data edge must
// both be unbound, and its nodes must not conflict with existing bindings.
func (r *MatchResult) CanAdd(m MatchEdge) bool {
	if r.Contains(m.MatchID()) || !m.consistent() {
		return false
	}
	for _, bound := range r.edges {
		if bound.DataID() == m.DataID() || bound.conflicts(m) {
			return false
		}
	}
	return true
}

// Add returns a copy of r extended with m. It panics if m's pattern edge is
// already bound; call CanAdd first.
func (r *MatchResult) Add(m MatchEdge) *MatchResult {
	if r.Contains(m.MatchID()) {
		panic(fmt.Sprintf("match: pattern edge %d already bound in %s", m.MatchID(), r))
	}
	res := &MatchResult{
		edges:    make(map[int]MatchEdge, len(r.edges)+1),
		covered:  r.covered.Clone(),
		earliest: min(r.earliest, m.Timestamp()),
		latest:   max(r.latest, m.Timestamp()),
		hash:     (r.hash + edgeHash(m)) % hashModulus,
	}
	for id, e := range r.edges {
		res.edges[id] = e
	}
	res.edges[m.MatchID()] = m
	res.covered.Add(uint32(m.MatchID()))
	return res
}

// Merge returns the union of two results binding disjoint pattern edges. It
// panics if they overlap; call Overlaps first.
func Merge(a, b *MatchResult) *MatchResult {
	if a.Overlaps(b) {
		panic(fmt.Sprintf("match: merging overlapping results %s and %s", a, b))
	}
	res := &MatchResult{
		edges:    make(map[int]MatchEdge, len(a.edges)+len(b.edges)),
		covered:  roaring.Or(a.covered, b.covered),
		earliest: min(a.earliest, b.earliest),
		latest:   max(a.latest, b.latest),
		hash:     (a.hash + b.hash) % hashModulus,
	}
	for id, e := range a.edges {
		res.edges[id] = e
	}
	for id, e := range b.edges {
		res.edges[id] = e
	}
	return res
}

// Merge is shorthand for Merge(r, other).
func (r *MatchResult) Merge(other *MatchResult) *MatchResult {
	return Merge(r, other)
}

// NodesConsistent reports whether every pair of bound edges agrees on node
// bindings in both directions.
func (r *MatchResult) NodesConsistent() bool {
	edges := r.Edges()
	for i := range edges {
		for j := i + 1; j < len(edges); j++ {
			if edges[i].conflicts(edges[j]) {
				return false
			}
		}
	}
	return true
}

// Equal reports whether r and other bind the same data edge, at the same
// time, to every pattern edge.
func (r *MatchResult) Equal(other *MatchResult) bool {
	if r == other {
		return true
	}
	if len(r.edges) != len(other.edges) || r.hash != other.hash {
		return false
	}
	for id, e1 := range r.edges {
		e2, ok := other.edges[id]
		if !ok || e1.DataID() != e2.DataID() || e1.Timestamp() != e2.Timestamp() {
			return false
		}
	}
	return true
}

// ToFullMatch flattens a result covering all numEdges pattern edges. It
// panics on a result of any other size.
func (r *MatchResult) ToFullMatch(numEdges int) FullMatch {
	if len(r.edges) != numEdges {
		panic(fmt.Sprintf("match: result of size %d is not a full match of %d edges", len(r.edges), numEdges))
	}
	fm := FullMatch{
		DataIDs:   make([]int64, numEdges),
		StartTime: r.earliest,
		EndTime:   r.latest,
	}
	for id, e := range r.edges {
		fm.DataIDs[id] = e.DataID()
	}
	return fm
}

func (r *MatchResult) String() string {
	edges := r.Edges()
	parts := make([]string, len(edges))
	for i, e := range edges {
		parts[i] = e.String()
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func edgeHash(m MatchEdge) uint64 {
	d := uint64(m.DataID() % hashModulus)
	if m.DataID() < 0 {
		d = uint64(m.DataID()%hashModulus + hashModulus)
	}
	return d * powMod(7, uint64(m.MatchID()), hashModulus) % hashModulus
}

// powMod computes base^exp mod m for m < 2^32.
func powMod(base, exp, m uint64) uint64 {
	res := uint64(1)
	base %= m
	for exp > 0 {
		if exp&1 == 1 {
			res = res * base % m
		}
		base = base * base % m
		exp >>= 1
	}
	return res
}
