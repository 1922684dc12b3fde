package join

import (
	"log/slog"
	"math"

	"github.com/littleponywork/IPMES/internal/decompose"
	"github.com/littleponywork/IPMES/internal/match"
	"github.com/littleponywork/IPMES/internal/pattern"
)

// PriorityJoin joins TC-Query results bottom-up through the merge tree.
type PriorityJoin struct {
	numEdges  int
	numTCQ    int
	window    int64
	checker   checker
	relations [][]decompose.Relation
	buffers   []*match.Buffer
	answers   *match.AnswerSet
	usage     []int
	poolSize  int
}

var _ Join = (*PriorityJoin)(nil)

// NewPriorityJoin creates a PriorityJoin for p decomposed into queries.
// window is in milliseconds.
func NewPriorityJoin(p *pattern.Pattern, queries []decompose.TCQuery, window int64) *PriorityJoin {
	k := len(queries)
	j := &PriorityJoin{
		numEdges:  p.NumEdges(),
		numTCQ:    k,
		window:    window,
		checker:   checker{order: p.Order},
		relations: TreeRelations(decompose.New(p), queries),
		buffers:   make([]*match.Buffer, NumBuffers(k)),
		answers:   match.NewAnswerSet(),
		usage:     make([]int, k),
	}
	for i := range j.buffers {
		j.buffers[i] = match.NewBuffer()
	}
	return j
}

// AddMatchResult pushes result up the tree from the leaf of tcqID. At each
// level the sibling is first cleared of entries outside the window of
// result, then every frontier entry is merged with every compatible sibling
// entry; the frontier is stored for later siblings and the merged set moves
// up. Whatever reaches the root is a full match.
func (j *PriorityJoin) AddMatchResult(result *match.MatchResult, tcqID int) {
	checkTCQueryID(tcqID, j.numTCQ)
	j.usage[tcqID]++

	leaf := ToBufferIdx(tcqID)
	root := RootIdx(j.numTCQ)
	if leaf != root && j.buffers[leaf].Has(result) {
		return
	}

	deadline := result.LatestTime() - j.window
	frontier := []*match.MatchResult{result}

	for b := leaf; len(frontier) > 0; b = Parent(b) {
		if b == root {
			for _, r := range frontier {
				j.answers.Add(r.ToFullMatch(j.numEdges))
			}
			return
		}

		sibling := j.buffers[Sibling(b)]
		j.poolSize -= sibling.EvictBefore(deadline)

		var merged []*match.MatchResult
		for _, r := range frontier {
			sibling.Each(func(entry *match.MatchResult) {
				if m, ok := j.checker.merge(r, entry, j.relations[b]); ok {
					merged = append(merged, m)
				}
			})
		}

		for _, r := range frontier {
			if j.buffers[b].Push(r) {
				j.poolSize++
			}
		}
		frontier = merged
	}
}

// ExtractAnswer drains the full matches found so far.
func (j *PriorityJoin) ExtractAnswer() []match.FullMatch {
	return j.answers.Extract()
}

// Flush drops every buffered partial result.
func (j *PriorityJoin) Flush() {
	dropped := 0
	for _, buf := range j.buffers {
		dropped += buf.EvictBefore(math.MaxInt64)
	}
	j.poolSize -= dropped
	slog.Debug("priority join flushed", "dropped", dropped)
}

// PoolSize returns the number of buffered partial results.
func (j *PriorityJoin) PoolSize() int { return j.poolSize }

// UsageCounts returns, per TC-Query, how many results were offered.
func (j *PriorityJoin) UsageCounts() []int {
	out := make([]int, len(j.usage))
	copy(out, j.usage)
	return out
}
