package join

import (
	"container/heap"
	"log/slog"
	"math"

	"github.com/littleponywork/IPMES/internal/decompose"
	"github.com/littleponywork/IPMES/internal/match"
	"github.com/littleponywork/IPMES/internal/pattern"
)

// naiveEntry links results sharing an earliest time into one bucket.
type naiveEntry struct {
	result *match.MatchResult
	next   *naiveEntry
}

// NaiveJoin checks every new result against every buffered partial result.
// Buffered results live in one content-deduplicated table, indexed by
// earliest time so an expired timestamp drops its whole bucket at once.
type NaiveJoin struct {
	numEdges  int
	numTCQ    int
	window    int64
	checker   checker
	relations [][]decompose.Relation

	// table keeps insertion order; index maps content hash to table entries.
	table   []*match.MatchResult
	index   map[uint64][]*match.MatchResult
	buckets map[int64]*naiveEntry
	times   timeHeap

	answers *match.AnswerSet
	usage   []int
}

var _ Join = (*NaiveJoin)(nil)

// NewNaiveJoin creates a NaiveJoin for p decomposed into queries. window is
// in milliseconds.
func NewNaiveJoin(p *pattern.Pattern, queries []decompose.TCQuery, window int64) *NaiveJoin {
	return &NaiveJoin{
		numEdges:  p.NumEdges(),
		numTCQ:    len(queries),
		window:    window,
		checker:   checker{order: p.Order},
		relations: FlatRelations(decompose.New(p), queries),
		index:     make(map[uint64][]*match.MatchResult),
		buckets:   make(map[int64]*naiveEntry),
		answers:   match.NewAnswerSet(),
		usage:     make([]int, len(queries)),
	}
}

// AddMatchResult joins result with every compatible buffered entry and
// stores result and all merges.
func (j *NaiveJoin) AddMatchResult(result *match.MatchResult, tcqID int) {
	checkTCQueryID(tcqID, j.numTCQ)
	j.usage[tcqID]++

	if j.contains(result) {
		return
	}
	j.clean(result.LatestTime() - j.window)

	created := []*match.MatchResult{result}
	rels := j.relations[tcqID]
	for _, entry := range j.table {
		if m, ok := j.checker.merge(result, entry, rels); ok {
			created = append(created, m)
		}
	}

	for _, r := range created {
		if r.Size() == j.numEdges {
			j.answers.Add(r.ToFullMatch(j.numEdges))
			continue
		}
		j.insert(r)
	}
}

func (j *NaiveJoin) contains(r *match.MatchResult) bool {
	for _, other := range j.index[r.Hash()] {
		if other.Equal(r) {
			return true
		}
	}
	return false
}

func (j *NaiveJoin) insert(r *match.MatchResult) {
	if j.contains(r) {
		return
	}
	j.table = append(j.table, r)
	j.index[r.Hash()] = append(j.index[r.Hash()], r)

	t := r.EarliestTime()
	head, ok := j.buckets[t]
	if !ok {
		heap.Push(&j.times, t)
	}
	j.buckets[t] = &naiveEntry{result: r, next: head}
}

func (j *NaiveJoin) unindex(r *match.MatchResult) {
	bucket := j.index[r.Hash()]
	for i, other := range bucket {
		if other == r {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(j.index, r.Hash())
		return
	}
	j.index[r.Hash()] = bucket
}

// clean drops every bucket whose earliest time is before deadline.
func (j *NaiveJoin) clean(deadline int64) int {
	removed := make(map[*match.MatchResult]struct{})
	for len(j.times) > 0 && j.times[0] < deadline {
		t := heap.Pop(&j.times).(int64)
		for e := j.buckets[t]; e != nil; e = e.next {
			j.unindex(e.result)
			removed[e.result] = struct{}{}
		}
		delete(j.buckets, t)
	}
	if len(removed) == 0 {
		return 0
	}

	kept := j.table[:0]
	for _, r := range j.table {
		if _, ok := removed[r]; !ok {
			kept = append(kept, r)
		}
	}
	clear(j.table[len(kept):])
	j.table = kept
	return len(removed)
}

// ExtractAnswer drains the full matches found so far.
func (j *NaiveJoin) ExtractAnswer() []match.FullMatch {
	return j.answers.Extract()
}

// Flush drops every buffered partial result.
func (j *NaiveJoin) Flush() {
	dropped := j.clean(math.MaxInt64)
	slog.Debug("naive join flushed", "dropped", dropped)
}

// PoolSize returns the number of buffered partial results.
func (j *NaiveJoin) PoolSize() int { return len(j.table) }

// UsageCounts returns, per TC-Query, how many results were offered.
func (j *NaiveJoin) UsageCounts() []int {
	out := make([]int, len(j.usage))
	copy(out, j.usage)
	return out
}

type timeHeap []int64

func (h timeHeap) Len() int           { return len(h) }
func (h timeHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h timeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *timeHeap) Push(x any) { *h = append(*h, x.(int64)) }

func (h *timeHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}
