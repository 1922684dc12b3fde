package matcher

import (
	"testing"

	"github.com/littleponywork/IPMES/internal/decompose"
	"github.com/littleponywork/IPMES/internal/input"
	"github.com/littleponywork/IPMES/internal/match"
	"github.com/littleponywork/IPMES/internal/pattern"
	"github.com/littleponywork/IPMES/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	tcq    int
	result *match.MatchResult
}

type recordingSink struct {
	sent []sent
}

func (s *recordingSink) AddMatchResult(r *match.MatchResult, tcqID int) {
	s.sent = append(s.sent, sent{tcq: tcqID, result: r})
}

func newMatcher(t *testing.T, p *pattern.Pattern, window int64) (*CustomMatcher, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	m, err := NewCustomMatcher(p, decompose.New(p).Decompose(), window, sink)
	require.NoError(t, err)
	return m, sink
}

func feed(m TCMatcher, events ...input.EventEdge) {
	for _, b := range testutil.Batches(events...) {
		m.SendAll(b)
	}
}

func dataIDs(r *match.MatchResult) []int64 {
	var ids []int64
	for _, e := range r.Edges() {
		ids = append(ids, e.DataID())
	}
	return ids
}

func TestCustomMatcher_ForkExec(t *testing.T) {
	m, sink := newMatcher(t, testutil.ForkExec(t), 1000)

	feed(m,
		testutil.Event(0, "fork", 10, 1, 2),
		testutil.Event(100, "execve", 11, 2, 3),
	)

	require.Len(t, sink.sent, 1)
	assert.Equal(t, 0, sink.sent[0].tcq)
	assert.Equal(t, []int64{10, 11}, dataIDs(sink.sent[0].result))
	assert.Equal(t, int64(0), sink.sent[0].result.EarliestTime())
	assert.Equal(t, int64(100), sink.sent[0].result.LatestTime())
}

func TestCustomMatcher_ChildBeforeParent(t *testing.T) {
	m, sink := newMatcher(t, testutil.ForkExec(t), 1000)

	feed(m,
		testutil.Event(50, "execve", 11, 2, 3),
		testutil.Event(200, "fork", 10, 1, 2),
	)
	assert.Empty(t, sink.sent)
	assert.Equal(t, 1, m.PoolSize(), "the fork waits for an execve")
}

func TestCustomMatcher_SameBatch(t *testing.T) {
	m, sink := newMatcher(t, testutil.ForkExec(t), 1000)

	// Order inside a batch does not matter; positions are processed in order.
	m.SendAll([]input.EventEdge{
		testutil.Event(7, "execve", 11, 2, 3),
		testutil.Event(7, "fork", 10, 1, 2),
	})
	require.Len(t, sink.sent, 1)
	assert.Equal(t, []int64{10, 11}, dataIDs(sink.sent[0].result))
}

func TestCustomMatcher_NodeConflict(t *testing.T) {
	m, sink := newMatcher(t, testutil.ForkExec(t), 1000)

	feed(m,
		testutil.Event(0, "fork", 10, 1, 2),
		testutil.Event(10, "execve", 11, 5, 3),
		testutil.Event(20, "execve", 12, 2, 1),
	)
	assert.Empty(t, sink.sent)
}

func TestCustomMatcher_Window(t *testing.T) {
	m, sink := newMatcher(t, testutil.ForkExec(t), 100)

	feed(m,
		testutil.Event(0, "fork", 10, 1, 2),
		testutil.Event(101, "execve", 11, 2, 3),
	)
	assert.Empty(t, sink.sent, "fork expired")
	assert.Zero(t, m.PoolSize())

	feed(m,
		testutil.Event(200, "fork", 12, 1, 2),
		testutil.Event(300, "execve", 13, 2, 3),
	)
	require.Len(t, sink.sent, 1)
	assert.Equal(t, []int64{12, 13}, dataIDs(sink.sent[0].result))
}

func TestCustomMatcher_EntriesAreReused(t *testing.T) {
	m, sink := newMatcher(t, testutil.ForkExec(t), 1000)

	feed(m,
		testutil.Event(0, "fork", 10, 1, 2),
		testutil.Event(10, "execve", 11, 2, 3),
		testutil.Event(20, "execve", 12, 2, 4),
	)
	require.Len(t, sink.sent, 2)
	assert.Equal(t, []int64{10, 11}, dataIDs(sink.sent[0].result))
	assert.Equal(t, []int64{10, 12}, dataIDs(sink.sent[1].result))
	assert.Equal(t, [][]int{{1, 2}}, m.TriggerCounts())
}

func TestCustomMatcher_RegexSignatures(t *testing.T) {
	p := testutil.NewPattern().
		Edge("proc::fork", 0, 1).
		Edge("proc::exec.*", 1, 2, 0).
		Regex().
		Build(t)
	m, sink := newMatcher(t, p, 1000)

	feed(m,
		testutil.Event(0, "proc::fork", 10, 1, 2),
		testutil.Event(5, "proc::execve", 11, 2, 3),
		testutil.Event(6, "xproc::execve", 12, 2, 4),
	)
	require.Len(t, sink.sent, 1, "regex must match the whole signature")
	assert.Equal(t, []int64{10, 11}, dataIDs(sink.sent[0].result))
}

func TestCustomMatcher_MultipleQueries(t *testing.T) {
	p := testutil.NewPattern().
		Edge("a", 0, 1).
		Edge("b", 2, 3, 0).
		Build(t)
	m, sink := newMatcher(t, p, 1000)

	feed(m,
		testutil.Event(0, "a", 10, 1, 2),
		testutil.Event(5, "b", 11, 3, 4),
	)
	require.Len(t, sink.sent, 2)
	assert.Equal(t, 0, sink.sent[0].tcq)
	assert.Equal(t, 1, sink.sent[1].tcq)
	assert.Equal(t, [][]int{{1}, {1}}, m.TriggerCounts())
}

func TestCustomMatcher_Flush(t *testing.T) {
	m, sink := newMatcher(t, testutil.ForkExec(t), 1000)

	feed(m, testutil.Event(0, "fork", 10, 1, 2))
	assert.Equal(t, 1, m.PoolSize())

	m.Flush()
	assert.Zero(t, m.PoolSize())

	// Seeds survive a flush.
	feed(m,
		testutil.Event(10, "fork", 12, 1, 2),
		testutil.Event(20, "execve", 13, 2, 3),
	)
	assert.Len(t, sink.sent, 1)
}

func TestNewCustomMatcher_BadRegex(t *testing.T) {
	p := testutil.ForkExec(t)
	p.UseRegex = true
	p.Graph = pattern.NewGraph(p.Graph.Nodes(), []pattern.Edge{
		{ID: 0, Signature: "fork(", Start: 0, End: 1},
		{ID: 1, Signature: "execve", Start: 1, End: 2},
	})

	_, err := NewCustomMatcher(p, decompose.New(p).Decompose(), 10, &recordingSink{})
	assert.Error(t, err)
}

func TestSorter(t *testing.T) {
	p := testutil.NewPattern().
		Edge("a", 0, 1).
		Edge("b", 1, 2, 0).
		Edge("c", 5, 6).
		Build(t)
	queries := decompose.New(p).Decompose()
	require.Len(t, queries, 2)

	s, err := NewSorter(p, queries)
	require.NoError(t, err)

	got := s.Sort([]input.EventEdge{
		testutil.Event(1, "c", 1, 0, 0),
		testutil.Event(1, "zzz", 2, 0, 0),
		testutil.Event(1, "b", 3, 0, 0),
		testutil.Event(1, "a", 4, 0, 0),
		testutil.Event(1, "b", 5, 0, 0),
	})

	var ids []int64
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{4, 3, 5, 1}, ids)
}
