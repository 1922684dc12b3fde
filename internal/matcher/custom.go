// Package matcher matches incoming event batches against the fixed edge
// order of each TC-Query and hands complete TC-Query results to a join.
package matcher

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/littleponywork/IPMES/internal/decompose"
	"github.com/littleponywork/IPMES/internal/input"
	"github.com/littleponywork/IPMES/internal/match"
	"github.com/littleponywork/IPMES/internal/pattern"
)

// Sink receives results covering a whole TC-Query.
type Sink interface {
	AddMatchResult(result *match.MatchResult, tcqID int)
}

// TCMatcher turns event batches into TC-Query results.
type TCMatcher interface {
	// SendAll processes one batch of events sharing a timestamp.
	SendAll(batch []input.EventEdge)
	// Flush drops every buffered partial result.
	Flush()
	// PoolSize returns the number of buffered partial results.
	PoolSize() int
	// TriggerCounts returns, per TC-Query and position, how many events
	// matched that position's signature.
	TriggerCounts() [][]int
}

// position is one pattern edge in the concatenation of all TC-Query edge
// lists. buffer holds results covering the edges before it in its query.
type position struct {
	edge   pattern.Edge
	tcq    int
	index  int
	last   bool
	buffer *match.Buffer
}

// CustomMatcher keeps one buffer per position. A query's first position is
// seeded with an empty result, which never expires.
type CustomMatcher struct {
	positions []position
	numTCQ    int
	sig       *SignatureMatcher
	window    int64
	sink      Sink
	triggers  [][]int
}

var _ TCMatcher = (*CustomMatcher)(nil)

// NewCustomMatcher creates a matcher for queries of p sending complete
// results to sink. window is in milliseconds.
func NewCustomMatcher(p *pattern.Pattern, queries []decompose.TCQuery, window int64, sink Sink) (*CustomMatcher, error) {
	sig, err := NewSignatureMatcher(p)
	if err != nil {
		return nil, err
	}

	m := &CustomMatcher{
		numTCQ:   len(queries),
		sig:      sig,
		window:   window,
		sink:     sink,
		triggers: make([][]int, len(queries)),
	}
	for _, q := range queries {
		if q.NumEdges() == 0 {
			return nil, fmt.Errorf("TC-Query %d has no edges", q.ID)
		}
		m.triggers[q.ID] = make([]int, q.NumEdges())
		for i, e := range q.Edges {
			pos := position{
				edge:   e,
				tcq:    q.ID,
				index:  i,
				last:   i == q.NumEdges()-1,
				buffer: match.NewBuffer(),
			}
			if i == 0 {
				pos.buffer.Push(match.NewResult())
			}
			m.positions = append(m.positions, pos)
		}
	}
	return m, nil
}

// SendAll processes positions left to right. At each position, expired
// entries are evicted, then every buffered entry is extended by every
// matching event. Extensions move to the next position, or to the sink at a
// query's last position. Entries stay buffered so later events can extend
// them too.
func (m *CustomMatcher) SendAll(batch []input.EventEdge) {
	if len(batch) == 0 {
		return
	}
	now := batch[0].Timestamp
	deadline := now - m.window

	for i := range m.positions {
		pos := &m.positions[i]
		pos.buffer.EvictBefore(deadline)

		var extended []*match.MatchResult
		for _, ev := range batch {
			if !m.sig.Match(pos.edge.ID, ev.Signature) {
				continue
			}
			m.triggers[pos.tcq][pos.index]++
			me := match.NewMatchEdge(pos.edge, ev)
			pos.buffer.Each(func(entry *match.MatchResult) {
				if entry.CanAdd(me) {
					extended = append(extended, entry.Add(me))
				}
			})
		}
		if len(extended) == 0 {
			continue
		}

		if pos.last {
			for _, r := range extended {
				m.sink.AddMatchResult(r, pos.tcq)
			}
			continue
		}
		next := m.positions[i+1].buffer
		for _, r := range extended {
			next.Push(r)
		}
	}
}

// Flush drops every buffered partial result, keeping the empty seeds.
func (m *CustomMatcher) Flush() {
	dropped := 0
	for i := range m.positions {
		dropped += m.positions[i].buffer.EvictBefore(math.MaxInt64)
	}
	slog.Debug("matcher flushed", "dropped", dropped)
}

// PoolSize returns the number of buffered partial results, not counting
// the empty seeds.
func (m *CustomMatcher) PoolSize() int {
	n := 0
	for i := range m.positions {
		n += m.positions[i].buffer.Len()
	}
	return n - m.numTCQ
}

// TriggerCounts returns, per TC-Query and position, how many events matched
// that position's signature.
func (m *CustomMatcher) TriggerCounts() [][]int {
	out := make([][]int, len(m.triggers))
	for i, counts := range m.triggers {
		out[i] = make([]int, len(counts))
		copy(out[i], counts)
	}
	return out
}
