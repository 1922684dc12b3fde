// Package match holds the data model shared by the matcher and the join:
// match edges, partial match results, full matches and the buffers partial
// results wait in.
//
// A MatchResult is immutable once published to a Buffer; extending or
// merging always produces a new result.
package match

import (
	"fmt"

	"github.com/littleponywork/IPMES/internal/input"
	"github.com/littleponywork/IPMES/internal/pattern"
)

// MatchEdge is an event edge bound to the pattern edge it matched.
type MatchEdge struct {
	Pattern pattern.Edge
	Event   input.EventEdge
}

// NewMatchEdge binds event to the pattern edge p.
func NewMatchEdge(p pattern.Edge, event input.EventEdge) MatchEdge {
	return MatchEdge{Pattern: p, Event: event}
}

// MatchID returns the id of the matched pattern edge.
func (m MatchEdge) MatchID() int { return m.Pattern.ID }

// DataID returns the id of the data edge.
func (m MatchEdge) DataID() int64 { return m.Event.ID }

// Timestamp returns the event time in milliseconds.
func (m MatchEdge) Timestamp() int64 { return m.Event.Timestamp }

// DataEndpoints returns the data node ids, start first.
func (m MatchEdge) DataEndpoints() [2]int64 {
	return [2]int64{m.Event.Start, m.Event.End}
}

func (m MatchEdge) String() string {
	return fmt.Sprintf("e%d=%d@%d", m.Pattern.ID, m.Event.ID, m.Event.Timestamp)
}

// conflicts reports whether m and other bind nodes inconsistently: a pattern
// node bound to two data nodes, or a data node bound to two pattern nodes.
func (m MatchEdge) conflicts(other MatchEdge) bool {
	pa, pb := m.Pattern.Endpoints(), other.Pattern.Endpoints()
	da, db := m.DataEndpoints(), other.DataEndpoints()
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if (pa[i] == pb[j]) != (da[i] == db[j]) {
				return true
			}
		}
	}
	return false
}

// consistent reports whether m binds its own endpoints consistently. A
// self-loop in one graph must be a self-loop in the other.
func (m MatchEdge) consistent() bool {
	return (m.Pattern.Start == m.Pattern.End) == (m.Event.Start == m.Event.End)
}
