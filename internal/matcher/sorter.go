package matcher

import (
	"sort"

	"github.com/littleponywork/IPMES/internal/decompose"
	"github.com/littleponywork/IPMES/internal/input"
	"github.com/littleponywork/IPMES/internal/pattern"
)

// Sorter orders a batch of equal-timestamp events by the global position
// order (TC-Query edges concatenated in id order) and drops events that
// match no pattern edge.
type Sorter struct {
	order []int
	sig   *SignatureMatcher
}

// NewSorter creates a Sorter for queries of p.
func NewSorter(p *pattern.Pattern, queries []decompose.TCQuery) (*Sorter, error) {
	sig, err := NewSignatureMatcher(p)
	if err != nil {
		return nil, err
	}
	s := &Sorter{sig: sig}
	for _, q := range queries {
		s.order = append(s.order, q.EdgeIDs()...)
	}
	return s, nil
}

// Sort returns the events of batch that match some pattern edge, ordered by
// the first position each matches. Ties keep batch order.
func (s *Sorter) Sort(batch []input.EventEdge) []input.EventEdge {
	type ranked struct {
		event input.EventEdge
		rank  int
	}
	kept := make([]ranked, 0, len(batch))
	for _, ev := range batch {
		if rank, ok := s.rank(ev.Signature); ok {
			kept = append(kept, ranked{event: ev, rank: rank})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].rank < kept[j].rank })

	out := make([]input.EventEdge, len(kept))
	for i, k := range kept {
		out[i] = k.event
	}
	return out
}

func (s *Sorter) rank(sig string) (int, bool) {
	for i, edgeID := range s.order {
		if s.sig.Match(edgeID, sig) {
			return i, true
		}
	}
	return 0, false
}
