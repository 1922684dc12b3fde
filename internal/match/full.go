package match

import (
	"slices"
	"sort"
	"strconv"
	"strings"
)

// FullMatch is a result covering every pattern edge, flattened to the data
// edge ids indexed by pattern edge id.
type FullMatch struct {
	DataIDs   []int64 `json:"MatchIDs"`
	StartTime int64   `json:"StartTime"`
	EndTime   int64   `json:"EndTime"`
}

// Key identifies the match by its data edge ids. Two full matches with the
// same key are the same answer.
func (f FullMatch) Key() string {
	var b strings.Builder
	for i, id := range f.DataIDs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}

func (f FullMatch) String() string {
	return "[" + f.Key() + "]"
}

// AnswerSet collects full matches, keeping the first of each key.
type AnswerSet struct {
	seen    map[string]struct{}
	answers []FullMatch
}

// NewAnswerSet creates an empty AnswerSet.
func NewAnswerSet() *AnswerSet {
	return &AnswerSet{seen: make(map[string]struct{})}
}

// Add inserts f and reports whether it was new.
func (s *AnswerSet) Add(f FullMatch) bool {
	key := f.Key()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.answers = append(s.answers, f)
	return true
}

// Len returns the number of distinct answers held.
func (s *AnswerSet) Len() int { return len(s.answers) }

// Extract drains the set, returning its answers sorted by start time, end
// time, then data ids.
func (s *AnswerSet) Extract() []FullMatch {
	out := s.answers
	s.answers = nil
	s.seen = make(map[string]struct{})
	SortFullMatches(out)
	return out
}

// SortFullMatches orders matches by start time, end time, then data ids.
func SortFullMatches(ms []FullMatch) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		if a.EndTime != b.EndTime {
			return a.EndTime < b.EndTime
		}
		return slices.Compare(a.DataIDs, b.DataIDs) < 0
	})
}
