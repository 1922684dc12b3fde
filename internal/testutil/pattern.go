package testutil

import (
	"testing"

	"github.com/littleponywork/IPMES/internal/input"
	"github.com/littleponywork/IPMES/internal/pattern"
	"github.com/stretchr/testify/require"
)

// PatternBuilder assembles a pattern edge by edge. Edge ids are assigned in
// call order starting at 0; node ids are whatever the caller passes.
//
// Example:
//
//	p := testutil.NewPattern().
//		Edge("fork", 0, 1).
//		Edge("execve", 1, 2, 0).
//		Build(t)
type PatternBuilder struct {
	spec pattern.Spec
}

// NewPattern starts an empty literal-signature pattern.
func NewPattern() *PatternBuilder {
	return &PatternBuilder{}
}

// Edge appends an edge from subject to object that depends on parents.
func (b *PatternBuilder) Edge(sig string, subject, object int, parents ...int) *PatternBuilder {
	if parents == nil {
		parents = []int{}
	}
	b.spec.Events = append(b.spec.Events, pattern.EventSpec{
		ID:        len(b.spec.Events),
		Signature: sig,
		SubjectID: subject,
		ObjectID:  object,
		Parents:   parents,
	})
	return b
}

// Regex switches the pattern to regular-expression signatures.
func (b *PatternBuilder) Regex() *PatternBuilder {
	b.spec.UseRegex = true
	return b
}

// Build validates and returns the pattern, failing the test on error.
func (b *PatternBuilder) Build(t testing.TB) *pattern.Pattern {
	t.Helper()
	p, err := b.spec.Build()
	require.NoError(t, err)
	return p
}

// ForkExec is the two-edge pattern fork(n0->n1) then execve(n1->n2).
func ForkExec(t testing.TB) *pattern.Pattern {
	t.Helper()
	return NewPattern().
		Edge("fork", 0, 1).
		Edge("execve", 1, 2, 0).
		Build(t)
}

// Event builds an event edge.
func Event(ts int64, sig string, id, start, end int64) input.EventEdge {
	return input.EventEdge{Timestamp: ts, Signature: sig, ID: id, Start: start, End: end}
}

// Batches groups events into equal-timestamp batches, keeping their order.
// Events must already be sorted by timestamp.
func Batches(events ...input.EventEdge) [][]input.EventEdge {
	var out [][]input.EventEdge
	for _, e := range events {
		if n := len(out); n > 0 && out[n-1][0].Timestamp == e.Timestamp {
			out[n-1] = append(out[n-1], e)
			continue
		}
		out = append(out, []input.EventEdge{e})
	}
	return out
}
