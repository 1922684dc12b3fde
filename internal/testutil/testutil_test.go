package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatternBuilder(t *testing.T) {
	p := NewPattern().
		Edge("a", 0, 1).
		Edge("b", 1, 2, 0).
		Edge("c.*", 2, 3, 0, 1).
		Regex().
		Build(t)

	assert.True(t, p.UseRegex)
	assert.Equal(t, 3, p.NumEdges())
	assert.Equal(t, []int{0, 1}, p.Order.Parents(2))
	assert.Equal(t, []int{1, 2}, p.Order.Children(0))
}

func TestBatches(t *testing.T) {
	batches := Batches(
		Event(0, "a", 1, 0, 1),
		Event(0, "b", 2, 1, 2),
		Event(5, "c", 3, 2, 3),
	)
	assert.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Equal(t, int64(3), batches[1][0].ID)
}
