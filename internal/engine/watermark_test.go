package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWatermark_AcceptsNonDecreasing(t *testing.T) {
	w := NewWatermark()
	assert.Equal(t, int64(math.MinInt64), w.Current())

	assert.True(t, w.Advance(-5), "negative first timestamp is fine")
	assert.True(t, w.Advance(10))
	assert.True(t, w.Advance(10), "equal timestamps are accepted")
	assert.Equal(t, int64(10), w.Current())
}

func TestWatermark_RejectsOlder(t *testing.T) {
	w := NewWatermark()
	w.Advance(100)

	assert.False(t, w.Advance(99))
	assert.Equal(t, int64(100), w.Current(), "rejected timestamp leaves the watermark alone")
}
