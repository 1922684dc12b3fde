package input

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_SplitsRowsIntoTwoEvents(t *testing.T) {
	data := "0.1,0.25,fork,10,1,2\n"

	batches, err := ReadAll(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, batches, 2)

	assert.Equal(t, []EventEdge{{Timestamp: 100, Signature: "fork", ID: 10, Start: 1, End: 2}}, batches[0])
	assert.Equal(t, []EventEdge{{Timestamp: 250, Signature: "fork", ID: 10, Start: 1, End: 2}}, batches[1])
}

func TestReader_SingleEventWhenTimestampsEqual(t *testing.T) {
	batches, err := ReadAll(strings.NewReader("1,1,open,3,4,5\n"))
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 1)
	assert.Equal(t, int64(1000), batches[0][0].Timestamp)
}

func TestReader_RoundsToMilliseconds(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1.0004", 1000},
		{"1.0006", 1001},
		{"1700000000.123", 1700000000123},
		{" 2.5 ", 2500},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSeconds(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReader_OrdersLateEndTimes(t *testing.T) {
	// The first row ends after the second and third rows start.
	data := strings.Join([]string{
		"0,5,a,1,0,1",
		"1,1,b,2,1,2",
		"1,3,c,3,2,3",
		"4,4,d,4,3,4",
	}, "\n")

	batches, err := ReadAll(strings.NewReader(data))
	require.NoError(t, err)

	var stamps []int64
	var ids [][]int64
	for _, b := range batches {
		stamps = append(stamps, b[0].Timestamp)
		var bid []int64
		for _, e := range b {
			assert.Equal(t, b[0].Timestamp, e.Timestamp)
			bid = append(bid, e.ID)
		}
		ids = append(ids, bid)
	}
	assert.Equal(t, []int64{0, 1000, 3000, 4000, 5000}, stamps)
	assert.Equal(t, [][]int64{{1}, {2, 3}, {3}, {4}, {1}}, ids)
}

func TestReader_GroupsEqualTimestampsAcrossRows(t *testing.T) {
	data := "0,2,a,1,0,1\n1,2,b,2,1,2\n2,2,c,3,2,3\n"

	batches, err := ReadAll(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, batches, 3)

	last := batches[2]
	require.Len(t, last, 3)
	for _, e := range last {
		assert.Equal(t, int64(2000), e.Timestamp)
	}
	assert.Equal(t, []int64{1, 2, 3}, []int64{last[0].ID, last[1].ID, last[2].ID}, "equal timestamps keep read order")
}

func TestReader_NextAfterEOF(t *testing.T) {
	r := NewReader(strings.NewReader("0,0,a,1,0,1\n"))

	_, err := r.Next()
	require.NoError(t, err)

	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))
	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))
	assert.Equal(t, 1, r.Rows())
}

func TestReader_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		line    int
		message string
	}{
		{
			name:    "bad start time",
			data:    "x,1,a,1,0,1\n",
			line:    1,
			message: "start time",
		},
		{
			name:    "end before start",
			data:    "0,0,a,1,0,1\n2,1,b,2,1,2\n",
			line:    2,
			message: "before start time",
		},
		{
			name:    "bad node id",
			data:    "0,1,a,1,zero,1\n",
			line:    1,
			message: "start node",
		},
		{
			name:    "unsorted rows",
			data:    "5,5,a,1,0,1\n4,4,b,2,1,2\n",
			line:    2,
			message: "not sorted",
		},
		{
			name:    "wrong field count",
			data:    "0,1,a,1,0\n",
			line:    1,
			message: "malformed row",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadAll(strings.NewReader(tt.data))
			require.Error(t, err)

			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.line, fe.Line)
			assert.Contains(t, fe.Error(), tt.message)
		})
	}
}

func TestSorter_PopUntil(t *testing.T) {
	s := NewSorter()
	for _, ts := range []int64{5, 1, 3, 3, 9} {
		s.Push(EventEdge{Timestamp: ts, ID: ts})
	}

	got := s.PopUntil(3)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].Timestamp)
	assert.Equal(t, int64(3), got[1].Timestamp)
	assert.Equal(t, int64(3), got[2].Timestamp)
	assert.Equal(t, 2, s.Len())

	rest := s.Drain()
	assert.Equal(t, int64(5), rest[0].Timestamp)
	assert.Equal(t, int64(9), rest[1].Timestamp)
	assert.Zero(t, s.Len())
}
