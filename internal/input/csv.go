package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const numFields = 6

// Reader reads a data graph CSV and yields batches of equal-timestamp events
// in timestamp order.
//
// Rows must be sorted by their first timestamp. The second timestamp of a row
// may be arbitrarily later, so events are held in a Sorter until no later row
// can produce an earlier event.
type Reader struct {
	csv    *csv.Reader
	sorter *Sorter

	pending  []EventEdge
	lastTS1  int64
	line     int
	numRows  int
	finished bool
}

// NewReader creates a Reader over r. The input has no header row.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields
	cr.ReuseRecord = true
	return &Reader{
		csv:     cr,
		sorter:  NewSorter(),
		lastTS1: math.MinInt64,
	}
}

// Rows returns the number of rows read so far.
func (r *Reader) Rows() int {
	return r.numRows
}

// Next returns the next batch. All events in a batch share a timestamp, and
// batches are returned in increasing timestamp order. Next returns io.EOF
// once the input is exhausted and every event has been returned.
func (r *Reader) Next() ([]EventEdge, error) {
	for {
		if batch := r.takeBatch(); batch != nil {
			return batch, nil
		}
		if r.finished {
			return nil, io.EOF
		}
		if err := r.readRow(); err != nil {
			return nil, err
		}
	}
}

// takeBatch removes the leading run of equal-timestamp events from pending.
// Pending events are always older than anything left in the sorter, so the
// run is complete.
func (r *Reader) takeBatch() []EventEdge {
	if len(r.pending) == 0 {
		return nil
	}
	ts := r.pending[0].Timestamp
	n := 1
	for n < len(r.pending) && r.pending[n].Timestamp == ts {
		n++
	}
	batch := make([]EventEdge, n)
	copy(batch, r.pending[:n])
	r.pending = r.pending[n:]
	return batch
}

func (r *Reader) readRow() error {
	record, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		r.finished = true
		r.pending = append(r.pending, r.sorter.Drain()...)
		return nil
	}
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return &FormatError{Line: pe.Line, Message: "malformed row", Err: pe.Err}
		}
		return fmt.Errorf("read data graph: %w", err)
	}
	r.line, _ = r.csv.FieldPos(0)

	first, second, err := parseRecord(record)
	if err != nil {
		return &FormatError{Line: r.line, Message: err.Error()}
	}
	if first.Timestamp < r.lastTS1 {
		return &FormatError{
			Line:    r.line,
			Message: fmt.Sprintf("rows not sorted by start time: %d after %d", first.Timestamp, r.lastTS1),
		}
	}
	r.lastTS1 = first.Timestamp
	r.numRows++

	// Every event before this row's first timestamp is final.
	r.pending = append(r.pending, r.sorter.PopUntil(first.Timestamp-1)...)
	r.sorter.Push(first)
	if second.Timestamp != first.Timestamp {
		r.sorter.Push(second)
	}
	return nil
}

func parseRecord(record []string) (EventEdge, EventEdge, error) {
	ts1, err := parseSeconds(record[0])
	if err != nil {
		return EventEdge{}, EventEdge{}, fmt.Errorf("start time: %w", err)
	}
	ts2, err := parseSeconds(record[1])
	if err != nil {
		return EventEdge{}, EventEdge{}, fmt.Errorf("end time: %w", err)
	}
	if ts2 < ts1 {
		return EventEdge{}, EventEdge{}, fmt.Errorf("end time %d before start time %d", ts2, ts1)
	}

	sig := strings.TrimSpace(record[2])
	id, err := strconv.ParseInt(strings.TrimSpace(record[3]), 10, 64)
	if err != nil {
		return EventEdge{}, EventEdge{}, fmt.Errorf("edge id: %w", err)
	}
	start, err := strconv.ParseInt(strings.TrimSpace(record[4]), 10, 64)
	if err != nil {
		return EventEdge{}, EventEdge{}, fmt.Errorf("start node: %w", err)
	}
	end, err := strconv.ParseInt(strings.TrimSpace(record[5]), 10, 64)
	if err != nil {
		return EventEdge{}, EventEdge{}, fmt.Errorf("end node: %w", err)
	}

	first := EventEdge{Timestamp: ts1, Signature: sig, ID: id, Start: start, End: end}
	second := first
	second.Timestamp = ts2
	return first, second, nil
}

// parseSeconds converts a decimal seconds value to milliseconds, rounding to
// the nearest millisecond.
func parseSeconds(s string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return int64(math.Round(f * 1000)), nil
}

// ReadAll reads every batch from r.
func ReadAll(r io.Reader) ([][]EventEdge, error) {
	reader := NewReader(r)
	var batches [][]EventEdge
	for {
		batch, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return batches, nil
		}
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
}
