// Package input turns a provenance data graph into the stream of event
// edges the matcher consumes: batches of equal-timestamp events in
// non-decreasing timestamp order.
//
// The on-disk format is one CSV row per data edge:
//
//	ts1,ts2,signature,id,start,end
//
// where ts1/ts2 are the start and end times of the edge in seconds. Each row
// produces an event at ts1 and another at ts2 (one when they are equal).
package input

import "fmt"

// EventEdge is one data edge observed at one point in time.
type EventEdge struct {
	// Timestamp is in milliseconds.
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
	Signature string `json:"signature" yaml:"signature"`
	ID        int64  `json:"id" yaml:"id"`
	Start     int64  `json:"start" yaml:"start"`
	End       int64  `json:"end" yaml:"end"`
}

func (e EventEdge) String() string {
	return fmt.Sprintf("%d@%d(%s, %d->%d)", e.ID, e.Timestamp, e.Signature, e.Start, e.End)
}

// FormatError is returned for a malformed data graph row.
type FormatError struct {
	Line    int
	Message string
	Err     error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Message, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
