// Package engine drives a pattern over an event stream.
//
// ARCHITECTURE:
//
// Single-Writer Batch Loop:
// A reader enqueues batches of equal-timestamp events from any goroutine.
// The queue is bounded, so a reader that gets ahead blocks until the loop
// catches up. The Run loop dequeues batches in FIFO order and processes each
// one to completion before the next:
//
//  1. Watermark check: a batch older than the previous one is rejected
//  2. Sorter: drops events matching no pattern edge and orders the rest by
//     the global position they match first
//  3. Matcher: extends per-position partial results; results covering a
//     whole TC-Query are handed to the join
//  4. Join: merges TC-Query results into full matches
//  5. Peak pool size is sampled
//
// Finish extracts the full matches, flushes both layers and reports the run.
//
// The matcher and join hold no locks. Determinism comes from processing on
// one goroutine: the same batches in the same order yield the same matches.
package engine
