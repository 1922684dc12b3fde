// Package store provides SQLite-backed storage for matcher output.
//
// The store is write-only from the engine's point of view: it records each
// run and the full matches the run produced. No matcher or join state is
// ever persisted, so a run cannot be resumed from the store.
//
// # Tables
//
//   - runs: one row per run, keyed by run id, with the pattern digest, the
//     window, the join strategy and the final counters
//   - matches: full matches, UNIQUE(run_id, match_key)
//
// # Idempotency
//
// Both writes use ON CONFLICT DO NOTHING. Writing the same run or the same
// match twice is a no-op, so a retried Finish never duplicates output.
//
// # Deterministic Query Results
//
// Reads order by seq ASC (insertion order), which for matches is the order
// the engine extracted them: start time, end time, then data ids.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: a match must belong to a stored run
package store
