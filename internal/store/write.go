package store

import (
	"context"
	"fmt"

	"github.com/littleponywork/IPMES/internal/digest"
	"github.com/littleponywork/IPMES/internal/match"
)

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a run id written twice
// keeps its first record.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("write run: empty run id")
	}
	usage, err := marshalCounts(run.UsageCounts)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, pattern_digest, window_ms, join_strategy, peak_pool_size, num_results, usage_counts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.PatternDigest,
		run.WindowMS,
		run.JoinStrategy,
		run.PeakPoolSize,
		run.NumResults,
		usage,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteMatches inserts the full matches of a run in one transaction, in the
// order given, and returns how many were new.
//
// Each match is keyed by digest.MatchKey; ON CONFLICT DO NOTHING drops a
// binding already stored for the run.
//
// Note: The run must exist (foreign key constraint).
func (s *Store) WriteMatches(ctx context.Context, runID string, matches []match.FullMatch) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write matches: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO matches
		(run_id, match_key, match_ids, start_time, end_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("write matches: prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, m := range matches {
		ids, err := marshalIDs(m.DataIDs)
		if err != nil {
			return 0, fmt.Errorf("write matches: %w", err)
		}
		res, err := stmt.ExecContext(ctx, runID, digest.MatchKey(m), ids, m.StartTime, m.EndTime)
		if err != nil {
			return 0, fmt.Errorf("write matches: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("write matches: rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write matches: commit: %w", err)
	}
	return inserted, nil
}
