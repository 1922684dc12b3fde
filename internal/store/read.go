package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned by ReadRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// ReadRuns returns every stored run in insertion order.
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pattern_digest, window_ms, join_strategy, peak_pool_size, num_results, usage_counts
		FROM runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns the run with the given id, or ErrRunNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, pattern_digest, window_ms, join_strategy, peak_pool_size, num_results, usage_counts
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ReadMatches returns the stored matches of runID, or of every run when
// runID is empty, ordered by seq ASC.
// Returns an empty slice (not nil) if nothing is stored.
func (s *Store) ReadMatches(ctx context.Context, runID string) ([]StoredMatch, error) {
	query := `
		SELECT run_id, match_key, match_ids, start_time, end_time
		FROM matches
	`
	var args []any
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	matches := []StoredMatch{}
	for rows.Next() {
		var (
			m   StoredMatch
			ids string
		)
		if err := rows.Scan(&m.RunID, &m.Key, &ids, &m.Match.StartTime, &m.Match.EndTime); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if m.Match.DataIDs, err = unmarshalIDs(ids); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run   Run
		usage string
	)
	err := row.Scan(
		&run.ID,
		&run.PatternDigest,
		&run.WindowMS,
		&run.JoinStrategy,
		&run.PeakPoolSize,
		&run.NumResults,
		&usage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if run.UsageCounts, err = unmarshalCounts(usage); err != nil {
		return Run{}, err
	}
	return run, nil
}
