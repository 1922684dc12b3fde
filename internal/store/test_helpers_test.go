package store

import (
	"context"
	"testing"

	"github.com/littleponywork/IPMES/internal/match"
)

// createTestStore creates a new in-memory store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun writes a run with minimal required fields.
func createTestRun(t *testing.T, s *Store, id string) Run {
	t.Helper()
	run := Run{
		ID:            id,
		PatternDigest: "test-digest",
		WindowMS:      1000,
		JoinStrategy:  "priority",
	}
	if err := s.WriteRun(context.Background(), run); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	return run
}

func fullMatch(start, end int64, ids ...int64) match.FullMatch {
	return match.FullMatch{DataIDs: ids, StartTime: start, EndTime: end}
}
