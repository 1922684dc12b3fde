package store

import "github.com/littleponywork/IPMES/internal/match"

// Run is the stored summary of one matcher run.
type Run struct {
	ID            string
	PatternDigest string
	WindowMS      int64
	JoinStrategy  string
	PeakPoolSize  int
	NumResults    int
	UsageCounts   []int
}

// StoredMatch is a full match as persisted for a run.
type StoredMatch struct {
	RunID string
	Key   string
	Match match.FullMatch
}
