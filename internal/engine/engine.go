package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/littleponywork/IPMES/internal/decompose"
	"github.com/littleponywork/IPMES/internal/digest"
	"github.com/littleponywork/IPMES/internal/input"
	"github.com/littleponywork/IPMES/internal/join"
	"github.com/littleponywork/IPMES/internal/match"
	"github.com/littleponywork/IPMES/internal/matcher"
	"github.com/littleponywork/IPMES/internal/pattern"
	"github.com/littleponywork/IPMES/internal/store"
)

// DefaultWindow is the default time window in milliseconds (1800 seconds).
const DefaultWindow int64 = 1800 * 1000

// JoinStrategy selects the join implementation.
type JoinStrategy string

const (
	// JoinPriority is the tree-structured join used in production.
	JoinPriority JoinStrategy = "priority"
	// JoinNaive checks every pair of buffered results. It exists as an
	// oracle for the priority join.
	JoinNaive JoinStrategy = "naive"
)

// Report summarizes a finished run.
type Report struct {
	RunID          string            `json:"RunID"`
	PeakPoolSize   int               `json:"PeakPoolSize"`
	NumResults     int               `json:"NumResults"`
	TriggerCounts  [][]int           `json:"TriggerCounts,omitempty"`
	UsageCounts    []int             `json:"UsageCounts"`
	MatchResults   []match.FullMatch `json:"MatchResults,omitempty"`
	Batches        int               `json:"Batches"`
	Events         int               `json:"Events"`
	SkippedBatches int               `json:"SkippedBatches"`
}

// Engine drives one pattern over one event stream.
//
// Batches flow sorter -> matcher -> join synchronously. All of that happens
// on the goroutine calling Process, normally the Run loop.
//
// Thread-safety model:
//   - Enqueue(), Stop(): safe from any goroutine
//   - Run(), Process(), Finish(): one goroutine at a time
type Engine struct {
	pattern  *pattern.Pattern
	queries  []decompose.TCQuery
	window   int64
	strategy JoinStrategy

	join    join.Join
	matcher matcher.TCMatcher
	sorter  *matcher.Sorter

	queue     *batchQueue
	queueCap  int
	watermark *Watermark
	runIDGen  RunIDGenerator
	runID     string
	store     *store.Store

	peakPool int
	batches  int
	events   int
	skipped  int
	finished bool
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithWindow sets the time window in milliseconds.
//
// Default: 1800 seconds (DefaultWindow).
func WithWindow(ms int64) EngineOption {
	return func(e *Engine) {
		e.window = ms
	}
}

// WithJoin selects the join strategy. Default: JoinPriority.
func WithJoin(s JoinStrategy) EngineOption {
	return func(e *Engine) {
		e.strategy = s
	}
}

// WithRunIDGenerator sets the generator for the run id.
// Default: UUIDv7Generator.
func WithRunIDGenerator(gen RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDGen = gen
	}
}

// WithQueueCapacity bounds how many batches Enqueue may hold ahead of the
// Run loop. Default: DefaultQueueCapacity.
func WithQueueCapacity(n int) EngineOption {
	return func(e *Engine) {
		e.queueCap = n
	}
}

// WithStore persists the run and its full matches on Finish.
func WithStore(s *store.Store) EngineOption {
	return func(e *Engine) {
		e.store = s
	}
}

// New creates an Engine for p. The pattern is validated, decomposed into
// TC-Queries, and wired to a matcher and the selected join.
func New(p *pattern.Pattern, opts ...EngineOption) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	e := &Engine{
		pattern:   p,
		window:    DefaultWindow,
		strategy:  JoinPriority,
		queueCap:  DefaultQueueCapacity,
		watermark: NewWatermark(),
		runIDGen:  UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.window < 0 {
		return nil, fmt.Errorf("window must not be negative, got %d", e.window)
	}
	if e.queueCap < 1 {
		return nil, fmt.Errorf("queue capacity must be positive, got %d", e.queueCap)
	}
	e.queue = newBatchQueue(e.queueCap)

	e.queries = decompose.New(p).Decompose()

	switch e.strategy {
	case JoinPriority:
		e.join = join.NewPriorityJoin(p, e.queries, e.window)
	case JoinNaive:
		e.join = join.NewNaiveJoin(p, e.queries, e.window)
	default:
		return nil, fmt.Errorf("unknown join strategy %q", e.strategy)
	}

	m, err := matcher.NewCustomMatcher(p, e.queries, e.window, e.join)
	if err != nil {
		return nil, fmt.Errorf("create matcher: %w", err)
	}
	e.matcher = m

	if e.sorter, err = matcher.NewSorter(p, e.queries); err != nil {
		return nil, fmt.Errorf("create sorter: %w", err)
	}

	e.runID = e.runIDGen.Generate()

	slog.Debug("engine created",
		"run_id", e.runID,
		"tc_queries", len(e.queries),
		"window_ms", e.window,
		"join", e.strategy,
	)
	return e, nil
}

// RunID returns the id of this run.
func (e *Engine) RunID() string { return e.runID }

// Queries returns the TC-Queries the pattern was decomposed into.
func (e *Engine) Queries() []decompose.TCQuery { return e.queries }

// PoolSize returns the partial results currently buffered by the matcher
// and the join together.
func (e *Engine) PoolSize() int {
	return e.matcher.PoolSize() + e.join.PoolSize()
}

// Enqueue submits a batch for processing by the Run loop. It blocks while
// the queue is full.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped or ctx is done first.
func (e *Engine) Enqueue(ctx context.Context, batch []input.EventEdge) bool {
	return e.queue.Enqueue(ctx, batch)
}

// Run starts the single-writer batch loop.
// Blocks until context is cancelled or Stop() is called and the queue is
// drained.
//
// ERROR HANDLING: a batch that fails is logged with its context and
// skipped; processing continues with the next batch.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "run_id", e.runID)

	for {
		batch, ok := e.queue.TryDequeue()
		if ok {
			if err := e.Process(batch); err != nil {
				logBatchError(batch, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled", "run_id", e.runID)
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue, so a closed and
			// empty queue ends the loop.
			if e.queue.Len() == 0 && e.queue.Closed() {
				slog.Info("engine stopping: queue closed", "run_id", e.runID)
				return nil
			}
		}
	}
}

// Stop closes the batch queue. Run returns once the queued batches are
// processed.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Process runs one batch of equal-timestamp events through the sorter, the
// matcher and the join.
//
// A batch older than the watermark is rejected with an OUT_OF_ORDER_BATCH
// error and leaves all state untouched.
func (e *Engine) Process(batch []input.EventEdge) error {
	if e.finished {
		return NewStoppedError(e.runID)
	}
	if len(batch) == 0 {
		return nil
	}

	ts := batch[0].Timestamp
	if !e.watermark.Advance(ts) {
		e.skipped++
		return NewOutOfOrderError(e.runID, e.watermark.Current(), ts)
	}

	e.batches++
	e.events += len(batch)

	sorted := e.sorter.Sort(batch)
	if len(sorted) > 0 {
		e.matcher.SendAll(sorted)
	}

	if pool := e.PoolSize(); pool > e.peakPool {
		e.peakPool = pool
	}
	return nil
}

// Finish extracts the answers, drops every buffered partial result, and
// returns the run report. With a store configured, the run and its matches
// are persisted.
//
// Finish may be called once; later calls return an ENGINE_STOPPED error.
func (e *Engine) Finish(ctx context.Context) (Report, error) {
	if e.finished {
		return Report{}, NewStoppedError(e.runID)
	}
	e.finished = true
	e.queue.Close()

	answers := e.join.ExtractAnswer()
	e.matcher.Flush()
	e.join.Flush()

	report := Report{
		RunID:          e.runID,
		PeakPoolSize:   e.peakPool,
		NumResults:     len(answers),
		TriggerCounts:  e.matcher.TriggerCounts(),
		UsageCounts:    e.join.UsageCounts(),
		MatchResults:   answers,
		Batches:        e.batches,
		Events:         e.events,
		SkippedBatches: e.skipped,
	}

	slog.Info("engine finished",
		"run_id", e.runID,
		"results", report.NumResults,
		"peak_pool_size", report.PeakPoolSize,
		"batches", report.Batches,
		"skipped", report.SkippedBatches,
	)

	if e.store != nil {
		if err := e.persist(ctx, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (e *Engine) persist(ctx context.Context, report Report) error {
	patternDigest, err := digest.Pattern(e.pattern)
	if err != nil {
		return fmt.Errorf("persist run %s: %w", e.runID, err)
	}

	run := store.Run{
		ID:            e.runID,
		PatternDigest: patternDigest,
		WindowMS:      e.window,
		JoinStrategy:  string(e.strategy),
		PeakPoolSize:  report.PeakPoolSize,
		NumResults:    report.NumResults,
		UsageCounts:   report.UsageCounts,
	}
	if err := e.store.WriteRun(ctx, run); err != nil {
		return fmt.Errorf("persist run %s: %w", e.runID, err)
	}

	n, err := e.store.WriteMatches(ctx, e.runID, report.MatchResults)
	if err != nil {
		return fmt.Errorf("persist run %s: %w", e.runID, err)
	}
	slog.Info("matches stored", "run_id", e.runID, "inserted", n)
	return nil
}

// logBatchError logs a batch processing failure with enough context to find
// the batch in the input.
func logBatchError(batch []input.EventEdge, err error) {
	if len(batch) == 0 {
		slog.Error("batch processing failed", "error", err)
		return
	}
	slog.Error("batch processing failed",
		"error", err,
		"timestamp", batch[0].Timestamp,
		"events", len(batch),
		"first_edge_id", batch[0].ID,
	)
}
