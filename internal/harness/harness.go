package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/littleponywork/IPMES/internal/engine"
	"github.com/littleponywork/IPMES/internal/input"
	"github.com/littleponywork/IPMES/internal/pattern"
	"github.com/littleponywork/IPMES/internal/store"
)

// defaultRunID is the run id of scenarios that do not set run_id.
const defaultRunID = "test-run-default"

// Harness is the test execution engine for one scenario run.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger
}

// RunAll runs the scenario once per join strategy it names.
func RunAll(scenario *Scenario) ([]*Result, error) {
	var results []*Result
	for _, join := range scenario.strategies() {
		result, err := Run(scenario, join)
		if err != nil {
			return nil, fmt.Errorf("join %s: %w", join, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// Run executes a test scenario with one join strategy and returns the result.
//
// Each run uses a fresh in-memory database and a fixed run id.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load the pattern and build the engine
// 3. Process every batch of the data graph
// 4. Finish the run, storing its matches
// 5. Evaluate assertions against the report and the store
func Run(scenario *Scenario, join engine.JoinStrategy) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	p, err := pattern.Load(scenario.Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to load pattern: %w", err)
	}

	runID := scenario.RunID
	if runID == "" {
		runID = defaultRunID
	}
	opts := []engine.EngineOption{
		engine.WithJoin(join),
		engine.WithStore(st),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(runID)),
	}
	if scenario.WindowMS != nil {
		opts = append(opts, engine.WithWindow(*scenario.WindowMS))
	}
	eng, err := engine.New(p, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	h := &Harness{
		store:  st,
		engine: eng,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	ctx := context.Background()
	if err := h.feed(scenario); err != nil {
		return nil, err
	}

	report, err := eng.Finish(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to finish run: %w", err)
	}

	result := NewResult(join)
	result.Report = report

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// feed processes the scenario's data graph batch by batch. Out-of-order
// batches are logged and skipped, as in a live run.
func (h *Harness) feed(scenario *Scenario) error {
	var r io.Reader
	if scenario.Data != "" {
		f, err := os.Open(scenario.Data)
		if err != nil {
			return fmt.Errorf("failed to open data graph: %w", err)
		}
		defer f.Close()
		r = f
	} else {
		r = strings.NewReader(strings.Join(scenario.Rows, "\n") + "\n")
	}

	batches, err := input.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read data graph: %w", err)
	}

	for i, batch := range batches {
		if err := h.engine.Process(batch); err != nil {
			h.logger.Warn("batch skipped", "batch", i, "error", err)
			continue
		}
		h.logger.Debug("batch processed",
			"batch", i,
			"events", len(batch),
			"pool_size", h.engine.PoolSize(),
		)
	}
	return nil
}
