package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/littleponywork/IPMES/internal/engine"
	"github.com/littleponywork/IPMES/internal/input"
	"github.com/littleponywork/IPMES/internal/store"
	"github.com/littleponywork/IPMES/internal/telemetry"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Window            float64 // seconds
	NaiveJoin         bool
	Database          string
	DumpResults       bool
	DumpTriggerCounts bool
	MetricsFile       string
	Regex             bool
	QueueCapacity     int

	// RunIDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator engine.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <pattern-file> <data-graph.csv>",
		Short: "Match a pattern against a data graph",
		Long: `Match a behavioral pattern against a data graph event stream.

The pattern file is JSON, YAML or CUE in the universal pattern format. The
data graph is a CSV of rows "ts1,ts2,signature,id,start,end" sorted by ts1,
with timestamps in seconds.

The report carries the peak pool size and the number of results; use
--dump-results and --dump-trigger-counts for more. With --db, the run and its
matches are stored in a SQLite database.

Example:
  ipmes run --window 1800 pattern.json data.csv
  ipmes run --db ./ipmes.db --dump-results --format json pattern.yaml data.csv`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().Float64VarP(&opts.Window, "window", "w", float64(engine.DefaultWindow)/1000, "time window in seconds")
	cmd.Flags().BoolVar(&opts.NaiveJoin, "naive-join", false, "use the naive join instead of the priority join")
	cmd.Flags().StringVar(&opts.Database, "db", "", "store the run and its matches in this SQLite database")
	cmd.Flags().BoolVar(&opts.DumpResults, "dump-results", false, "include every full match in the report")
	cmd.Flags().BoolVar(&opts.DumpTriggerCounts, "dump-trigger-counts", false, "include per-position trigger counts in the report")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	cmd.Flags().BoolVar(&opts.Regex, "regex", false, "treat pattern signatures as regular expressions")
	cmd.Flags().IntVar(&opts.QueueCapacity, "queue-capacity", engine.DefaultQueueCapacity, "batches the reader may run ahead of the matcher")

	return cmd
}

func runMatch(cmd *cobra.Command, opts *RunOptions, patternPath, dataPath string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Window < 0 || math.IsNaN(opts.Window) || math.IsInf(opts.Window, 0) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid window %v", opts.Window))
	}
	if opts.QueueCapacity < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid queue capacity %d", opts.QueueCapacity))
	}

	p, err := loadPattern(patternPath, opts.Regex)
	if err != nil {
		formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(exitCodeFor(err), "failed to load pattern", err)
	}

	data, err := os.Open(dataPath)
	if err != nil {
		formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open data graph", err)
	}
	defer data.Close()

	engineOpts := []engine.EngineOption{
		engine.WithWindow(int64(math.Round(opts.Window * 1000))),
		engine.WithQueueCapacity(opts.QueueCapacity),
	}
	if opts.NaiveJoin {
		engineOpts = append(engineOpts, engine.WithJoin(engine.JoinNaive))
	}
	if opts.RunIDGenerator != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDGenerator))
	}
	if opts.Database != "" {
		slog.Info("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithStore(st))
	}

	eng, err := engine.New(p, engineOpts...)
	if err != nil {
		formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to create engine", err)
	}
	formatter.VerboseLog("Run %s: %d TC-Queries", eng.RunID(), len(eng.Queries()))

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := feedEngine(ctx, eng, input.NewReader(data)); err != nil {
		if !errors.Is(err, context.Canceled) {
			formatter.Error(errorCode(err), err.Error(), nil)
			return WrapExitError(ExitFailure, "run failed", err)
		}
		// Interrupted: report what was matched so far.
		slog.Warn("run interrupted", "run_id", eng.RunID())
	}

	report, err := eng.Finish(context.WithoutCancel(ctx))
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to finish run", err)
	}
	elapsed := time.Since(start)

	if opts.MetricsFile != "" {
		m := telemetry.New(report.RunID)
		m.Record(report)
		m.ObserveDuration(elapsed)
		if err := m.WriteToTextfile(opts.MetricsFile); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	if !opts.DumpResults {
		report.MatchResults = nil
	}
	if !opts.DumpTriggerCounts {
		report.TriggerCounts = nil
	}
	return formatter.SuccessForRun(report.RunID, runReport(report))
}

// feedEngine reads batches on one goroutine and processes them on the
// engine's Run loop on another. The reader blocks while the engine queue is
// full. A read error cancels the run.
func feedEngine(ctx context.Context, eng *engine.Engine, r *input.Reader) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer eng.Stop()
		for {
			batch, err := r.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read data graph: %w", err)
			}
			if !eng.Enqueue(gctx, batch) {
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		return eng.Run(gctx)
	})

	return g.Wait()
}

// exitCodeFor separates missing files (command errors) from invalid input.
func exitCodeFor(err error) int {
	if errorCode(err) == ErrCodeNotFound {
		return ExitCommandError
	}
	return ExitFailure
}

// runReport renders a report as text; JSON uses the report's own tags.
type runReport engine.Report

func (r runReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:            %s\n", r.RunID)
	fmt.Fprintf(&b, "PeakPoolSize:   %d\n", r.PeakPoolSize)
	fmt.Fprintf(&b, "NumResults:     %d\n", r.NumResults)
	fmt.Fprintf(&b, "UsageCounts:    %v\n", r.UsageCounts)
	fmt.Fprintf(&b, "Batches:        %d (%d events, %d skipped)", r.Batches, r.Events, r.SkippedBatches)
	if r.TriggerCounts != nil {
		fmt.Fprintf(&b, "\nTriggerCounts:  %v", r.TriggerCounts)
	}
	for _, m := range r.MatchResults {
		fmt.Fprintf(&b, "\n  %d-%d %s", m.StartTime, m.EndTime, m.String())
	}
	return b.String()
}
