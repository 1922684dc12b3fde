package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/littleponywork/IPMES/internal/store"
)

// MatchesOptions holds flags for the matches command.
type MatchesOptions struct {
	*RootOptions
	Database string
	RunID    string
	Runs     bool
}

// NewMatchesCommand creates the matches command.
func NewMatchesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "matches",
		Short: "List stored runs and matches",
		Long: `List the full matches stored by "ipmes run --db".

Without --run, matches of every run are listed. With --runs, the stored runs
are listed instead.

Example:
  ipmes matches --db ./ipmes.db --runs
  ipmes matches --db ./ipmes.db --run 0191c2a4-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatches(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "only list matches of this run")
	cmd.Flags().BoolVar(&opts.Runs, "runs", false, "list runs instead of matches")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

type runList []store.Run

func (l runList) String() string {
	if len(l) == 0 {
		return "No runs stored."
	}
	var b strings.Builder
	for i, r := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  join=%s window=%dms results=%d peak_pool=%d pattern=%.12s",
			r.ID, r.JoinStrategy, r.WindowMS, r.NumResults, r.PeakPoolSize, r.PatternDigest)
	}
	return b.String()
}

// matchView is the printed form of a stored match.
type matchView struct {
	RunID     string  `json:"RunID"`
	StartTime int64   `json:"StartTime"`
	EndTime   int64   `json:"EndTime"`
	MatchIDs  []int64 `json:"MatchIDs"`
}

type matchList []matchView

func (l matchList) String() string {
	if len(l) == 0 {
		return "No matches stored."
	}
	var b strings.Builder
	for i, m := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %d-%d %v", m.RunID, m.StartTime, m.EndTime, m.MatchIDs)
	}
	return b.String()
}

func runMatches(cmd *cobra.Command, opts *MatchesOptions) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	// Do not let Open create an empty database for a mistyped path.
	if _, err := os.Stat(opts.Database); err != nil {
		formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Runs {
		runs, err := st.ReadRuns(ctx)
		if err != nil {
			formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitFailure, "failed to read runs", err)
		}
		return formatter.Success(runList(runs))
	}

	if opts.RunID != "" {
		if _, err := st.ReadRun(ctx, opts.RunID); err != nil {
			code := ErrCodeStore
			if errors.Is(err, store.ErrRunNotFound) {
				code = ErrCodeNotFound
			}
			formatter.Error(code, err.Error(), nil)
			return WrapExitError(ExitFailure, "failed to read run", err)
		}
	}

	stored, err := st.ReadMatches(ctx, opts.RunID)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to read matches", err)
	}
	out := make(matchList, 0, len(stored))
	for _, m := range stored {
		out = append(out, matchView{
			RunID:     m.RunID,
			StartTime: m.Match.StartTime,
			EndTime:   m.Match.EndTime,
			MatchIDs:  m.Match.DataIDs,
		})
	}
	return formatter.Success(out)
}
