package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/littleponywork/IPMES/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// testReport renders a suite result as text.
type testReport harness.SuiteResult

func (r testReport) String() string {
	if r.Total == 0 {
		return "No scenarios found."
	}
	var out string
	for _, s := range r.Scenarios {
		if s.Pass {
			out += fmt.Sprintf("✓ %s\n", s.Name)
			continue
		}
		out += fmt.Sprintf("✗ %s\n", s.Name)
		for _, e := range s.Errors {
			out += fmt.Sprintf("  %s\n", e)
		}
	}
	return out + fmt.Sprintf("\n%d passed, %d failed, %d total", r.Passed, r.Failed, r.Total)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run conformance scenarios using the harness framework.

Each scenario runs its pattern against its data graph under every join
strategy, checks the scenario's assertions, and compares the report with
golden/<name>.golden next to the scenario file when one exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  ipmes test ./scenarios
  ipmes test ./scenarios --filter "fork_*"
  ipmes test ./scenarios --update
  ipmes test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, dir string) error {
	result, err := harness.RunSuite(dir, harness.SuiteOptions{
		Filter: opts.Filter,
		Update: opts.Update,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	if opts.Format == "json" {
		status := "ok"
		if result.Failed > 0 {
			status = "error"
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(CLIResponse{Status: status, Data: result}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), testReport(*result))
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}
