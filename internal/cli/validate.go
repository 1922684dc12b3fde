package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/littleponywork/IPMES/internal/decompose"
	"github.com/littleponywork/IPMES/internal/digest"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	Path      string `json:"path"`
	Edges     int    `json:"edges"`
	Nodes     int    `json:"nodes"`
	TCQueries int    `json:"tc_queries"`
	UseRegex  bool   `json:"use_regex"`
	Digest    string `json:"digest"`
}

func (r ValidationResult) String() string {
	mode := "literal"
	if r.UseRegex {
		mode = "regex"
	}
	return fmt.Sprintf("✓ %s is valid: %d edges, %d nodes, %d TC-Queries, %s signatures\n  digest %s",
		r.Path, r.Edges, r.Nodes, r.TCQueries, mode, r.Digest)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var regex bool

	cmd := &cobra.Command{
		Use:   "validate <pattern-file>",
		Short: "Validate a pattern file",
		Long: `Validate a pattern file without reading any events.

Checks that the file decodes, that edge ids are dense and node ids cover
every endpoint, that the temporal order is acyclic, and in regex mode that
every signature compiles.

Exit codes:
  0 - pattern is valid
  1 - pattern is invalid
  2 - pattern file not found`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:  rootOpts.Format,
				Writer:  cmd.OutOrStdout(),
				Verbose: rootOpts.Verbose,
			}
			return runValidate(formatter, args[0], regex)
		},
	}

	cmd.Flags().BoolVar(&regex, "regex", false, "treat pattern signatures as regular expressions")

	return cmd
}

func runValidate(formatter *OutputFormatter, path string, regex bool) error {
	p, err := loadPattern(path, regex)
	if err != nil {
		code := errorCode(err)
		if formatter.Format == "json" {
			formatter.Error(code, err.Error(), ValidationResult{Valid: false, Path: path})
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Validation failed")
			fmt.Fprintf(formatter.Writer, "  [%s] %s\n", code, err)
		}
		return WrapExitError(exitCodeFor(err), "validation failed", err)
	}

	d, err := digest.Pattern(p)
	if err != nil {
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	return formatter.Success(ValidationResult{
		Valid:     true,
		Path:      path,
		Edges:     p.NumEdges(),
		Nodes:     p.Graph.NumNodes(),
		TCQueries: len(decompose.New(p).Decompose()),
		UseRegex:  p.UseRegex,
		Digest:    d,
	})
}
