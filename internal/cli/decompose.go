package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/littleponywork/IPMES/internal/decompose"
	"github.com/littleponywork/IPMES/internal/join"
)

// DecomposeOptions holds flags for the decompose command.
type DecomposeOptions struct {
	*RootOptions
	Regex bool
	Tree  bool
}

// NewDecomposeCommand creates the decompose command.
func NewDecomposeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecomposeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decompose <pattern-file>",
		Short: "Show the TC-Queries and join relations of a pattern",
		Long: `Decompose a pattern into TC-Queries and print the relation table the
join checks when merging their results.

By default relations are listed per TC-Query. With --tree they are listed per
join tree buffer, as the priority join uses them.

Example:
  ipmes decompose pattern.json
  ipmes decompose --tree --format json pattern.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecompose(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Regex, "regex", false, "treat pattern signatures as regular expressions")
	cmd.Flags().BoolVar(&opts.Tree, "tree", false, "list relations per join tree buffer")

	return cmd
}

// queryView is the printed form of a TC-Query.
type queryView struct {
	ID         int      `json:"id"`
	EdgeIDs    []int    `json:"edge_ids"`
	Signatures []string `json:"signatures"`
}

// decomposition is the output of the decompose command.
type decomposition struct {
	TCQueries []queryView            `json:"tc_queries"`
	Layout    string                 `json:"layout"` // "query" | "tree"
	Relations [][]decompose.Relation `json:"relations"`
}

func (d decomposition) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "TC-Queries (%d):\n", len(d.TCQueries))
	for _, q := range d.TCQueries {
		fmt.Fprintf(&b, "  %d: edges %v %v\n", q.ID, q.EdgeIDs, q.Signatures)
	}
	label := "TC-Query"
	if d.Layout == "tree" {
		label = "buffer"
	}
	b.WriteString("Relations:")
	for i, rels := range d.Relations {
		fmt.Fprintf(&b, "\n  %s %d:", label, i)
		if len(rels) == 0 {
			b.WriteString(" none")
		}
		for _, r := range rels {
			fmt.Fprintf(&b, " (%d,%d)", r.ResultEdge, r.EntryEdge)
		}
	}
	return b.String()
}

func runDecompose(cmd *cobra.Command, opts *DecomposeOptions, path string) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	p, err := loadPattern(path, opts.Regex)
	if err != nil {
		formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(exitCodeFor(err), "failed to load pattern", err)
	}

	gen := decompose.New(p)
	queries := gen.Decompose()

	out := decomposition{Layout: "query", Relations: gen.Relations(queries)}
	if opts.Tree && len(queries) > 0 {
		out.Layout = "tree"
		out.Relations = join.TreeRelations(gen, queries)
	}
	for _, q := range queries {
		v := queryView{ID: q.ID, EdgeIDs: q.EdgeIDs()}
		for _, e := range q.Edges {
			v.Signatures = append(v.Signatures, e.Signature)
		}
		out.TCQueries = append(out.TCQueries, v)
	}
	return formatter.Success(out)
}
