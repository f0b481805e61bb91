package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/criteria/internal/criteria"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	CriteriaOptions
	Tree bool
}

// ParseResult is the output of parse and build.
type ParseResult struct {
	Canonical string         `json:"canonical"`
	Hash      string         `json:"hash"`
	Tree      *criteria.Node `json:"tree"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <criteria>",
		Short: "Parse criteria text and print its canonical form",
		Long: `Parse a criteria expression and print its canonical text.

Examples:
  criteria parse "Surname LIKE 'Smith%' AND Age >= 18"
  criteria parse --tree "NOT (Code IS NULL)"
  criteria parse --go --param p 'p.Age >= 18 && p.Active'
  criteria parse --catalog ./catalog adults`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], cmd)
		},
	}

	addCriteriaFlags(cmd, &opts.CriteriaOptions)
	cmd.Flags().BoolVar(&opts.Tree, "tree", false, "print the tree as JSON")

	return cmd
}

func runParse(opts *ParseOptions, arg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	n, err := opts.resolve(arg)
	if err != nil {
		return formatter.Fail(err)
	}
	return outputTree(formatter, n, opts.Tree)
}

func outputTree(formatter *OutputFormatter, n *criteria.Node, tree bool) error {
	result := ParseResult{
		Canonical: n.String(),
		Hash:      strconv.FormatUint(n.Hash(), 16),
		Tree:      n,
	}
	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintln(w, result.Canonical)
		if tree {
			_ = writeJSON(w, n)
		}
	})
}
