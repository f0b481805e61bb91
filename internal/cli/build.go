package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/criteria/internal/predicate"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Param  string
	Consts map[string]string
	Tree   bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <go-expr>",
		Short: "Lower a Go boolean expression to criteria",
		Long: `Lower a typed Go predicate into a criteria tree.

Selector chains rooted at the parameter become fields; identifiers bound
with --const become literal values.

Examples:
  criteria build --param p 'p.Age >= 18 && strings.HasPrefix(p.Surname, "Sm")'
  criteria build --param o --const limit=100 'o.Total > limit'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Param, "param", "", "predicate parameter name")
	cmd.Flags().StringToStringVar(&opts.Consts, "const", nil, "bind an identifier to a value (name=value)")
	cmd.Flags().BoolVar(&opts.Tree, "tree", false, "print the tree as JSON")

	return cmd
}

func runBuild(opts *BuildOptions, src string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var popts []predicate.Option
	if opts.Param != "" {
		popts = append(popts, predicate.WithParam(opts.Param))
	}
	for name, value := range opts.Consts {
		popts = append(popts, predicate.WithConst(name, value))
	}
	formatter.VerboseLog("Building %q with %d constant(s)", src, len(opts.Consts))

	n, err := predicate.BuildString(src, popts...)
	if err != nil {
		return formatter.Fail(WrapExitError(ExitFailure, "invalid expression", err))
	}
	return outputTree(formatter, n, opts.Tree)
}
