package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/criteria/internal/catalog"
	"github.com/roach88/criteria/internal/criteria"
	"github.com/roach88/criteria/internal/parser"
	"github.com/roach88/criteria/internal/predicate"
)

// CriteriaOptions selects how a command argument becomes a criteria tree.
type CriteriaOptions struct {
	Go      bool   // argument is a Go boolean expression
	Param   string // parameter name of the Go expression
	Catalog string // argument names an entry of this CUE catalog
}

func addCriteriaFlags(cmd *cobra.Command, o *CriteriaOptions) {
	cmd.Flags().BoolVar(&o.Go, "go", false, "treat the argument as a Go boolean expression")
	cmd.Flags().StringVar(&o.Param, "param", "", "parameter name of the Go expression (with --go)")
	cmd.Flags().StringVar(&o.Catalog, "catalog", "", "resolve the argument as a named criteria from this CUE catalog")
	cmd.MarkFlagsMutuallyExclusive("go", "catalog")
}

// resolve builds the tree for arg. Criteria errors exit with ExitFailure;
// catalog problems are command errors.
func (o *CriteriaOptions) resolve(arg string) (*criteria.Node, error) {
	if o.Param != "" && !o.Go {
		return nil, NewExitError(ExitCommandError, "--param requires --go")
	}

	switch {
	case o.Catalog != "":
		cat, errs := catalog.Load(o.Catalog, catalog.LoadModeFailFast)
		if len(errs) > 0 {
			return nil, WrapExitError(ExitCommandError, "failed to load catalog", errors.Join(errs...))
		}
		entry, ok := cat.Lookup(arg)
		if !ok {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("criteria %q not found in catalog %s", arg, o.Catalog))
		}
		return entry.Criteria, nil

	case o.Go:
		var opts []predicate.Option
		if o.Param != "" {
			opts = append(opts, predicate.WithParam(o.Param))
		}
		n, err := predicate.BuildString(arg, opts...)
		if err != nil {
			return nil, WrapExitError(ExitFailure, "invalid expression", err)
		}
		return n, nil

	default:
		n, err := parser.Parse(arg)
		if err != nil {
			return nil, WrapExitError(ExitFailure, "invalid criteria", err)
		}
		return n, nil
	}
}

// resolveOptional is resolve for an optional argument: empty text gives a
// nil tree, which matches everything.
func (o *CriteriaOptions) resolveOptional(arg string) (*criteria.Node, error) {
	if arg == "" {
		return nil, nil
	}
	return o.resolve(arg)
}
