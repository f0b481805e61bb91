package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/criteria/internal/querysql"
)

// SQLOptions holds flags for the sql command.
type SQLOptions struct {
	*RootOptions
	CriteriaOptions
	Table  string
	Select bool
}

// SQLResult is the output of the sql command.
type SQLResult struct {
	Dialect string `json:"dialect"`
	SQL     string `json:"sql"`
	Params  []any  `json:"params"`
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SQLOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sql <criteria>",
		Short: "Project criteria to a parameterized SQL WHERE clause",
		Long: `Project a criteria expression to SQL for the selected dialect.

Values are bound as parameters; --table qualifies unsourced columns.
With --select the full SELECT statement is printed.

Examples:
  criteria sql "Age >= 18 AND Code IS NULL" --table people
  criteria sql --dialect postgres --select --table orders "Status IN ('open', 'held')"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(opts, args[0], cmd)
		},
	}

	addCriteriaFlags(cmd, &opts.CriteriaOptions)
	cmd.Flags().StringVar(&opts.Table, "table", "", "table qualifying unsourced columns")
	cmd.Flags().BoolVar(&opts.Select, "select", false, "print a full SELECT statement (requires --table)")

	return cmd
}

func runSQL(opts *SQLOptions, arg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if opts.Select && opts.Table == "" {
		return formatter.Fail(NewExitError(ExitCommandError, "--select requires --table"))
	}

	n, err := opts.resolve(arg)
	if err != nil {
		return formatter.Fail(err)
	}

	dialect, err := querysql.LookupDialect(opts.Dialect)
	if err != nil {
		return formatter.Fail(WrapExitError(ExitCommandError, "invalid dialect", err))
	}
	compiler := querysql.NewSQLCompiler(dialect)

	var (
		sql    string
		params []any
	)
	if opts.Select {
		sql, params, err = compiler.CompileSelect(querysql.Select{From: opts.Table, Filter: n})
	} else {
		sql, params, err = compiler.Compile(n, opts.Table)
	}
	if err != nil {
		return formatter.Fail(WrapExitError(ExitFailure, "projection failed", err))
	}
	if params == nil {
		params = []any{}
	}

	result := SQLResult{Dialect: opts.Dialect, SQL: sql, Params: params}
	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintln(w, result.SQL)
		for i, p := range result.Params {
			fmt.Fprintf(w, "  [%d] %v\n", i+1, p)
		}
	})
}
