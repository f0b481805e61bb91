package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/criteria/internal/store"
)

// StoreOptions holds flags shared by the store subcommands.
type StoreOptions struct {
	*RootOptions
	Database string
}

// NewStoreCommand creates the store command and its subcommands.
func NewStoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Save criteria and query tables in a SQLite database",
		Long: `Manage saved criteria and run them against SQLite tables.

Examples:
  criteria store --db ./criteria.db import people people.yaml
  criteria store --db ./criteria.db save adults "Age >= 18" --source people
  criteria store --db ./criteria.db find people adults
  criteria store --db ./criteria.db list`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newStoreSaveCommand(opts))
	cmd.AddCommand(newStoreShowCommand(opts))
	cmd.AddCommand(newStoreListCommand(opts))
	cmd.AddCommand(newStoreDeleteCommand(opts))
	cmd.AddCommand(newStoreImportCommand(opts))
	cmd.AddCommand(newStoreFindCommand(opts))

	return cmd
}

// withStore opens the database, runs fn and closes it.
func (o *StoreOptions) withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store, f *OutputFormatter) error) error {
	formatter := o.formatter(cmd)

	st, err := store.Open(o.Database, store.WithLogger(o.logger(cmd)))
	if err != nil {
		return formatter.Fail(WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer st.Close()

	formatter.VerboseLog("Opened database %s", o.Database)
	return fn(cmd.Context(), st, formatter)
}

func newStoreSaveCommand(opts *StoreOptions) *cobra.Command {
	var (
		crit  CriteriaOptions
		saved store.SavedCriteria
	)

	cmd := &cobra.Command{
		Use:           "save <name> <criteria>",
		Short:         "Save criteria under a name",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				n, err := crit.resolve(args[1])
				if err != nil {
					return f.Fail(err)
				}
				saved.Name = args[0]
				if err := st.SaveCriteria(ctx, saved, n); err != nil {
					return f.Fail(err)
				}
				return showSaved(ctx, st, f, saved.Name)
			})
		},
	}

	addCriteriaFlags(cmd, &crit)
	cmd.Flags().StringVar(&saved.Source, "source", "", "table the criteria is meant for")
	cmd.Flags().StringVar(&saved.Description, "description", "", "what the criteria selects")

	return cmd
}

func newStoreShowCommand(opts *StoreOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <name>",
		Short:         "Show saved criteria",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				return showSaved(ctx, st, f, args[0])
			})
		},
	}
}

func showSaved(ctx context.Context, st *store.Store, f *OutputFormatter, name string) error {
	_, saved, err := st.LoadCriteria(ctx, name)
	if err != nil {
		return f.Fail(savedError(err))
	}
	return f.Success(saved, func(w io.Writer) {
		printSaved(w, saved)
	})
}

func newStoreListCommand(opts *StoreOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List saved criteria",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				all, err := st.ListCriteria(ctx)
				if err != nil {
					return f.Fail(err)
				}
				if all == nil {
					all = []store.SavedCriteria{}
				}
				return f.Success(all, func(w io.Writer) {
					if len(all) == 0 {
						fmt.Fprintln(w, "No saved criteria.")
						return
					}
					for _, saved := range all {
						fmt.Fprintf(w, "%s\t%s\n", saved.Name, saved.Filter)
					}
				})
			})
		},
	}
}

func newStoreDeleteCommand(opts *StoreOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <name>",
		Short:         "Delete saved criteria",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				if err := st.DeleteCriteria(ctx, args[0]); err != nil {
					return f.Fail(savedError(err))
				}
				return f.Success(map[string]string{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "✓ deleted %s\n", args[0])
				})
			})
		},
	}
}

func newStoreImportCommand(opts *StoreOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <table> <rows.yaml>",
		Short: "Create a table and insert rows from YAML",
		Long: `Create a table (if missing) and insert rows read from a YAML list of maps.
Column types follow the first non-null value of each key.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				rows, err := loadRows(args[1])
				if err != nil {
					return f.Fail(err)
				}
				table := args[0]
				if err := st.CreateTable(ctx, table, store.InferColumns(rows)); err != nil {
					return f.Fail(err)
				}
				for _, row := range rows {
					if _, err := st.Insert(ctx, table, row); err != nil {
						return f.Fail(err)
					}
				}
				return f.Success(map[string]any{"table": table, "rows": len(rows)}, func(w io.Writer) {
					fmt.Fprintf(w, "✓ imported %d row(s) into %s\n", len(rows), table)
				})
			})
		},
	}
}

func newStoreFindCommand(opts *StoreOptions) *cobra.Command {
	var criteriaText string

	cmd := &cobra.Command{
		Use:   "find <table> [saved-name]",
		Short: "Select table rows matching saved or inline criteria",
		Long: `Select the rows of a table that match criteria, in rowid order.

The criteria is either the name of saved criteria or inline text given with
--criteria. Without either, every row is returned.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				if len(args) == 2 && criteriaText != "" {
					return f.Fail(NewExitError(ExitCommandError, "give a saved name or --criteria, not both"))
				}

				var crit CriteriaOptions
				n, err := crit.resolveOptional(criteriaText)
				if err != nil {
					return f.Fail(err)
				}
				if len(args) == 2 {
					n, _, err = st.LoadCriteria(ctx, args[1])
					if err != nil {
						return f.Fail(savedError(err))
					}
				}

				rows, err := st.Rows(ctx, args[0], n)
				if err != nil {
					return f.Fail(err)
				}
				if rows == nil {
					rows = []store.Row{}
				}
				return f.Success(rows, func(w io.Writer) {
					printRows(w, rows)
				})
			})
		},
	}

	cmd.Flags().StringVar(&criteriaText, "criteria", "", "inline criteria text")

	return cmd
}

// savedError maps a missing saved criteria to a command error.
func savedError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, "unknown saved criteria", err)
	}
	return err
}

// loadRows reads a YAML list of maps.
func loadRows(path string) ([]store.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read rows file", err)
	}
	var rows []store.Row
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&rows); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to parse rows file", err)
	}
	if len(rows) == 0 {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("no rows in %s", path))
	}
	return rows, nil
}

func printSaved(w io.Writer, saved store.SavedCriteria) {
	fmt.Fprintf(w, "%s: %s\n", saved.Name, saved.Filter)
	if saved.Source != "" {
		fmt.Fprintf(w, "  source: %s\n", saved.Source)
	}
	if saved.Description != "" {
		fmt.Fprintf(w, "  description: %s\n", saved.Description)
	}
	fmt.Fprintf(w, "  hash: %s seq: %d\n", saved.Hash, saved.Seq)
}

// printRows prints one line per row with columns in name order.
func printRows(w io.Writer, rows []store.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No rows.")
		return
	}
	for _, row := range rows {
		names := make([]string, 0, len(row))
		for name := range row {
			names = append(names, name)
		}
		slices.Sort(names)

		fields := make([]string, len(names))
		for i, name := range names {
			fields[i] = fmt.Sprintf("%s=%v", name, row[name])
		}
		fmt.Fprintln(w, strings.Join(fields, " "))
	}
}
