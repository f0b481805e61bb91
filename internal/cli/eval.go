package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/criteria/internal/bo"
	"github.com/roach88/criteria/internal/criteria"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	CriteriaOptions
	Object    string
	Persisted bool
	Now       string
}

// EvalResult is the output of the eval command.
type EvalResult struct {
	Canonical string `json:"canonical"`
	Object    string `json:"object"`
	Persisted bool   `json:"persisted"`
	Match     bool   `json:"match"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <criteria>",
		Short: "Evaluate criteria against an object",
		Long: `Evaluate a criteria expression against a business object read from YAML.

The object file has the scenario fixture layout:

  name: Person
  current: { Surname: Smith, Age: 40 }
  persisted: { Age: 39 }
  children:
    Address:
      current: { City: Leeds }

Examples:
  criteria eval "Age >= 18" --object alice.yaml
  criteria eval "Age >= 18" --object alice.yaml --persisted
  criteria eval "Due < TODAY" --object invoice.yaml --now 2024-03-15T09:30:00Z`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], cmd)
		},
	}

	addCriteriaFlags(cmd, &opts.CriteriaOptions)
	cmd.Flags().StringVar(&opts.Object, "object", "", "path to the object YAML file (required)")
	cmd.Flags().BoolVar(&opts.Persisted, "persisted", false, "evaluate persisted values instead of current ones")
	cmd.Flags().StringVar(&opts.Now, "now", "", "clock for TODAY and NOW (RFC 3339)")
	_ = cmd.MarkFlagRequired("object")

	return cmd
}

func runEval(opts *EvalOptions, arg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var evalOpts []criteria.EvaluatorOption
	if opts.Now != "" {
		now, err := time.Parse(time.RFC3339, opts.Now)
		if err != nil {
			return formatter.Fail(WrapExitError(ExitCommandError, "invalid --now", err))
		}
		evalOpts = append(evalOpts, criteria.WithClock(func() time.Time { return now }))
	}

	obj, err := LoadObject(opts.Object)
	if err != nil {
		return formatter.Fail(err)
	}

	n, err := opts.resolve(arg)
	if err != nil {
		return formatter.Fail(err)
	}

	match, err := criteria.NewEvaluator(evalOpts...).IsMatch(n, obj, opts.Persisted)
	if err != nil {
		return formatter.Fail(WrapExitError(ExitFailure, "evaluation failed", err))
	}
	formatter.VerboseLog("Evaluated %s against %s", n, opts.Object)

	result := EvalResult{
		Canonical: n.String(),
		Object:    obj.Name(),
		Persisted: opts.Persisted,
		Match:     match,
	}
	return formatter.Success(result, func(w io.Writer) {
		if match {
			fmt.Fprintln(w, "✓ match")
			return
		}
		fmt.Fprintln(w, "✗ no match")
	})
}

// LoadObject reads a business object from a YAML file. The object name
// defaults to the file name.
func LoadObject(path string) (*bo.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read object file", err)
	}

	var spec bo.Spec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to parse object file", err)
	}
	if spec.Name == "" {
		spec.Name = path
	}

	obj, err := bo.FromSpec(spec)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid object", err)
	}
	return obj, nil
}
