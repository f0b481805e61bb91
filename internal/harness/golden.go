package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/criteria/internal/criteria"
)

// Snapshot captures everything a scenario produced, for golden comparison.
type Snapshot struct {
	Scenario         string            `json:"scenario"`
	Canonical        string            `json:"canonical,omitempty"`
	Tree             *criteria.Node    `json:"tree,omitempty"`
	Dialect          string            `json:"dialect"`
	SQL              string            `json:"sql,omitempty"`
	Params           []any             `json:"params,omitempty"`
	Matches          []string          `json:"matches"`
	PersistedMatches []string          `json:"persisted_matches"`
	StoreMatches     []string          `json:"store_matches,omitempty"`
	BuildError       string            `json:"build_error,omitempty"`
	EvalErrors       map[string]string `json:"eval_errors,omitempty"`
}

// NewSnapshot builds the snapshot of a scenario's result.
func NewSnapshot(scenario *Scenario, result *Result) Snapshot {
	return Snapshot{
		Scenario:         scenario.Name,
		Canonical:        result.Canonical,
		Tree:             result.Tree,
		Dialect:          effectiveDialect(scenario),
		SQL:              result.SQL,
		Params:           result.Params,
		Matches:          result.Matches,
		PersistedMatches: result.PersistedMatches,
		StoreMatches:     result.StoreMatches,
		BuildError:       result.BuildError,
		EvalErrors:       result.EvalErrors,
	}
}

// MarshalSnapshot renders s as indented JSON with a trailing newline.
// HTML characters in SQL and criteria text are left unescaped.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(NewSnapshot(scenario, result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return nil
}
