package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/criteria/internal/bo"
	"github.com/roach88/criteria/internal/criteria"
	"github.com/roach88/criteria/internal/parser"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestScenarios(t *testing.T) {
	files, err := FindScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"adult_smiths", "malformed_filter"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_ResultFields(t *testing.T) {
	result, err := Run(loadScenario(t, "null_codes"))
	require.NoError(t, err)

	assert.Equal(t, "(Code IS NULL) OR (Code IN ('A1', 'B2'))", result.Canonical)
	assert.Equal(t, "(Code IS NULL) OR (Code IN (?, ?))", result.SQL)
	assert.Equal(t, []any{"A1", "B2"}, result.Params)
	assert.Equal(t, []string{"a", "b"}, result.Matches)
	assert.Equal(t, []string{"a", "b"}, result.StoreMatches)
	assert.Empty(t, result.EvalErrors)
}

func TestRun_FailingAssertions(t *testing.T) {
	scenario := loadScenario(t, "adult_smiths")
	scenario.Assertions = []Assertion{
		{Type: AssertCanonical, Expect: "Surname = 'Smith'"},
		{Type: AssertSQL, Expect: "(`people`.`Surname` LIKE ?) AND (`people`.`Age` >= ?)", Params: []any{"Smith%", 21}},
		{Type: AssertMatches, IDs: []string{"alice"}},
		{Type: AssertError, Code: "MALFORMED_CRITERIA"},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "Assertion failed: canonical")
	assert.Contains(t, result.Errors[1], "params [Smith% 21]")
	assert.Contains(t, result.Errors[2], "Expected: [alice]")
	assert.Contains(t, result.Errors[3], "Actual: no error")
}

func TestRun_BuildErrorFailsOtherAssertions(t *testing.T) {
	scenario := loadScenario(t, "malformed_filter")
	scenario.Assertions = append(scenario.Assertions, Assertion{Type: AssertMatches, IDs: []string{"alice"}})

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "criteria to build")
}

func TestRun_StoreDisagreement(t *testing.T) {
	// NULL <> 'x' is unknown in SQL but true for the evaluator.
	scenario := &Scenario{
		Name:        "null_not_equals",
		Description: "three-valued logic differs",
		Criteria:    "Code <> 'x'",
		Store:       true,
		Objects: []Fixture{
			{ID: "set", Spec: bo.Spec{Current: map[string]any{"Code": "y"}}},
			{ID: "null", Spec: bo.Spec{Current: map[string]any{"Code": nil}}},
		},
		Assertions: []Assertion{{Type: AssertMatches, IDs: []string{"set", "null"}}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, []string{"set"}, result.StoreMatches)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "store selected [set] but the evaluator matched [set null]")
}

func TestRun_FixedClock(t *testing.T) {
	scenario := &Scenario{
		Name:        "overdue",
		Description: "TODAY resolves against the scenario clock",
		Criteria:    "Due < TODAY",
		Now:         "2024-03-15T09:30:00Z",
		Objects: []Fixture{
			{ID: "late", Spec: bo.Spec{Current: map[string]any{"Due": time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}}},
			{ID: "later", Spec: bo.Spec{Current: map[string]any{"Due": time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}}},
		},
		Assertions: []Assertion{{Type: AssertMatches, IDs: []string{"late"}}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	scenario.Now = "2024-05-01T00:00:00Z"
	result, err = Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, []string{"late", "later"}, result.Matches)
}

func TestRun_InvalidNow(t *testing.T) {
	scenario := &Scenario{
		Name:       "bad_clock",
		Criteria:   "a = 1",
		Now:        "yesterday",
		Assertions: []Assertion{{Type: AssertMatches}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid now")
}

func TestErrorCode(t *testing.T) {
	_, err := parser.Parse("Age >=")
	assert.Equal(t, string(criteria.ErrCodeMalformedCriteria), errorCode(err))
	assert.Equal(t, CodeGeneric, errorCode(assert.AnError))
	assert.Equal(t, CodeUnknownProperty, errorCode(fmt.Errorf("wrapped: %w", &bo.UnknownPropertyError{Object: "o", Property: "Ghost"})))
}

func TestLoadScenario_Errors(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "invalid", "unknown_field.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")

	_, err = LoadScenario(filepath.Join("testdata", "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\ncriteria: a = 1\nassertions: [{type: matches}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\ncriteria: a = 1\nassertions: [{type: matches}]\n",
			want: "description is required",
		},
		{
			name: "no criteria",
			yaml: "name: n\ndescription: d\nassertions: [{type: matches}]\n",
			want: "criteria or predicate is required",
		},
		{
			name: "both criteria and predicate",
			yaml: "name: n\ndescription: d\ncriteria: a = 1\npredicate: a == 1\nassertions: [{type: matches}]\n",
			want: "mutually exclusive",
		},
		{
			name: "param without predicate",
			yaml: "name: n\ndescription: d\ncriteria: a = 1\nparam: p\nassertions: [{type: matches}]\n",
			want: "param requires predicate",
		},
		{
			name: "unknown dialect",
			yaml: "name: n\ndescription: d\ncriteria: a = 1\ndialect: oracle\nassertions: [{type: matches}]\n",
			want: "unknown dialect",
		},
		{
			name: "bad now",
			yaml: "name: n\ndescription: d\ncriteria: a = 1\nnow: tomorrow\nassertions: [{type: matches}]\n",
			want: "now:",
		},
		{
			name: "no assertions",
			yaml: "name: n\ndescription: d\ncriteria: a = 1\n",
			want: "assertions list is required",
		},
		{
			name: "object without id",
			yaml: "name: n\ndescription: d\ncriteria: a = 1\nobjects: [{current: {a: 1}}]\nassertions: [{type: matches}]\n",
			want: "objects[0]: id is required",
		},
		{
			name: "duplicate id",
			yaml: "name: n\ndescription: d\ncriteria: a = 1\nobjects: [{id: x}, {id: x}]\nassertions: [{type: matches}]\n",
			want: `duplicate id "x"`,
		},
		{
			name: "unknown id in matches",
			yaml: "name: n\ndescription: d\ncriteria: a = 1\nassertions: [{type: matches, ids: [ghost]}]\n",
			want: `unknown object id "ghost"`,
		},
		{
			name: "store matches without store",
			yaml: "name: n\ndescription: d\ncriteria: a = 1\nassertions: [{type: store_matches}]\n",
			want: "requires store: true",
		},
		{
			name: "canonical without expect",
			yaml: "name: n\ndescription: d\ncriteria: a = 1\nassertions: [{type: canonical}]\n",
			want: "expect is required for canonical",
		},
		{
			name: "error without code",
			yaml: "name: n\ndescription: d\ncriteria: a = 1\nassertions: [{type: error}]\n",
			want: "code is required for error",
		},
		{
			name: "unknown assertion type",
			yaml: "name: n\ndescription: d\ncriteria: a = 1\nassertions: [{type: trace_order}]\n",
			want: `unknown assertion type "trace_order"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", filepath.Join("nested", "c.yaml")} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	files, err := FindScenarios(dir, filepath.Join(dir, "b.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "nested", "c.yaml"),
	}, files)

	_, err = FindScenarios(filepath.Join(dir, "missing"))
	var notFound *ScenarioNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestMarshalSnapshot_EvalErrors(t *testing.T) {
	scenario := loadScenario(t, "eval_errors")
	result, err := Run(scenario)
	require.NoError(t, err)

	data, err := MarshalSnapshot(NewSnapshot(scenario, result))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tagged": "NOT_COMPARABLE"`)
	assert.Contains(t, string(data), `"untagged": "UNKNOWN_PROPERTY"`)
	assert.Contains(t, string(data), `"canonical": "Tags = 'x'"`)
}
