package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: adults
description: "numeric bound over parsed text"
criteria: "Age >= 18"
objects:
  - id: alice
    current: { Age: 40 }
  - id: tom
    current: { Age: 12 }
assertions:
  - type: matches
    ids: [alice]
`

const failingScenario = `name: wrong
description: "expects the minor to match"
criteria: "Age >= 18"
objects:
  - id: tom
    current: { Age: 12 }
assertions:
  - type: matches
    ids: [tom]
`

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestTestCommandNonExistentPath(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := execute(t, NewTestCommand(textOpts()), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyDirJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand(jsonOpts()), t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
	assert.Empty(t, resp.Data.Scenarios)
}

func TestTestCommandPassing(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"adults.yaml": passingScenario})

	out, err := execute(t, NewTestCommand(textOpts()), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ adults")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFailing(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"adults.yaml": passingScenario,
		"wrong.yaml":  failingScenario,
	})

	out, err := execute(t, NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "Assertion failed: matches")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandFailingJSON(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"wrong.yaml": failingScenario})

	out, err := execute(t, NewTestCommand(jsonOpts()), dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestTestCommandLoadError(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"typo.yaml": "name: x\nassertion: []\n"})

	out, err := execute(t, NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ typo.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandFilter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"adults.yaml": passingScenario,
		"wrong.yaml":  failingScenario,
	})

	out, err := execute(t, NewTestCommand(textOpts()), "--filter", "adu*", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")
	assert.NotContains(t, out, "wrong")

	_, err = execute(t, NewTestCommand(textOpts()), "--filter", "[", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandGolden(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"adults.yaml": passingScenario})
	golden := filepath.Join(t.TempDir(), "golden")

	// Missing golden file fails the scenario.
	out, err := execute(t, NewTestCommand(textOpts()), "--golden", golden, dir)
	require.Error(t, err)
	assert.Contains(t, out, "golden comparison failed")

	out, err = execute(t, NewTestCommand(textOpts()), "--golden", golden, "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ adults (golden updated)")

	data, err := os.ReadFile(filepath.Join(golden, "adults.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"canonical": "Age >= '18'"`)

	out, err = execute(t, NewTestCommand(textOpts()), "--golden", golden, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ adults")

	// A changed result no longer matches.
	changed := bytes.Replace(data, []byte(`"alice"`), []byte(`"tom"`), 1)
	require.NoError(t, os.WriteFile(filepath.Join(golden, "adults.golden"), changed, 0644))
	out, err = execute(t, NewTestCommand(textOpts()), "--golden", golden, dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommandUpdateRequiresGolden(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()), "--update", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")
	golden := filepath.Join("..", "harness", "testdata", "golden")

	out, err := execute(t, NewTestCommand(textOpts()), filepath.Join(scenarios, "adult_smiths.yaml"), filepath.Join(scenarios, "malformed_filter.yaml"), "--golden", golden)
	require.NoError(t, err, out)
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
}
