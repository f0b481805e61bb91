package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs cmd with args and returns its stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func textOpts() *RootOptions { return &RootOptions{Format: "text", Dialect: "sqlite"} }
func jsonOpts() *RootOptions { return &RootOptions{Format: "json", Dialect: "sqlite"} }

func TestParseCommand(t *testing.T) {
	out, err := execute(t, NewParseCommand(textOpts()), "Surname LIKE 'Smith%' and Age >= 18")
	require.NoError(t, err)
	assert.Equal(t, "(Surname LIKE 'Smith%') AND (Age >= '18')\n", out)
}

func TestParseCommand_Tree(t *testing.T) {
	out, err := execute(t, NewParseCommand(textOpts()), "--tree", "Code IS NULL")
	require.NoError(t, err)
	assert.Contains(t, out, "Code IS NULL\n")
	assert.Contains(t, out, `"op": "IS"`)
}

func TestParseCommand_JSON(t *testing.T) {
	out, err := execute(t, NewParseCommand(jsonOpts()), "Age >= 18")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Canonical string          `json:"canonical"`
			Hash      string          `json:"hash"`
			Tree      json.RawMessage `json:"tree"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Age >= '18'", resp.Data.Canonical)
	assert.NotEmpty(t, resp.Data.Hash)
	assert.JSONEq(t, `{"field":{"name":"Age"},"op":">=","value":"18"}`, string(resp.Data.Tree))
}

func TestParseCommand_Malformed(t *testing.T) {
	out, err := execute(t, NewParseCommand(jsonOpts()), "Age >=")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "MALFORMED_CRITERIA", resp.Error.Code)
}

func TestParseCommand_GoExpression(t *testing.T) {
	out, err := execute(t, NewParseCommand(textOpts()), "--go", "--param", "p", "p.Age >= 18")
	require.NoError(t, err)
	assert.Equal(t, "Age >= '18'\n", out)
}

func TestParseCommand_ParamWithoutGo(t *testing.T) {
	_, err := execute(t, NewParseCommand(textOpts()), "--param", "p", "Age >= 18")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestParseCommand_Catalog(t *testing.T) {
	dir := writeCatalog(t, validCatalog)

	out, err := execute(t, NewParseCommand(textOpts()), "--catalog", dir, "open_orders")
	require.NoError(t, err)
	assert.Equal(t, "Status <> 'closed'\n", out)

	_, err = execute(t, NewParseCommand(textOpts()), "--catalog", dir, "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `criteria "missing" not found`)
}

func TestBuildCommand(t *testing.T) {
	out, err := execute(t, NewBuildCommand(textOpts()),
		"--param", "o", "--const", "limit=100", "o.Total > limit && o.Status != \"closed\"")
	require.NoError(t, err)
	assert.Equal(t, "(Total > '100') AND (Status <> 'closed')\n", out)
}

func TestBuildCommand_Unsupported(t *testing.T) {
	out, err := execute(t, NewBuildCommand(textOpts()), "--param", "o", "o.Total + 1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [UNSUPPORTED_EXPRESSION]")
}

func TestSQLCommand(t *testing.T) {
	out, err := execute(t, NewSQLCommand(textOpts()), "--table", "people", "Surname = 'Smith' AND Age > 30")
	require.NoError(t, err)
	assert.Equal(t, "(`people`.`Surname` = ?) AND (`people`.`Age` > ?)\n  [1] Smith\n  [2] 30\n", out)
}

func TestSQLCommand_Postgres(t *testing.T) {
	opts := jsonOpts()
	opts.Dialect = "postgres"
	out, err := execute(t, NewSQLCommand(opts), "--table", "people", "Surname = 'Smith' AND Age > 30")
	require.NoError(t, err)

	var resp struct {
		Data SQLResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "postgres", resp.Data.Dialect)
	assert.Equal(t, `("people"."Surname" = $1) AND ("people"."Age" > $2)`, resp.Data.SQL)
	assert.Equal(t, []any{"Smith", "30"}, resp.Data.Params)
}

func TestSQLCommand_Select(t *testing.T) {
	out, err := execute(t, NewSQLCommand(textOpts()), "--select", "--table", "people", "Code IS NULL")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `people` WHERE `Code` IS NULL ORDER BY rowid ASC\n", out)

	_, err = execute(t, NewSQLCommand(textOpts()), "--select", "Code IS NULL")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSQLCommand_EmptyParamsJSON(t *testing.T) {
	out, err := execute(t, NewSQLCommand(jsonOpts()), "Code IS NULL")
	require.NoError(t, err)
	assert.Contains(t, out, `"params": []`)
}

func writeObject(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

const aliceYAML = `name: Person
current: { Surname: Smith, Age: 40 }
persisted: { Age: 17 }
children:
  Address:
    current: { City: Leeds }
`

func TestEvalCommand(t *testing.T) {
	path := writeObject(t, aliceYAML)

	out, err := execute(t, NewEvalCommand(textOpts()), "--object", path, "Age >= 18 AND Address.City = 'Leeds'")
	require.NoError(t, err)
	assert.Equal(t, "✓ match\n", out)

	out, err = execute(t, NewEvalCommand(textOpts()), "--object", path, "--persisted", "Age >= 18")
	require.NoError(t, err)
	assert.Equal(t, "✗ no match\n", out)
}

func TestEvalCommand_JSON(t *testing.T) {
	path := writeObject(t, aliceYAML)

	out, err := execute(t, NewEvalCommand(jsonOpts()), "--object", path, "--go", "--param", "p", `strings.HasPrefix(p.Surname, "Sm")`)
	require.NoError(t, err)

	var resp struct {
		Data EvalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, EvalResult{Canonical: "Surname LIKE 'Sm%'", Object: "Person", Match: true}, resp.Data)
}

func TestEvalCommand_Errors(t *testing.T) {
	path := writeObject(t, aliceYAML)

	t.Run("unknown property", func(t *testing.T) {
		_, err := execute(t, NewEvalCommand(textOpts()), "--object", path, "Ghost = 1")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, err.Error(), "evaluation failed")
	})

	t.Run("missing object file", func(t *testing.T) {
		_, err := execute(t, NewEvalCommand(textOpts()), "--object", filepath.Join(t.TempDir(), "none.yaml"), "Age > 1")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("unknown object field", func(t *testing.T) {
		bad := writeObject(t, "name: P\ncurent: { Age: 1 }\n")
		_, err := execute(t, NewEvalCommand(textOpts()), "--object", bad, "Age > 1")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "failed to parse object file")
	})

	t.Run("invalid now", func(t *testing.T) {
		_, err := execute(t, NewEvalCommand(textOpts()), "--object", path, "--now", "noon", "Age > 1")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("object flag required", func(t *testing.T) {
		_, err := execute(t, NewEvalCommand(textOpts()), "Age > 1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"object" not set`)
	})
}

func TestLoadObject_DefaultsNameToPath(t *testing.T) {
	path := writeObject(t, "current: { Age: 3 }\n")
	obj, err := LoadObject(path)
	require.NoError(t, err)
	assert.Equal(t, path, obj.Name())
}
