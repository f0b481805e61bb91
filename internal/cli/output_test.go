package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/criteria/internal/parser"
)

func decodeResponse(t *testing.T, buf *bytes.Buffer) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	return resp
}

func TestOutputFormatter_Success(t *testing.T) {
	printCustom := func(w io.Writer) { fmt.Fprintln(w, "custom") }

	tests := []struct {
		name   string
		format string
		text   func(io.Writer)
		want   string
	}{
		{"text default", "text", nil, "{a = ? []}\n"},
		{"text callback", "text", printCustom, "custom\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: tt.format, Writer: buf}
			require.NoError(t, f.Success(struct {
				SQL    string
				Params []any
			}{"a = ?", nil}, tt.text))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(SQLResult{Dialect: "sqlite", SQL: "`Age` >= ?", Params: []any{"18"}}, nil))
	assert.Contains(t, buf.String(), "`Age` >= ?", "operators are not HTML-escaped")

	resp := decodeResponse(t, buf)
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"dialect": "sqlite", "sql": "`Age` >= ?", "params": []any{"18"}}, resp.Data)
}

func TestOutputFormatter_Error(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}

		require.NoError(t, f.Error("E102", "criteria did not parse", map[string]int{"line": 4}))

		resp := decodeResponse(t, buf)
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "E102", resp.Error.Code)
		assert.Equal(t, "criteria did not parse", resp.Error.Message)
		assert.Equal(t, map[string]any{"line": float64(4)}, resp.Error.Details)
	})

	t.Run("text hides details", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}

		require.NoError(t, f.Error("E102", "criteria did not parse", "line 4"))
		assert.Equal(t, "Error [E102]: criteria did not parse\n", buf.String())
	})

	t.Run("text verbose shows details", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

		require.NoError(t, f.Error("E102", "criteria did not parse", "line 4"))
		assert.Contains(t, buf.String(), "Details: line 4")
	})
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	_, parseErr := parser.Parse("Age >=")
	require.Error(t, parseErr)

	err := f.Fail(WrapExitError(ExitFailure, "invalid criteria", parseErr))
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, buf)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "MALFORMED_CRITERIA", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "invalid criteria")
}

func TestOutputFormatter_FailWrapsPlainErrors(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	err := f.Fail(errors.New("disk on fire"))

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitFailure, exitErr.Code)
	assert.Equal(t, "Error [E001]: disk on fire\n", buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		errOut  bool
	}{
		{"quiet", false, false},
		{"verbose to writer", true, false},
		{"verbose to err writer", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			f := &OutputFormatter{Format: "text", Writer: out, Verbose: tt.verbose}
			if tt.errOut {
				f.ErrWriter = errOut
			}

			f.VerboseLog("Validating criteria: %s", "adults")

			switch {
			case !tt.verbose:
				assert.Empty(t, out.String())
			case tt.errOut:
				assert.Empty(t, out.String())
				assert.Equal(t, "Validating criteria: adults\n", errOut.String())
			default:
				assert.Equal(t, "Validating criteria: adults\n", out.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "missing")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("run: %w", NewExitError(ExitCommandError, "missing"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "bad", NewExitError(ExitFailure, "bad").Error())

	cause := errors.New("cause")
	err := WrapExitError(ExitFailure, "bad", cause)
	assert.Equal(t, "bad: cause", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestErrorCode(t *testing.T) {
	_, parseErr := parser.Parse("Age >=")
	assert.Equal(t, "MALFORMED_CRITERIA", ErrorCode(parseErr))
	assert.Equal(t, ErrCodeGeneric, ErrorCode(errors.New("plain")))
}
