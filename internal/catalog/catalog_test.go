package catalog

import (
	"errors"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/criteria/internal/criteria"
)

func compileString(t *testing.T, src, path string) (*Entry, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("inline.cue"))
	require.NoError(t, v.Err())
	return Compile(v.LookupPath(cue.ParsePath(path)))
}

func TestCompile_Filter(t *testing.T) {
	entry, err := compileString(t, `
		criteria: adults: {
			source:      "people"
			filter:      "Age >= 18"
			description: "people old enough to vote"
		}
	`, "criteria.adults")
	require.NoError(t, err)

	assert.Equal(t, "adults", entry.Name)
	assert.Equal(t, "people", entry.Source)
	assert.Equal(t, "people old enough to vote", entry.Description)
	assert.Equal(t, "Age >= '18'", entry.Criteria.String())
	assert.True(t, entry.Pos.IsValid())
}

func TestCompile_Predicate(t *testing.T) {
	entry, err := compileString(t, `
		criteria: open: {
			param:     "o"
			predicate: "o.Status != \"closed\" && o.Total > 100"
		}
	`, "criteria.open")
	require.NoError(t, err)

	assert.Equal(t, "(Status <> 'closed') AND (Total > '100')", entry.Criteria.String())
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
		code  string
	}{
		{
			name:  "missing filter",
			src:   `criteria: x: { description: "nothing" }`,
			field: "filter",
			code:  ErrCodeMissingFilter,
		},
		{
			name:  "malformed filter",
			src:   `criteria: x: { filter: "Age >=" }`,
			field: "filter",
			code:  ErrCodeInvalidFilter,
		},
		{
			name:  "filter not a string",
			src:   `criteria: x: { filter: 42 }`,
			field: "filter",
			code:  ErrCodeInvalidField,
		},
		{
			name:  "both filter and predicate",
			src:   `criteria: x: { filter: "a = 1", predicate: "a == 1" }`,
			field: "filter",
			code:  ErrCodeInvalidField,
		},
		{
			name:  "unsupported predicate",
			src:   `criteria: x: { param: "p", predicate: "len(p.Name) > 0" }`,
			field: "predicate",
			code:  ErrCodeInvalidPred,
		},
		{
			name:  "source not a string",
			src:   `criteria: x: { source: ["a"], filter: "a = 1" }`,
			field: "source",
			code:  ErrCodeInvalidField,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := compileString(t, tc.src, "criteria.x")
			require.Error(t, err)

			var cerr *CompileError
			require.True(t, errors.As(err, &cerr), "expected *CompileError, got %T", err)
			assert.Equal(t, tc.field, cerr.Field)
			assert.Equal(t, tc.code, MapFieldToErrorCode(cerr.Field, cerr.Message))
			assert.True(t, cerr.Pos.IsValid(), "error should carry a CUE position")
			assert.Contains(t, cerr.Error(), "inline.cue:")
		})
	}
}

func TestLoad_Valid(t *testing.T) {
	cat, errs := Load(filepath.Join("testdata", "valid"), LoadModeCollectAll)
	require.Empty(t, errs)
	require.NotNil(t, cat)

	assert.Equal(t, 2, cat.FileCount)
	assert.Equal(t, []string{"adults", "open_orders", "smiths"}, cat.Names())

	smiths, ok := cat.Lookup("smiths")
	require.True(t, ok)
	assert.Equal(t, "(Surname LIKE 'Smith%') AND (Code IS NOT NULL)", smiths.Criteria.String())

	_, ok = cat.Lookup("missing")
	assert.False(t, ok)

	assert.Empty(t, ValidateAll(cat))
}

func TestLoad_CollectAll(t *testing.T) {
	cat, errs := Load(filepath.Join("testdata", "invalid"), LoadModeCollectAll)
	require.NotNil(t, cat)
	require.Len(t, errs, 2)

	assert.Equal(t, []string{"fine"}, cat.Names())

	var codes []string
	for _, err := range errs {
		var lerr *LoadError
		require.True(t, errors.As(err, &lerr))
		assert.True(t, lerr.Pos.IsValid())
		codes = append(codes, lerr.Code)
	}
	assert.ElementsMatch(t, []string{ErrCodeInvalidFilter, ErrCodeMissingFilter}, codes)
}

func TestLoad_FailFast(t *testing.T) {
	_, errs := Load(filepath.Join("testdata", "invalid"), LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestLoad_DirectoryErrors(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		code string
	}{
		{"missing directory", filepath.Join("testdata", "nope"), ErrCodeNotFound},
		{"not a directory", filepath.Join("testdata", "valid", "people.cue"), ErrCodeNotFound},
		{"no cue files", t.TempDir(), ErrCodeNoFiles},
		{"no entries", filepath.Join("testdata", "empty"), ErrCodeNoEntries},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, errs := Load(tc.dir, LoadModeFailFast)
			require.Len(t, errs, 1)

			var lerr *LoadError
			require.True(t, errors.As(errs[0], &lerr))
			assert.Equal(t, tc.code, lerr.Code)
		})
	}
}

func TestValidate_StructuralProblems(t *testing.T) {
	e := &Entry{
		Name:     "bad",
		Criteria: criteria.And(criteria.Leaf("", criteria.Equals, 1), criteria.Leaf("a", criteria.ComparisonOp(99), 1)),
	}

	errs := Validate(e)
	require.Len(t, errs, 2)
	for _, verr := range errs {
		assert.Equal(t, ErrCodeInvalidCriteria, verr.Code)
		assert.Equal(t, "criteria.bad", verr.Field)
	}
}

func TestValidate_Canonical(t *testing.T) {
	e := &Entry{Name: "ok", Criteria: criteria.Leaf("Name", criteria.Equals, "it's")}
	assert.Empty(t, Validate(e))
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "[E105] line 3: criteria.x: boom", ValidationError{Field: "criteria.x", Message: "boom", Code: "E105", Line: 3}.Error())
	assert.Equal(t, "[E105] criteria.x: boom", ValidationError{Field: "criteria.x", Message: "boom", Code: "E105"}.Error())
}
