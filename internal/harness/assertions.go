package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type      string // Assertion type for categorization
	Expected  string // Human-readable expected outcome
	Actual    string // Human-readable actual outcome
	Canonical string // Canonical criteria for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Canonical != "" {
		fmt.Fprintf(&buf, "  Criteria: %s\n", e.Canonical)
	}

	return buf.String()
}

func assertCanonical(result *Result, a Assertion) error {
	if result.BuildError != "" {
		return buildFailed(a.Type, result)
	}
	if result.Canonical != a.Expect {
		return &AssertionError{
			Type:     a.Type,
			Expected: a.Expect,
			Actual:   result.Canonical,
		}
	}
	return nil
}

func assertSQL(result *Result, a Assertion) error {
	if result.BuildError != "" {
		return buildFailed(a.Type, result)
	}
	if result.SQL != a.Expect {
		return &AssertionError{
			Type:      a.Type,
			Expected:  a.Expect,
			Actual:    result.SQL,
			Canonical: result.Canonical,
		}
	}
	if a.Params != nil && !slices.Equal(paramTexts(a.Params), paramTexts(result.Params)) {
		return &AssertionError{
			Type:      a.Type,
			Expected:  fmt.Sprintf("params %v", a.Params),
			Actual:    fmt.Sprintf("params %v", result.Params),
			Canonical: result.Canonical,
		}
	}
	return nil
}

// paramTexts formats bound values so YAML scalars compare with the
// builder's typed literals (18 and int64(18) both give "18").
func paramTexts(params []any) []string {
	texts := make([]string, len(params))
	for i, p := range params {
		if p == nil {
			texts[i] = "<nil>"
			continue
		}
		texts[i] = fmt.Sprint(p)
	}
	return texts
}

func assertIDs(result *Result, a Assertion, actual []string) error {
	if result.BuildError != "" {
		return buildFailed(a.Type, result)
	}
	if !slices.Equal(actual, a.IDs) {
		return &AssertionError{
			Type:      a.Type,
			Expected:  fmt.Sprintf("%v", a.IDs),
			Actual:    fmt.Sprintf("%v", actual),
			Canonical: result.Canonical,
		}
	}
	return nil
}

func assertError(result *Result, a Assertion) error {
	if a.Object == "" {
		if result.BuildError != a.Code {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("build error %s", a.Code),
				Actual:   describeCode(result.BuildError),
			}
		}
		return nil
	}

	if got := result.EvalErrors[a.Object]; got != a.Code {
		return &AssertionError{
			Type:      a.Type,
			Expected:  fmt.Sprintf("%s fails with %s", a.Object, a.Code),
			Actual:    describeCode(got),
			Canonical: result.Canonical,
		}
	}
	return nil
}

func buildFailed(typ string, result *Result) error {
	return &AssertionError{
		Type:     typ,
		Expected: "criteria to build",
		Actual:   describeCode(result.BuildError),
	}
}

func describeCode(code string) string {
	if code == "" {
		return "no error"
	}
	return "error " + code
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertCanonical:
			err = assertCanonical(result, assertion)
		case AssertSQL:
			err = assertSQL(result, assertion)
		case AssertMatches:
			err = assertIDs(result, assertion, result.Matches)
		case AssertPersistedMatches:
			err = assertIDs(result, assertion, result.PersistedMatches)
		case AssertStoreMatches:
			err = assertIDs(result, assertion, result.StoreMatches)
		case AssertError:
			err = assertError(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
