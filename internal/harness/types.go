package harness

import "github.com/roach88/criteria/internal/criteria"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion held and the store agreed with the evaluator.
	Pass bool `json:"pass"`

	Canonical string         `json:"canonical,omitempty"`
	Tree      *criteria.Node `json:"tree,omitempty"`
	SQL       string         `json:"sql,omitempty"`
	Params    []any          `json:"params,omitempty"`

	// Matches and PersistedMatches list fixture IDs in scenario order.
	Matches          []string `json:"matches"`
	PersistedMatches []string `json:"persisted_matches"`

	// StoreMatches lists the fixtures SQLite selected (store: true only).
	StoreMatches []string `json:"store_matches,omitempty"`

	// BuildError is the error code when the tree could not be built.
	BuildError string `json:"build_error,omitempty"`

	// EvalErrors maps fixture IDs to evaluation error codes.
	EvalErrors map[string]string `json:"eval_errors,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:             true,
		Matches:          []string{},
		PersistedMatches: []string{},
		EvalErrors:       make(map[string]string),
		Errors:           []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
