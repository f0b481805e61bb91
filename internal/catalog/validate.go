package catalog

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/criteria/internal/criteria"
	"github.com/roach88/criteria/internal/parser"
)

// ValidationError represents a catalog validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled entry. Returns all errors found (does not
// fail-fast):
//   - E107: the tree is structurally valid
//   - E105: the canonical text parses back to an equal tree
func Validate(e *Entry) []ValidationError {
	var errs []ValidationError
	field := "criteria." + e.Name
	line := 0
	if e.Pos.IsValid() {
		line = e.Pos.Line()
	}

	if err := criteria.Validate(e.Criteria); err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, inner := range merr.Errors {
				errs = append(errs, ValidationError{Field: field, Message: inner.Error(), Code: ErrCodeInvalidCriteria, Line: line})
			}
		} else {
			errs = append(errs, ValidationError{Field: field, Message: err.Error(), Code: ErrCodeInvalidCriteria, Line: line})
		}
		return errs
	}

	canonical := e.Criteria.String()
	reparsed, err := parser.Parse(canonical)
	switch {
	case err != nil:
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("canonical form %q does not parse: %v", canonical, err),
			Code:    ErrCodeNotCanonical,
			Line:    line,
		})
	case reparsed.String() != canonical:
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("canonical form %q is not stable (reparsed as %q)", canonical, reparsed.String()),
			Code:    ErrCodeNotCanonical,
			Line:    line,
		})
	}

	return errs
}

// ValidateAll validates every entry of c in order.
func ValidateAll(c *Catalog) []ValidationError {
	var errs []ValidationError
	for i := range c.Entries {
		errs = append(errs, Validate(&c.Entries[i])...)
	}
	return errs
}
