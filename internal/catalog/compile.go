package catalog

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/criteria/internal/criteria"
	"github.com/roach88/criteria/internal/parser"
	"github.com/roach88/criteria/internal/predicate"
)

// Entry is one named criteria definition.
type Entry struct {
	Name        string `json:"name"`
	Source      string `json:"source,omitempty"`
	Filter      string `json:"filter,omitempty"`
	Predicate   string `json:"predicate,omitempty"`
	Param       string `json:"param,omitempty"`
	Description string `json:"description,omitempty"`

	// Criteria is the parsed tree.
	Criteria *criteria.Node `json:"criteria"`

	Pos token.Pos `json:"-"`
}

// Compile parses a CUE value into an Entry.
//
// The value is the entry struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`criteria: adults: { filter: "Age >= 18" }`)
//	entry, err := Compile(v.LookupPath(cue.ParsePath("criteria.adults")))
//
// Exactly one of filter (criteria text) and predicate (a Go boolean
// expression over param) must be set.
func Compile(v cue.Value) (*Entry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entry := &Entry{Pos: v.Pos()}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		entry.Name = labels[len(labels)-1].String()
	}

	var err error
	if entry.Source, err = optionalString(v, "source"); err != nil {
		return nil, err
	}
	if entry.Description, err = optionalString(v, "description"); err != nil {
		return nil, err
	}
	if entry.Param, err = optionalString(v, "param"); err != nil {
		return nil, err
	}
	if entry.Filter, err = optionalString(v, "filter"); err != nil {
		return nil, err
	}
	if entry.Predicate, err = optionalString(v, "predicate"); err != nil {
		return nil, err
	}

	switch {
	case entry.Filter != "" && entry.Predicate != "":
		return nil, &CompileError{
			Field:   "filter",
			Message: "filter and predicate are mutually exclusive",
			Pos:     v.Pos(),
		}
	case entry.Filter != "":
		entry.Criteria, err = parser.Parse(entry.Filter)
		if err != nil {
			return nil, &CompileError{
				Field:   "filter",
				Message: err.Error(),
				Pos:     v.LookupPath(cue.ParsePath("filter")).Pos(),
			}
		}
	case entry.Predicate != "":
		var opts []predicate.Option
		if entry.Param != "" {
			opts = append(opts, predicate.WithParam(entry.Param))
		}
		entry.Criteria, err = predicate.BuildString(entry.Predicate, opts...)
		if err != nil {
			return nil, &CompileError{
				Field:   "predicate",
				Message: err.Error(),
				Pos:     v.LookupPath(cue.ParsePath("predicate")).Pos(),
			}
		}
	default:
		return nil, &CompileError{
			Field:   "filter",
			Message: "filter or predicate is required",
			Pos:     v.Pos(),
		}
	}

	return entry, nil
}

// optionalString reads an optional string field of v.
func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s must be a string", field),
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

// CompileError is a catalog entry error with its CUE position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
