package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled during catalog loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Catalog is the set of named criteria loaded from CUE files.
type Catalog struct {
	// Entries are sorted by name.
	Entries   []Entry
	FileCount int
}

// Lookup returns the entry called name.
func (c *Catalog) Lookup(name string) (*Entry, bool) {
	i, found := slices.BinarySearchFunc(c.Entries, name, func(e Entry, name string) int {
		return strings.Compare(e.Name, name)
	})
	if !found {
		return nil, false
	}
	return &c.Entries[i], true
}

// Names returns the entry names in order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		names[i] = e.Name
	}
	return names
}

// LoadError represents an error that occurred during catalog loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes shared with the CLI.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeMissingFilter   = "E101" // Neither filter nor predicate
	ErrCodeInvalidFilter   = "E102" // Filter text does not parse
	ErrCodeInvalidField    = "E103" // Field has the wrong CUE type
	ErrCodeInvalidPred     = "E104" // Predicate does not lower
	ErrCodeNotCanonical    = "E105" // Canonical text does not parse back
	ErrCodeNoEntries       = "E106" // No criteria defined
	ErrCodeInvalidCriteria = "E107" // Tree fails structural validation
)

// Load loads and compiles the CUE catalog in dir. Entries live under the
// top-level "criteria" struct:
//
//	package catalog
//
//	criteria: adults: {
//		source:      "people"
//		filter:      "Age >= 18"
//		description: "people old enough to vote"
//	}
//
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func Load(dir string, mode LoadMode) (*Catalog, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	cat, errs := CompileValue(value, mode)
	cat.FileCount = len(cueFiles)
	return cat, errs
}

// CompileValue compiles every entry under the "criteria" field of value.
// The returned catalog holds the entries that compiled.
func CompileValue(value cue.Value, mode LoadMode) (*Catalog, []error) {
	cat := &Catalog{}
	var errs []error

	entriesVal := value.LookupPath(cue.ParsePath("criteria"))
	if entriesVal.Exists() {
		iter, iterErr := entriesVal.Fields()
		if iterErr != nil {
			return cat, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating criteria: %v", iterErr)}}
		}
		for iter.Next() {
			entry, compileErr := Compile(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "criteria."+iter.Selector().String()))
				if mode == LoadModeFailFast {
					return cat, errs
				}
				continue
			}
			cat.Entries = append(cat.Entries, *entry)
		}
	}

	if len(cat.Entries) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoEntries, Message: "no criteria found in catalog"})
	}

	slices.SortFunc(cat.Entries, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return cat, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compile error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field, compileErr.Message),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// MapFieldToErrorCode maps a compile error field to an error code.
func MapFieldToErrorCode(field, message string) string {
	switch field {
	case "filter":
		if strings.HasSuffix(message, "is required") {
			return ErrCodeMissingFilter
		}
		if strings.HasSuffix(message, "must be a string") || strings.HasSuffix(message, "mutually exclusive") {
			return ErrCodeInvalidField
		}
		return ErrCodeInvalidFilter
	case "predicate":
		if strings.HasSuffix(message, "must be a string") {
			return ErrCodeInvalidField
		}
		return ErrCodeInvalidPred
	case "source", "description", "param":
		return ErrCodeInvalidField
	case "cue":
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}
