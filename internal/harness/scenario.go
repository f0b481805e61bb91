package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/criteria/internal/bo"
	"github.com/roach88/criteria/internal/querysql"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Criteria is the filter text. Exactly one of Criteria and Predicate
	// must be set.
	Criteria string `yaml:"criteria,omitempty"`

	// Predicate is a Go boolean expression lowered by the predicate
	// builder; Param names its parameter.
	Predicate string `yaml:"predicate,omitempty"`
	Param     string `yaml:"param,omitempty"`

	// Dialect selects the SQL projection (default "sqlite").
	Dialect string `yaml:"dialect,omitempty"`

	// Table qualifies projected columns and names the store table.
	Table string `yaml:"table,omitempty"`

	// Now fixes the clock for the TODAY and NOW sentinels (RFC 3339).
	Now string `yaml:"now,omitempty"`

	// Objects are the fixtures the filter is evaluated against.
	Objects []Fixture `yaml:"objects,omitempty"`

	// Store inserts the fixtures into SQLite and cross-checks the projected
	// filter against the evaluator.
	Store bool `yaml:"store,omitempty"`

	// Assertions validate the outcome.
	Assertions []Assertion `yaml:"assertions"`
}

// Fixture is one business object of a scenario.
type Fixture struct {
	// ID identifies the fixture in match lists.
	ID string `yaml:"id"`

	bo.Spec `yaml:",inline"`
}

// Assertion validates one outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "canonical": Expect is the canonical text
	// - "sql": Expect is the projected SQL, Params the bound values
	// - "matches", "persisted_matches", "store_matches": IDs match
	// - "error": building fails with Code (or evaluating Object does)
	Type string `yaml:"type"`

	Expect string `yaml:"expect,omitempty"`
	Params []any  `yaml:"params,omitempty"`

	IDs []string `yaml:"ids,omitempty"`

	Code   string `yaml:"code,omitempty"`
	Object string `yaml:"object,omitempty"`
}

// Assertion type constants.
const (
	AssertCanonical        = "canonical"
	AssertSQL              = "sql"
	AssertMatches          = "matches"
	AssertPersistedMatches = "persisted_matches"
	AssertStoreMatches     = "store_matches"
	AssertError            = "error"
)

// DefaultDialect is used when a scenario names none.
const DefaultDialect = "sqlite"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Criteria == "" && s.Predicate == "":
		return fmt.Errorf("criteria or predicate is required")
	case s.Criteria != "" && s.Predicate != "":
		return fmt.Errorf("criteria and predicate are mutually exclusive")
	case s.Param != "" && s.Predicate == "":
		return fmt.Errorf("param requires predicate")
	}

	if s.Dialect != "" {
		if _, err := querysql.LookupDialect(s.Dialect); err != nil {
			return err
		}
	}

	if s.Now != "" {
		if _, err := time.Parse(time.RFC3339, s.Now); err != nil {
			return fmt.Errorf("now: %w", err)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	ids := make(map[string]bool, len(s.Objects))
	for i, obj := range s.Objects {
		if obj.ID == "" {
			return fmt.Errorf("objects[%d]: id is required", i)
		}
		if ids[obj.ID] {
			return fmt.Errorf("objects[%d]: duplicate id %q", i, obj.ID)
		}
		ids[obj.ID] = true
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, s, ids); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, s *Scenario, ids map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCanonical, AssertSQL:
		if a.Expect == "" {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	case AssertMatches, AssertPersistedMatches, AssertStoreMatches:
		if a.Type == AssertStoreMatches && !s.Store {
			return fmt.Errorf("assertions[%d]: store_matches requires store: true", index)
		}
		for _, id := range a.IDs {
			if !ids[id] {
				return fmt.Errorf("assertions[%d]: unknown object id %q", index, id)
			}
		}
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
		if a.Object != "" && !ids[a.Object] {
			return fmt.Errorf("assertions[%d]: unknown object id %q", index, a.Object)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
