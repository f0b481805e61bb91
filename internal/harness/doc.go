// Package harness provides conformance testing for criteria expressions.
//
// A scenario names one filter, a set of object fixtures and the outcomes the
// filter must produce: its canonical text, its SQL projection and which
// fixtures it matches.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: adult_smiths
//	description: "What this scenario validates"
//	criteria: "Surname LIKE 'Smith%' AND Age >= 18"
//	dialect: sqlite
//	table: people
//	store: true
//	objects:
//	  - id: alice
//	    name: Person
//	    current: { Surname: Smith, Age: 40 }
//	    persisted: { Age: 17 }
//	assertions:
//	  - type: canonical
//	    expect: "(Surname LIKE 'Smith%') AND (Age >= '18')"
//	  - type: sql
//	    expect: "(`people`.`Surname` LIKE ?) AND (`people`.`Age` >= ?)"
//	    params: ["Smith%", "18"]
//	  - type: matches
//	    ids: [alice]
//	  - type: persisted_matches
//	    ids: []
//
// A scenario may give a Go boolean expression as predicate (with param
// naming its parameter) instead of criteria text.
//
// # Assertion Types
//
//   - canonical: the tree renders to expect
//   - sql: the projection is expect, bound with params
//   - matches: exactly the fixtures in ids match their current values
//   - persisted_matches: the same against persisted values
//   - store_matches: the SQLite rows that match (requires store: true)
//   - error: building the tree, or evaluating object, fails with code
//
// # Deterministic Testing
//
// The TODAY and NOW sentinels resolve against a fixed clock
// (testutil.FixedClock), set from the scenario's now field. With store: true
// the fixtures are inserted into an in-memory SQLite database and the
// projected filter must select the same fixtures the evaluator matched.
package harness
