package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/criteria/internal/bo"
	"github.com/roach88/criteria/internal/criteria"
	"github.com/roach88/criteria/internal/parser"
	"github.com/roach88/criteria/internal/predicate"
	"github.com/roach88/criteria/internal/querysql"
	"github.com/roach88/criteria/internal/store"
	"github.com/roach88/criteria/internal/testutil"
)

// DefaultNow is the clock value when a scenario does not set now.
var DefaultNow = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultTable names the store table when a scenario does not set table.
const DefaultTable = "objects"

// Harness is the test execution engine.
// It runs scenarios against a fixed clock and an isolated database.
type Harness struct {
	clock     *testutil.FixedClock
	evaluator *criteria.Evaluator
	logger    *slog.Logger
}

// Option configures a scenario run.
type Option func(*Harness)

// WithLogger sets the logger for a run. Runs are silent by default.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// fixture is a scenario object ready for evaluation.
type fixture struct {
	id  string
	obj *bo.Object
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
// 1. Build the criteria tree (parser or predicate builder)
// 2. Project it with the scenario's dialect
// 3. Evaluate it against every fixture, current and persisted
// 4. Cross-check against SQLite when the scenario asks for it
// 5. Evaluate assertions
//
// The returned error reports harness failures (bad fixtures, database
// setup); criteria failures are recorded in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	now := DefaultNow
	if scenario.Now != "" {
		t, err := time.Parse(time.RFC3339, scenario.Now)
		if err != nil {
			return nil, fmt.Errorf("invalid now: %w", err)
		}
		now = t
	}

	h := &Harness{
		clock:  testutil.NewFixedClock(now),
		logger: testutil.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.evaluator = criteria.NewEvaluator(criteria.WithClock(h.clock.Now))

	fixtures, err := buildFixtures(scenario.Objects)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()

	n, err := buildCriteria(scenario)
	if err != nil {
		result.BuildError = errorCode(err)
		h.logger.Info("criteria did not build", "scenario", scenario.Name, "error", err)
	} else {
		if err := h.execute(ctx, scenario, n, fixtures, result); err != nil {
			return nil, err
		}
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	h.logger.Info("scenario completed", "scenario", scenario.Name, "pass", result.Pass)
	return result, nil
}

func (h *Harness) execute(ctx context.Context, scenario *Scenario, n *criteria.Node, fixtures []fixture, result *Result) error {
	result.Tree = n
	result.Canonical = n.String()

	dialect, err := querysql.LookupDialect(effectiveDialect(scenario))
	if err != nil {
		return err
	}
	sql, params, err := querysql.NewSQLCompiler(dialect).Compile(n, scenario.Table)
	if err != nil {
		result.AddError(fmt.Sprintf("projection failed: %v", err))
	} else {
		result.SQL = sql
		result.Params = params
	}

	for _, f := range fixtures {
		ok, err := h.evaluator.IsMatch(n, f.obj, false)
		if err != nil {
			result.EvalErrors[f.id] = errorCode(err)
			h.logger.Debug("evaluation failed", "object", f.id, "error", err)
			continue
		}
		if ok {
			result.Matches = append(result.Matches, f.id)
		}

		ok, err = h.evaluator.IsMatch(n, f.obj, true)
		if err != nil {
			result.EvalErrors[f.id] = errorCode(err)
			continue
		}
		if ok {
			result.PersistedMatches = append(result.PersistedMatches, f.id)
		}
	}

	if scenario.Store {
		return h.crossCheck(ctx, scenario, n, fixtures, result)
	}
	return nil
}

// crossCheck inserts the fixtures' current values into an in-memory SQLite
// table and records which of them the projected filter selects. The
// selection must equal the evaluator's matches.
func (h *Harness) crossCheck(ctx context.Context, scenario *Scenario, n *criteria.Node, fixtures []fixture, result *Result) error {
	result.StoreMatches = []string{}
	columns := fixtureColumns(fixtures)
	if len(columns) == 0 {
		return nil
	}

	st, err := store.Open(":memory:", store.WithLogger(h.logger))
	if err != nil {
		return fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	table := scenario.Table
	if table == "" {
		table = DefaultTable
	}
	if err := st.CreateTable(ctx, table, columns); err != nil {
		return err
	}

	byRow := make(map[int64]string, len(fixtures))
	for _, f := range fixtures {
		row := make(store.Row, len(columns))
		for _, col := range columns {
			v, _ := f.obj.Get(col.Name)
			row[col.Name] = v
		}
		id, err := st.Insert(ctx, table, row)
		if err != nil {
			return err
		}
		byRow[id] = f.id
	}

	rowids, err := st.Find(ctx, table, n)
	if err != nil {
		result.AddError(fmt.Sprintf("store query failed: %v", err))
		return nil
	}
	for _, rowid := range rowids {
		result.StoreMatches = append(result.StoreMatches, byRow[rowid])
	}

	if len(result.EvalErrors) == 0 && !slices.Equal(result.StoreMatches, result.Matches) {
		result.AddError(fmt.Sprintf("store selected %v but the evaluator matched %v", result.StoreMatches, result.Matches))
	}
	return nil
}

// fixtureColumns types the union of the fixtures' current properties.
func fixtureColumns(fixtures []fixture) []store.Column {
	rows := make([]store.Row, len(fixtures))
	for i, f := range fixtures {
		rows[i] = make(store.Row)
		for _, name := range f.obj.Properties() {
			rows[i][name], _ = f.obj.Get(name)
		}
	}
	return store.InferColumns(rows)
}

func buildFixtures(specs []Fixture) ([]fixture, error) {
	fixtures := make([]fixture, 0, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			spec.Name = spec.ID
		}
		obj, err := bo.FromSpec(spec.Spec)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", spec.ID, err)
		}
		fixtures = append(fixtures, fixture{id: spec.ID, obj: obj})
	}
	return fixtures, nil
}

func buildCriteria(s *Scenario) (*criteria.Node, error) {
	if s.Predicate != "" {
		var opts []predicate.Option
		if s.Param != "" {
			opts = append(opts, predicate.WithParam(s.Param))
		}
		return predicate.BuildString(s.Predicate, opts...)
	}
	return parser.Parse(s.Criteria)
}

func effectiveDialect(s *Scenario) string {
	if s.Dialect == "" {
		return DefaultDialect
	}
	return s.Dialect
}

// Error codes for failures that are not criteria errors.
const (
	CodeUnknownProperty = "UNKNOWN_PROPERTY"
	CodeGeneric         = "ERROR"
)

// errorCode classifies err for result and assertion comparison.
func errorCode(err error) string {
	var cerr *criteria.Error
	if errors.As(err, &cerr) {
		return string(cerr.Code)
	}
	var perr *bo.UnknownPropertyError
	if errors.As(err, &perr) {
		return CodeUnknownProperty
	}
	return CodeGeneric
}
