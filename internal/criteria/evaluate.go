package criteria

import (
	"fmt"
	"strings"
	"time"
)

// Subject is the business-object boundary of the evaluator.
//
// source is the field's child source ("" for the object itself). Both methods
// return nil for a null property and fail only for an unknown property.
type Subject interface {
	PropertyValue(source, name string) (any, error)
	PersistedPropertyValue(source, name string) (any, error)
}

// Evaluator interprets criteria trees against live objects.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	now func() time.Time
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithClock sets the clock used to resolve the Today and Now sentinels.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) {
		e.now = now
	}
}

// NewEvaluator creates an Evaluator using the wall clock unless overridden.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEvaluator = NewEvaluator()

// IsMatch reports whether subject satisfies n.
//
// And stops at the first false child, Or at the first true child, Not
// negates its operand. When usePersisted is true leaves read the persisted
// snapshot instead of the current values. A nil tree matches everything.
func (e *Evaluator) IsMatch(n *Node, subject Subject, usePersisted bool) (bool, error) {
	if n == nil {
		return true, nil
	}
	if !n.IsComposite() {
		return e.matchLeaf(n, subject, usePersisted)
	}

	switch n.logical {
	case LogicalAnd:
		ok, err := e.IsMatch(n.left, subject, usePersisted)
		if err != nil || !ok {
			return false, err
		}
		return e.IsMatch(n.right, subject, usePersisted)
	case LogicalOr:
		ok, err := e.IsMatch(n.left, subject, usePersisted)
		if err != nil || ok {
			return ok, err
		}
		return e.IsMatch(n.right, subject, usePersisted)
	case LogicalNot:
		ok, err := e.IsMatch(n.right, subject, usePersisted)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, NewUnsupportedOperatorError(n.logical)
	}
}

func (e *Evaluator) matchLeaf(n *Node, subject Subject, usePersisted bool) (bool, error) {
	var (
		value any
		err   error
	)
	if usePersisted {
		value, err = subject.PersistedPropertyValue(n.field.Source, n.field.Name)
	} else {
		value, err = subject.PropertyValue(n.field.Source, n.field.Name)
	}
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", n.field, err)
	}

	value = normalize(value)
	literal := n.Value()
	if value == nil {
		return matchNull(n.op, literal)
	}
	return e.matchValue(n, value, literal)
}

// matchNull decides a leaf whose property is null. Only the operator and
// the literal matter.
func matchNull(op ComparisonOp, literal any) (bool, error) {
	switch op {
	case Equals, Like:
		return IsNull(literal), nil
	case NotEquals, NotLike:
		return !IsNull(literal), nil
	case GreaterThan, GreaterThanEqual, LessThan, LessThanEqual:
		return false, nil
	case Is:
		return IsNullLiteral(literal), nil
	case IsNot:
		return !IsNullLiteral(literal), nil
	case In:
		return listHasNull(literal), nil
	case NotIn:
		return !listHasNull(literal), nil
	default:
		return false, NewUnsupportedOperatorError(op)
	}
}

func (e *Evaluator) matchValue(n *Node, value, literal any) (bool, error) {
	prop, ok := toOperand(value)
	if !ok {
		return false, NewNotComparableError(n.field.String(), value)
	}

	switch n.op {
	case Equals:
		return prop.equal(e.coerce(prop, literal)), nil
	case NotEquals:
		return !prop.equal(e.coerce(prop, literal)), nil
	case GreaterThan, GreaterThanEqual, LessThan, LessThanEqual:
		lit := normalize(e.coerce(prop, literal))
		if lit == nil {
			return false, nil
		}
		c := prop.compare(lit)
		switch n.op {
		case GreaterThan:
			return c > 0, nil
		case GreaterThanEqual:
			return c >= 0, nil
		case LessThan:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case Like, NotLike:
		lit := normalize(literal)
		if lit == nil {
			return n.op == NotLike, nil
		}
		matched := likeMatch(FormatValue(value), FormatValue(lit))
		return matched == (n.op == Like), nil
	case Is:
		return false, nil
	case IsNot:
		return true, nil
	case In, NotIn:
		found := false
		for _, item := range literalList(literal) {
			if prop.equal(e.coerce(prop, item)) {
				found = true
				break
			}
		}
		return found == (n.op == In), nil
	default:
		return false, NewUnsupportedOperatorError(n.op)
	}
}

// likeMatch implements the % wildcard forms: "%x%" contains, "x%" starts
// with, "%x" ends with, "x" exact. Matching is case-sensitive.
func likeMatch(value, pattern string) bool {
	core := pattern
	leading := len(core) > 0 && core[0] == '%'
	if leading {
		core = core[1:]
	}
	trailing := len(core) > 0 && core[len(core)-1] == '%'
	if trailing {
		core = core[:len(core)-1]
	}

	switch {
	case leading && trailing:
		return strings.Contains(value, core)
	case leading:
		return strings.HasSuffix(value, core)
	case trailing:
		return strings.HasPrefix(value, core)
	default:
		return value == core
	}
}

// ListValues returns the members of an IN/NOT IN value: the elements of a
// slice or array, a scalar as a list of one, nothing for NULL.
func ListValues(v any) []any {
	return literalList(v)
}

// literalList returns the members of an IN literal. A scalar is a list of one.
func literalList(literal any) []any {
	if items, ok := listItems(literal); ok {
		return items
	}
	if IsNull(literal) {
		return nil
	}
	return []any{literal}
}

func listHasNull(literal any) bool {
	items, ok := listItems(literal)
	if !ok {
		return IsNull(literal)
	}
	for _, item := range items {
		if IsNull(item) {
			return true
		}
	}
	return false
}
