package criteria

import "fmt"

// QueryField identifies the property a leaf compares.
//
// Source is an optional dotted path naming a related (child) object whose
// property is referenced. Only one level is consulted during evaluation: the
// whole Source string is handed to the Subject as the child source key.
type QueryField struct {
	Source string
	Name   string
}

// Field returns a QueryField with no source.
func Field(name string) QueryField {
	return QueryField{Name: name}
}

// String renders "source.name", or "name" when there is no source.
func (f QueryField) String() string {
	if f.Source == "" {
		return f.Name
	}
	return f.Source + "." + f.Name
}

// ComparisonOp is the closed set of leaf operators.
type ComparisonOp int

const (
	Equals ComparisonOp = iota
	NotEquals
	GreaterThan
	GreaterThanEqual
	LessThan
	LessThanEqual
	Like
	NotLike
	Is
	IsNot
	In
	NotIn
)

var comparisonTokens = [...]string{
	Equals:           "=",
	NotEquals:        "<>",
	GreaterThan:      ">",
	GreaterThanEqual: ">=",
	LessThan:         "<",
	LessThanEqual:    "<=",
	Like:             "LIKE",
	NotLike:          "NOT LIKE",
	Is:               "IS",
	IsNot:            "IS NOT",
	In:               "IN",
	NotIn:            "NOT IN",
}

// ComparisonOps lists every comparison operator in declaration order.
var ComparisonOps = []ComparisonOp{
	Equals, NotEquals, GreaterThan, GreaterThanEqual, LessThan, LessThanEqual,
	Like, NotLike, Is, IsNot, In, NotIn,
}

// Valid reports whether op is one of the declared operators.
func (op ComparisonOp) Valid() bool {
	return op >= Equals && op <= NotIn
}

// String returns the SQL token for op ("=", "<>", "NOT LIKE", ...).
func (op ComparisonOp) String() string {
	if !op.Valid() {
		return fmt.Sprintf("ComparisonOp(%d)", int(op))
	}
	return comparisonTokens[op]
}

// negations maps each operator to its logical complement.
// Ordering operators flip across the boundary (> becomes <=).
var negations = map[ComparisonOp]ComparisonOp{
	Equals:           NotEquals,
	NotEquals:        Equals,
	GreaterThan:      LessThanEqual,
	GreaterThanEqual: LessThan,
	LessThan:         GreaterThanEqual,
	LessThanEqual:    GreaterThan,
	Like:             NotLike,
	NotLike:          Like,
	Is:               IsNot,
	IsNot:            Is,
	In:               NotIn,
	NotIn:            In,
}

// Negate returns the complement of op. The second result is false for an
// operator outside the enumeration.
func (op ComparisonOp) Negate() (ComparisonOp, bool) {
	n, ok := negations[op]
	return n, ok
}

// LogicalOp is the connective of a composite node.
type LogicalOp int

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
	// LogicalNot is unary: it has a right operand only.
	LogicalNot
)

// String returns "AND", "OR" or "NOT".
func (op LogicalOp) String() string {
	switch op {
	case LogicalAnd:
		return "AND"
	case LogicalOr:
		return "OR"
	case LogicalNot:
		return "NOT"
	default:
		return fmt.Sprintf("LogicalOp(%d)", int(op))
	}
}

// Unary reports whether op takes a single (right) operand.
func (op LogicalOp) Unary() bool {
	return op == LogicalNot
}
