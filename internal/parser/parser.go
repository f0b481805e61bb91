package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/criteria/internal/criteria"
)

// Parser parses filter strings with a fixed operator table.
// A Parser holds no mutable state and is safe for concurrent use.
type Parser struct {
	ops    []operator
	logger *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for debug tracing of parses.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// New creates a Parser for cfg.
func New(cfg Config, opts ...Option) *Parser {
	p := &Parser{
		ops:    compile(cfg),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = New(DefaultConfig())

// Parse parses text with the default operator table.
func Parse(text string) (*criteria.Node, error) {
	return defaultParser.Parse(text)
}

// Split splits text with the default operator table.
func Split(text string) (*Expression, error) {
	return defaultParser.Split(text)
}

// MustParse is like Parse but panics on error. It is intended for
// package-level criteria in tests and examples.
func MustParse(text string) *criteria.Node {
	n, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return n
}

// Parse parses text into a criteria tree. Text that does not yield a
// complete comparison at the top level fails with a malformed-criteria
// error.
func (p *Parser) Parse(text string) (*criteria.Node, error) {
	e, err := p.split(text)
	if err != nil {
		return nil, err
	}
	if e.IsLeaf() {
		return nil, criteria.NewMalformedError(text, "expression has no operator")
	}
	n, err := lower(text, e)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("parsed criteria", "text", text, "canonical", n.String())
	return n, nil
}

var comparisonTokens = map[string]criteria.ComparisonOp{
	"=":        criteria.Equals,
	"<>":       criteria.NotEquals,
	"!=":       criteria.NotEquals,
	">":        criteria.GreaterThan,
	">=":       criteria.GreaterThanEqual,
	"<":        criteria.LessThan,
	"<=":       criteria.LessThanEqual,
	"LIKE":     criteria.Like,
	"NOT LIKE": criteria.NotLike,
	"IS":       criteria.Is,
	"IS NOT":   criteria.IsNot,
	"IN":       criteria.In,
	"NOT IN":   criteria.NotIn,
}

var logicalTokens = map[string]criteria.LogicalOp{
	"AND": criteria.LogicalAnd,
	"OR":  criteria.LogicalOr,
	"NOT": criteria.LogicalNot,
}

// lower maps an Expression branch onto a criteria node.
func lower(text string, e *Expression) (*criteria.Node, error) {
	if e.IsLeaf() {
		return nil, criteria.NewMalformedError(text, fmt.Sprintf("%q is not a comparison", e.Text))
	}

	if op, ok := logicalTokens[e.Op]; ok {
		right, err := lower(text, e.Right)
		if err != nil {
			return nil, err
		}
		if op.Unary() {
			if e.Left != nil {
				return nil, criteria.NewArityError(op, "unary connective given two operands")
			}
			return criteria.NewUnary(op, right)
		}
		if e.Left == nil {
			return nil, criteria.NewArityError(op, "binary connective requires both operands")
		}
		left, err := lower(text, e.Left)
		if err != nil {
			return nil, err
		}
		return criteria.NewComposite(left, op, right)
	}

	op, ok := comparisonTokens[e.Op]
	if !ok {
		return nil, criteria.NewMalformedError(text, fmt.Sprintf("operator %s is not a comparison or connective", e.Op))
	}
	if e.Left == nil || !e.Left.IsLeaf() || e.Left.Quoted {
		return nil, criteria.NewMalformedError(text, fmt.Sprintf("operator %s needs a property name on its left", e.Op))
	}
	if !e.Right.IsLeaf() {
		return nil, criteria.NewMalformedError(text, fmt.Sprintf("operator %s needs a value on its right, got %s", e.Op, e.Right))
	}

	field, err := parseField(e.Left.Text)
	if err != nil {
		return nil, criteria.NewMalformedError(text, err.Error())
	}
	value, err := literal(e.Right)
	if err != nil {
		return nil, criteria.NewMalformedError(text, err.Error())
	}
	return criteria.NewLeaf(field, op, value), nil
}

// parseField splits "a.b.Name" into source "a.b" and name "Name".
func parseField(text string) (criteria.QueryField, error) {
	if strings.ContainsAny(text, " \t\r\n()") {
		return criteria.QueryField{}, fmt.Errorf("invalid property name %q", text)
	}
	i := strings.LastIndexByte(text, '.')
	if i < 0 {
		return criteria.Field(text), nil
	}
	source, name := text[:i], text[i+1:]
	if source == "" || name == "" {
		return criteria.QueryField{}, fmt.Errorf("invalid property name %q", text)
	}
	return criteria.QueryField{Source: source, Name: name}, nil
}

// literal converts a value leaf. Values stay text; only an unquoted NULL
// becomes nil.
func literal(e *Expression) (any, error) {
	if e.List {
		return listLiteral(e.Text)
	}
	if !e.Quoted && isNullKeyword(e.Text) {
		return nil, nil
	}
	return e.Text, nil
}

// listLiteral parses "(a, 'b', NULL)" into its items. The parentheses are
// optional for a single bare item.
func listLiteral(text string) ([]any, error) {
	text = strings.TrimSpace(text)
	m, err := mask(text)
	if err != nil {
		return nil, err
	}
	if m.wrapped() {
		text = text[1 : len(text)-1]
		if m, err = mask(text); err != nil {
			return nil, err
		}
	}

	items := []any{}
	if strings.TrimSpace(text) == "" {
		return items, nil
	}
	start := 0
	for i := 0; i <= len(text); i++ {
		if i < len(text) && (text[i] != ',' || !m.open(i)) {
			continue
		}
		part := strings.TrimSpace(text[start:i])
		if part == "" {
			return nil, fmt.Errorf("empty item in list %q", text)
		}
		item := leaf(part)
		if !item.Quoted && isNullKeyword(item.Text) {
			items = append(items, nil)
		} else {
			items = append(items, item.Text)
		}
		start = i + 1
	}
	return items, nil
}

func isNullKeyword(s string) bool {
	return cases.Fold().String(s) == "null"
}
