// Package predicate lowers Go boolean expressions into criteria trees.
//
// A predicate is written against a parameter, for example
//
//	p.Surname == "Smith" && p.Age >= 18 && strings.HasPrefix(p.Code, "X")
//
// and compiled with WithParam("p"). Identifiers bound with WithConst are
// literals; every other reference must be a member of the parameter.
package predicate

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strconv"
	"strings"

	"github.com/roach88/criteria/internal/criteria"
)

// Builder lowers predicate syntax trees. Use New or the package-level
// Build and BuildString.
type Builder struct {
	param  string
	consts map[string]any
}

// Option configures a Builder.
type Option func(*Builder)

// WithParam names the predicate parameter. Members are selector chains
// rooted at it (p.Name, p.Address.City). Without a parameter, any
// identifier that is not a constant is treated as a member root.
func WithParam(name string) Option {
	return func(b *Builder) {
		b.param = name
	}
}

// WithConst binds an identifier to a literal value.
func WithConst(name string, value any) Option {
	return func(b *Builder) {
		b.consts[name] = value
	}
}

// New creates a Builder.
func New(opts ...Option) *Builder {
	b := &Builder{consts: make(map[string]any)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build lowers expr into a criteria tree.
func Build(expr ast.Expr, opts ...Option) (*criteria.Node, error) {
	return New(opts...).Build(expr)
}

// BuildString parses src as a Go expression and lowers it.
func BuildString(src string, opts ...Option) (*criteria.Node, error) {
	return New(opts...).BuildString(src)
}

// BuildString parses src as a Go expression and lowers it.
func (b *Builder) BuildString(src string) (*criteria.Node, error) {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return nil, criteria.NewUnsupportedExpressionError(src, fmt.Sprintf("not a Go expression: %v", err))
	}
	return b.Build(expr)
}

// Build lowers expr into a criteria tree.
func (b *Builder) Build(expr ast.Expr) (*criteria.Node, error) {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return b.Build(e.X)
	case *ast.BinaryExpr:
		return b.binary(e)
	case *ast.UnaryExpr:
		if e.Op != token.NOT {
			return nil, unsupported(e, "only ! is supported as a unary boolean operator")
		}
		return b.not(e)
	case *ast.CallExpr:
		return b.call(e)
	case *ast.SelectorExpr, *ast.Ident:
		return b.booleanMember(e)
	}
	return nil, unsupported(expr, "not a boolean predicate")
}

func (b *Builder) binary(e *ast.BinaryExpr) (*criteria.Node, error) {
	switch e.Op {
	case token.LAND, token.LOR:
		left, err := b.Build(e.X)
		if err != nil {
			return nil, err
		}
		right, err := b.Build(e.Y)
		if err != nil {
			return nil, err
		}
		if e.Op == token.LAND {
			return criteria.And(left, right), nil
		}
		return criteria.Or(left, right), nil
	}

	op, ok := comparisons[e.Op]
	if !ok {
		return nil, unsupported(e, fmt.Sprintf("operator %s is not a comparison", e.Op))
	}

	field, memberLeft, err := b.member(e.X)
	if err != nil {
		return nil, err
	}
	other := e.Y
	if !memberLeft {
		if field, ok, err = b.member(e.Y); err != nil {
			return nil, err
		} else if !ok {
			return nil, unsupported(e, "comparison needs a member on one side")
		}
		op = mirrored[op]
		other = e.X
	}

	value, isConst, err := b.constant(other)
	if err != nil {
		return nil, err
	}
	if !isConst {
		return nil, unsupported(e, "comparison needs a constant on one side")
	}
	if value == nil {
		switch op {
		case criteria.Equals:
			op = criteria.Is
		case criteria.NotEquals:
			op = criteria.IsNot
		default:
			return nil, unsupported(e, "nil can only be compared with == or !=")
		}
	}
	return criteria.NewLeaf(field, op, value), nil
}

var comparisons = map[token.Token]criteria.ComparisonOp{
	token.EQL: criteria.Equals,
	token.NEQ: criteria.NotEquals,
	token.LSS: criteria.LessThan,
	token.LEQ: criteria.LessThanEqual,
	token.GTR: criteria.GreaterThan,
	token.GEQ: criteria.GreaterThanEqual,
}

// mirrored maps an operator to its form with the operands swapped
// (5 < p.Age is p.Age > 5).
var mirrored = map[criteria.ComparisonOp]criteria.ComparisonOp{
	criteria.Equals:           criteria.Equals,
	criteria.NotEquals:        criteria.NotEquals,
	criteria.LessThan:         criteria.GreaterThan,
	criteria.LessThanEqual:    criteria.GreaterThanEqual,
	criteria.GreaterThan:      criteria.LessThan,
	criteria.GreaterThanEqual: criteria.LessThanEqual,
}

// not negates a leaf through its operator and wraps anything else.
func (b *Builder) not(e *ast.UnaryExpr) (*criteria.Node, error) {
	inner, err := b.Build(e.X)
	if err != nil {
		return nil, err
	}
	if inner.IsComposite() {
		return criteria.Not(inner), nil
	}
	op, ok := inner.Op().Negate()
	if !ok {
		return nil, unsupported(e, fmt.Sprintf("operator %s has no negation", inner.Op()))
	}
	return criteria.NewLeaf(inner.Field(), op, inner.Value()), nil
}

func (b *Builder) call(e *ast.CallExpr) (*criteria.Node, error) {
	sel, ok := e.Fun.(*ast.SelectorExpr)
	if !ok {
		return nil, unsupported(e, "only package functions and methods can be called")
	}
	method := sel.Sel.Name

	if pkg, ok := sel.X.(*ast.Ident); ok && b.isPackage(pkg.Name) {
		return b.packageCall(e, pkg.Name, method)
	}

	// Method style: member.StartsWith("x") or coll.Contains(member).
	if len(e.Args) != 1 {
		return nil, unsupported(e, fmt.Sprintf("%s takes one argument", method))
	}
	if field, ok, err := b.member(sel.X); err != nil {
		return nil, err
	} else if ok {
		pattern, ok := likePatterns[method]
		if !ok {
			return nil, unsupported(e, fmt.Sprintf("method %s is not supported", method))
		}
		return b.like(e, field, e.Args[0], pattern)
	}
	if method == "Contains" {
		return b.membership(e, sel.X, e.Args[0])
	}
	return nil, unsupported(e, fmt.Sprintf("method %s is not supported", method))
}

func (b *Builder) packageCall(e *ast.CallExpr, pkg, fn string) (*criteria.Node, error) {
	switch pkg + "." + fn {
	case "strings.HasPrefix", "strings.HasSuffix", "strings.Contains":
		if len(e.Args) != 2 {
			return nil, unsupported(e, fmt.Sprintf("%s.%s takes two arguments", pkg, fn))
		}
		field, ok, err := b.member(e.Args[0])
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, unsupported(e, "first argument must be a member")
		}
		return b.like(e, field, e.Args[1], likePatterns[fn])
	case "slices.Contains":
		if len(e.Args) != 2 {
			return nil, unsupported(e, "slices.Contains takes two arguments")
		}
		return b.membership(e, e.Args[0], e.Args[1])
	}
	return nil, unsupported(e, fmt.Sprintf("function %s.%s is not supported", pkg, fn))
}

// likePatterns maps each string-matching call to its LIKE pattern format.
var likePatterns = map[string]string{
	"StartsWith": "%s%%",
	"HasPrefix":  "%s%%",
	"EndsWith":   "%%%s",
	"HasSuffix":  "%%%s",
	"Contains":   "%%%s%%",
}

func (b *Builder) like(e ast.Expr, field criteria.QueryField, arg ast.Expr, pattern string) (*criteria.Node, error) {
	value, ok, err := b.constant(arg)
	if err != nil {
		return nil, err
	}
	s, isString := value.(string)
	if !ok || !isString {
		return nil, unsupported(e, "string matching needs a constant string argument")
	}
	return criteria.NewLeaf(field, criteria.Like, fmt.Sprintf(pattern, s)), nil
}

func (b *Builder) membership(e ast.Expr, coll, arg ast.Expr) (*criteria.Node, error) {
	field, ok, err := b.member(arg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, unsupported(e, "Contains needs a member argument")
	}
	value, ok, err := b.constant(coll)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, unsupported(e, "Contains needs a constant collection")
	}
	return criteria.NewLeaf(field, criteria.In, value), nil
}

// booleanMember lowers a member used directly as a condition.
// x.Valid and x.HasValue test a nullable member for a value; any other
// member is compared with true.
func (b *Builder) booleanMember(expr ast.Expr) (*criteria.Node, error) {
	if sel, ok := expr.(*ast.SelectorExpr); ok && (sel.Sel.Name == "Valid" || sel.Sel.Name == "HasValue") {
		if field, ok, err := b.member(sel.X); err != nil {
			return nil, err
		} else if ok {
			return criteria.NewLeaf(field, criteria.IsNot, nil), nil
		}
	}
	field, ok, err := b.member(expr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, unsupported(expr, "not a member")
	}
	return criteria.NewLeaf(field, criteria.Equals, true), nil
}

// member resolves a selector chain into a field. The second result is
// false when expr is not a member reference at all.
func (b *Builder) member(expr ast.Expr) (criteria.QueryField, bool, error) {
	var path []string
	cur := expr
	for {
		switch e := cur.(type) {
		case *ast.ParenExpr:
			cur = e.X
			continue
		case *ast.SelectorExpr:
			path = append([]string{e.Sel.Name}, path...)
			cur = e.X
			continue
		case *ast.Ident:
			if !b.isRoot(e.Name) || b.isConst(e.Name) || isPredeclared(e.Name) {
				return criteria.QueryField{}, false, nil
			}
			if b.param == "" {
				path = append([]string{e.Name}, path...)
			}
		default:
			return criteria.QueryField{}, false, nil
		}
		break
	}

	if len(path) == 0 {
		return criteria.QueryField{}, false, unsupported(expr, "the parameter itself is not a member")
	}
	name := path[len(path)-1]
	return criteria.QueryField{Source: strings.Join(path[:len(path)-1], "."), Name: name}, true, nil
}

func (b *Builder) isRoot(name string) bool {
	if b.param == "" {
		return true
	}
	return name == b.param
}

// isPackage reports whether name refers to a package rather than a member.
// Without a parameter only the strings and slices packages are recognized.
func (b *Builder) isPackage(name string) bool {
	if name == b.param || b.isConst(name) {
		return false
	}
	return b.param != "" || name == "strings" || name == "slices"
}

func (b *Builder) isConst(name string) bool {
	_, ok := b.consts[name]
	return ok
}

func isPredeclared(name string) bool {
	return name == "nil" || name == "true" || name == "false"
}

// constant evaluates a literal expression. The second result is false when
// expr is not constant.
func (b *Builder) constant(expr ast.Expr) (any, bool, error) {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return b.constant(e.X)
	case *ast.BasicLit:
		v, err := basicLit(e)
		if err != nil {
			return nil, false, unsupported(e, err.Error())
		}
		return v, true, nil
	case *ast.Ident:
		switch e.Name {
		case "nil":
			return nil, true, nil
		case "true":
			return true, true, nil
		case "false":
			return false, true, nil
		}
		if v, ok := b.consts[e.Name]; ok {
			return v, true, nil
		}
	case *ast.UnaryExpr:
		if e.Op != token.SUB {
			break
		}
		v, ok, err := b.constant(e.X)
		if err != nil || !ok {
			return nil, ok, err
		}
		switch n := v.(type) {
		case int64:
			return -n, true, nil
		case float64:
			return -n, true, nil
		}
		return nil, false, unsupported(e, "only numbers can be negated")
	case *ast.CompositeLit:
		items := make([]any, 0, len(e.Elts))
		for _, elt := range e.Elts {
			v, ok, err := b.constant(elt)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, unsupported(elt, "collection elements must be constants")
			}
			items = append(items, v)
		}
		return items, true, nil
	}
	return nil, false, nil
}

func basicLit(lit *ast.BasicLit) (any, error) {
	switch lit.Kind {
	case token.INT:
		return strconv.ParseInt(lit.Value, 0, 64)
	case token.FLOAT:
		return strconv.ParseFloat(lit.Value, 64)
	case token.STRING:
		return strconv.Unquote(lit.Value)
	case token.CHAR:
		r, _, _, err := strconv.UnquoteChar(lit.Value[1:len(lit.Value)-1], '\'')
		if err != nil {
			return nil, err
		}
		return string(r), nil
	}
	return nil, fmt.Errorf("unsupported literal kind %s", lit.Kind)
}

func unsupported(expr ast.Expr, reason string) *criteria.Error {
	return criteria.NewUnsupportedExpressionError(types.ExprString(expr), reason)
}
