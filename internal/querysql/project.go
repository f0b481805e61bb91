// Package querysql projects criteria trees onto SQL WHERE fragments.
//
// Projection is parameterized by two collaborators: an IdentifierQuoter that
// turns logical source and field names into quoted identifiers, and a
// ParamSink that binds a literal and returns its placeholder. Literal values
// never reach SQL text: IS, IS NOT and (in)equality with nil are written with
// the NULL keyword, and everything else goes through the sink.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/criteria/internal/criteria"
)

// IdentifierQuoter maps logical names onto quoted SQL identifiers.
// QuoteSource receives the leaf's source ("" for the root entity) and may
// return "" to leave the column unqualified.
type IdentifierQuoter interface {
	QuoteSource(source string) string
	QuoteField(field string) string
}

// ParamSink binds value and returns its placeholder ("?", "$1", ...).
type ParamSink func(value any) string

// Project renders n as a WHERE fragment.
//
//	composite: (left) AND (right)
//	not:       NOT (right)
//	leaf:      source.field OP placeholder
func Project(n *criteria.Node, quoter IdentifierQuoter, sink ParamSink) (string, error) {
	if n == nil {
		return "", fmt.Errorf("cannot project nil criteria")
	}
	p := &projector{quoter: quoter, sink: sink}
	if err := p.node(n); err != nil {
		return "", err
	}
	return p.sb.String(), nil
}

type projector struct {
	quoter IdentifierQuoter
	sink   ParamSink
	sb     strings.Builder
}

func (p *projector) node(n *criteria.Node) error {
	if !n.IsComposite() {
		return p.leaf(n)
	}

	switch n.Logical() {
	case criteria.LogicalNot:
		p.sb.WriteString("NOT (")
		if err := p.node(n.Right()); err != nil {
			return err
		}
		p.sb.WriteString(")")
		return nil
	case criteria.LogicalAnd, criteria.LogicalOr:
		if n.Left() == nil || n.Right() == nil {
			return criteria.NewArityError(n.Logical(), "binary connective requires both operands")
		}
		p.sb.WriteString("(")
		if err := p.node(n.Left()); err != nil {
			return err
		}
		p.sb.WriteString(") ")
		p.sb.WriteString(n.Logical().String())
		p.sb.WriteString(" (")
		if err := p.node(n.Right()); err != nil {
			return err
		}
		p.sb.WriteString(")")
		return nil
	default:
		return criteria.NewUnsupportedOperatorError(n.Logical())
	}
}

func (p *projector) leaf(n *criteria.Node) error {
	op := n.Op()
	if !op.Valid() {
		return criteria.NewUnsupportedOperatorError(op)
	}
	column := p.column(n.Field())
	value := n.Value()

	switch op {
	case criteria.In, criteria.NotIn:
		items := criteria.ListValues(value)
		if len(items) == 0 {
			// Nothing is a member of the empty set.
			if op == criteria.In {
				p.sb.WriteString("1 = 0")
			} else {
				p.sb.WriteString("1 = 1")
			}
			return nil
		}
		markers := make([]string, len(items))
		for i, item := range items {
			markers[i] = p.sink(item)
		}
		fmt.Fprintf(&p.sb, "%s %s (%s)", column, op, strings.Join(markers, ", "))
		return nil
	}

	switch op {
	case criteria.Is, criteria.IsNot:
		// Only the NULL keyword is ever written into the statement.
		if !criteria.IsNullLiteral(value) {
			return criteria.NewMalformedError(n.String(), fmt.Sprintf("%s compares only against NULL", op))
		}
		fmt.Fprintf(&p.sb, "%s %s NULL", column, op)
		return nil
	case criteria.Equals, criteria.NotEquals:
		// Equality with NULL is written as IS [NOT] NULL so the database
		// agrees with in-memory evaluation.
		if criteria.IsNull(value) {
			if op == criteria.Equals {
				op = criteria.Is
			} else {
				op = criteria.IsNot
			}
			fmt.Fprintf(&p.sb, "%s %s NULL", column, op)
			return nil
		}
	}
	fmt.Fprintf(&p.sb, "%s %s %s", column, op, p.sink(value))
	return nil
}

func (p *projector) column(f criteria.QueryField) string {
	field := p.quoter.QuoteField(f.Name)
	if source := p.quoter.QuoteSource(f.Source); source != "" {
		return source + "." + field
	}
	return field
}
