package parser

import (
	"fmt"
	"strings"

	"github.com/roach88/criteria/internal/criteria"
)

// Expression is the untyped intermediate tree produced by Split.
//
// A leaf carries literal text (quotes stripped when Quoted). A branch
// carries the matched operator token in Op; unary branches have no Left.
// The right side of IN/NOT IN is a List leaf holding the raw item list.
type Expression struct {
	Left   *Expression `json:"left,omitempty"`
	Op     string      `json:"op,omitempty"`
	Right  *Expression `json:"right,omitempty"`
	Text   string      `json:"text,omitempty"`
	Quoted bool        `json:"quoted,omitempty"`
	List   bool        `json:"list,omitempty"`
}

// IsLeaf reports whether e has no children.
func (e *Expression) IsLeaf() bool {
	return e.Left == nil && e.Right == nil
}

// String renders e with every branch parenthesized.
func (e *Expression) String() string {
	switch {
	case e == nil:
		return ""
	case e.IsLeaf() && e.Quoted:
		return criteria.Quote(e.Text)
	case e.IsLeaf():
		return e.Text
	case e.Left == nil:
		return "(" + e.Op + " " + e.Right.String() + ")"
	default:
		return "(" + e.Left.String() + " " + e.Op + " " + e.Right.String() + ")"
	}
}

// masked is an expression text prepared for operator scanning: quoted
// literals are masked out and parenthesis depth is known for every byte.
// upper has the same length as text, so indexes never drift.
type masked struct {
	text    string
	upper   string
	literal []bool
	depth   []int
}

func mask(text string) (*masked, error) {
	m := &masked{
		text:    text,
		upper:   asciiUpper(text),
		literal: make([]bool, len(text)),
		depth:   make([]int, len(text)),
	}

	var quote byte
	depth := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			m.literal[i] = true
			m.depth[i] = depth
			if c == quote {
				if i+1 < len(text) && text[i+1] == quote {
					i++
					m.literal[i] = true
					m.depth[i] = depth
					continue
				}
				quote = 0
			}
			continue
		}

		switch c {
		case '\'', '"':
			quote = c
			m.literal[i] = true
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, criteria.NewMalformedError(text, fmt.Sprintf("unbalanced ')' at offset %d", i))
			}
		}
		// A paren counts as inside the span it opens or closes.
		if c == ')' {
			m.depth[i] = depth + 1
		} else {
			m.depth[i] = depth
		}
	}
	if quote != 0 {
		return nil, criteria.NewMalformedError(text, "unterminated quoted literal")
	}
	if depth != 0 {
		return nil, criteria.NewMalformedError(text, "unbalanced '('")
	}
	return m, nil
}

// open reports whether byte i is outside literals and parentheses.
func (m *masked) open(i int) bool {
	return !m.literal[i] && m.depth[i] == 0
}

// wrapped reports whether the whole text is enclosed in one pair of parens.
// Depth counting starts after the first byte so "(a) AND (b)" is not
// mistaken for a wrapped expression.
func (m *masked) wrapped() bool {
	n := len(m.text)
	if n < 2 || m.text[0] != '(' || m.text[n-1] != ')' || m.literal[0] {
		return false
	}
	for i := 1; i < n-1; i++ {
		if !m.literal[i] && m.depth[i] == 0 {
			return false
		}
	}
	return true
}

// groupEnd returns the index of the paren closing the one at offset 0,
// or -1 when text does not open with a group.
func (m *masked) groupEnd() int {
	if len(m.text) == 0 || m.text[0] != '(' || m.literal[0] {
		return -1
	}
	for i := 1; i < len(m.text); i++ {
		if m.text[i] == ')' && !m.literal[i] && m.depth[i] == 1 {
			return i
		}
	}
	return -1
}

// find returns the first open occurrence of op.
func (m *masked) find(op operator) (start, end int, ok bool) {
	if op.prefix {
		end, ok := op.matchAt(m.upper, 0)
		return 0, end, ok
	}
	for i := 0; i < len(m.upper); i++ {
		if !m.open(i) {
			continue
		}
		if e, ok := op.matchAt(m.upper, i); ok && m.openSpan(i, e) {
			return i, e, true
		}
	}
	return 0, 0, false
}

func (m *masked) openSpan(start, end int) bool {
	for i := start; i < end; i++ {
		if !m.open(i) {
			return false
		}
	}
	return true
}

// Split parses text into an Expression tree using p's operator table.
func (p *Parser) Split(text string) (*Expression, error) {
	return p.split(text)
}

func (p *Parser) split(text string) (*Expression, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, criteria.NewMalformedError(text, "empty expression")
	}
	m, err := mask(text)
	if err != nil {
		return nil, err
	}
	if m.wrapped() {
		return p.split(text[1 : len(text)-1])
	}
	if text[0] == '(' {
		if e, ok, err := p.splitGroup(text, m); ok || err != nil {
			return e, err
		}
	}

	for _, op := range p.ops {
		start, end, ok := m.find(op)
		if !ok {
			continue
		}
		return p.branch(text, op, start, end)
	}
	return leaf(text), nil
}

// splitGroup handles text that opens with a parenthesized group which is
// not the whole expression. The group is the left operand and the operator
// must follow its closing paren directly; the rest is the right operand.
// ok is false when no operator sits there, leaving text to the priority scan.
func (p *Parser) splitGroup(text string, m *masked) (*Expression, bool, error) {
	closing := m.groupEnd()
	if closing < 0 {
		return nil, false, nil
	}
	at := closing + 1
	for at < len(text) && isSpace(text[at]) {
		at++
	}
	for _, op := range p.ops {
		if op.prefix {
			continue
		}
		if end, ok := op.matchAt(m.upper, at); ok {
			e, err := p.branch(text, op, at, end)
			return e, true, err
		}
	}
	return nil, false, nil
}

func (p *Parser) branch(text string, op operator, start, end int) (*Expression, error) {
	e := &Expression{Op: op.token}
	rightText := strings.TrimSpace(text[end:])
	if rightText == "" {
		return nil, criteria.NewMalformedError(text, fmt.Sprintf("operator %s has no right operand", op.token))
	}

	if !op.prefix {
		leftText := strings.TrimSpace(text[:start])
		if leftText == "" {
			return nil, criteria.NewMalformedError(text, fmt.Sprintf("operator %s has no left operand", op.token))
		}
		left, err := p.split(leftText)
		if err != nil {
			return nil, err
		}
		e.Left = left
	}

	if op.list {
		e.Right = &Expression{Text: rightText, List: true}
		return e, nil
	}
	right, err := p.split(rightText)
	if err != nil {
		return nil, err
	}
	e.Right = right
	return e, nil
}

// leaf builds a leaf from operator-free text, stripping one layer of
// surrounding quotes.
func leaf(text string) *Expression {
	if s, ok := unquote(text); ok {
		return &Expression{Text: s, Quoted: true}
	}
	return &Expression{Text: text}
}

// unquote strips the quotes of a text that is exactly one quoted literal
// and collapses doubled quotes inside it.
func unquote(text string) (string, bool) {
	if len(text) < 2 {
		return "", false
	}
	q := text[0]
	if q != '\'' && q != '"' {
		return "", false
	}
	for i := 1; i < len(text); i++ {
		if text[i] != q {
			continue
		}
		if i+1 < len(text) && text[i+1] == q {
			i++
			continue
		}
		if i != len(text)-1 {
			return "", false
		}
		inner := text[1 : len(text)-1]
		return strings.ReplaceAll(inner, string([]byte{q, q}), string(q)), true
	}
	return "", false
}

func asciiUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'a' <= c && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
