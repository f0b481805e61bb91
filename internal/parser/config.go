// Package parser turns filter strings such as
//
//	Surname = 'Smith' AND (Age >= 18 OR Code IS NULL)
//
// into criteria trees.
//
// Parsing runs in two phases. Split builds an untyped Expression tree by
// repeatedly locating the highest-priority operator outside quoted literals
// and parentheses. Lowering then maps each Expression onto a *criteria.Node,
// resolving operator tokens into comparison and logical operators.
//
// Operator priority is an explicit Config value so alternate operator sets
// can be tested without shared state.
package parser

import "strings"

// Operator is one entry of the operator-priority table.
type Operator struct {
	// Token is the operator text, e.g. "AND", "<>", "IS NOT". Multi-word
	// tokens match any run of whitespace between words.
	Token string

	// Prefix marks a unary operator that only matches at the start of an
	// expression (NOT).
	Prefix bool
}

// Config controls how expressions are split.
type Config struct {
	// Operators in priority order: the first operator that occurs outside
	// literals and parentheses becomes the root of the expression.
	Operators []Operator
}

// DefaultConfig returns the standard operator table.
//
// Connectives bind loosest (OR below AND below NOT). Among comparisons the
// two-character symbols precede their one-character prefixes, and negated
// keywords precede their positive forms.
func DefaultConfig() Config {
	return Config{
		Operators: []Operator{
			{Token: "OR"},
			{Token: "AND"},
			{Token: "NOT", Prefix: true},
			{Token: "<>"},
			{Token: "!="},
			{Token: ">="},
			{Token: "<="},
			{Token: "="},
			{Token: ">"},
			{Token: "<"},
			{Token: "IS NOT"},
			{Token: "IS"},
			{Token: "NOT LIKE"},
			{Token: "LIKE"},
			{Token: "NOT IN"},
			{Token: "IN"},
		},
	}
}

// operator is a compiled Operator.
type operator struct {
	token   string
	words   []string
	keyword bool
	prefix  bool
	list    bool
}

func compile(cfg Config) []operator {
	ops := make([]operator, 0, len(cfg.Operators))
	for _, o := range cfg.Operators {
		words := strings.Fields(strings.ToUpper(o.Token))
		if len(words) == 0 {
			continue
		}
		token := strings.Join(words, " ")
		ops = append(ops, operator{
			token:   token,
			words:   words,
			keyword: isWordByte(words[0][0]),
			prefix:  o.Prefix,
			list:    token == "IN" || token == "NOT IN",
		})
	}
	return ops
}

// matchAt reports whether op occurs in upper at i and returns the index just
// past the match. Keyword operators must stand on word boundaries.
func (op operator) matchAt(upper string, i int) (int, bool) {
	if op.keyword && i > 0 && isWordByte(upper[i-1]) {
		return 0, false
	}
	pos := i
	for w, word := range op.words {
		if w > 0 {
			start := pos
			for pos < len(upper) && isSpace(upper[pos]) {
				pos++
			}
			if pos == start {
				return 0, false
			}
		}
		if !strings.HasPrefix(upper[pos:], word) {
			return 0, false
		}
		pos += len(word)
	}
	if op.keyword && pos < len(upper) && isWordByte(upper[pos]) {
		return 0, false
	}
	return pos, true
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') ||
		c >= 0x80
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
