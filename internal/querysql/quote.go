package querysql

import (
	"strings"

	"gorm.io/gorm"
)

// Delimited quotes identifiers by wrapping them in Left and Right, doubling
// any embedded Right delimiter. The zero value applies no delimiters.
//
// Table qualifies fields without a source. Sources maps logical source
// names onto table names; unmapped sources are used as written.
type Delimited struct {
	Left    string
	Right   string
	Table   string
	Sources map[string]string
}

var _ IdentifierQuoter = Delimited{}

// QuoteSource implements IdentifierQuoter. Dotted sources are quoted per
// segment.
func (d Delimited) QuoteSource(source string) string {
	name := resolveSource(d.Table, d.Sources, source)
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = d.quote(part)
	}
	return strings.Join(parts, ".")
}

// QuoteField implements IdentifierQuoter.
func (d Delimited) QuoteField(field string) string {
	return d.quote(field)
}

func (d Delimited) quote(ident string) string {
	if d.Right != "" {
		ident = strings.ReplaceAll(ident, d.Right, d.Right+d.Right)
	}
	return d.Left + ident + d.Right
}

// DialectorQuoter quotes identifiers the way a gorm dialector does, e.g.
// backticks for SQLite and double quotes for PostgreSQL.
type DialectorQuoter struct {
	Dialector gorm.Dialector
	Table     string
	Sources   map[string]string
}

var _ IdentifierQuoter = DialectorQuoter{}

// QuoteSource implements IdentifierQuoter.
func (q DialectorQuoter) QuoteSource(source string) string {
	name := resolveSource(q.Table, q.Sources, source)
	if name == "" {
		return ""
	}
	return q.quote(name)
}

// QuoteField implements IdentifierQuoter.
func (q DialectorQuoter) QuoteField(field string) string {
	return q.quote(field)
}

func (q DialectorQuoter) quote(ident string) string {
	var sb strings.Builder
	q.Dialector.QuoteTo(&sb, ident)
	return sb.String()
}

func resolveSource(table string, sources map[string]string, source string) string {
	if source == "" {
		return table
	}
	if mapped, ok := sources[source]; ok {
		return mapped
	}
	return source
}
