package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/criteria/internal/criteria"
)

// Select is a single-table query filtered by a criteria tree.
type Select struct {
	From    string
	Columns []string
	Filter  *criteria.Node
	// OrderBy lists the sort columns; empty means the table's rowid.
	OrderBy []string
}

// SQLCompiler compiles criteria trees to parameterized SQL for one dialect.
//
// Values are always bound through the dialect's sink, never interpolated,
// except for the NULL keyword of IS/IS NOT. Every SELECT carries an ORDER BY
// so results are deterministic.
type SQLCompiler struct {
	Dialect Dialect
	// Sources maps logical child sources onto table names.
	Sources map[string]string
}

// NewSQLCompiler creates a compiler for d.
func NewSQLCompiler(d Dialect) *SQLCompiler {
	return &SQLCompiler{Dialect: d}
}

// Compile converts a criteria tree to a WHERE fragment qualified by table
// ("" leaves columns unqualified). Returns (sql, params, error).
func (c *SQLCompiler) Compile(n *criteria.Node, table string) (string, []any, error) {
	if n == nil {
		return "1 = 1", nil, nil
	}
	sink := c.Dialect.NewSink()
	sql, err := Project(n, c.Dialect.Quoter(table, c.Sources), sink.Bind)
	if err != nil {
		return "", nil, err
	}
	return sql, sink.Params(), nil
}

// CompileSelect converts q to a full SELECT statement.
func (c *SQLCompiler) CompileSelect(q Select) (string, []any, error) {
	if q.From == "" {
		return "", nil, fmt.Errorf("select has no table")
	}
	quoter := c.Dialect.Quoter("", c.Sources)

	var whereClause string
	var params []any
	if q.Filter != nil {
		sink := c.Dialect.NewSink()
		filterSQL, err := Project(q.Filter, quoter, sink.Bind)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = sink.Params()
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		c.compileColumns(quoter, q.Columns),
		quoter.QuoteField(q.From),
		whereClause,
		c.stableOrderKey(quoter, q.OrderBy))

	return sql, params, nil
}

// compileColumns converts the column list, "*" when empty.
func (c *SQLCompiler) compileColumns(quoter IdentifierQuoter, columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = quoter.QuoteField(col)
	}
	return strings.Join(parts, ", ")
}

// stableOrderKey returns the ORDER BY list. rowid is SQLite's implicit key;
// other dialects need explicit columns.
func (c *SQLCompiler) stableOrderKey(quoter IdentifierQuoter, columns []string) string {
	if len(columns) == 0 {
		return "rowid ASC"
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = quoter.QuoteField(col) + " ASC"
	}
	return strings.Join(parts, ", ")
}
