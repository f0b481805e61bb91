package querysql

import (
	"gorm.io/gorm"

	"github.com/roach88/criteria/internal/criteria"
)

// Filter decorates a criteria tree with a fixed identifier quoter.
// ToSQL projects it; String falls back to the canonical criteria text for
// logging.
type Filter struct {
	Node   *criteria.Node
	Quoter IdentifierQuoter
}

// NewFilter creates a Filter. A nil quoter means no delimiters.
func NewFilter(n *criteria.Node, quoter IdentifierQuoter) *Filter {
	if quoter == nil {
		quoter = Delimited{}
	}
	return &Filter{Node: n, Quoter: quoter}
}

// ToSQL projects the filter, binding values through sink.
func (f *Filter) ToSQL(sink ParamSink) (string, error) {
	return Project(f.Node, f.Quoter, sink)
}

// String returns the canonical criteria rendering.
func (f *Filter) String() string {
	return f.Node.String()
}

// Scope returns a gorm scope restricting a query to rows matching n.
// Identifiers are quoted by the session's dialector and qualified by table
// when it is set. A nil tree leaves the query unchanged.
//
//	db.Scopes(querysql.Scope(n, "people")).Find(&people)
func Scope(n *criteria.Node, table string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if n == nil {
			return db
		}
		// gorm rewrites "?" markers into the dialector's own syntax.
		var params Collector
		sql, err := Project(n, DialectorQuoter{Dialector: db.Dialector, Table: table}, params.Bind)
		if err != nil {
			_ = db.AddError(err)
			return db
		}
		return db.Where(sql, params.Params()...)
	}
}
