package querysql

import (
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// Sink binds parameters for one projection and remembers them in order.
type Sink interface {
	Bind(value any) string
	Params() []any
}

// Collector binds parameters in order. Placeholders are "?" unless Prefix
// is set, in which case they are numbered from 1 ("@p1", ":1").
type Collector struct {
	Prefix string
	params []any
}

var _ Sink = (*Collector)(nil)

// Bind implements Sink. Its method value is a ParamSink.
func (c *Collector) Bind(value any) string {
	c.params = append(c.params, value)
	if c.Prefix == "" {
		return "?"
	}
	return c.Prefix + strconv.Itoa(len(c.params))
}

// Params returns the bound values in placeholder order.
func (c *Collector) Params() []any {
	return c.params
}

// DialectorSink binds parameters with a gorm dialector's placeholder
// syntax ("?" for SQLite, "$1" for PostgreSQL).
type DialectorSink struct {
	dialector gorm.Dialector
	stmt      *gorm.Statement
}

var _ Sink = (*DialectorSink)(nil)

// NewDialectorSink creates a sink for d.
func NewDialectorSink(d gorm.Dialector) *DialectorSink {
	return &DialectorSink{dialector: d, stmt: &gorm.Statement{}}
}

// Bind implements Sink.
func (s *DialectorSink) Bind(value any) string {
	// Dialectors number placeholders from the statement's variable count,
	// so the value is recorded before the marker is written.
	s.stmt.Vars = append(s.stmt.Vars, value)
	var sb strings.Builder
	s.dialector.BindVarTo(&sb, s.stmt, value)
	return sb.String()
}

// Params implements Sink.
func (s *DialectorSink) Params() []any {
	return s.stmt.Vars
}
