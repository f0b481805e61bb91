package querysql

import (
	"fmt"
	"slices"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Dialect bundles the identifier quoting and placeholder syntax of a
// database. Dialects backed by a gorm dialector delegate both to it; the
// others use fixed delimiters.
type Dialect struct {
	Name      string
	Dialector gorm.Dialector

	Left, Right string
	// Prefix numbers placeholders for delimiter-only dialects ("@p" gives "@p1").
	Prefix string
}

// Quoter returns an IdentifierQuoter for the dialect.
func (d Dialect) Quoter(table string, sources map[string]string) IdentifierQuoter {
	if d.Dialector != nil {
		return DialectorQuoter{Dialector: d.Dialector, Table: table, Sources: sources}
	}
	return Delimited{Left: d.Left, Right: d.Right, Table: table, Sources: sources}
}

// NewSink returns a fresh parameter sink for one projection.
func (d Dialect) NewSink() Sink {
	if d.Dialector != nil {
		return NewDialectorSink(d.Dialector)
	}
	return &Collector{Prefix: d.Prefix}
}

var dialects = map[string]Dialect{
	"plain":    {Name: "plain"},
	"sqlite":   {Name: "sqlite", Dialector: sqlite.Open("")},
	"postgres": {Name: "postgres", Dialector: postgres.New(postgres.Config{})},
	"mysql":    {Name: "mysql", Left: "`", Right: "`"},
	"mssql":    {Name: "mssql", Left: "[", Right: "]", Prefix: "@p"},
}

// LookupDialect returns the named dialect.
func LookupDialect(name string) (Dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return Dialect{}, fmt.Errorf("unknown dialect %q (known: %v)", name, DialectNames())
	}
	return d, nil
}

// DialectNames returns the known dialect names, sorted.
func DialectNames() []string {
	var names []string
	for k := range dialects {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
