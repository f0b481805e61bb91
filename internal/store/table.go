package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/criteria/internal/criteria"
	"github.com/roach88/criteria/internal/querysql"
)

// Column declares one column of a data table.
type Column struct {
	Name string
	// Type is a SQLite type name; empty means TEXT.
	Type string
}

// Row is one result row keyed by column name.
type Row map[string]any

// ColumnType returns the SQLite type whose affinity keeps v comparable with
// bound literals: numbers get numeric affinity so "18" compares as 18.
func ColumnType(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case time.Time:
		return "TEXT"
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "INTEGER"
	case reflect.Float32, reflect.Float64:
		return "REAL"
	default:
		return "TEXT"
	}
}

// InferColumns returns the sorted union of the rows' keys, each typed by
// the first non-null value seen.
func InferColumns(rows []Row) []Column {
	types := make(map[string]string)
	for _, row := range rows {
		for name, v := range row {
			if types[name] == "" {
				types[name] = ColumnType(v)
			}
		}
	}

	var names []string
	for k := range types {
		names = append(names, k)
	}
	slices.Sort(names)
	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name, Type: types[name]}
	}
	return columns
}

func tableAttrs(table string) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("db.system", "sqlite"),
		attribute.String("db.sql.table", table),
	)
}

// CreateTable creates table with the given columns if it does not exist.
func (s *Store) CreateTable(ctx context.Context, table string, columns []Column) error {
	ctx, span := s.startSpan(ctx, "store.create_table", tableAttrs(table))
	defer span.End()

	if len(columns) == 0 {
		return fail(span, fmt.Errorf("create table %q: no columns", table))
	}

	quoter := s.compiler.Dialect.Quoter("", nil)
	defs := make([]string, len(columns))
	for i, col := range columns {
		typ := col.Type
		if typ == "" {
			typ = "TEXT"
		}
		defs[i] = quoter.QuoteField(col.Name) + " " + typ
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoter.QuoteField(table), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fail(span, fmt.Errorf("failed to create table %q: %w", table, err))
	}
	return nil
}

// Insert adds row to table and returns its rowid. Columns are written in
// sorted order.
func (s *Store) Insert(ctx context.Context, table string, row Row) (int64, error) {
	ctx, span := s.startSpan(ctx, "store.insert", tableAttrs(table))
	defer span.End()

	if len(row) == 0 {
		return 0, fail(span, fmt.Errorf("insert into %q: empty row", table))
	}

	quoter := s.compiler.Dialect.Quoter("", nil)
	var names []string
	for k := range row {
		names = append(names, k)
	}
	slices.Sort(names)

	cols := make([]string, len(names))
	marks := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		cols[i] = quoter.QuoteField(name)
		marks[i] = "?"
		args[i] = columnValue(row[name])
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoter.QuoteField(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fail(span, fmt.Errorf("failed to insert into %q: %w", table, err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fail(span, fmt.Errorf("failed to read rowid: %w", err))
	}
	return id, nil
}

// columnValue converts v to something the driver accepts. Values the
// driver cannot bind are stored as their formatted text.
func columnValue(v any) any {
	if _, err := driver.DefaultParameterConverter.ConvertValue(v); err != nil {
		if _, ok := v.(driver.Valuer); !ok {
			return fmt.Sprint(v)
		}
	}
	return v
}

// Find returns the rowids of the rows in table matching n, in rowid order.
// A nil tree matches every row.
func (s *Store) Find(ctx context.Context, table string, n *criteria.Node) ([]int64, error) {
	ctx, span := s.startSpan(ctx, "store.find", tableAttrs(table), filterAttr(n))
	defer span.End()

	query, params, err := s.compiler.CompileSelect(querysql.Select{
		From:    table,
		Columns: []string{"rowid"},
		Filter:  n,
	})
	if err != nil {
		return nil, fail(span, err)
	}
	s.logger.DebugContext(ctx, "find", "table", table, "sql", query, "params", len(params))

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to query %q: %w", table, err))
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fail(span, fmt.Errorf("failed to scan rowid: %w", err))
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("failed to iterate %q: %w", table, err))
	}
	span.SetAttributes(attribute.Int("db.rows", len(ids)))
	return ids, nil
}

// Rows returns the full rows of table matching n, in rowid order.
func (s *Store) Rows(ctx context.Context, table string, n *criteria.Node) ([]Row, error) {
	ctx, span := s.startSpan(ctx, "store.rows", tableAttrs(table), filterAttr(n))
	defer span.End()

	query, params, err := s.compiler.CompileSelect(querysql.Select{From: table, Filter: n})
	if err != nil {
		return nil, fail(span, err)
	}
	s.logger.DebugContext(ctx, "rows", "table", table, "sql", query, "params", len(params))

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to query %q: %w", table, err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to read columns: %w", err))
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fail(span, fmt.Errorf("failed to scan row: %w", err))
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("failed to iterate %q: %w", table, err))
	}
	return result, nil
}

func filterAttr(n *criteria.Node) trace.SpanStartOption {
	text := ""
	if n != nil {
		text = n.String()
	}
	return trace.WithAttributes(attribute.String("criteria.filter", text))
}
