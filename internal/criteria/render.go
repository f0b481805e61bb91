package criteria

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateTimeLayout is the fixed layout used to render time values.
const DateTimeLayout = "2006/01/02 15:04:05"

// String renders the canonical, round-trippable text form of the tree.
//
//	composite: (left) AND (right)
//	not:       NOT (right)
//	leaf:      source.field OP value
//
// Values that can be parametrized are single-quoted; the others are
// upper-cased and left unquoted (e.g. "Code IS NULL").
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	n.render(&sb)
	return sb.String()
}

func (n *Node) render(sb *strings.Builder) {
	if n.IsComposite() {
		if n.logical.Unary() {
			sb.WriteString(n.logical.String())
			sb.WriteString(" (")
			n.right.render(sb)
			sb.WriteString(")")
			return
		}
		sb.WriteString("(")
		n.left.render(sb)
		sb.WriteString(") ")
		sb.WriteString(n.logical.String())
		sb.WriteString(" (")
		n.right.render(sb)
		sb.WriteString(")")
		return
	}

	sb.WriteString(n.field.String())
	sb.WriteString(" ")
	sb.WriteString(n.op.String())
	sb.WriteString(" ")
	sb.WriteString(RenderValue(n.Value(), n.CanBeParametrized(), n.op == In || n.op == NotIn))
}

// RenderValue renders a comparison value the way String does.
// list selects the parenthesized "('a', 'b')" form for IN operands.
func RenderValue(v any, quoted, list bool) string {
	if IsNull(v) {
		return "NULL"
	}
	if list {
		if items, ok := listItems(v); ok {
			parts := make([]string, len(items))
			for i, item := range items {
				parts[i] = RenderValue(item, true, false)
			}
			return "(" + strings.Join(parts, ", ") + ")"
		}
	}
	text := FormatValue(v)
	if !quoted {
		return strings.ToUpper(text)
	}
	return Quote(text)
}

// FormatValue formats a single literal without quoting: times use
// DateTimeLayout, UUIDs the braced form, everything else fmt.Sprint.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case time.Time:
		return val.Format(DateTimeLayout)
	case *time.Time:
		return val.Format(DateTimeLayout)
	case uuid.UUID:
		return "{" + val.String() + "}"
	case *uuid.UUID:
		return "{" + val.String() + "}"
	case sentinel:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

// Quote wraps s in single quotes, doubling embedded quotes.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// listItems returns the elements of a slice or array value.
// Strings and byte slices are scalars, not lists.
func listItems(v any) ([]any, bool) {
	switch v.(type) {
	case string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
