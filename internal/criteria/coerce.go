package criteria

import (
	"bytes"
	"database/sql/driver"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// Comparer is implemented by property values that define their own ordering.
// CompareTo returns <0, 0 or >0, or an error when the literal does not apply.
type Comparer interface {
	CompareTo(literal any) (int, error)
}

// sentinel is a literal resolved against the evaluator clock.
type sentinel int

const (
	// Today resolves to midnight of the current day.
	Today sentinel = iota + 1
	// Now resolves to the current instant.
	Now
)

func (s sentinel) String() string {
	switch s {
	case Today:
		return "TODAY"
	case Now:
		return "NOW"
	default:
		return fmt.Sprintf("sentinel(%d)", int(s))
	}
}

// Value renders the sentinel keyword when a sentinel reaches a database
// driver. Resolution against a clock only happens during evaluation.
func (s sentinel) Value() (driver.Value, error) {
	return s.String(), nil
}

// timeLayouts are tried in order when a string literal meets a time property.
var timeLayouts = []string{
	DateTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"2006-01-02",
}

// folded case-folds s for keyword comparison. Casers are stateful, so each
// call builds its own.
func folded(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// normalize strips pointers and database/sql null wrappers. It returns nil
// for every representation of NULL.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	}

	switch val := v.(type) {
	case uuid.UUID, decimal.Decimal, time.Time, sentinel:
		return v
	case uuid.NullUUID:
		if !val.Valid {
			return nil
		}
		return val.UUID
	case decimal.NullDecimal:
		if !val.Valid {
			return nil
		}
		return val.Decimal
	case driver.Valuer:
		dv, err := val.Value()
		if err != nil {
			return v
		}
		return dv
	}
	return v
}

// IsNull reports whether v is nil, a nil pointer or a null wrapper such as
// sql.NullString.
func IsNull(v any) bool {
	return normalize(v) == nil
}

// IsNullLiteral reports whether v stands for NULL on an IS or IS NOT leaf:
// nil, a null wrapper, or the string "NULL" in any case.
func IsNullLiteral(v any) bool {
	v = normalize(v)
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && folded(s) == "null"
}

type operandKind int

const (
	kindString operandKind = iota
	kindBool
	kindNumber
	kindTime
	kindUUID
	kindComparer
)

// operand is a property value reduced to one of the comparable kinds.
type operand struct {
	kind operandKind
	s    string
	b    bool
	d    decimal.Decimal
	t    time.Time
	u    uuid.UUID
	c    Comparer
}

// toOperand classifies a normalized, non-nil property value. The second
// result is false when the value has no comparison semantics.
func toOperand(v any) (operand, bool) {
	switch val := v.(type) {
	case string:
		return operand{kind: kindString, s: val}, true
	case []byte:
		return operand{kind: kindString, s: string(val)}, true
	case bool:
		return operand{kind: kindBool, b: val}, true
	case decimal.Decimal:
		return operand{kind: kindNumber, d: val}, true
	case time.Time:
		return operand{kind: kindTime, t: val}, true
	case uuid.UUID:
		return operand{kind: kindUUID, u: val}, true
	case Comparer:
		return operand{kind: kindComparer, c: val}, true
	}

	if d, ok := toDecimal(v); ok {
		return operand{kind: kindNumber, d: d}, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return operand{kind: kindString, s: rv.String()}, true
	case reflect.Bool:
		return operand{kind: kindBool, b: rv.Bool()}, true
	}
	return operand{}, false
}

// toDecimal converts any Go numeric (including named numeric types) to a
// decimal. NaN and infinities are rejected.
func toDecimal(v any) (decimal.Decimal, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(rv.Uint()), 0), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(f), true
	}
	return decimal.Decimal{}, false
}

// coerce converts a literal to the property's kind. Sentinels resolve
// against the clock first. A literal that cannot be converted is returned
// unchanged and later compared by its text.
func (e *Evaluator) coerce(prop operand, literal any) any {
	literal = normalize(literal)
	if literal == nil {
		return nil
	}

	switch prop.kind {
	case kindString:
		if s, ok := literal.(string); ok {
			return s
		}
		return FormatValue(literal)
	case kindBool:
		switch lit := literal.(type) {
		case bool:
			return lit
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(lit)); err == nil {
				return b
			}
		}
	case kindNumber:
		if d, ok := literal.(decimal.Decimal); ok {
			return d
		}
		if d, ok := toDecimal(literal); ok {
			return d
		}
		if s, ok := literal.(string); ok {
			if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
				return d
			}
		}
	case kindTime:
		if t, ok := e.resolveSentinel(literal); ok {
			return t
		}
		switch lit := literal.(type) {
		case time.Time:
			return lit
		case string:
			if t, ok := parseTime(lit, prop.t.Location()); ok {
				return t
			}
		}
	case kindUUID:
		switch lit := literal.(type) {
		case uuid.UUID:
			return lit
		case [16]byte:
			return uuid.UUID(lit)
		case string:
			if u, err := ParseIdentifier(lit); err == nil {
				return u
			}
		}
	case kindComparer:
		return literal
	}
	return literal
}

func (e *Evaluator) resolveSentinel(literal any) (time.Time, bool) {
	var which sentinel
	switch lit := literal.(type) {
	case sentinel:
		which = lit
	case string:
		switch folded(lit) {
		case "today":
			which = Today
		case "now":
			which = Now
		}
	}
	if which == 0 {
		return time.Time{}, false
	}

	now := e.now()
	switch which {
	case Today:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case Now:
		return now, true
	default:
		return time.Time{}, false
	}
}

func parseTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// equal compares the operand against a coerced literal.
func (o operand) equal(literal any) bool {
	if literal == nil {
		return false
	}
	return o.compareValid(literal) == 0
}

// compare orders the operand against a coerced, non-nil literal.
func (o operand) compare(literal any) int {
	return o.compareValid(literal)
}

func (o operand) compareValid(literal any) int {
	switch o.kind {
	case kindString:
		if s, ok := literal.(string); ok {
			return strings.Compare(o.s, s)
		}
	case kindBool:
		if b, ok := literal.(bool); ok {
			switch {
			case o.b == b:
				return 0
			case !o.b:
				return -1
			default:
				return 1
			}
		}
	case kindNumber:
		if d, ok := literal.(decimal.Decimal); ok {
			return o.d.Cmp(d)
		}
	case kindTime:
		if t, ok := literal.(time.Time); ok {
			return o.t.Compare(t)
		}
	case kindUUID:
		if u, ok := literal.(uuid.UUID); ok {
			return bytes.Compare(o.u[:], u[:])
		}
	case kindComparer:
		if c, err := o.c.CompareTo(literal); err == nil {
			return c
		}
	}
	// Literal kept its original type: compare by text.
	return strings.Compare(o.text(), FormatValue(literal))
}

func (o operand) text() string {
	switch o.kind {
	case kindString:
		return o.s
	case kindBool:
		return strconv.FormatBool(o.b)
	case kindNumber:
		return o.d.String()
	case kindTime:
		return o.t.Format(DateTimeLayout)
	case kindUUID:
		return FormatValue(o.u)
	default:
		return fmt.Sprint(o.c)
	}
}

// integerListPattern matches the "{0x00000000,0x0000,0x0000,{0x00,...}}"
// identifier notation (8 trailing bytes).
var integerListPattern = regexp.MustCompile(
	`^\{\s*0x([0-9a-fA-F]{1,8})\s*,\s*0x([0-9a-fA-F]{1,4})\s*,\s*0x([0-9a-fA-F]{1,4})\s*,\s*\{` +
		`((?:\s*0x[0-9a-fA-F]{1,2}\s*,){7}\s*0x[0-9a-fA-F]{1,2}\s*)\}\s*\}$`)

// ParseIdentifier parses a unique identifier in any of the accepted
// notations: hyphenated, braced, urn:uuid:, bare 32-digit hex, or the
// integer-list form.
func ParseIdentifier(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	m := integerListPattern.FindStringSubmatch(s)
	if m == nil {
		return uuid.Parse(s)
	}

	var id uuid.UUID
	a, errA := strconv.ParseUint(m[1], 16, 32)
	b, errB := strconv.ParseUint(m[2], 16, 16)
	c, errC := strconv.ParseUint(m[3], 16, 16)
	if err := errors.Join(errA, errB, errC); err != nil {
		return uuid.Nil, fmt.Errorf("invalid identifier %q: %w", s, err)
	}
	binary.BigEndian.PutUint32(id[0:4], uint32(a))
	binary.BigEndian.PutUint16(id[4:6], uint16(b))
	binary.BigEndian.PutUint16(id[6:8], uint16(c))
	for i, part := range strings.Split(m[4], ",") {
		part = strings.TrimPrefix(strings.TrimSpace(part), "0x")
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid identifier %q: %w", s, err)
		}
		id[8+i] = byte(b)
	}
	return id, nil
}
