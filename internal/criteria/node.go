package criteria

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Node is a criteria tree node: either a leaf comparison or a composite.
//
// A node is composite iff either child is set; a leaf has neither. Leaves
// carry a field, a comparison operator and a value. Composites carry a
// logical connective; And/Or have both children, Not has a right child only.
//
// Nodes are immutable after construction except for the leaf value slot
// (see SetValue). Each composite exclusively owns its children.
type Node struct {
	field QueryField
	op    ComparisonOp
	value valueSlot

	left    *Node
	logical LogicalOp
	right   *Node
}

// valueSlot is the single mutable cell of a leaf.
// Reads and writes are atomic so a re-bind never tears a concurrent read.
type valueSlot struct {
	p atomic.Pointer[boxedValue]
}

type boxedValue struct {
	v any
}

func (s *valueSlot) load() any {
	b := s.p.Load()
	if b == nil {
		return nil
	}
	return b.v
}

func (s *valueSlot) store(v any) {
	s.p.Store(&boxedValue{v: v})
}

// NewLeaf creates a comparison leaf. The value is not checked here; values
// that cannot be compared fail at evaluation time.
func NewLeaf(field QueryField, op ComparisonOp, value any) *Node {
	n := &Node{field: field, op: op}
	n.value.store(value)
	return n
}

// Leaf is shorthand for NewLeaf with a source-less field.
func Leaf(name string, op ComparisonOp, value any) *Node {
	return NewLeaf(Field(name), op, value)
}

// NewComposite creates a binary composite. op must be LogicalAnd or LogicalOr
// and both operands must be non-nil.
func NewComposite(left *Node, op LogicalOp, right *Node) (*Node, error) {
	if op.Unary() {
		return nil, NewArityError(op, "unary connective given two operands")
	}
	if op != LogicalAnd && op != LogicalOr {
		return nil, NewUnsupportedOperatorError(op)
	}
	if left == nil || right == nil {
		return nil, NewArityError(op, "binary connective requires both operands")
	}
	return &Node{left: left, logical: op, right: right}, nil
}

// NewUnary creates a unary composite. Only LogicalNot is unary.
func NewUnary(op LogicalOp, right *Node) (*Node, error) {
	if !op.Unary() {
		return nil, NewArityError(op, "binary connective given a single operand")
	}
	if right == nil {
		return nil, NewArityError(op, "unary connective requires an operand")
	}
	return &Node{logical: op, right: right}, nil
}

// And joins two trees with AND. It panics when either operand is nil; use
// Merge when either may be absent.
func And(left, right *Node) *Node {
	return must(NewComposite(left, LogicalAnd, right))
}

// Or joins two trees with OR. It panics when either operand is nil.
func Or(left, right *Node) *Node {
	return must(NewComposite(left, LogicalOr, right))
}

// Not negates a tree. It panics when right is nil.
func Not(right *Node) *Node {
	return must(NewUnary(LogicalNot, right))
}

func must(n *Node, err error) *Node {
	if err != nil {
		panic(err)
	}
	return n
}

// IsComposite reports whether n has a child.
func (n *Node) IsComposite() bool {
	return n.left != nil || n.right != nil
}

// Field returns the leaf's field (zero for composites).
func (n *Node) Field() QueryField { return n.field }

// Op returns the leaf's comparison operator.
func (n *Node) Op() ComparisonOp { return n.op }

// Logical returns the composite's connective.
func (n *Node) Logical() LogicalOp { return n.logical }

// Left returns the left child (nil for leaves and Not).
func (n *Node) Left() *Node { return n.left }

// Right returns the right child (nil for leaves).
func (n *Node) Right() *Node { return n.right }

// Value returns the leaf's comparison value.
func (n *Node) Value() any {
	return n.value.load()
}

// SetValue re-binds the leaf's comparison value in place.
// This is the only mutation a tree supports. Concurrent readers observe
// either the old or the new value.
func (n *Node) SetValue(v any) {
	n.value.store(v)
}

// CanBeParametrized reports whether the leaf's value may be sent as a bound
// parameter. IS/IS NOT and Equals-null render their literal instead.
func (n *Node) CanBeParametrized() bool {
	switch n.op {
	case Is, IsNot:
		return false
	case Equals:
		return !IsNull(n.Value())
	default:
		return true
	}
}

// IsMatch evaluates n against subject with the default evaluator.
func (n *Node) IsMatch(subject Subject, usePersisted bool) (bool, error) {
	return defaultEvaluator.IsMatch(n, subject, usePersisted)
}

// Merge conjoins two optional trees. It returns whichever operand is non-nil
// when the other is nil, And(a, b) when both are set, nil when neither is.
func Merge(a, b *Node) *Node {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return And(a, b)
	}
}

// Clone returns a deep copy of n. Values are copied by assignment.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		field:   n.field,
		op:      n.op,
		logical: n.logical,
		left:    n.left.Clone(),
		right:   n.right.Clone(),
	}
	if !n.IsComposite() {
		c.value.store(n.Value())
	}
	return c
}

// Equal reports structural equality: same shape, operators, fields and
// values, children compared left to right.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.IsComposite() != b.IsComposite() {
		return false
	}
	if a.IsComposite() {
		return a.logical == b.logical && Equal(a.left, b.left) && Equal(a.right, b.right)
	}
	return a.op == b.op && a.field == b.field && reflect.DeepEqual(a.Value(), b.Value())
}

// Equal is the method form of the package-level Equal.
func (n *Node) Equal(other *Node) bool {
	return Equal(n, other)
}

// Hash returns a structural hash consistent with Equal for values whose
// %#v formatting is deterministic.
func (n *Node) Hash() uint64 {
	d := xxhash.New()
	n.writeHash(d)
	return d.Sum64()
}

func (n *Node) writeHash(d *xxhash.Digest) {
	var buf [8]byte
	if n == nil {
		_, _ = d.WriteString("nil")
		return
	}
	if n.IsComposite() {
		_, _ = d.WriteString("C")
		binary.LittleEndian.PutUint64(buf[:], uint64(n.logical))
		_, _ = d.Write(buf[:])
		n.left.writeHash(d)
		n.right.writeHash(d)
		return
	}
	_, _ = d.WriteString("L")
	binary.LittleEndian.PutUint64(buf[:], uint64(n.op))
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(n.field.Source)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(n.field.Name)
	_, _ = d.Write([]byte{0})
	_, _ = fmt.Fprintf(d, "%#v", n.Value())
}
