package criteria

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Validate checks that a tree is well-formed:
//  1. every leaf has a non-empty field name and a declared operator
//  2. And/Or composites have both children
//  3. Not composites have a right child and no left child
//
// All problems are collected (no fail-fast); the result is nil or a
// *multierror.Error whose entries are *Error values.
//
// Validate is a pure function with no side effects.
func Validate(n *Node) error {
	v := &validator{}
	v.validateNode(n, "root")
	return v.errs.ErrorOrNil()
}

// validator accumulates errors during traversal.
type validator struct {
	errs *multierror.Error
}

func (v *validator) add(err error) {
	v.errs = multierror.Append(v.errs, err)
}

func (v *validator) validateNode(n *Node, path string) {
	if n == nil {
		v.add(NewArityError(LogicalAnd, fmt.Sprintf("%s: missing node", path)))
		return
	}
	if !n.IsComposite() {
		v.validateLeaf(n, path)
		return
	}

	switch n.logical {
	case LogicalAnd, LogicalOr:
		if n.left == nil || n.right == nil {
			v.add(NewArityError(n.logical, fmt.Sprintf("%s: binary connective requires both operands", path)))
		}
	case LogicalNot:
		if n.left != nil {
			v.add(NewArityError(n.logical, fmt.Sprintf("%s: unary connective must not have a left operand", path)))
		}
		if n.right == nil {
			v.add(NewArityError(n.logical, fmt.Sprintf("%s: unary connective requires an operand", path)))
		}
	default:
		v.add(NewUnsupportedOperatorError(n.logical))
	}

	if n.left != nil {
		v.validateNode(n.left, path+".left")
	}
	if n.right != nil {
		v.validateNode(n.right, path+".right")
	}
}

func (v *validator) validateLeaf(n *Node, path string) {
	if n.field.Name == "" {
		v.add(&Error{
			Code:    ErrCodeMalformedCriteria,
			Message: fmt.Sprintf("%s: leaf has no field", path),
		})
	}
	if !n.op.Valid() {
		v.add(NewUnsupportedOperatorError(n.op))
	}
}
