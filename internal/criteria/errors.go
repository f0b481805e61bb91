package criteria

import (
	"errors"
	"fmt"
)

// Error is the single error type raised by the criteria packages.
//
// Error categories:
//   - Malformed criteria: a filter string does not parse into a complete comparison
//   - Unsupported expression: a Go predicate uses a construct the builder does not lower
//   - Not comparable: a property value has no equality/ordering semantics
//   - Unsupported operator: an operator outside the enumeration reached evaluation or SQL
//   - Invalid logical arity: a connective was given the wrong number of operands
//
// Error carries structured fields so callers can surface parse failures as
// validation messages and treat the rest as defects.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Criteria is the offending filter text (malformed criteria).
	Criteria string

	// Construct describes the unsupported predicate construct.
	Construct string

	// Property and Type identify a non-comparable property.
	Property string
	Type     string
}

// ErrorCode categorizes criteria errors.
type ErrorCode string

const (
	// ErrCodeMalformedCriteria indicates a filter string with a missing operator or operand.
	ErrCodeMalformedCriteria ErrorCode = "MALFORMED_CRITERIA"

	// ErrCodeUnsupportedExpression indicates a predicate construct the builder cannot lower.
	ErrCodeUnsupportedExpression ErrorCode = "UNSUPPORTED_EXPRESSION"

	// ErrCodeNotComparable indicates a property value without comparison semantics.
	ErrCodeNotComparable ErrorCode = "NOT_COMPARABLE"

	// ErrCodeUnsupportedOperator indicates an operator outside the closed enumeration.
	ErrCodeUnsupportedOperator ErrorCode = "UNSUPPORTED_OPERATOR"

	// ErrCodeInvalidLogicalArity indicates a unary And/Or or a binary Not.
	ErrCodeInvalidLogicalArity ErrorCode = "INVALID_LOGICAL_ARITY"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Criteria != "":
		return fmt.Sprintf("%s: %s (criteria=%q)", e.Code, e.Message, e.Criteria)
	case e.Construct != "":
		return fmt.Sprintf("%s: %s (construct=%s)", e.Code, e.Message, e.Construct)
	case e.Property != "":
		return fmt.Sprintf("%s: %s (property=%s, type=%s)", e.Code, e.Message, e.Property, e.Type)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewMalformedError creates an Error for a filter string that does not parse.
func NewMalformedError(text, reason string) *Error {
	return &Error{
		Code:     ErrCodeMalformedCriteria,
		Message:  reason,
		Criteria: text,
	}
}

// NewUnsupportedExpressionError creates an Error naming an unhandled predicate construct.
func NewUnsupportedExpressionError(construct, reason string) *Error {
	return &Error{
		Code:      ErrCodeUnsupportedExpression,
		Message:   reason,
		Construct: construct,
	}
}

// NewNotComparableError creates an Error for a property whose value cannot be compared.
func NewNotComparableError(property string, value any) *Error {
	return &Error{
		Code:     ErrCodeNotComparable,
		Message:  "property value does not support equality or ordering comparison",
		Property: property,
		Type:     fmt.Sprintf("%T", value),
	}
}

// NewUnsupportedOperatorError creates an Error for an operator outside the enumeration.
func NewUnsupportedOperatorError(op fmt.Stringer) *Error {
	return &Error{
		Code:    ErrCodeUnsupportedOperator,
		Message: fmt.Sprintf("operator %s is not supported", op),
	}
}

// NewArityError creates an Error for a connective used with the wrong operand count.
func NewArityError(op LogicalOp, reason string) *Error {
	return &Error{
		Code:    ErrCodeInvalidLogicalArity,
		Message: fmt.Sprintf("%s: %s", op, reason),
	}
}

func hasCode(err error, code ErrorCode) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// IsMalformed returns true if err is (or wraps) a malformed-criteria error.
func IsMalformed(err error) bool { return hasCode(err, ErrCodeMalformedCriteria) }

// IsUnsupportedExpression returns true if err is (or wraps) an unsupported-expression error.
func IsUnsupportedExpression(err error) bool { return hasCode(err, ErrCodeUnsupportedExpression) }

// IsNotComparable returns true if err is (or wraps) a not-comparable error.
func IsNotComparable(err error) bool { return hasCode(err, ErrCodeNotComparable) }

// IsUnsupportedOperator returns true if err is (or wraps) an unsupported-operator error.
func IsUnsupportedOperator(err error) bool { return hasCode(err, ErrCodeUnsupportedOperator) }

// IsArityError returns true if err is (or wraps) an invalid-logical-arity error.
func IsArityError(err error) bool { return hasCode(err, ErrCodeInvalidLogicalArity) }
