// Package errors provides error handling for Fake4Dataverse.
//
// The package re-exports github.com/cockroachdb/errors, providing stack
// traces, error wrapping and context, and errors.Is/As-compatible
// inspection, and defines the sentinel error kinds the query engine
// reports to callers.
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check error kinds
//	if errors.Is(err, errors.ErrTypeMismatch) {
//	    // handle operand/attribute type incompatibility
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel error kinds surfaced by the query entry points.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the kind.
var (
	// ErrEntityNotRegistered indicates a query or lookup referenced an
	// entity with no registered metadata
	ErrEntityNotRegistered = New("entity not registered")

	// ErrAttributeNotFound indicates an attribute is not declared in the
	// entity's registered metadata
	ErrAttributeNotFound = New("attribute not found")

	// ErrTypeMismatch indicates a condition operand is incompatible with
	// the attribute's declared type
	ErrTypeMismatch = New("type mismatch")

	// ErrParse indicates a malformed query document
	ErrParse = New("parse error")

	// ErrHierarchyAttributeMissing indicates a hierarchy operator was used
	// on an entity without a configured self-referencing lookup
	ErrHierarchyAttributeMissing = New("hierarchy attribute missing")

	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = New("not found")
)

// IsEntityNotRegistered checks if an error is or wraps ErrEntityNotRegistered
func IsEntityNotRegistered(err error) bool {
	return err != nil && Is(err, ErrEntityNotRegistered)
}

// IsAttributeNotFound checks if an error is or wraps ErrAttributeNotFound
func IsAttributeNotFound(err error) bool {
	return err != nil && Is(err, ErrAttributeNotFound)
}

// IsTypeMismatch checks if an error is or wraps ErrTypeMismatch
func IsTypeMismatch(err error) bool {
	return err != nil && Is(err, ErrTypeMismatch)
}

// IsParse checks if an error is or wraps ErrParse
func IsParse(err error) bool {
	return err != nil && Is(err, ErrParse)
}

// IsHierarchyAttributeMissing checks if an error is or wraps ErrHierarchyAttributeMissing
func IsHierarchyAttributeMissing(err error) bool {
	return err != nil && Is(err, ErrHierarchyAttributeMissing)
}

// IsNotFound checks if an error is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// NewEntityNotRegisteredf creates an entity-not-registered error with a formatted message
func NewEntityNotRegisteredf(format string, args ...interface{}) error {
	return Wrap(ErrEntityNotRegistered, Newf(format, args...).Error())
}

// NewAttributeNotFoundf creates an attribute-not-found error with a formatted message
func NewAttributeNotFoundf(format string, args ...interface{}) error {
	return Wrap(ErrAttributeNotFound, Newf(format, args...).Error())
}

// NewTypeMismatchf creates a type-mismatch error with a formatted message
func NewTypeMismatchf(format string, args ...interface{}) error {
	return Wrap(ErrTypeMismatch, Newf(format, args...).Error())
}

// NewNotFoundf creates a not-found error with a formatted message
func NewNotFoundf(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}
