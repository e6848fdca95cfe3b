package types

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input or a violated business rule
// (type in use, metadata identity immutable). Batch validation embeds
// the offending item index in Field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a referenced entity, type, or requisite that
// does not exist.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// ConflictError reports an operation blocked by existing state, such as
// an identity rewrite to an occupied id.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// InjectionError reports filter, order-by, or identifier text matching
// a disallowed pattern. Such text can never be parameter-bound, so it
// is rejected before reaching query text.
type InjectionError struct {
	Input string
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("disallowed pattern in %q", e.Input)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var v *NotFoundError
	return errors.As(err, &v)
}

// IsConflict reports whether err wraps a ConflictError.
func IsConflict(err error) bool {
	var v *ConflictError
	return errors.As(err, &v)
}

// IsInjection reports whether err wraps an InjectionError.
func IsInjection(err error) bool {
	var v *InjectionError
	return errors.As(err, &v)
}
