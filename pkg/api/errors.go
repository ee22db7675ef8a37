package api

import (
	"errors"
	"fmt"
)

var (
	// ErrDefinitionNotFound is returned when no flow is defined for a route.
	ErrDefinitionNotFound = errors.New("form definition not found")

	// ErrInvalidDefinition is returned when a stored definition cannot be
	// decoded or is structurally invalid.
	ErrInvalidDefinition = errors.New("invalid form definition")

	// ErrStateNotFound is returned by state stores when a session has no
	// state for a route.
	ErrStateNotFound = errors.New("flow state not found")

	// ErrRowNotFound is returned by row stores when a keyed row is missing.
	ErrRowNotFound = errors.New("row not found")
)

// DefinitionError reports a missing or malformed form definition.
type DefinitionError struct {
	Route string
	Err   error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("definition %q: %v", e.Route, e.Err)
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// ValidationError reports a rejected submission. No writes have happened
// when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request: field %q %s", e.Field, e.Reason)
}

// PersistenceError reports a failed backend write or read, including a
// stored JSON blob that cannot be decoded during a merge.
type PersistenceError struct {
	Op    string
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persistence %s %q: %v", e.Op, e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// UserCreationError reports a malformed email or a user backend failure.
type UserCreationError struct {
	Email string
	Err   error
}

func (e *UserCreationError) Error() string {
	return fmt.Sprintf("user %q: %v", e.Email, e.Err)
}

func (e *UserCreationError) Unwrap() error { return e.Err }

// IsDefinitionError reports whether err is (or wraps) a DefinitionError.
func IsDefinitionError(err error) bool {
	var d *DefinitionError
	return errors.As(err, &d)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsPersistenceError reports whether err is (or wraps) a PersistenceError.
func IsPersistenceError(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}

// IsUserCreationError reports whether err is (or wraps) a UserCreationError.
func IsUserCreationError(err error) bool {
	var u *UserCreationError
	return errors.As(err, &u)
}
