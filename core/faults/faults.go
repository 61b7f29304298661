// Package faults defines the error taxonomy shared across the dispatch core.
// Callers distinguish failure kinds programmatically with errors.As rather
// than by matching messages.
package faults

import "fmt"

// ValidationError reports malformed input, raised before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for the given field.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// InvalidTransitionError reports an assignment transition attempted from a
// non-matching current state. Distinct from NotFoundError: the record exists
// but refuses the transition.
type InvalidTransitionError struct {
	AssignmentID string
	From         string
	To           string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("assignment %s: invalid transition %s -> %s", e.AssignmentID, e.From, e.To)
}

// InvalidTransition builds an InvalidTransitionError.
func InvalidTransition(id, from, to string) error {
	return &InvalidTransitionError{AssignmentID: id, From: from, To: to}
}

// UnimplementedError reports a documented capability gap.
type UnimplementedError struct {
	Method string
}

func (e *UnimplementedError) Error() string {
	return fmt.Sprintf("method %s is not implemented", e.Method)
}

// Unimplemented builds an UnimplementedError.
func Unimplemented(method string) error {
	return &UnimplementedError{Method: method}
}

// ExternalError reports a collaborator failure or timeout. Dependency names
// the collaborator, e.g. "routing" or "spatial-index".
type ExternalError struct {
	Dependency string
	Err        error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Dependency, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// External wraps err as an ExternalError for the named dependency.
func External(dependency string, err error) error {
	return &ExternalError{Dependency: dependency, Err: err}
}
