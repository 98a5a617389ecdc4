package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError indicates that caller-supplied input failed a domain rule.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// ForbiddenError indicates the actor is not allowed to act on this resource.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// NewForbiddenError creates a ForbiddenError with the given message.
func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

// NotFoundError indicates a referenced entity does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewNotFoundError creates a NotFoundError for the given resource and identifier.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError indicates a concurrent modification clash (optimistic lock miss).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NewConflictError creates a ConflictError with the given message.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// InvalidTransitionError indicates a status change that the state machine
// does not permit. It carries enough context for the caller to reconstruct
// the cause: the current status, the requested status, and the set of legal
// next states.
type InvalidTransitionError struct {
	Current   string
	Requested string
	ValidNext []string
}

func (e *InvalidTransitionError) Error() string {
	next := "none"
	if len(e.ValidNext) > 0 {
		next = strings.Join(e.ValidNext, ", ")
	}
	return fmt.Sprintf("cannot transition from %s to %s; valid transitions: %s", e.Current, e.Requested, next)
}

// NewInvalidTransitionError creates an InvalidTransitionError.
func NewInvalidTransitionError(current, requested string, validNext []string) *InvalidTransitionError {
	return &InvalidTransitionError{Current: current, Requested: requested, ValidNext: validNext}
}

// IsValidation reports whether err is a ValidationError or InvalidTransitionError.
func IsValidation(err error) bool {
	var ve *ValidationError
	var te *InvalidTransitionError
	return errors.As(err, &ve) || errors.As(err, &te)
}

// IsForbidden reports whether err is a ForbiddenError.
func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
