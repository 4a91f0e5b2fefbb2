package usage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrInvalid is matched by every ValidationError.
	ErrInvalid = errors.New("invalid input")

	// ErrUnauthorized is matched by every AuthorizationError.
	ErrUnauthorized = errors.New("not authorized")

	// ErrConflict is returned when a write would duplicate an active insight
	// or when a policy changed status concurrently.
	ErrConflict = errors.New("conflict")

	// ErrPolicyResolutionAmbiguous is logged when more than one active policy
	// covers the same instant. It is never returned to callers.
	ErrPolicyResolutionAmbiguous = errors.New("multiple active policies overlap")
)

// ValidationError reports input rejected before anything was persisted.
type ValidationError struct {
	Entity string // "usage_event", "policy", "feedback"
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s: %s", e.Entity, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalid) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// NewInvalidUsageEvent creates a ValidationError for a usage event field.
func NewInvalidUsageEvent(field, reason string) *ValidationError {
	return &ValidationError{Entity: "usage_event", Field: field, Reason: reason}
}

// NewInvalidPolicy creates a ValidationError for a policy field.
func NewInvalidPolicy(field, reason string) *ValidationError {
	return &ValidationError{Entity: "policy", Field: field, Reason: reason}
}

// NewInvalidFeedback creates a ValidationError for a feedback field.
func NewInvalidFeedback(field, reason string) *ValidationError {
	return &ValidationError{Entity: "feedback", Field: field, Reason: reason}
}

// AuthorizationError reports a mutation attempted by a user who does not own
// the resource. No state is changed.
type AuthorizationError struct {
	UserID     string
	Resource   string
	ResourceID string
	Action     string
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %q may not %s %s %s", e.UserID, e.Action, e.Resource, e.ResourceID)
}

// Is makes errors.Is(err, ErrUnauthorized) true.
func (e *AuthorizationError) Is(target error) bool {
	return target == ErrUnauthorized
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) true.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFound creates a NotFoundError.
func NewNotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// StorageError represents an error from the storage backend.
type StorageError struct {
	Backend   string // "sqlite", "memory"
	Operation string // operation that failed
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}
