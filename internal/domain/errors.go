package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrDuplicateID        = errors.New("duplicate id")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
)

// NotFoundError indicates a workspace, dashboard or resource was not found.
// It is returned both when the target does not exist and when it belongs to
// another identity; the message never distinguishes the two.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError indicates invalid input on a named field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InvalidOrderError is a ValidationError raised by tile reorder when the
// submitted ids are not a permutation of the dashboard's tiles.
type InvalidOrderError struct {
	Missing []string
	Extra   []string
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("order: not a permutation of dashboard tiles (missing %v, unexpected %v)", e.Missing, e.Extra)
}

func (e *InvalidOrderError) StatusCode() int { return http.StatusBadRequest }

func (e *InvalidOrderError) Is(target error) bool {
	return target == ErrInvalidOrder || target == ErrValidation
}

// QuotaExceededError reports the exact usage numbers so callers can render
// "you have used 5 of 5".
type QuotaExceededError struct {
	Action string
	Used   int
	Limit  int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: used %d of %d", e.Action, e.Used, e.Limit)
}

func (e *QuotaExceededError) StatusCode() int { return http.StatusTooManyRequests }

func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }

// DuplicateIDError indicates an insert collided with an existing id in the
// same container.
type DuplicateIDError struct {
	Resource string
	ID       string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Resource, e.ID)
}

func (e *DuplicateIDError) StatusCode() int { return http.StatusConflict }

func (e *DuplicateIDError) Is(target error) bool { return target == ErrDuplicateID }

// BackendUnavailableError indicates a storage backend could not be reached.
type BackendUnavailableError struct {
	Backend string
	Cause   error
}

func (e *BackendUnavailableError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s backend unavailable", e.Backend)
	}
	return fmt.Sprintf("%s backend unavailable: %v", e.Backend, e.Cause)
}

func (e *BackendUnavailableError) StatusCode() int { return http.StatusServiceUnavailable }

func (e *BackendUnavailableError) Unwrap() error { return e.Cause }

func (e *BackendUnavailableError) Is(target error) bool { return target == ErrBackendUnavailable }

// ForbiddenError indicates the caller's identity may not perform the action.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

func (e *ForbiddenError) StatusCode() int { return http.StatusForbidden }

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// NewNotFound is shorthand for &NotFoundError{...}.
func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// NewValidation is shorthand for &ValidationError{...}.
func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Unavailable wraps a backend connectivity failure.
func Unavailable(backend string, cause error) error {
	return &BackendUnavailableError{Backend: backend, Cause: cause}
}

// IsKnown reports whether err already carries a domain error.
func IsKnown(err error) bool {
	var known HTTPError
	return errors.As(err, &known)
}
