package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("not allowed")
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrConflict           = errors.New("concurrent update, please retry")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrValidation         = errors.New("validation")

	// ErrSelfReference is returned when a user offers help on their own request.
	ErrSelfReference = fmt.Errorf("%w: you cannot offer help to your own request", ErrForbidden)
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// StateError reports a transition attempted from a status that does not allow it.
type StateError struct {
	Op     string
	Status RequestStatus
	Want   RequestStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s: request is %s, must be %s", e.Op, e.Status, e.Want)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// DeliveryError wraps a failed notification attempt. It is logged, never returned to callers
// of a state transition.
type DeliveryError struct {
	Channel string
	UserID  string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to %s: %v", e.Channel, e.UserID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
