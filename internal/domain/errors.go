package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrDataAccess      = errors.New("data access failed")
	ErrUpstream        = errors.New("upstream service failed")
	ErrServiceDisabled = errors.New("service disabled")
	ErrLockHeld        = errors.New("lock already held")
)

// FieldViolation describes one rejected request field.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

// ValidationError carries every field violation found in a request.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ComputationError reports a broken internal invariant. It is raised with
// panic and never returned to callers as a regular error.
type ComputationError struct {
	Op     string
	Reason string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation: %s: %s", e.Op, e.Reason)
}
