// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrExpired      = errors.New("expired")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "grading", "transcript", "conformance"
	Op      string // Operation that failed, e.g., "LetterToPoint"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Domain == t.Domain && e.Op == t.Op && e.Kind == t.Kind && e.Message == t.Message
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Grading domain errors
var (
	ErrUnknownGradeLetter = NewDomainError("grading", "Lookup", ErrInvalidInput, "unknown grade letter")
	ErrScoreOutOfRange    = NewDomainError("grading", "ValidateScore", ErrValueOutOfRange, "score must be within [0, 10]")
	ErrNoGradeProvided    = NewDomainError("grading", "Resolve", ErrEmptyValue, "course has neither score nor letter grade")
	ErrInvalidCredits     = NewDomainError("grading", "Validate", ErrNegativeValue, "credits must be positive")
	ErrCreditsOutOfRange  = NewDomainError("grading", "Validate", ErrValueOutOfRange, "credits must be within [0, 30]")
)

// Transcript domain errors
var (
	ErrSemesterNotFound      = NewDomainError("transcript", "FindSemester", ErrNotFound, "semester not found")
	ErrCourseNotFound        = NewDomainError("transcript", "FindCourse", ErrNotFound, "course not found")
	ErrInvalidSemesterNumber = NewDomainError("transcript", "Validate", ErrValueOutOfRange, "semester number must be 1, 2 or 3")
	ErrInvalidAcademicYear   = NewDomainError("transcript", "Validate", ErrValueOutOfRange, "invalid academic year")
	ErrEmptyCourseCode       = NewDomainError("transcript", "Validate", ErrEmptyValue, "course code cannot be empty")
	ErrNothingToAdd          = NewDomainError("transcript", "BulkAdd", ErrInvalidInput, "no catalog courses selected")
)

// Conformance domain errors
var (
	ErrReportNotFound   = NewDomainError("conformance", "Find", ErrNotFound, "conformance report not found")
	ErrInvalidTolerance = NewDomainError("conformance", "Validate", ErrValueOutOfRange, "tolerance must be non-negative")
)

// External service errors
var (
	ErrBackendUnavailable     = NewDomainError("gpaapi", "Request", ErrServiceUnavailable, "GPA backend is unavailable")
	ErrBackendRateLimited     = NewDomainError("gpaapi", "Request", ErrRateLimited, "GPA backend rate limit exceeded")
	ErrBackendUnauthorized    = NewDomainError("gpaapi", "Request", ErrUnauthorized, "GPA backend rejected the credentials")
	ErrBackendInvalidResponse = NewDomainError("gpaapi", "Parse", ErrInvalidFormat, "invalid response from GPA backend")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsUnauthorized checks if the error is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}
