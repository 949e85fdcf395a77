// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
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
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "member", "journey", "notification"
	Op      string // Operation that failed, e.g., "Unlock", "Complete"
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

// Member domain errors
var (
	ErrMemberNotFound       = NewDomainError("member", "Find", ErrNotFound, "member not found")
	ErrMemberAlreadyExists  = NewDomainError("member", "Create", ErrAlreadyExists, "member already exists")
	ErrMemberNotActive      = NewDomainError("member", "CheckStatus", ErrInvalidState, "member is not active")
	ErrPreferencesNotFound  = NewDomainError("member", "FindPreferences", ErrNotFound, "preferences not found")
	ErrProgressNotFound     = NewDomainError("member", "FindProgress", ErrNotFound, "progress not found")
	ErrInvalidReminderCount = NewDomainError("member", "Validate", ErrValueOutOfRange, "reminder count must be 0, 1 or 2")
)

// Journey domain errors
var (
	ErrJourneyNotFound       = NewDomainError("journey", "Find", ErrNotFound, "journey not found")
	ErrJourneyAlreadyActive  = NewDomainError("journey", "Create", ErrAlreadyExists, "member already has an active journey")
	ErrJourneyNotActive      = NewDomainError("journey", "CheckStatus", ErrInvalidState, "journey is not active")
	ErrLessonNotFound        = NewDomainError("journey", "FindLesson", ErrNotFound, "lesson instance not found")
	ErrLessonNotAvailable    = NewDomainError("journey", "CheckLesson", ErrInvalidState, "lesson is not available")
	ErrLessonNotLocked       = NewDomainError("journey", "Unlock", ErrStateTransition, "lesson is not locked")
	ErrLessonAlreadyDone     = NewDomainError("journey", "Complete", ErrAlreadyProcessed, "lesson already completed")
	ErrInvalidPoints         = NewDomainError("journey", "Validate", ErrValueOutOfRange, "points must be between 0 and 25")
	ErrInvalidCommitment     = NewDomainError("journey", "SetCommitment", ErrInvalidInput, "commitment days must be positive")
	ErrInvalidCategory       = NewDomainError("journey", "Validate", ErrInvalidInput, "unknown lesson category")
	ErrAvailabilityViolation = NewDomainError("journey", "Unlock", ErrInvalidState, "more than one available lesson in category")
)

// Notification domain errors
var (
	ErrNotificationFailed   = NewDomainError("notification", "Send", ErrExternalService, "failed to send notification")
	ErrEmptyRecipient       = NewDomainError("notification", "Validate", ErrEmptyValue, "recipient address is empty")
	ErrNotificationDisabled = NewDomainError("notification", "Check", ErrInvalidState, "reminders disabled by member")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
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
		errors.Is(err, ErrConcurrentModification)
}
