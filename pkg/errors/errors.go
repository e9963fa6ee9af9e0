// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrPersonNotFound          = errors.New("person not found")
	ErrApplicationNotFound     = errors.New("application not found")
	ErrPrerequisiteNotFound    = errors.New("prerequisite license not found")
	ErrActiveApplicationExists = errors.New("active application already exists for person and license type")
	ErrStaleApplication        = errors.New("application was modified concurrently")
	ErrApplicationNumberTaken  = errors.New("application number already assigned")
	ErrFeesNotSettled          = errors.New("fees paid does not equal total fees")
	ErrOverpayment             = errors.New("payment exceeds total fees")
	ErrSequenceUnavailable     = errors.New("application number sequence unavailable")
	ErrUnknownTransitionAction = errors.New("unknown transition action")
	ErrMissingRejectionReason  = errors.New("rejection reason is required")
	ErrDuplicateRequest        = errors.New("duplicate request")
)

// RuleFailure is a single failed eligibility check with its stable code.
type RuleFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError reports one or more failed eligibility checks. It is
// always recoverable by the caller; it never indicates a system fault.
type ValidationError struct {
	Failures []RuleFailure
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Code, f.Message))
	}
	return "application validation failed: " + strings.Join(msgs, "; ")
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IllegalTransitionError is returned when a lifecycle action is not
// permitted from the application's current status. It signals caller
// misuse, never data corruption, and is never silently ignored.
type IllegalTransitionError struct {
	Status string
	Action string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal state transition: action %s not permitted from status %s", e.Action, e.Status)
}

// IsIllegalTransition reports whether err is (or wraps) an IllegalTransitionError.
func IsIllegalTransition(err error) bool {
	var te *IllegalTransitionError
	return errors.As(err, &te)
}

// IsConflict reports whether err is one of the conflict-kind errors:
// a duplicate active application or a lost optimistic-concurrency race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrActiveApplicationExists) ||
		errors.Is(err, ErrStaleApplication) ||
		errors.Is(err, ErrApplicationNumberTaken)
}

// IsNotFound reports whether err is one of the not-found-kind errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPersonNotFound) ||
		errors.Is(err, ErrApplicationNotFound) ||
		errors.Is(err, ErrPrerequisiteNotFound)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
