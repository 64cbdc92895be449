package engine

import (
	"errors"
	"fmt"
)

// Error represents a request rejected by the engine.
//
// Error categories:
//   - Validation: bad input shape or values, nothing is mutated
//   - Unauthorized: the sender may not perform the request
//   - Precondition: the request is valid but not yet (or no longer) allowed
//   - NotFound: the referenced vault, trigger or continuation does not exist
//   - Fatal: infrastructure or invariant failure, the request is rolled back
//
// Message is surfaced to callers verbatim.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// VaultID identifies the affected vault, zero when not applicable.
	VaultID uint64

	// Err is the underlying cause for fatal errors.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates malformed or out-of-range input.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeUnauthorized indicates the sender lacks permission.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// ErrCodePrecondition indicates the caller may retry later.
	ErrCodePrecondition ErrorCode = "PRECONDITION"

	// ErrCodeNotFound indicates a missing record.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeFatal indicates an unexpected failure.
	ErrCodeFatal ErrorCode = "FATAL"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.VaultID != 0 {
		return fmt.Sprintf("%s: %s (vault=%d)", e.Code, e.Message, e.VaultID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsValidation returns true if the error is a validation error.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsUnauthorized returns true if the error is an authorization error.
func IsUnauthorized(err error) bool { return hasCode(err, ErrCodeUnauthorized) }

// IsPrecondition returns true if the error is a precondition error.
func IsPrecondition(err error) bool { return hasCode(err, ErrCodePrecondition) }

// IsNotFound returns true if the error is a not-found error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsFatal returns true if the error is fatal. Errors that are not engine
// errors at all are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeFatal
	}
	return true
}

// CodeOf returns the category of err, or ErrCodeFatal for foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeFatal
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// NewValidationError creates an Error for rejected input.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewUnauthorizedError creates an Error for a sender without permission.
func NewUnauthorizedError() *Error {
	return &Error{Code: ErrCodeUnauthorized, Message: "Unauthorized"}
}

// NewPreconditionError creates an Error for a request that is not allowed
// in the vault's current state.
func NewPreconditionError(vaultID uint64, format string, args ...any) *Error {
	return &Error{Code: ErrCodePrecondition, Message: fmt.Sprintf(format, args...), VaultID: vaultID}
}

// NewNotFoundError creates an Error for a missing record.
func NewNotFoundError(what string, id uint64) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %d not found", what, id), VaultID: id}
}

// NewFatalError wraps an unexpected failure.
func NewFatalError(vaultID uint64, err error) *Error {
	return &Error{Code: ErrCodeFatal, Message: err.Error(), VaultID: vaultID, Err: err}
}

// validationFrom converts a domain validation failure into an Error,
// keeping its message.
func validationFrom(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: ErrCodeValidation, Message: err.Error()}
}
