// Package apperr defines the error taxonomy of the auth core.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Error codes
const (
	// Authentication-terminal errors: propagate to the caller.
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountBlocked     = "ACCOUNT_BLOCKED"
	CodePendingDeletion    = "ACCOUNT_PENDING_DELETION"
	CodeNotAuthenticated   = "NOT_AUTHENTICATED"

	// Recoverable errors: absorbed at component boundaries.
	CodeTransientRemote = "TRANSIENT_REMOTE"

	// Internal errors
	CodeInternalError = "INTERNAL_ERROR"
	CodeConfigError   = "CONFIG_ERROR"
)

// AppError represents a structured application error.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Constructor functions

func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// InvalidCredentials is returned for a wrong password or unknown email.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:    CodeInvalidCredentials,
		Message: "invalid email or password",
	}
}

// AccountBlocked is returned for a temporarily blocked account. until is
// the block expiry.
func AccountBlocked(until time.Time) *AppError {
	return &AppError{
		Code:    CodeAccountBlocked,
		Message: fmt.Sprintf("account blocked until %s", until.UTC().Format(time.RFC3339)),
		Details: map[string]any{"until": until.UTC()},
	}
}

// AccountBlockedPermanently is returned when no block expiry is set.
func AccountBlockedPermanently() *AppError {
	return &AppError{
		Code:    CodeAccountBlocked,
		Message: "account blocked",
	}
}

// AccountPendingDeletion is surfaced distinctly so the caller can offer
// to cancel the deletion.
func AccountPendingDeletion(daysRemaining int) *AppError {
	return &AppError{
		Code:    CodePendingDeletion,
		Message: "account scheduled for deletion",
		Details: map[string]any{"days_remaining": daysRemaining},
	}
}

// NotAuthenticated is the only user-facing error of operations that
// require a current user.
func NotAuthenticated() *AppError {
	return &AppError{
		Code:    CodeNotAuthenticated,
		Message: "no authenticated user",
	}
}

// TransientRemote wraps a network/5xx-class remote failure. Never
// terminal on its own.
func TransientRemote(service string, err error) *AppError {
	return &AppError{
		Code:    CodeTransientRemote,
		Message: fmt.Sprintf("transient failure from %s", service),
		Details: map[string]any{"service": service},
		Err:     err,
	}
}

func Internal(message string) *AppError {
	if message == "" {
		message = "internal error"
	}
	return &AppError{Code: CodeInternalError, Message: message}
}

func ConfigError(message string) *AppError {
	return &AppError{Code: CodeConfigError, Message: message}
}

// Helper functions

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternalError, "internal error")
}

func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsTerminal reports whether err must end the current authentication
// attempt instead of triggering a fallback path.
func IsTerminal(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case CodeInvalidCredentials, CodeAccountBlocked, CodePendingDeletion, CodeNotAuthenticated:
		return true
	}
	return false
}

// IsTransient reports whether err is a recoverable remote failure.
func IsTransient(err error) bool {
	return HasCode(err, CodeTransientRemote)
}

// BlockedUntil extracts the block expiry, if the error carries one.
func BlockedUntil(err error) (time.Time, bool) {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Code != CodeAccountBlocked {
		return time.Time{}, false
	}
	until, ok := appErr.Details["until"].(time.Time)
	return until, ok
}
