package auth

import (
	"errors"
	"fmt"
)

// Error codes for session and credential failures
const (
	// Transport errors
	ErrTransport = "AUTH_TRANSPORT"

	// Token errors
	ErrTokenExpired    = "AUTH_TOKEN_EXPIRED"
	ErrRefreshRejected = "AUTH_REFRESH_REJECTED"

	// Session errors
	ErrSessionExpired   = "AUTH_SESSION_EXPIRED"
	ErrNotAuthenticated = "AUTH_NOT_AUTHENTICATED"

	// Persistence errors
	ErrStorage = "AUTH_STORAGE"

	// Input errors
	ErrValidation = "AUTH_VALIDATION"
	ErrConfig     = "AUTH_CONFIG"
)

// AuthError represents an authentication error with code and context.
type AuthError struct {
	// Code is the error code (e.g., AUTH_SESSION_EXPIRED)
	Code string

	// Message is a human-readable error message.
	// For server-reported failures it is the server's message verbatim.
	Message string

	// Context provides additional details about the error
	Context map[string]interface{}

	// Cause is the underlying error that caused this error
	Cause error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// NewError creates a new AuthError.
func NewError(code, message string, context map[string]interface{}) *AuthError {
	return &AuthError{
		Code:    code,
		Message: message,
		Context: context,
	}
}

// WrapError wraps an existing error with an AuthError.
func WrapError(code, message string, cause error, context map[string]interface{}) *AuthError {
	return &AuthError{
		Code:    code,
		Message: message,
		Context: context,
		Cause:   cause,
	}
}

// IsAuthError checks if an error is an AuthError with the given code.
// Wrapped errors are inspected with errors.As.
func IsAuthError(err error, code string) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code == code
	}
	return false
}

// Code returns the AuthError code of err, or "" if err is not an AuthError.
func Code(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return ""
}

// NewSessionExpired is the uniform rejection for requests that waited on a
// refresh that failed.
func NewSessionExpired(cause error) *AuthError {
	return WrapError(ErrSessionExpired, "session expired, sign in again", cause, nil)
}

// NewValidationError reports malformed sign-in or sign-up input.
func NewValidationError(field, message string) *AuthError {
	return NewError(ErrValidation, message, map[string]interface{}{
		"field": field,
	})
}
