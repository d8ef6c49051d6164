// Package errors defines the user-facing error type the CLI prints: a code,
// a message, suggestions and a documentation link.
//
// Domain packages return auth.AuthError values; FromAuth converts them into
// AppError at the command boundary.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/ignite/internal/auth"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Session errors (SESSION-001 to SESSION-099)
	ErrCodeNotSignedIn      ErrorCode = "SESSION-001"
	ErrCodeSessionExpired   ErrorCode = "SESSION-002"
	ErrCodeSignInFailed     ErrorCode = "SESSION-003"
	ErrCodeRefreshRejected  ErrorCode = "SESSION-004"
	ErrCodeTokenExpired     ErrorCode = "SESSION-005"
	ErrCodeSessionPersisted ErrorCode = "SESSION-006"

	// Input errors (INPUT-001 to INPUT-099)
	ErrCodeInvalidInput ErrorCode = "INPUT-001"

	// Network errors (NET-001 to NET-099)
	ErrCodeNetwork   ErrorCode = "NET-001"
	ErrCodeAPIFailed ErrorCode = "NET-002"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeStorageFailed ErrorCode = "IO-001"
)

const docsBase = "https://github.com/felixgeelhaar/ignite#"

// AppError represents an enhanced error with code, suggestions, and documentation
type AppError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder

	// Error code and message
	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	// Add cause if present
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	// Add suggestions
	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	// Add documentation link
	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AppError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *AppError) WithSuggestion(suggestion string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *AppError) WithDocs(url string) *AppError {
	e.DocsURL = url
	return e
}

// Common error constructors for frequently used errors

// NewNotSignedInError is returned by commands that need a session.
func NewNotSignedInError() *AppError {
	return New(ErrCodeNotSignedIn, "not signed in").
		WithSuggestion("Run 'ignite auth login' to sign in").
		WithDocs(docsBase + "authentication")
}

// NewSessionExpiredError reports a forced sign-out after a rejected refresh.
func NewSessionExpiredError(cause error) *AppError {
	return Wrap(ErrCodeSessionExpired, "your session has expired", cause).
		WithSuggestion("Run 'ignite auth login' to sign in again").
		WithDocs(docsBase + "session-expiry")
}

// NewSignInFailedError carries the server's message verbatim.
func NewSignInFailedError(message string, cause error) *AppError {
	return Wrap(ErrCodeSignInFailed, message, cause).
		WithSuggestions(
			"Check your e-mail and password",
			"Run 'ignite auth register' if you do not have an account yet",
		)
}

// NewNetworkError reports connectivity failures.
func NewNetworkError(cause error) *AppError {
	return Wrap(ErrCodeNetwork, "could not reach the API", cause).
		WithSuggestions(
			"Check your network connection",
			"Verify api.url with 'ignite config get api.url'",
		)
}

// NewInvalidInputError reports malformed command input.
func NewInvalidInputError(details string) *AppError {
	return New(ErrCodeInvalidInput, details).
		WithSuggestion("Run the command with --help to see the expected input")
}

// NewPersistWarning reports that a session works for this run but could not
// be saved for the next one.
func NewPersistWarning(cause error) *AppError {
	return Wrap(ErrCodeSessionPersisted, "signed in, but the session could not be saved", cause).
		WithSuggestions(
			"Check permissions on the store directory (store.dir)",
			"You will need to sign in again next time",
		)
}

// NewStorageError reports credential store failures.
func NewStorageError(cause error) *AppError {
	return Wrap(ErrCodeStorageFailed, "credential store failure", cause).
		WithSuggestions(
			"Check permissions on the store directory (store.dir)",
			"Check store.encryption_key if records were sealed with a different key",
		)
}

// NewConfigError reports invalid configuration.
func NewConfigError(details string, cause error) *AppError {
	return Wrap(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details), cause).
		WithSuggestion("Run 'ignite config view' to inspect the effective configuration").
		WithDocs(docsBase + "configuration")
}

// FromAuth converts an auth.AuthError chain into an AppError. Errors that are
// already AppErrors, and errors outside the auth taxonomy, are returned as is.
func FromAuth(err error) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return err
	}

	var authErr *auth.AuthError
	if !stderrors.As(err, &authErr) {
		return err
	}

	switch authErr.Code {
	case auth.ErrSessionExpired, auth.ErrRefreshRejected:
		return NewSessionExpiredError(err)
	case auth.ErrNotAuthenticated:
		return NewNotSignedInError()
	case auth.ErrTokenExpired:
		return Wrap(ErrCodeTokenExpired, authErr.Message, err).
			WithSuggestion("Retry the command; the access token was rejected after a refresh")
	case auth.ErrValidation:
		return NewInvalidInputError(authErr.Message)
	case auth.ErrStorage:
		return NewStorageError(err)
	case auth.ErrConfig:
		return NewConfigError(authErr.Message, err)
	case auth.ErrTransport:
		if authErr.Context["status"] == nil {
			return NewNetworkError(err)
		}
		return New(ErrCodeAPIFailed, authErr.Message)
	default:
		return err
	}
}
