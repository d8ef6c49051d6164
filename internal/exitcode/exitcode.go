// Package exitcode maps command errors onto process exit codes.
package exitcode

import (
	stderrors "errors"
	"os"
	"strings"

	"github.com/felixgeelhaar/ignite/internal/auth"
	"github.com/felixgeelhaar/ignite/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage or rejected input
	UsageError = 2

	// ConfigError indicates invalid configuration
	ConfigError = 3

	// StorageError indicates the credential store could not be used
	StorageError = 4

	// AuthError indicates an authentication failure or an expired session
	AuthError = 5

	// NetworkError indicates a network connectivity issue
	NetworkError = 6

	// Interrupted indicates the command was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	code := DetermineExitCode(err)
	Exit(code)
}

// DetermineExitCode analyzes an error and returns the appropriate exit code.
// Coded errors are mapped by code; anything else falls back to message
// heuristics.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return fromAppCode(appErr.Code)
	}

	if code := auth.Code(err); code != "" {
		return fromAuthCode(code)
	}

	errMsg := strings.ToLower(err.Error())

	// Usage errors
	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown flag") ||
		strings.Contains(errMsg, "unknown command") || strings.Contains(errMsg, "invalid argument") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "missing argument") ||
		strings.Contains(errMsg, "accepts ") {
		return UsageError
	}

	// Network errors
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host") {
		return NetworkError
	}
	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "unreachable") {
		return NetworkError
	}

	// Default to general error
	return GeneralError
}

func fromAppCode(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeNotSignedIn, errors.ErrCodeSessionExpired, errors.ErrCodeSignInFailed,
		errors.ErrCodeRefreshRejected, errors.ErrCodeTokenExpired:
		return AuthError
	case errors.ErrCodeInvalidInput:
		return UsageError
	case errors.ErrCodeNetwork:
		return NetworkError
	case errors.ErrCodeConfigInvalid:
		return ConfigError
	case errors.ErrCodeStorageFailed, errors.ErrCodeSessionPersisted:
		return StorageError
	default:
		return GeneralError
	}
}

func fromAuthCode(code string) int {
	switch code {
	case auth.ErrTokenExpired, auth.ErrRefreshRejected, auth.ErrSessionExpired, auth.ErrNotAuthenticated:
		return AuthError
	case auth.ErrValidation:
		return UsageError
	case auth.ErrConfig:
		return ConfigError
	case auth.ErrStorage:
		return StorageError
	default:
		return GeneralError
	}
}

// All lists the exit codes in ascending order.
var All = []int{Success, GeneralError, UsageError, ConfigError, StorageError, AuthError, NetworkError, Interrupted}

// Describe returns a human-readable description of an exit code.
func Describe(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or input)"
	case ConfigError:
		return "Configuration error"
	case StorageError:
		return "Credential store error"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
