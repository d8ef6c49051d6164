package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/felixgeelhaar/ignite/internal/auth"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeNotSignedIn, "test error message")

	if err.Code != ErrCodeNotSignedIn {
		t.Errorf("expected code %s, got %s", ErrCodeNotSignedIn, err.Code)
	}

	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}

	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeStorageFailed, "failed to read file", cause)

	if err.Code != ErrCodeStorageFailed {
		t.Errorf("expected code %s, got %s", ErrCodeStorageFailed, err.Code)
	}

	if err.Cause != cause {
		t.Errorf("expected cause to be set")
	}

	// Test unwrapping
	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantCode string
		wantMsg  string
	}{
		{
			name:     "simple error",
			err:      New(ErrCodeInvalidInput, "email is required"),
			wantCode: "INPUT-001",
			wantMsg:  "email is required",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeStorageFailed, "write failed", fmt.Errorf("permission denied")),
			wantCode: "IO-001",
			wantMsg:  "permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()

			if !strings.Contains(errStr, tt.wantCode) {
				t.Errorf("error string should contain code %s, got: %s", tt.wantCode, errStr)
			}

			if !strings.Contains(errStr, tt.wantMsg) {
				t.Errorf("error string should contain message '%s', got: %s", tt.wantMsg, errStr)
			}
		})
	}
}

func TestWithSuggestions(t *testing.T) {
	err := New(ErrCodeAPIFailed, "request failed").
		WithSuggestion("Suggestion 1").
		WithSuggestions("Suggestion 2", "Suggestion 3")

	if len(err.Suggestions) != 3 {
		t.Errorf("expected 3 suggestions, got %d", len(err.Suggestions))
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "Suggestions:") {
		t.Errorf("error string should contain suggestions section")
	}
	for _, suggestion := range err.Suggestions {
		if !strings.Contains(errStr, suggestion) {
			t.Errorf("error string should contain suggestion: %s", suggestion)
		}
	}
}

func TestWithDocs(t *testing.T) {
	docsURL := "https://github.com/felixgeelhaar/ignite#docs"
	err := New(ErrCodeConfigInvalid, "invalid config").
		WithDocs(docsURL)

	if err.DocsURL != docsURL {
		t.Errorf("expected DocsURL %s, got %s", docsURL, err.DocsURL)
	}

	if !strings.Contains(err.Error(), "Documentation: "+docsURL) {
		t.Errorf("error string should contain docs URL")
	}
}

func TestNewSessionExpiredError(t *testing.T) {
	cause := auth.NewSessionExpired(nil)
	err := NewSessionExpiredError(cause)

	if err.Code != ErrCodeSessionExpired {
		t.Errorf("expected code %s, got %s", ErrCodeSessionExpired, err.Code)
	}

	if !strings.Contains(err.Error(), "ignite auth login") {
		t.Errorf("expected login suggestion, got: %s", err.Error())
	}

	if !auth.IsAuthError(err, auth.ErrSessionExpired) {
		t.Errorf("expected the auth cause to stay reachable")
	}
}

func TestFromAuth(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{"session expired", auth.NewSessionExpired(nil), ErrCodeSessionExpired},
		{"refresh rejected", auth.NewError(auth.ErrRefreshRejected, "bad refresh", nil), ErrCodeSessionExpired},
		{"not authenticated", auth.NewError(auth.ErrNotAuthenticated, "no session", nil), ErrCodeNotSignedIn},
		{"token expired", auth.NewError(auth.ErrTokenExpired, "expired", nil), ErrCodeTokenExpired},
		{"validation", auth.NewValidationError("email", "email is required"), ErrCodeInvalidInput},
		{"storage", auth.NewError(auth.ErrStorage, "disk", nil), ErrCodeStorageFailed},
		{"config", auth.NewError(auth.ErrConfig, "bad type", nil), ErrCodeConfigInvalid},
		{"network", auth.WrapError(auth.ErrTransport, "failed to perform request", fmt.Errorf("dial"), nil), ErrCodeNetwork},
		{"api", auth.NewError(auth.ErrTransport, "E-mail já cadastrado.", map[string]interface{}{"status": 400}), ErrCodeAPIFailed},
		{"wrapped", fmt.Errorf("history: %w", auth.NewSessionExpired(nil)), ErrCodeSessionExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromAuth(tt.err)

			var appErr *AppError
			if !errors.As(got, &appErr) {
				t.Fatalf("expected AppError, got %T", got)
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, appErr.Code)
			}
		})
	}
}

func TestFromAuth_Passthrough(t *testing.T) {
	if FromAuth(nil) != nil {
		t.Errorf("expected nil for nil error")
	}

	plain := fmt.Errorf("plain")
	if FromAuth(plain) != plain {
		t.Errorf("expected non-auth errors to pass through")
	}

	app := NewNotSignedInError()
	if FromAuth(app) != error(app) {
		t.Errorf("expected AppError to pass through")
	}
}

func TestFromAuth_KeepsServerMessage(t *testing.T) {
	err := FromAuth(auth.NewError(auth.ErrTransport, "E-mail já cadastrado.", map[string]interface{}{"status": 400}))

	if !strings.Contains(err.Error(), "E-mail já cadastrado.") {
		t.Errorf("expected server message verbatim, got: %s", err.Error())
	}
}
