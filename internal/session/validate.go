package session

import (
	"net/mail"
	"strings"

	"github.com/felixgeelhaar/ignite/internal/auth"
)

// MinPasswordLength is the shortest password accepted on sign-up and on
// password change.
const MinPasswordLength = 6

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return auth.NewValidationError("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return auth.NewValidationError("email", "email is invalid")
	}
	return nil
}

func validateCredentials(email, password string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return auth.NewValidationError("password", "password is required")
	}
	return nil
}

func validateNewPassword(password string) error {
	if len(password) < MinPasswordLength {
		return auth.NewValidationError("password", "password must be at least 6 characters")
	}
	return nil
}

func validateSignUp(name, email, password string) error {
	if strings.TrimSpace(name) == "" {
		return auth.NewValidationError("name", "name is required")
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	return validateNewPassword(password)
}

func validateAccountUpdate(u AccountUpdate) error {
	if strings.TrimSpace(u.Name) == "" {
		return auth.NewValidationError("name", "name is required")
	}
	if u.NewPassword == "" {
		return nil
	}
	if u.OldPassword == "" {
		return auth.NewValidationError("old_password", "current password is required to set a new one")
	}
	return validateNewPassword(u.NewPassword)
}
