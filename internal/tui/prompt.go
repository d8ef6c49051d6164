package tui

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
)

// Credentials is the result of the sign-in form
type Credentials struct {
	Email    string
	Password string
}

// SignUpInput is the result of the sign-up form
type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

// Prompt represents a simple interactive prompt configuration
type Prompt struct {
	Message     string
	Default     string
	Placeholder string
	Required    bool
}

// PromptForString displays an interactive prompt and returns the user's input
func PromptForString(p Prompt) (string, error) {
	value := p.Default

	input := huh.NewInput().
		Title(p.Message).
		Placeholder(p.Placeholder).
		Value(&value)
	if p.Required {
		input = input.Validate(Required(p.Message))
	}

	if err := huh.NewForm(huh.NewGroup(input)).Run(); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}

	return value, nil
}

// PromptForPassword reads a secret without echoing it
func PromptForPassword(title string, validate func(string) error) (string, error) {
	var value string

	input := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&value)
	if validate != nil {
		input = input.Validate(validate)
	}

	if err := huh.NewForm(huh.NewGroup(input)).Run(); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}

	return value, nil
}

// PromptForConfirmation displays a yes/no confirmation prompt
func PromptForConfirmation(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	confirm := huh.NewConfirm().
		Title(message).
		Value(&confirmed)

	if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}

	return confirmed, nil
}

// PromptForCredentials asks for e-mail and password. Values already known
// are used as defaults.
func PromptForCredentials(known Credentials) (Credentials, error) {
	creds := known

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("E-mail").
			Placeholder("you@example.com").
			Validate(Email).
			Value(&creds.Email),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Validate(Required("password")).
			Value(&creds.Password),
	))

	if err := form.Run(); err != nil {
		return Credentials{}, fmt.Errorf("prompt failed: %w", err)
	}

	return creds, nil
}

// PromptForSignUp asks for name, e-mail, password and its confirmation
func PromptForSignUp(known SignUpInput, minPassword int) (SignUpInput, error) {
	in := known
	var confirm string

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Name").
			Validate(Required("name")).
			Value(&in.Name),
		huh.NewInput().
			Title("E-mail").
			Placeholder("you@example.com").
			Validate(Email).
			Value(&in.Email),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Validate(MinLength("password", minPassword)).
			Value(&in.Password),
		huh.NewInput().
			Title("Confirm password").
			EchoMode(huh.EchoModePassword).
			Validate(Matches(&in.Password)).
			Value(&confirm),
	))

	if err := form.Run(); err != nil {
		return SignUpInput{}, fmt.Errorf("prompt failed: %w", err)
	}

	return in, nil
}

// Required returns a validator rejecting blank input
func Required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", strings.ToLower(field))
		}
		return nil
	}
}

// MinLength returns a validator enforcing a minimum length
func MinLength(field string, n int) func(string) error {
	return func(s string) error {
		if len(s) < n {
			return fmt.Errorf("%s must be at least %d characters", field, n)
		}
		return nil
	}
}

// Matches returns a validator requiring the input to equal *other
func Matches(other *string) func(string) error {
	return func(s string) error {
		if s != *other {
			return errors.New("passwords do not match")
		}
		return nil
	}
}

// Email validates a bare e-mail address
func Email(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("e-mail is required")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return errors.New("e-mail is invalid")
	}
	return nil
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt returns true if prompts should be shown based on environment
// Prompts are disabled in CI environments or when stdin is not a terminal
func ShouldPrompt() bool {
	ciEnvVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"BUILDKITE",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return false
		}
	}

	return IsInteractive()
}
