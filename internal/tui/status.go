package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/ignite/internal/auth"
)

// Styles holds the lipgloss styles used for command output
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Border  lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")), // Purple
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")). // Gray
			Width(16),
		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")),
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226")), // Yellow
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
	}
}

// StatusView is the data shown by `ignite auth status`
type StatusView struct {
	Session   auth.Snapshot
	StoreType string
	Now       time.Time
}

// RenderStatus renders the session box
func RenderStatus(v StatusView, s Styles) string {
	var b strings.Builder

	b.WriteString(s.Title.Render("Session"))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(s.Label.Render(label))
		b.WriteString(s.Value.Render(value))
		b.WriteString("\n")
	}

	state := v.Session.State.String()
	switch v.Session.State {
	case auth.StateAuthenticated:
		state = s.Success.Render(state)
	default:
		state = s.Warning.Render(state)
	}
	b.WriteString(s.Label.Render("State"))
	b.WriteString(state)
	b.WriteString("\n")

	if v.Session.Authenticated() {
		p := v.Session.Profile
		row("Name", p.Name)
		row("E-mail", p.Email)
		row("User ID", p.ID)
		row("Access token", MaskToken(v.Session.Tokens.AccessToken))
		row("Expires", DescribeExpiry(v.Session.Tokens.AccessToken, v.Now))
	}
	if v.StoreType != "" {
		row("Store", v.StoreType)
	}

	return s.Border.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderNotice renders a one-line notice in the given style
func RenderNotice(style lipgloss.Style, icon, msg string) string {
	return style.Render(icon+" ") + msg
}

// MaskToken keeps the first characters of a token for identification
func MaskToken(token string) string {
	const keep = 8
	if len(token) <= keep {
		return strings.Repeat("*", len(token))
	}
	return token[:keep] + "..."
}

// DescribeExpiry renders the access token expiry relative to now
func DescribeExpiry(token string, now time.Time) string {
	exp, ok := auth.AccessExpiry(token)
	if !ok {
		return "unknown (opaque token)"
	}
	d := exp.Sub(now).Round(time.Second)
	if d <= 0 {
		return fmt.Sprintf("expired %s ago (refreshes on next request)", -d)
	}
	return fmt.Sprintf("in %s", d)
}
