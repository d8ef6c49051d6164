// Package auth holds the client-side authentication model shared by the
// credential store, the transport, the refresh coordinator and the session
// manager.
//
// The package defines:
//   - TokenPair: the access/refresh token pair issued on sign-in and refresh
//   - UserProfile: the signed-in user as returned by the API
//   - State: the session state machine (Restoring, Unauthenticated, Authenticated)
//   - AuthError: coded errors that every other package returns
package auth

import (
	"strings"
)

// TokenPair is the credential pair issued by the API.
//
// Both tokens are rotated together on refresh and always persisted as one
// record. A pair with an empty field is never considered authenticated.
type TokenPair struct {
	// AccessToken authorizes individual API calls. Short-lived.
	AccessToken string `json:"access_token"`

	// RefreshToken is used solely to obtain a new pair. Long-lived.
	RefreshToken string `json:"refresh_token"`
}

// Valid reports whether both tokens are present.
func (p TokenPair) Valid() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// BearerHeader returns the Authorization header value for the access token.
func (p TokenPair) BearerHeader() string {
	return BearerPrefix + p.AccessToken
}

// BearerPrefix is prepended to the access token in the Authorization header.
const BearerPrefix = "Bearer "

// TokenFromHeader strips the bearer prefix from an Authorization header value.
func TokenFromHeader(header string) string {
	return strings.TrimPrefix(header, BearerPrefix)
}

// UserProfile is the authenticated user. The session layer stores it
// opaquely and only reads it for display.
type UserProfile struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Email     string `json:"email" yaml:"email"`
	AvatarRef string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
}

// IsZero reports whether the profile carries no identity.
func (u UserProfile) IsZero() bool {
	return u.ID == "" && u.Email == ""
}

// State is the session state machine.
type State int

const (
	// StateRestoring is the boot-time state while the credential store is read.
	StateRestoring State = iota
	// StateUnauthenticated means no usable session exists.
	StateUnauthenticated
	// StateAuthenticated means a profile and a valid token pair are loaded.
	StateAuthenticated
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateRestoring:
		return "restoring"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent copy of the session at one instant.
type Snapshot struct {
	State   State
	Profile UserProfile
	Tokens  TokenPair
}

// Authenticated reports whether the snapshot holds a usable session.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated && s.Tokens.Valid()
}
