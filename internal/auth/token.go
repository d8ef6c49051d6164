package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the subset of access token claims the client reads.
type AccessClaims struct {
	jwt.RegisteredClaims

	// Email is present on tokens issued by the API, absent on opaque ones
	Email string `json:"email,omitempty"`
}

// ParseAccessToken extracts claims from an access token without verifying
// its signature. The client never holds the signing key; claims are only
// used for display and for the proactive refresh check.
func ParseAccessToken(token string) (*AccessClaims, error) {
	if token == "" {
		return nil, NewError(ErrValidation, "token cannot be empty", nil)
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &AccessClaims{})
	if err != nil {
		return nil, WrapError(ErrValidation, "failed to parse token", err, nil)
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok {
		return nil, NewError(ErrValidation, "invalid token claims", nil)
	}

	return claims, nil
}

// AccessExpiry returns the exp claim of a JWT access token. ok is false for
// opaque tokens and tokens without an exp claim.
func AccessExpiry(token string) (time.Time, bool) {
	claims, err := ParseAccessToken(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ExpiresWithin reports whether the access token is known to expire within
// window of now. Opaque tokens never report true.
func ExpiresWithin(token string, window time.Duration, now time.Time) bool {
	exp, ok := AccessExpiry(token)
	if !ok {
		return false
	}
	return !exp.After(now.Add(window))
}
