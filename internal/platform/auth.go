package platform

import (
	"context"
	"net/http"

	"github.com/felixgeelhaar/ignite/internal/auth"
)

// SignInRequest represents a sign-in request
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInResponse represents a sign-in response
type SignInResponse struct {
	User         auth.UserProfile `json:"user"`
	Token        string           `json:"token"`
	RefreshToken string           `json:"refresh_token"`
}

// Pair returns the issued token pair
func (r *SignInResponse) Pair() auth.TokenPair {
	return auth.TokenPair{AccessToken: r.Token, RefreshToken: r.RefreshToken}
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse represents a token refresh response
type RefreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// SignUpRequest represents an account creation request
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest changes the display name and optionally the password.
// OldPassword is required by the API whenever Password is set.
type UpdateProfileRequest struct {
	Name        string `json:"name"`
	OldPassword string `json:"old_password,omitempty"`
	Password    string `json:"password,omitempty"`
}

// SignIn authenticates with e-mail and password
func (c *Client) SignIn(ctx context.Context, email, password string) (*SignInResponse, error) {
	var resp SignInResponse
	if err := c.doJSON(ctx, http.MethodPost, pathSessions, SignInRequest{
		Email:    email,
		Password: password,
	}, &resp, true); err != nil {
		return nil, err
	}

	if resp.Token == "" || resp.RefreshToken == "" {
		return nil, auth.NewError(auth.ErrTransport, "sign-in response is missing tokens", nil)
	}

	return &resp, nil
}

// Refresh exchanges a refresh token for a new pair. It is sent without
// token-expiry recovery; an expiry response means the refresh token itself
// was rejected.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	var resp RefreshResponse
	if err := c.doJSON(ctx, http.MethodPost, pathRefresh, RefreshRequest{
		RefreshToken: refreshToken,
	}, &resp, true); err != nil {
		if auth.IsAuthError(err, auth.ErrTokenExpired) {
			return auth.TokenPair{}, auth.WrapError(auth.ErrRefreshRejected, "refresh token rejected", err, nil)
		}
		return auth.TokenPair{}, err
	}

	return auth.TokenPair{AccessToken: resp.Token, RefreshToken: resp.RefreshToken}, nil
}

// SignUp creates a new account. It does not sign in.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) error {
	return c.doJSON(ctx, http.MethodPost, pathUsers, req, nil, true)
}

// UpdateProfile updates the signed-in user. The returned profile is nil when
// the API answers without a body.
func (c *Client) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*auth.UserProfile, error) {
	var user auth.UserProfile
	if err := c.doJSON(ctx, http.MethodPut, pathUsers, req, &user, false); err != nil {
		return nil, err
	}
	if user.IsZero() {
		return nil, nil
	}
	return &user, nil
}
