package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/ignite/internal/auth"
)

// Error codes the API puts in its error payload.
const (
	CodeTokenExpired   = "token.expired"
	CodeTokenInvalid   = "token.invalid"
	CodeRefreshInvalid = "refresh.invalid"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Status  string `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// decodeError maps a non-2xx response onto the error taxonomy. The server's
// message is kept verbatim so callers can show it.
func (c *Client) decodeError(status int, body []byte, req *Request) error {
	var payload ErrorResponse
	_ = json.Unmarshal(body, &payload)

	message := payload.Message
	if message == "" {
		message = payload.Error
	}

	context := map[string]interface{}{
		"status": status,
		"method": req.Method,
		"path":   req.Path,
	}
	if payload.Code != "" {
		context["code"] = payload.Code
	}

	switch {
	case payload.Code == CodeTokenExpired || payload.Code == CodeTokenInvalid:
		return auth.NewError(auth.ErrTokenExpired, orDefault(message, "access token expired"), context)

	case payload.Code == CodeRefreshInvalid:
		return auth.NewError(auth.ErrRefreshRejected, orDefault(message, "refresh token rejected"), context)

	case status == http.StatusUnauthorized && c.expiredMessage != "" && message == c.expiredMessage:
		return auth.NewError(auth.ErrTokenExpired, message, context)
	}

	if message == "" {
		message = fmt.Sprintf("request failed with status %d: %s", status, string(body))
	}
	return auth.NewError(auth.ErrTransport, message, context)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// StatusCode returns the HTTP status recorded on a transport error, or 0.
func StatusCode(err error) int {
	var authErr *auth.AuthError
	if !errors.As(err, &authErr) {
		return 0
	}
	status, _ := authErr.Context["status"].(int)
	return status
}
