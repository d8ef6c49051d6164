// Package platform is the remote API client. Every call goes through the
// transport, so authenticated calls are refreshed and replayed transparently
// when their access token expires.
package platform

import (
	"context"
	"net/http"
	"net/url"

	"github.com/felixgeelhaar/ignite/internal/transport"
)

// API paths
const (
	pathSessions       = "/sessions"
	pathRefresh        = "/sessions/refresh-token"
	pathUsers          = "/users"
	pathGroups         = "/groups"
	pathExercisesGroup = "/exercises/bygroup/"
	pathHistory        = "/history"
)

// Client is the platform API client
type Client struct {
	transport *transport.Client
}

// NewClient creates a new platform API client on top of t
func NewClient(t *transport.Client) *Client {
	return &Client{transport: t}
}

// Transport returns the underlying transport
func (c *Client) Transport() *transport.Client {
	return c.transport
}

// doJSON performs a request and decodes the JSON response into target.
// Requests sent with noRecover never trigger a token refresh.
func (c *Client) doJSON(ctx context.Context, method, path string, body, target interface{}, noRecover bool) error {
	req, err := transport.NewJSONRequest(method, path, body)
	if err != nil {
		return err
	}
	req.NoRecover = noRecover

	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(target)
}

func (c *Client) get(ctx context.Context, path string, target interface{}) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, target, false)
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
