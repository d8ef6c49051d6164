// Package transport is the HTTP request/response pipeline the rest of the
// client talks to the API through.
//
// The client carries a mutable default Authorization header. Responses that
// signal an expired access token are handed to a Recoverer (the refresh
// coordinator) which decides whether and with which token the request is
// replayed. Every other failure is returned to the caller unchanged.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/ignite/internal/auth"
	"github.com/felixgeelhaar/ignite/internal/log"
)

// HeaderRequestID carries a per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// maxBodySize bounds response bodies read into memory.
const maxBodySize = 10 << 20

// Request is a replayable API request. Body is kept as bytes so the same
// request can be sent again after a token refresh.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header

	// NoRecover sends the request without token-expiry recovery.
	// The refresh call itself is sent this way.
	NoRecover bool
}

// NewJSONRequest marshals body into a Request.
func NewJSONRequest(method, path string, body interface{}) (*Request, error) {
	req := &Request{Method: method, Path: path}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		req.Body = data
	}
	return req, nil
}

// Response is a successful (2xx) API response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into target.
func (r *Response) Decode(target interface{}) error {
	if target == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, target); err != nil {
		return auth.WrapError(auth.ErrTransport, "failed to decode response", err, nil)
	}
	return nil
}

// Replay re-sends a failed request with accessToken.
type Replay func(ctx context.Context, accessToken string) error

// Recoverer resolves token-expiry failures.
//
// Recover is called with the access token the failed request was sent with
// and a Replay that re-sends it. Implementations call replay at most once and
// return its result, or return an error without replaying.
type Recoverer interface {
	Recover(ctx context.Context, staleToken string, replay Replay) error
}

// Config holds transport configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.example.com"
	BaseURL string

	// Timeout bounds each HTTP round trip (default: 30s)
	Timeout time.Duration

	// ExpiredMessage, when set, marks a 401 carrying exactly this message as
	// token expiry even without a structured code.
	ExpiredMessage string

	// HTTPClient overrides the underlying client (tests)
	HTTPClient *http.Client
}

// Client is the API transport.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	expiredMessage string
	logger         *log.Logger

	mu            sync.RWMutex
	authorization string
	recoverer     Recoverer
}

// NewClient creates a transport client.
func NewClient(cfg Config, logger *log.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = log.DefaultLogger()
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     httpClient,
		expiredMessage: cfg.ExpiredMessage,
		logger:         logger.With("component", "transport"),
	}
}

// SetAuthorization sets the default Authorization header value.
func (c *Client) SetAuthorization(value string) {
	c.mu.Lock()
	c.authorization = value
	c.mu.Unlock()
}

// ClearAuthorization removes the default Authorization header.
func (c *Client) ClearAuthorization() {
	c.SetAuthorization("")
}

// Authorization returns the current default Authorization header value.
func (c *Client) Authorization() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authorization
}

// Use installs r as the token-expiry recoverer. Use(nil) detaches it.
func (c *Client) Use(r Recoverer) {
	c.mu.Lock()
	c.recoverer = r
	c.mu.Unlock()
}

func (c *Client) currentRecoverer() Recoverer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recoverer
}

// Do sends req with the current Authorization header.
//
// A token-expiry failure is passed to the installed Recoverer unless
// req.NoRecover is set. A replayed request is never recovered again: if the
// replay fails with token expiry, that error is returned as is.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	header := c.Authorization()

	resp, err := c.send(ctx, req, header)
	if err == nil || req.NoRecover || !auth.IsAuthError(err, auth.ErrTokenExpired) {
		return resp, err
	}

	recoverer := c.currentRecoverer()
	if recoverer == nil {
		return nil, err
	}

	var replayed *Response
	err = recoverer.Recover(ctx, auth.TokenFromHeader(header), func(ctx context.Context, accessToken string) error {
		r, err := c.send(ctx, req, auth.BearerPrefix+accessToken)
		replayed = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return replayed, nil
}

// DoJSON builds a JSON request, sends it and decodes the response into target.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, target interface{}) error {
	req, err := NewJSONRequest(method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(target)
}

func (c *Client) send(ctx context.Context, req *Request, authorization string) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, auth.WrapError(auth.ErrTransport, "failed to create request", err, nil)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if authorization != "" {
		httpReq.Header.Set("Authorization", authorization)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set(HeaderRequestID, requestID)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.DebugContext(ctx, "request failed",
			"request_id", requestID, "method", req.Method, "path", req.Path, "error", err.Error())
		return nil, auth.WrapError(auth.ErrTransport, "failed to perform request", err, map[string]interface{}{
			"method": req.Method,
			"path":   req.Path,
		})
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, auth.WrapError(auth.ErrTransport, "failed to read response", err, nil)
	}

	c.logger.DebugContext(ctx, "request completed",
		"request_id", requestID,
		"method", req.Method,
		"path", req.Path,
		"status", httpResp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, c.decodeError(httpResp.StatusCode, data, req)
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   data,
	}, nil
}
