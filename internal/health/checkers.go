package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/ignite/internal/auth"
	"github.com/felixgeelhaar/ignite/internal/credstore"
	"github.com/felixgeelhaar/ignite/internal/transport"
)

// Requester is the transport surface the API check uses.
type Requester interface {
	Do(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// APIChecker verifies that the API answers. Any HTTP response counts as
// reachable; only transport failures are unhealthy.
type APIChecker struct {
	client  Requester
	baseURL string
}

// NewAPIChecker creates an API reachability check.
func NewAPIChecker(client Requester, baseURL string) *APIChecker {
	return &APIChecker{client: client, baseURL: baseURL}
}

// Name returns the check name.
func (c *APIChecker) Name() string { return "api" }

// Check probes the API root without authentication recovery.
func (c *APIChecker) Check(ctx context.Context) *Result {
	_, err := c.client.Do(ctx, &transport.Request{Method: http.MethodGet, Path: "/", NoRecover: true})
	status := transport.StatusCode(err)

	switch {
	case err == nil:
		return Healthy("API reachable").WithDetail("url", c.baseURL)
	case status >= 500:
		return Degraded(fmt.Sprintf("API answered with status %d", status)).WithDetail("url", c.baseURL)
	case status != 0:
		return Healthy("API reachable").WithDetail("url", c.baseURL).WithDetail("status", status)
	default:
		return Unhealthy("API unreachable").WithDetail("url", c.baseURL).WithDetail("error", err.Error())
	}
}

// StoreChecker verifies that the stored records can be read.
type StoreChecker struct {
	store     credstore.Store
	storeType string
}

// NewStoreChecker creates a credential store check.
func NewStoreChecker(store credstore.Store, storeType string) *StoreChecker {
	return &StoreChecker{store: store, storeType: storeType}
}

// Name returns the check name.
func (c *StoreChecker) Name() string { return "credential-store" }

// Check reads both records.
func (c *StoreChecker) Check(ctx context.Context) *Result {
	if _, _, err := c.store.LoadTokens(ctx); err != nil {
		return Unhealthy("cannot read stored tokens").WithDetail("type", c.storeType).WithDetail("error", err.Error())
	}
	if _, _, err := c.store.LoadProfile(ctx); err != nil {
		return Unhealthy("cannot read stored profile").WithDetail("type", c.storeType).WithDetail("error", err.Error())
	}
	return Healthy("store readable").WithDetail("type", c.storeType)
}

// SessionChecker reports whether a usable session is loaded.
type SessionChecker struct {
	snapshot func() auth.Snapshot
	now      func() time.Time
}

// NewSessionChecker creates a session check over a snapshot source.
func NewSessionChecker(snapshot func() auth.Snapshot, now func() time.Time) *SessionChecker {
	if now == nil {
		now = time.Now
	}
	return &SessionChecker{snapshot: snapshot, now: now}
}

// Name returns the check name.
func (c *SessionChecker) Name() string { return "session" }

// Check inspects the snapshot. An expired access token is only degraded
// since the next request refreshes it.
func (c *SessionChecker) Check(ctx context.Context) *Result {
	snap := c.snapshot()
	if !snap.Authenticated() {
		return Degraded("not signed in")
	}

	r := Healthy("signed in").WithDetail("user", snap.Profile.Email)
	exp, ok := auth.AccessExpiry(snap.Tokens.AccessToken)
	if !ok {
		return r
	}
	r.WithDetail("expires_at", exp.UTC().Format(time.RFC3339))
	if !exp.After(c.now()) {
		r.Status = StatusDegraded
		r.Message = "access token expired, the next request refreshes it"
	}
	return r
}
