// Package refresh coordinates access-token refresh for concurrent requests.
//
// When a request fails because its access token expired, the coordinator
// suspends it, issues a single refresh call no matter how many requests are
// failing at the same time, rotates the session's token pair and replays each
// suspended request once with the new access token. If the refresh fails the
// whole queue is rejected with a session-expired error and the session is
// signed out.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/ignite/internal/auth"
	"github.com/felixgeelhaar/ignite/internal/log"
	"github.com/felixgeelhaar/ignite/internal/metrics"
	"github.com/felixgeelhaar/ignite/internal/transport"
)

// DefaultTimeout bounds a single refresh call.
const DefaultTimeout = 30 * time.Second

// Refresher exchanges a refresh token for a new pair. Implementations must
// send the call without token-expiry recovery.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
}

// Credentials is the session view the coordinator works from.
type Credentials struct {
	Tokens        auth.TokenPair
	Epoch         uint64
	Authenticated bool
}

// Session is the part of the session manager the coordinator drives.
type Session interface {
	// Credentials returns the current pair and session epoch.
	Credentials() Credentials

	// Rotate installs pair if the session epoch is still epoch.
	Rotate(ctx context.Context, epoch uint64, pair auth.TokenPair) error

	// Expire signs the session out if its epoch is still epoch.
	Expire(ctx context.Context, epoch uint64)
}

// Options configures a Coordinator.
type Options struct {
	// Timeout bounds the refresh call (default: DefaultTimeout)
	Timeout time.Duration

	// Logger defaults to log.DefaultLogger()
	Logger *log.Logger

	// Metrics defaults to metrics.GetDefault()
	Metrics *metrics.Metrics
}

type waiter struct {
	ctx    context.Context
	replay transport.Replay
	done   chan error
}

// flight stays in progress from the refresh call until its queue is fully
// replayed, so requests failing in between join the same queue in order.
type flight struct {
	epoch  uint64
	queue  []*waiter
	cancel context.CancelFunc

	// rotated is set once the new pair is installed
	rotated     bool
	accessToken string
	settled     chan struct{}
}

// Coordinator implements transport.Recoverer with a single-flight refresh.
type Coordinator struct {
	refresher Refresher
	session   Session
	timeout   time.Duration
	logger    *log.Logger
	metrics   *metrics.Metrics

	mu       sync.Mutex
	inflight *flight
	closed   bool
	wg       sync.WaitGroup
}

var _ transport.Recoverer = (*Coordinator)(nil)

// New creates a Coordinator.
func New(refresher Refresher, session Session, opts Options) *Coordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.GetDefault()
	}

	return &Coordinator{
		refresher: refresher,
		session:   session,
		timeout:   opts.Timeout,
		logger:    opts.Logger.With("component", "refresh"),
		metrics:   opts.Metrics,
	}
}

// Recover suspends a request that failed with token expiry until a refresh
// resolves it. staleToken is the access token the request was sent with.
//
// The returned error is the replay's own result, auth.ErrSessionExpired when
// the refresh failed, or ctx.Err() if ctx ends first.
func (c *Coordinator) Recover(ctx context.Context, staleToken string, replay transport.Replay) error {
	w := &waiter{ctx: ctx, replay: replay, done: make(chan error, 1)}

	c.mu.Lock()
	for c.mustWaitLocked(staleToken) {
		// The refreshed token was rejected as well, or the session changed
		// since the rotation. Let the current queue settle, then start over.
		settled := c.inflight.settled
		c.mu.Unlock()
		select {
		case <-settled:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
	}

	switch {
	case c.closed:
		c.mu.Unlock()
		return auth.NewSessionExpired(nil)

	case c.inflight != nil:
		c.inflight.queue = append(c.inflight.queue, w)
		c.mu.Unlock()

	default:
		creds := c.session.Credentials()
		if !creds.Authenticated || creds.Tokens.RefreshToken == "" {
			c.mu.Unlock()
			c.metrics.RefreshAttempts.WithLabelValues(metrics.OutcomeSkipped).Inc()
			return auth.NewSessionExpired(nil)
		}

		if staleToken != creds.Tokens.AccessToken {
			// A rotation already happened after this request was sent.
			c.mu.Unlock()
			c.logger.DebugContext(ctx, "replaying stale request with current token")
			err := replay(ctx, creds.Tokens.AccessToken)
			c.recordReplay(metrics.OutcomeStale, err)
			return err
		}

		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		f := &flight{epoch: creds.Epoch, queue: []*waiter{w}, cancel: cancel, settled: make(chan struct{})}
		c.inflight = f
		c.wg.Add(1)
		c.mu.Unlock()

		go c.run(refreshCtx, f, creds.Tokens.RefreshToken)
	}

	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) run(ctx context.Context, f *flight, refreshToken string) {
	defer c.wg.Done()
	defer f.cancel()

	start := time.Now()
	pair, err := c.refresher.Refresh(ctx, refreshToken)
	c.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	if err == nil && !pair.Valid() {
		err = auth.NewError(auth.ErrRefreshRejected, "refresh returned an incomplete token pair", nil)
	}

	if err == nil {
		if c.isClosed() {
			err = auth.NewError(auth.ErrSessionExpired, "coordinator closed during refresh", nil)
		} else if rotateErr := c.session.Rotate(ctx, f.epoch, pair); rotateErr != nil {
			c.logger.InfoContext(ctx, "discarding refresh result", "reason", rotateErr.Error())
			c.metrics.RefreshAttempts.WithLabelValues(metrics.OutcomeStale).Inc()
			c.fail(f, rotateErr)
			return
		}
	}

	if err != nil {
		c.metrics.RefreshAttempts.WithLabelValues(refreshOutcome(err)).Inc()
		c.logger.WithError(err).WarnContext(ctx, "token refresh failed, signing out")
		if !c.isClosed() {
			c.session.Expire(ctx, f.epoch)
		}
		c.fail(f, err)
		return
	}

	c.metrics.RefreshAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
	c.metrics.Rotations.Inc()

	c.mu.Lock()
	f.rotated = true
	f.accessToken = pair.AccessToken
	queued := len(f.queue)
	c.mu.Unlock()
	c.metrics.QueueDepth.Observe(float64(queued))
	c.logger.DebugContext(ctx, "token refreshed, replaying queued requests", "queued", queued)

	for w := c.pop(f); w != nil; {
		err := w.ctx.Err()
		if err != nil {
			c.metrics.Replays.WithLabelValues(metrics.OutcomeSkipped).Inc()
		} else {
			err = w.replay(w.ctx, pair.AccessToken)
			c.recordReplay(metrics.OutcomeSuccess, err)
		}
		next := c.pop(f)
		w.done <- err
		w = next
	}
}

// mustWaitLocked reports whether a failure cannot join the flight that is
// replaying its queue. c.mu must be held.
func (c *Coordinator) mustWaitLocked(staleToken string) bool {
	f := c.inflight
	if f == nil || !f.rotated || c.closed {
		return false
	}
	if staleToken == f.accessToken {
		return true
	}
	creds := c.session.Credentials()
	return !creds.Authenticated || creds.Epoch != f.epoch
}

// pop removes the next waiter to replay. When the queue is empty it ends the
// flight and returns nil.
func (c *Coordinator) pop(f *flight) *waiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(f.queue) == 0 {
		c.end(f)
		return nil
	}
	w := f.queue[0]
	f.queue = f.queue[1:]
	return w
}

// fail rejects every waiter of f with a session-expired error.
func (c *Coordinator) fail(f *flight, cause error) {
	queue := c.drain(f)
	for _, w := range queue {
		w.done <- auth.NewSessionExpired(cause)
	}
}

// drain detaches f's queue and ends the flight. Waiters that arrive
// afterwards start a new flight or take the stale shortcut.
func (c *Coordinator) drain(f *flight) []*waiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	queue := f.queue
	f.queue = nil
	c.end(f)
	c.metrics.QueueDepth.Observe(float64(len(queue)))
	return queue
}

// end clears the in-flight handle. c.mu must be held.
func (c *Coordinator) end(f *flight) {
	if c.inflight == f {
		c.inflight = nil
	}
	close(f.settled)
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Coordinator) recordReplay(outcome string, err error) {
	if err != nil {
		outcome = metrics.OutcomeError
		c.metrics.Errors.WithLabelValues(auth.Code(err), "refresh").Inc()
	}
	c.metrics.Replays.WithLabelValues(outcome).Inc()
}

// InFlight reports whether a refresh or its replays are outstanding.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}

// Close refuses new recoveries, cancels an outstanding refresh and waits for
// its queue to be rejected.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	if c.inflight != nil {
		c.inflight.cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()
}

func refreshOutcome(err error) string {
	switch auth.Code(err) {
	case auth.ErrRefreshRejected, auth.ErrTokenExpired, auth.ErrSessionExpired:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
