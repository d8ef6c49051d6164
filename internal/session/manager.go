// Package session owns the client's authentication state.
//
// A Manager restores the session from the credential store at startup, signs
// in and out, keeps the transport's Authorization header in step with the
// current token pair and wires a refresh.Coordinator into the transport so
// expired access tokens are renewed transparently.
//
// Every state change bumps a session epoch. A refresh that started under an
// older epoch cannot rotate tokens into a newer session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/ignite/internal/auth"
	"github.com/felixgeelhaar/ignite/internal/credstore"
	"github.com/felixgeelhaar/ignite/internal/log"
	"github.com/felixgeelhaar/ignite/internal/metrics"
	"github.com/felixgeelhaar/ignite/internal/platform"
	"github.com/felixgeelhaar/ignite/internal/refresh"
	"github.com/felixgeelhaar/ignite/internal/transport"
)

// API is the subset of the platform client the manager calls.
type API interface {
	SignIn(ctx context.Context, email, password string) (*platform.SignInResponse, error)
	SignUp(ctx context.Context, req platform.SignUpRequest) error
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	UpdateProfile(ctx context.Context, req platform.UpdateProfileRequest) (*auth.UserProfile, error)
}

// Authorizer is the transport surface the manager drives.
type Authorizer interface {
	SetAuthorization(value string)
	ClearAuthorization()
	Use(r transport.Recoverer)
}

// Options configures a Manager.
type Options struct {
	// RefreshTimeout bounds each refresh call (default: refresh.DefaultTimeout)
	RefreshTimeout time.Duration

	// ProactiveWindow makes EnsureFresh refresh access tokens that expire
	// within the window. Zero disables proactive refresh.
	ProactiveWindow time.Duration

	Logger  *log.Logger
	Metrics *metrics.Metrics

	// Now overrides the clock (tests)
	Now func() time.Time
}

// SignInResult is returned by a successful sign-in.
type SignInResult struct {
	Profile auth.UserProfile

	// Warning is set when the session works for this run but could not be
	// persisted. It is a *PersistWarning.
	Warning error
}

// PersistWarning reports a credential store failure after a successful
// sign-in.
type PersistWarning struct {
	Cause error
}

func (w *PersistWarning) Error() string {
	return "signed in, but the session could not be saved: " + w.Cause.Error()
}

func (w *PersistWarning) Unwrap() error {
	return w.Cause
}

// AccountUpdate changes the display name and optionally the password.
type AccountUpdate struct {
	Name        string
	OldPassword string
	NewPassword string
}

// Manager is the session state machine.
type Manager struct {
	store       credstore.Store
	api         API
	transport   Authorizer
	coordinator *refresh.Coordinator
	window      time.Duration
	now         func() time.Time
	logger      *log.Logger
	metrics     *metrics.Metrics
	listeners   listeners

	mu      sync.RWMutex
	state   auth.State
	profile auth.UserProfile
	tokens  auth.TokenPair
	epoch   uint64
}

// NewManager creates a Manager in the Restoring state and installs its
// refresh coordinator on t.
func NewManager(store credstore.Store, api API, t Authorizer, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.GetDefault()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Manager{
		store:     store,
		api:       api,
		transport: t,
		window:    opts.ProactiveWindow,
		now:       opts.Now,
		logger:    opts.Logger.With("component", "session"),
		metrics:   opts.Metrics,
		state:     auth.StateRestoring,
	}

	m.coordinator = refresh.New(api, hooks{m}, refresh.Options{
		Timeout: opts.RefreshTimeout,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	t.Use(m.coordinator)

	return m
}

// Restore loads the persisted session. It runs once; later calls return the
// current snapshot unchanged. Storage failures are logged and treated as no
// session.
func (m *Manager) Restore(ctx context.Context) auth.Snapshot {
	if m.State() != auth.StateRestoring {
		return m.Snapshot()
	}

	profile, hasProfile, err := m.store.LoadProfile(ctx)
	if err != nil {
		m.logger.WithError(err).WarnContext(ctx, "failed to load profile, starting signed out")
		hasProfile = false
	}
	tokens, hasTokens, err := m.store.LoadTokens(ctx)
	if err != nil {
		m.logger.WithError(err).WarnContext(ctx, "failed to load tokens, starting signed out")
		hasTokens = false
	}

	m.mu.Lock()
	if m.state != auth.StateRestoring {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap
	}
	if hasProfile && hasTokens && tokens.Valid() {
		m.setSessionLocked(profile, tokens)
	} else {
		m.clearSessionLocked()
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.metrics.Restores.WithLabelValues(snap.State.String()).Inc()
	m.logger.DebugContext(ctx, "session restored", "state", snap.State.String())
	m.listeners.notify(Event{Session: snap, Reason: ReasonRestore})

	return snap
}

// SignIn authenticates with email and password.
//
// Input is validated before any request is sent. On API failure the session
// is left as it was and the API error is returned unchanged. On success the
// session is Authenticated even if persisting it fails; that failure is
// reported as result.Warning.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	resp, err := m.api.SignIn(ctx, email, password)
	if err != nil {
		m.metrics.SignIns.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	pair := resp.Pair()
	m.mu.Lock()
	m.setSessionLocked(resp.User, pair)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	result := &SignInResult{Profile: resp.User}
	if err := m.persist(ctx, resp.User, pair); err != nil {
		m.logger.WithError(err).WarnContext(ctx, "signed in without persisting the session")
		result.Warning = &PersistWarning{Cause: err}
	}

	m.metrics.SignIns.WithLabelValues(metrics.OutcomeSuccess).Inc()
	m.logger.InfoContext(ctx, "signed in", "user_id", resp.User.ID)
	m.listeners.notify(Event{Session: snap, Reason: ReasonSignIn})

	return result, nil
}

// SignUp creates an account and signs in with it.
func (m *Manager) SignUp(ctx context.Context, name, email, password string) (*SignInResult, error) {
	if err := validateSignUp(name, email, password); err != nil {
		return nil, err
	}

	if err := m.api.SignUp(ctx, platform.SignUpRequest{
		Name:     name,
		Email:    email,
		Password: password,
	}); err != nil {
		return nil, err
	}

	return m.SignIn(ctx, email, password)
}

// SignOut ends the session. It is idempotent and never blocks on a pending
// refresh, so it is safe to call from a failing request's error path.
func (m *Manager) SignOut(ctx context.Context) {
	m.signOut(ctx, ReasonSignOut, 0, false)
}

// expire is the forced sign-out after a rejected refresh. It only applies to
// the session the refresh was started for.
func (m *Manager) expire(ctx context.Context, epoch uint64) {
	m.signOut(ctx, ReasonExpired, epoch, true)
}

func (m *Manager) signOut(ctx context.Context, reason Reason, epoch uint64, guarded bool) {
	m.mu.Lock()
	if guarded && m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	wasSignedIn := m.state == auth.StateAuthenticated
	m.clearSessionLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := credstore.ClearAll(ctx, m.store); err != nil {
		m.logger.WithError(err).WarnContext(ctx, "failed to clear credential store")
	}

	if !wasSignedIn {
		return
	}

	m.metrics.SignOuts.WithLabelValues(string(reason)).Inc()
	if reason == ReasonExpired {
		m.logger.WarnContext(ctx, "session expired, signed out")
	} else {
		m.logger.InfoContext(ctx, "signed out")
	}
	m.listeners.notify(Event{Session: snap, Reason: reason})
}

// UpdateUserProfile replaces the profile and persists it. The token pair is
// untouched.
func (m *Manager) UpdateUserProfile(ctx context.Context, profile auth.UserProfile) error {
	m.mu.Lock()
	if m.state != auth.StateAuthenticated {
		m.mu.Unlock()
		return auth.NewError(auth.ErrNotAuthenticated, "not signed in", nil)
	}
	m.profile = profile
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.store.SaveProfile(ctx, profile); err != nil {
		return err
	}

	m.listeners.notify(Event{Session: snap, Reason: ReasonProfile})
	return nil
}

// UpdateAccount sends a profile change to the API and stores the result.
func (m *Manager) UpdateAccount(ctx context.Context, u AccountUpdate) (auth.UserProfile, error) {
	current := m.Snapshot()
	if current.State != auth.StateAuthenticated {
		return auth.UserProfile{}, auth.NewError(auth.ErrNotAuthenticated, "not signed in", nil)
	}
	if err := validateAccountUpdate(u); err != nil {
		return auth.UserProfile{}, err
	}

	updated, err := m.api.UpdateProfile(ctx, platform.UpdateProfileRequest{
		Name:        u.Name,
		OldPassword: u.OldPassword,
		Password:    u.NewPassword,
	})
	if err != nil {
		return auth.UserProfile{}, err
	}

	profile := current.Profile
	if updated != nil {
		profile = *updated
	} else {
		profile.Name = u.Name
	}

	if err := m.UpdateUserProfile(ctx, profile); err != nil {
		return auth.UserProfile{}, err
	}
	return profile, nil
}

// rotateTokens installs a refreshed pair if epoch still names the current
// session. The header is updated under the lock so any request issued after
// this returns carries the new token.
func (m *Manager) rotateTokens(ctx context.Context, epoch uint64, pair auth.TokenPair) error {
	m.mu.Lock()
	if m.state != auth.StateAuthenticated || m.epoch != epoch {
		m.mu.Unlock()
		return auth.NewError(auth.ErrSessionExpired, "session ended during refresh", nil)
	}
	m.tokens = pair
	m.transport.SetAuthorization(pair.BearerHeader())
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.store.SaveTokens(ctx, pair); err != nil {
		m.logger.WithError(err).WarnContext(ctx, "failed to persist refreshed tokens")
	}

	m.listeners.notify(Event{Session: snap, Reason: ReasonRefresh})
	return nil
}

// EnsureFresh refreshes the access token ahead of time when it is known to
// expire within the proactive window. Opaque tokens are left alone.
func (m *Manager) EnsureFresh(ctx context.Context) error {
	if m.window <= 0 {
		return nil
	}
	snap := m.Snapshot()
	if !snap.Authenticated() || !auth.ExpiresWithin(snap.Tokens.AccessToken, m.window, m.now()) {
		return nil
	}

	m.logger.DebugContext(ctx, "access token about to expire, refreshing")
	return m.coordinator.Recover(ctx, snap.Tokens.AccessToken, func(context.Context, string) error {
		return nil
	})
}

// Subscribe registers fn for state changes and returns its unsubscribe func.
func (m *Manager) Subscribe(fn Listener) func() {
	return m.listeners.add(fn)
}

// State returns the current state.
func (m *Manager) State() auth.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Profile returns the signed-in profile, if any.
func (m *Manager) Profile() (auth.UserProfile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profile, m.state == auth.StateAuthenticated
}

// Tokens returns the current pair, if any.
func (m *Manager) Tokens() (auth.TokenPair, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens, m.state == auth.StateAuthenticated
}

// Snapshot returns a consistent copy of the session.
func (m *Manager) Snapshot() auth.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Close detaches the refresh coordinator from the transport and rejects any
// request still waiting on a refresh.
func (m *Manager) Close() {
	m.transport.Use(nil)
	m.coordinator.Close()
}

func (m *Manager) persist(ctx context.Context, profile auth.UserProfile, pair auth.TokenPair) error {
	if err := m.store.SaveTokens(ctx, pair); err != nil {
		return err
	}
	return m.store.SaveProfile(ctx, profile)
}

func (m *Manager) setSessionLocked(profile auth.UserProfile, pair auth.TokenPair) {
	m.epoch++
	m.state = auth.StateAuthenticated
	m.profile = profile
	m.tokens = pair
	m.transport.SetAuthorization(pair.BearerHeader())
}

func (m *Manager) clearSessionLocked() {
	m.epoch++
	m.state = auth.StateUnauthenticated
	m.profile = auth.UserProfile{}
	m.tokens = auth.TokenPair{}
	m.transport.ClearAuthorization()
}

func (m *Manager) snapshotLocked() auth.Snapshot {
	return auth.Snapshot{State: m.state, Profile: m.profile, Tokens: m.tokens}
}

// hooks exposes the manager's internal operations to its coordinator only.
type hooks struct {
	m *Manager
}

func (h hooks) Credentials() refresh.Credentials {
	h.m.mu.RLock()
	defer h.m.mu.RUnlock()
	return refresh.Credentials{
		Tokens:        h.m.tokens,
		Epoch:         h.m.epoch,
		Authenticated: h.m.state == auth.StateAuthenticated,
	}
}

func (h hooks) Rotate(ctx context.Context, epoch uint64, pair auth.TokenPair) error {
	return h.m.rotateTokens(ctx, epoch, pair)
}

func (h hooks) Expire(ctx context.Context, epoch uint64) {
	h.m.expire(ctx, epoch)
}
