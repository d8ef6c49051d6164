package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/ignite/internal/auth"
	"github.com/felixgeelhaar/ignite/internal/credstore"
	"github.com/felixgeelhaar/ignite/internal/log"
	"github.com/felixgeelhaar/ignite/internal/platform"
	"github.com/felixgeelhaar/ignite/internal/transport"
)

// fakeServer is a minimal API that issues A1/R1 on sign-in and rotates to
// A2/R2 on refresh. Only the current access token is accepted.
type fakeServer struct {
	mu           sync.Mutex
	current      string
	refreshes    int32
	rejectReplay bool
	rejectToken  bool

	// gate holds refresh responses until closed, when set
	gate chan struct{}
}

func (s *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.current = "A1"
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user":          testUser,
			"token":         "A1",
			"refresh_token": "R1",
		})
	})

	mux.HandleFunc("/sessions/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.refreshes, 1)
		if s.gate != nil {
			<-s.gate
		}
		var body platform.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if s.rejectToken || body.RefreshToken != "R1" {
			writeJSON(w, http.StatusUnauthorized, transport.ErrorResponse{Status: "error", Code: transport.CodeRefreshInvalid, Message: "invalid refresh token"})
			return
		}
		s.mu.Lock()
		s.current = "A2"
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"token": "A2", "refresh_token": "R2"})
	})

	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		current := s.current
		reject := s.rejectReplay
		s.mu.Unlock()

		if reject || r.Header.Get("Authorization") != auth.BearerPrefix+current {
			writeJSON(w, http.StatusUnauthorized, transport.ErrorResponse{Status: "error", Code: transport.CodeTokenExpired, Message: "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, []platform.HistoryDay{{Title: "17.10.26"}})
	})

	return mux
}

// expireAccessToken makes the server reject A1 while the client still holds it.
func (s *fakeServer) expireAccessToken() {
	s.mu.Lock()
	s.current = "expired"
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type stack struct {
	server    *fakeServer
	transport *transport.Client
	client    *platform.Client
	store     credstore.Store
	manager   *Manager
}

func newStack(t *testing.T, server *fakeServer) *stack {
	t.Helper()
	srv := httptest.NewServer(server.handler())
	t.Cleanup(srv.Close)

	tc := transport.NewClient(transport.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, log.Nop())
	client := platform.NewClient(tc)
	store := credstore.NewMemoryStore()
	m := NewManager(store, client, tc, testOptions())
	t.Cleanup(m.Close)

	m.Restore(context.Background())
	_, err := m.SignIn(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)

	return &stack{server: server, transport: tc, client: client, store: store, manager: m}
}

func TestIntegration_ConcurrentExpiryRefreshesOnce(t *testing.T) {
	server := &fakeServer{gate: make(chan struct{})}
	s := newStack(t, server)
	server.expireAccessToken()

	// Let the first refresh through once every request is waiting on it.
	go func() {
		assert.Eventually(t, s.manager.coordinator.InFlight, time.Second, time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		close(server.gate)
	}()

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 3; i++ {
		g.Go(func() error {
			days, err := s.client.History(ctx)
			if err == nil && len(days) != 1 {
				t.Errorf("expected one history day, got %d", len(days))
			}
			return err
		})
	}

	// The server only accepts R1, so a second refresh would have signed out.
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), atomic.LoadInt32(&server.refreshes))
	assert.Equal(t, "Bearer A2", s.transport.Authorization())

	pair, ok, err := s.store.LoadTokens(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, auth.TokenPair{AccessToken: "A2", RefreshToken: "R2"}, pair)
}

func TestIntegration_RejectedRefreshSignsOut(t *testing.T) {
	server := &fakeServer{rejectToken: true}
	s := newStack(t, server)
	server.expireAccessToken()

	var reasons []Reason
	var mu sync.Mutex
	s.manager.Subscribe(func(e Event) {
		mu.Lock()
		reasons = append(reasons, e.Reason)
		mu.Unlock()
	})

	_, err := s.client.History(context.Background())

	assert.True(t, auth.IsAuthError(err, auth.ErrSessionExpired), "got %v", err)
	assert.Equal(t, auth.StateUnauthenticated, s.manager.State())
	assert.Empty(t, s.transport.Authorization())
	_, ok, err := s.store.LoadTokens(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Reason{ReasonExpired}, reasons)
}

func TestIntegration_ReplayRejectedAgainPropagates(t *testing.T) {
	server := &fakeServer{}
	s := newStack(t, server)
	server.mu.Lock()
	server.rejectReplay = true
	server.mu.Unlock()

	_, err := s.client.History(context.Background())

	assert.True(t, auth.IsAuthError(err, auth.ErrTokenExpired), "got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&server.refreshes))
	assert.Equal(t, auth.StateAuthenticated, s.manager.State())
}

func TestIntegration_NonExpiryFailureBypassesRefresh(t *testing.T) {
	server := &fakeServer{}
	s := newStack(t, server)

	_, err := s.client.ExercisesByGroup(context.Background(), "costas")

	assert.True(t, auth.IsAuthError(err, auth.ErrTransport), "got %v", err)
	assert.Equal(t, http.StatusNotFound, transport.StatusCode(err))
	assert.Zero(t, atomic.LoadInt32(&server.refreshes))
}

func TestIntegration_SignOutDuringRefreshExpiresQueue(t *testing.T) {
	server := &fakeServer{gate: make(chan struct{})}
	s := newStack(t, server)
	server.expireAccessToken()

	const n = 3
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := s.client.History(context.Background())
			errs <- err
		}()
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&server.refreshes) == 1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	s.manager.SignOut(context.Background())
	close(server.gate)

	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			assert.True(t, auth.IsAuthError(err, auth.ErrSessionExpired), "got %v", err)
		case <-time.After(2 * time.Second):
			t.Fatal("request still blocked after sign-out")
		}
	}

	assert.Equal(t, auth.StateUnauthenticated, s.manager.State())
	assert.Empty(t, s.transport.Authorization(), "the refreshed pair must be discarded")
	_, ok, err := s.store.LoadTokens(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&server.refreshes))
}

func TestIntegration_SignOutFromExpiryHandlers(t *testing.T) {
	server := &fakeServer{rejectToken: true}
	s := newStack(t, server)
	server.expireAccessToken()

	var mu sync.Mutex
	var reasons []Reason
	s.manager.Subscribe(func(e Event) {
		mu.Lock()
		reasons = append(reasons, e.Reason)
		mu.Unlock()
		if e.Reason == ReasonExpired {
			s.manager.SignOut(context.Background())
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := s.client.History(context.Background())
		if auth.IsAuthError(err, auth.ErrSessionExpired) {
			s.manager.SignOut(context.Background())
		}
		done <- err
	}()

	select {
	case err := <-done:
		assert.True(t, auth.IsAuthError(err, auth.ErrSessionExpired), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("sign-out from the expiry handlers deadlocked")
	}

	assert.Equal(t, auth.StateUnauthenticated, s.manager.State())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Reason{ReasonExpired}, reasons, "repeated sign-outs notify once")
}
