package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/ignite/internal/auth"
	"github.com/felixgeelhaar/ignite/internal/credstore"
	"github.com/felixgeelhaar/ignite/internal/log"
	"github.com/felixgeelhaar/ignite/internal/transport"
)

func TestAPIChecker(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Status
	}{
		{"ok", http.StatusOK, StatusHealthy},
		{"not found is reachable", http.StatusNotFound, StatusHealthy},
		{"server error", http.StatusBadGateway, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := transport.NewClient(transport.Config{BaseURL: srv.URL, Timeout: time.Second}, log.Nop())
			result := NewAPIChecker(client, srv.URL).Check(context.Background())

			assert.Equal(t, tt.want, result.Status, result.Message)
		})
	}
}

func TestAPIChecker_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := transport.NewClient(transport.Config{BaseURL: url, Timeout: time.Second}, log.Nop())
	result := NewAPIChecker(client, url).Check(context.Background())

	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Details, "error")
}

type brokenStore struct{ credstore.Store }

func (brokenStore) LoadTokens(context.Context) (auth.TokenPair, bool, error) {
	return auth.TokenPair{}, false, errors.New("permission denied")
}

func TestStoreChecker(t *testing.T) {
	healthy := NewStoreChecker(credstore.NewMemoryStore(), credstore.TypeMemory).Check(context.Background())
	assert.Equal(t, StatusHealthy, healthy.Status)
	assert.Equal(t, credstore.TypeMemory, healthy.Details["type"])

	broken := NewStoreChecker(brokenStore{credstore.NewMemoryStore()}, credstore.TypeFile).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, broken.Status)
	assert.Equal(t, "permission denied", broken.Details["error"])
}

func TestSessionChecker(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	jwtAt := func(exp time.Time) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}).SignedString([]byte("k"))
		require.NoError(t, err)
		return s
	}
	profile := auth.UserProfile{ID: "u1", Email: "a@b.com"}

	tests := []struct {
		name string
		snap auth.Snapshot
		want Status
	}{
		{"signed out", auth.Snapshot{State: auth.StateUnauthenticated}, StatusDegraded},
		{"opaque token", auth.Snapshot{State: auth.StateAuthenticated, Profile: profile, Tokens: auth.TokenPair{AccessToken: "A1", RefreshToken: "R1"}}, StatusHealthy},
		{"valid jwt", auth.Snapshot{State: auth.StateAuthenticated, Profile: profile, Tokens: auth.TokenPair{AccessToken: jwtAt(now.Add(time.Hour)), RefreshToken: "R1"}}, StatusHealthy},
		{"expired jwt", auth.Snapshot{State: auth.StateAuthenticated, Profile: profile, Tokens: auth.TokenPair{AccessToken: jwtAt(now.Add(-time.Minute)), RefreshToken: "R1"}}, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewSessionChecker(func() auth.Snapshot { return tt.snap }, func() time.Time { return now })
			assert.Equal(t, tt.want, c.Check(context.Background()).Status)
		})
	}
}
