package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/ignite/internal/auth"
	"github.com/felixgeelhaar/ignite/internal/log"
	"github.com/felixgeelhaar/ignite/internal/transport"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]interface{}
}

type recorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *recorder) at(i int) recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *recorder) {
	t.Helper()
	calls := &recorder{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.EscapedPath(), auth: r.Header.Get("Authorization")}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		calls.mu.Lock()
		calls.calls = append(calls.calls, rec)
		calls.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	tc := transport.NewClient(transport.Config{BaseURL: srv.URL}, log.Nop())
	return NewClient(tc), calls
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// countingRecoverer records recovery attempts.
type countingRecoverer struct {
	calls int
}

func (c *countingRecoverer) Recover(context.Context, string, transport.Replay) error {
	c.calls++
	return auth.NewSessionExpired(nil)
}

func TestSignIn(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user":          map[string]string{"id": "u1", "name": "Ana", "email": "a@b.com"},
			"token":         "A1",
			"refresh_token": "R1",
		})
	})

	resp, err := client.SignIn(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)

	assert.Equal(t, auth.TokenPair{AccessToken: "A1", RefreshToken: "R1"}, resp.Pair())
	assert.Equal(t, "Ana", resp.User.Name)
	require.Equal(t, 1, calls.count())
	assert.Equal(t, http.MethodPost, calls.at(0).method)
	assert.Equal(t, "/sessions", calls.at(0).path)
	assert.Equal(t, "a@b.com", calls.at(0).body["email"])
	assert.Equal(t, "secret1", calls.at(0).body["password"])
}

func TestSignIn_MissingTokens(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": map[string]string{"id": "u1"}, "token": "A1"})
	})

	_, err := client.SignIn(context.Background(), "a@b.com", "secret1")
	assert.True(t, auth.IsAuthError(err, auth.ErrTransport))
}

func TestSignIn_NeverRecovers(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, transport.ErrorResponse{
			Status: "error", Code: transport.CodeTokenExpired, Message: "token expired",
		})
	})
	rec := &countingRecoverer{}
	client.Transport().Use(rec)

	_, err := client.SignIn(context.Background(), "a@b.com", "secret1")

	assert.True(t, auth.IsAuthError(err, auth.ErrTokenExpired))
	assert.Zero(t, rec.calls)
}

func TestSignIn_ServerMessageVerbatim(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, transport.ErrorResponse{Status: "error", Message: "E-mail e/ou senha incorreta."})
	})

	_, err := client.SignIn(context.Background(), "a@b.com", "wrong")

	var authErr *auth.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "E-mail e/ou senha incorreta.", authErr.Message)
	assert.Equal(t, http.StatusUnauthorized, transport.StatusCode(err))
}

func TestRefresh(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"token": "A2", "refresh_token": "R2"})
	})

	pair, err := client.Refresh(context.Background(), "R1")
	require.NoError(t, err)

	assert.Equal(t, auth.TokenPair{AccessToken: "A2", RefreshToken: "R2"}, pair)
	assert.Equal(t, "/sessions/refresh-token", calls.at(0).path)
	assert.Equal(t, "R1", calls.at(0).body["refresh_token"])
}

func TestRefresh_Rejected(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"refresh token invalid", transport.CodeRefreshInvalid},
		{"token expired on refresh call", transport.CodeTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, transport.ErrorResponse{Status: "error", Code: tt.code})
			})
			rec := &countingRecoverer{}
			client.Transport().Use(rec)

			_, err := client.Refresh(context.Background(), "R1")

			assert.True(t, auth.IsAuthError(err, auth.ErrRefreshRejected), "got %v", err)
			assert.Zero(t, rec.calls)
		})
	}
}

func TestSignUp(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	err := client.SignUp(context.Background(), SignUpRequest{Name: "Ana", Email: "a@b.com", Password: "secret1"})
	require.NoError(t, err)

	assert.Equal(t, "/users", calls.at(0).path)
	assert.Equal(t, "Ana", calls.at(0).body["name"])
}

func TestSignUp_Duplicate(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, transport.ErrorResponse{Status: "error", Message: "Este e-mail já está em uso."})
	})

	err := client.SignUp(context.Background(), SignUpRequest{Name: "Ana", Email: "a@b.com", Password: "secret1"})

	var authErr *auth.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Este e-mail já está em uso.", authErr.Message)
}

func TestUpdateProfile(t *testing.T) {
	t.Run("with body", func(t *testing.T) {
		client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"id": "u1", "name": "Ana Maria", "email": "a@b.com"})
		})

		user, err := client.UpdateProfile(context.Background(), UpdateProfileRequest{
			Name: "Ana Maria", OldPassword: "secret1", Password: "secret2",
		})
		require.NoError(t, err)
		require.NotNil(t, user)

		assert.Equal(t, "Ana Maria", user.Name)
		assert.Equal(t, http.MethodPut, calls.at(0).method)
		assert.Equal(t, "secret1", calls.at(0).body["old_password"])
	})

	t.Run("without body", func(t *testing.T) {
		client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		user, err := client.UpdateProfile(context.Background(), UpdateProfileRequest{Name: "Ana"})
		require.NoError(t, err)

		assert.Nil(t, user)
		_, hasPassword := calls.at(0).body["password"]
		assert.False(t, hasPassword)
	})
}

func TestCatalog(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/groups":
			writeJSON(w, http.StatusOK, []string{"costas", "ombro"})
		default:
			writeJSON(w, http.StatusOK, []Exercise{{ID: "1", Name: "Remada", Group: "costas", Series: 3, Repetitions: "12"}})
		}
	})
	client.Transport().SetAuthorization("Bearer A1")

	groups, err := client.Groups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"costas", "ombro"}, groups)

	exercises, err := client.ExercisesByGroup(context.Background(), "membros inferiores")
	require.NoError(t, err)
	require.Len(t, exercises, 1)
	assert.Equal(t, "Remada", exercises[0].Name)

	assert.Equal(t, "/exercises/bygroup/membros%20inferiores", calls.at(1).path)
	assert.Equal(t, "Bearer A1", calls.at(1).auth)
}

func TestHistory(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			return
		}
		writeJSON(w, http.StatusOK, []HistoryDay{{
			Title: "26.08.22",
			Data:  []HistoryEntry{{ID: "h1", Name: "Remada", Group: "costas", Hour: "14:30"}},
		}})
	})

	require.NoError(t, client.RegisterHistory(context.Background(), "1"))
	days, err := client.History(context.Background())
	require.NoError(t, err)

	require.Len(t, days, 1)
	assert.Equal(t, "Remada", days[0].Data[0].Name)
	assert.Equal(t, "1", calls.at(0).body["exercise_id"])
}
