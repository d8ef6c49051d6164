package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/ignite/internal/transport"
)

// fakeAPI signs in a@b.com/secret1 with A1/R1 and rotates to A2/R2.
type fakeAPI struct {
	mu      sync.Mutex
	current string
	expired bool
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret1" {
			writeJSON(w, http.StatusUnauthorized, transport.ErrorResponse{Status: "error", Message: "E-mail e/ou senha incorreta."})
			return
		}
		f.mu.Lock()
		f.current = "A1"
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user":          map[string]string{"id": "u1", "name": "Ana", "email": body.Email},
			"token":         "A1",
			"refresh_token": "R1",
		})
	})

	mux.HandleFunc("/sessions/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.current, f.expired = "A2", false
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"token": "A2", "refresh_token": "R2"})
	})

	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]string{})
	})

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			ok := !f.expired && r.Header.Get("Authorization") == "Bearer "+f.current
			f.mu.Unlock()
			if !ok {
				writeJSON(w, http.StatusUnauthorized, transport.ErrorResponse{Status: "error", Code: transport.CodeTokenExpired, Message: "token expired"})
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("/groups", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []string{"costas", "ombro"})
	}))
	mux.HandleFunc("/history", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]interface{}{
			{"title": "17.10.26", "data": []map[string]string{{"id": "1", "name": "Remada", "group": "costas", "hour": "08:00"}}},
		})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeAPI) expire() {
	f.mu.Lock()
	f.expired = true
	f.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// isolate gives each test its own home directory and disables prompts.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CI", "true")
	for _, key := range []string{"IGNITE_API_URL", "IGNITE_STORE_TYPE", "IGNITE_STORE_DIR", "IGNITE_METRICS_ADDR"} {
		t.Setenv(key, "")
	}
	return home
}

// resetFlags restores every flag of the tree to its default, since the
// command tree is package state shared by all tests.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func mustExecute(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, stderr, err := execute(t, stdin, args...)
	require.NoError(t, err, "stderr: %s", stderr)
	return out
}

func findCommand(t *testing.T, path ...string) *cobra.Command {
	t.Helper()
	c, _, err := rootCmd.Find(path)
	require.NoError(t, err)
	require.Equal(t, path[len(path)-1], c.Name())
	return c
}
