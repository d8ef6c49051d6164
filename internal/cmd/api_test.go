package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/felixgeelhaar/ignite/internal/errors"
	"github.com/felixgeelhaar/ignite/internal/exitcode"
)

func TestAPISubcommands(t *testing.T) {
	for _, path := range [][]string{
		{"api", "groups"},
		{"api", "exercises"},
		{"api", "history"},
		{"api", "history", "add"},
		{"api", "burst"},
		{"profile", "show"},
		{"profile", "update"},
	} {
		findCommand(t, path...)
	}
}

func TestAPI_RequiresSession(t *testing.T) {
	isolate(t)
	srv := (&fakeAPI{}).server(t)

	_, _, err := execute(t, "", "api", "groups", "--api-url", srv.URL)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeNotSignedIn, appErr.Code)
	assert.Equal(t, exitcode.AuthError, exitcode.DetermineExitCode(err))
}

func TestAPI_Groups(t *testing.T) {
	isolate(t)
	srv := (&fakeAPI{}).server(t)
	mustExecute(t, "", "auth", "login", "--api-url", srv.URL, "--email", "a@b.com", "--password", "secret1")

	out := mustExecute(t, "", "api", "groups", "--api-url", srv.URL)

	assert.Equal(t, "costas\nombro\n", out)
}

func TestAPI_HistoryRefreshesExpiredToken(t *testing.T) {
	isolate(t)
	api := &fakeAPI{}
	srv := api.server(t)
	mustExecute(t, "", "auth", "login", "--api-url", srv.URL, "--email", "a@b.com", "--password", "secret1")
	api.expire()

	out := mustExecute(t, "", "api", "history", "--api-url", srv.URL)
	assert.Contains(t, out, "17.10.26")
	assert.Contains(t, out, "Remada")

	// The rotated pair was persisted for the next run.
	out = mustExecute(t, "", "api", "groups", "--api-url", srv.URL)
	assert.Contains(t, out, "costas")
}

func TestAPI_Burst(t *testing.T) {
	isolate(t)
	api := &fakeAPI{}
	srv := api.server(t)
	mustExecute(t, "", "auth", "login", "--api-url", srv.URL, "--email", "a@b.com", "--password", "secret1")
	api.expire()

	out := mustExecute(t, "", "api", "burst", "-n", "8", "--api-url", srv.URL, "-o", "json")

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.EqualValues(t, 8, res["requests"])
	assert.EqualValues(t, 8, res["succeeded"])
}

func TestAPI_BurstRejectsZero(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "", "api", "burst", "-n", "0")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, appErr.Code)
}

func TestProfile_Show(t *testing.T) {
	isolate(t)
	srv := (&fakeAPI{}).server(t)
	mustExecute(t, "", "auth", "login", "--api-url", srv.URL, "--email", "a@b.com", "--password", "secret1")

	out := mustExecute(t, "", "profile", "show", "--api-url", srv.URL)

	assert.Contains(t, out, "Ana <a@b.com>")
	assert.Contains(t, out, "id: u1")
}

func TestDoctor(t *testing.T) {
	isolate(t)
	srv := (&fakeAPI{}).server(t)
	mustExecute(t, "", "auth", "login", "--api-url", srv.URL, "--email", "a@b.com", "--password", "secret1")

	out := mustExecute(t, "", "doctor", "--api-url", srv.URL, "-o", "json")

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "healthy", res["status"])
	assert.Len(t, res["checks"], 3)
}
