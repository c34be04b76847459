package rest_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup(t *testing.T) {
	app := newTestApp(t)

	w := postJSON(app.router, "/api/auth/signup", map[string]string{
		"email":        "alice@example.com",
		"display_name": "alice",
		"password":     "pass123456",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
	user := resp["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["display_name"])
}

func TestSignupDuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	signup(t, app, "alice")

	w := postJSON(app.router, "/api/auth/signup", map[string]string{
		"email":        "alice@example.com",
		"display_name": "alice2",
		"password":     "pass123456",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSignupValidation(t *testing.T) {
	app := newTestApp(t)

	w := postJSON(app.router, "/api/auth/signup", map[string]string{
		"email":        "not-an-email",
		"display_name": "x",
		"password":     "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)
	signup(t, app, "bob")

	w := postJSON(app.router, "/api/auth/login", map[string]string{
		"email":    "bob@example.com",
		"password": "pass123456",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
}

func TestLoginWrongPassword(t *testing.T) {
	app := newTestApp(t)
	signup(t, app, "bob")

	w := postJSON(app.router, "/api/auth/login", map[string]string{
		"email":    "bob@example.com",
		"password": "wrong12345",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	app := newTestApp(t)

	w := postJSON(app.router, "/api/auth/login", map[string]string{
		"email":    "ghost@example.com",
		"password": "pass123456",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	app := newTestApp(t)
	token, _ := signup(t, app, "dave")

	w := postAuth(app.router, "/api/auth/logout", token)
	assert.Equal(t, http.StatusOK, w.Code)

	// Session is gone: the same token no longer authenticates.
	w = postAuth(app.router, "/api/auth/logout", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	app := newTestApp(t)
	token, _ := signup(t, app, "erin")

	w := postAuth(app.router, "/api/auth/refresh", token)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	newToken := resp["token"].(string)
	assert.NotEqual(t, token, newToken)

	// Old token dead, new token live.
	assert.Equal(t, http.StatusUnauthorized, getAuth(app.router, "/api/users/me", token).Code)
	assert.Equal(t, http.StatusOK, getAuth(app.router, "/api/users/me", newToken).Code)
}
