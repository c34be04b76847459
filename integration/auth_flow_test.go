package integration

import (
	"net/http"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// Signup, login, refresh and logout against the live server, including the
// token lifecycle the WebSocket handshake depends on.
func TestAuthLifecycle(t *testing.T) {
	ts := NewTestServer(t)

	name := UniqueID("carol")
	token, _ := ts.Signup(t, name)

	// Logging in again with the same credentials works.
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"email":    name + "@example.com",
		"password": "pass123456",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	loginToken := result["token"].(string)
	require.NotEmpty(t, loginToken)

	// Refresh rotates the token: the old one dies, the new one works.
	resp = ts.PostJSON(t, "/api/auth/refresh", nil, loginToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ReadJSON(t, resp, &result)
	rotated := result["token"].(string)
	require.NotEqual(t, loginToken, rotated)

	resp = ts.Get(t, "/api/users/me", loginToken)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = ts.Get(t, "/api/users/me", rotated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Logout invalidates the session.
	resp = ts.PostJSON(t, "/api/auth/logout", nil, rotated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.Get(t, "/api/users/me", rotated)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// The original signup token is an independent session and still works.
	resp = ts.Get(t, "/api/users/me", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

// The WebSocket handshake rejects missing and invalid tokens.
func TestWebSocketAuthRejected(t *testing.T) {
	ts := NewTestServer(t)

	for _, url := range []string{
		ts.WSURL,
		ts.WSURL + "?token=not-a-jwt",
	} {
		conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err)
		require.Nil(t, conn)
		if resp != nil {
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			resp.Body.Close()
		}
	}
}

// A logged-out token cannot open a WebSocket either.
func TestWebSocketRejectsDeadSession(t *testing.T) {
	ts := NewTestServer(t)

	token, _ := ts.Signup(t, UniqueID("dave"))
	resp := ts.PostJSON(t, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	conn, wsResp, err := websocket.DefaultDialer.Dial(ts.WSURL+"?token="+token, nil)
	require.Error(t, err)
	require.Nil(t, conn)
	if wsResp != nil {
		require.Equal(t, http.StatusUnauthorized, wsResp.StatusCode)
		wsResp.Body.Close()
	}
}
