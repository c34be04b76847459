package rest_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendMessage(t *testing.T, app *testApp, token string, toID int64, text string) *map[string]interface{} {
	t.Helper()
	body, contentType := multipartBody(t, map[string]string{"text": text})
	w := doReq(app.router, http.MethodPost, fmt.Sprintf("/api/messages/send/%d", toID), token, body, contentType)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeBody(t, w.Body.Bytes())
	msg := resp["message"].(map[string]interface{})
	return &msg
}

func TestSendAndHistory(t *testing.T) {
	app := newTestApp(t)
	aliceToken, aliceID := signup(t, app, "alice")
	bobToken, bobID := signup(t, app, "bob")

	sendMessage(t, app, aliceToken, bobID, "hello bob")
	sendMessage(t, app, bobToken, aliceID, "hi alice")

	w := getAuth(app.router, fmt.Sprintf("/api/messages/%d", bobID), aliceToken)
	require.Equal(t, http.StatusOK, w.Code)
	messages := decodeBody(t, w.Body.Bytes())["messages"].([]interface{})
	require.Len(t, messages, 2)
	first := messages[0].(map[string]interface{})
	assert.Equal(t, "hello bob", first["text"])
}

func TestSendEmptyMessage(t *testing.T) {
	app := newTestApp(t)
	aliceToken, _ := signup(t, app, "alice")
	_, bobID := signup(t, app, "bob")

	body, contentType := multipartBody(t, map[string]string{"text": "   "})
	w := doReq(app.router, http.MethodPost, fmt.Sprintf("/api/messages/send/%d", bobID), aliceToken, body, contentType)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendToBlockedBySender(t *testing.T) {
	app := newTestApp(t)
	aliceToken, aliceID := signup(t, app, "alice")
	bobToken, bobID := signup(t, app, "bob")

	w := postAuth(app.router, fmt.Sprintf("/api/friends/block/%d", aliceID), bobToken)
	require.Equal(t, http.StatusOK, w.Code)

	body, contentType := multipartBody(t, map[string]string{"text": "hi"})
	w = doReq(app.router, http.MethodPost, fmt.Sprintf("/api/messages/send/%d", bobID), aliceToken, body, contentType)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSendWithImageAttachment(t *testing.T) {
	app := newTestApp(t)
	aliceToken, _ := signup(t, app, "alice")
	_, bobID := signup(t, app, "bob")

	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	body, contentType := multipartBody(t, nil, filePart{field: "file", name: "pic.png", content: png})
	w := doReq(app.router, http.MethodPost, fmt.Sprintf("/api/messages/send/%d", bobID), aliceToken, body, contentType)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	msg := decodeBody(t, w.Body.Bytes())["message"].(map[string]interface{})
	assert.NotEmpty(t, msg["image_url"])
	assert.Empty(t, msg["file_url"])
}

func TestHistoryUnknownUser(t *testing.T) {
	app := newTestApp(t)
	aliceToken, _ := signup(t, app, "alice")

	w := getAuth(app.router, "/api/messages/99999", aliceToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
