package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fusionchat/server/apperr"
	"github.com/fusionchat/server/config"
)

func geminiStub(t *testing.T, modelText string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NotEmpty(t, r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Contents)

		resp := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]string{{"text": modelText}},
				},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *GeminiClient {
	t.Helper()
	c := NewGeminiClient(config.AssistantConfig{
		APIURL:      srv.URL,
		APIKey:      "test-key",
		Timeout:     2 * time.Second,
		DefaultName: "FusionAI",
	}, zap.NewNop())
	c.now = func() time.Time {
		return time.Date(2025, time.March, 14, 15, 4, 0, 0, time.UTC)
	}
	return c
}

func TestAskGeneralIntent(t *testing.T) {
	srv := geminiStub(t, `{"type":"general","userInput":"how are you","response":"Doing great!"}`)
	c := newTestClient(t, srv)

	intent, err := c.Ask(context.Background(), "Nova", "alice", "how are you")
	require.NoError(t, err)
	assert.Equal(t, "general", intent.Type)
	assert.Equal(t, "Doing great!", intent.Response)
	assert.Empty(t, intent.URL)
}

func TestAskStripsCodeFences(t *testing.T) {
	srv := geminiStub(t, "```json\n{\"type\":\"general\",\"response\":\"hi\"}\n```")
	c := newTestClient(t, srv)

	intent, err := c.Ask(context.Background(), "", "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", intent.Response)
}

func TestAskSearchIntentGetsURL(t *testing.T) {
	srv := geminiStub(t, `{"type":"google_search","userInput":"go generics","response":"Searching."}`)
	c := newTestClient(t, srv)

	intent, err := c.Ask(context.Background(), "Nova", "alice", "search for go generics")
	require.NoError(t, err)
	assert.Equal(t, "https://www.google.com/search?q=go+generics", intent.URL)
}

func TestAskTimeIntentComputedLocally(t *testing.T) {
	srv := geminiStub(t, `{"type":"get_time","userInput":"what time is it","response":"model guess"}`)
	c := newTestClient(t, srv)

	intent, err := c.Ask(context.Background(), "Nova", "alice", "what time is it")
	require.NoError(t, err)
	assert.Equal(t, "The current time is 3:04 PM", intent.Response)

	srv2 := geminiStub(t, `{"type":"get_day","userInput":"","response":""}`)
	c2 := newTestClient(t, srv2)
	intent, err = c2.Ask(context.Background(), "Nova", "alice", "what day is it")
	require.NoError(t, err)
	assert.Equal(t, "Today is Friday", intent.Response)
}

func TestAskEmptyCommand(t *testing.T) {
	srv := geminiStub(t, `{}`)
	c := newTestClient(t, srv)

	_, err := c.Ask(context.Background(), "Nova", "alice", "   ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAskUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv)

	_, err := c.Ask(context.Background(), "Nova", "alice", "hello")
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestAskUnstructuredReply(t *testing.T) {
	srv := geminiStub(t, "Sorry, I can only chat in plain text today.")
	c := newTestClient(t, srv)

	_, err := c.Ask(context.Background(), "Nova", "alice", "hello")
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestParseIntentDefaultsType(t *testing.T) {
	intent, err := parseIntent(`some prose {"response":"hello"} trailing`)
	require.NoError(t, err)
	assert.Equal(t, "general", intent.Type)
}
