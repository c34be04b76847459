package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fusionchat/server/api/rest"
	"github.com/fusionchat/server/assistant"
	"github.com/fusionchat/server/audit"
	"github.com/fusionchat/server/chat"
	"github.com/fusionchat/server/config"
	"github.com/fusionchat/server/delivery"
	mw "github.com/fusionchat/server/middleware"
	"github.com/fusionchat/server/presence"
	"github.com/fusionchat/server/relation"
	"github.com/fusionchat/server/storage"
	"github.com/fusionchat/server/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubAssistant returns a canned intent without calling any upstream.
type stubAssistant struct {
	intent *assistant.Intent
	err    error
}

func (s *stubAssistant) Ask(_ context.Context, _, _, _ string) (*assistant.Intent, error) {
	return s.intent, s.err
}

type testApp struct {
	router   *gin.Engine
	db       *gorm.DB
	registry *presence.Registry
	ai       *stubAssistant
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTL: 72 * time.Hour}

	registry := presence.NewRegistry(pubsub, logger)
	router := delivery.NewRouter(registry, logger)
	engine := relation.NewEngine(db, registry, router, logger)
	uploader, err := storage.NewDiskUploader(config.StorageConfig{
		Dir:       t.TempDir(),
		PublicURL: "/uploads",
		MaxSizeMB: 5,
	}, logger)
	require.NoError(t, err)
	pipeline := chat.NewPipeline(db, engine, router, uploader, logger)
	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })
	ai := &stubAssistant{intent: &assistant.Intent{Type: "general", Response: "hi"}}

	authH := rest.NewAuthHandler(db, c, sec, auditSvc)
	friendsH := rest.NewFriendsHandler(engine, auditSvc)
	messagesH := rest.NewMessagesHandler(pipeline)
	usersH := rest.NewUsersHandler(db, uploader)
	aiH := rest.NewAIHandler(db, ai)

	r := gin.New()
	r.POST("/api/auth/signup", authH.Signup)
	r.POST("/api/auth/login", authH.Login)
	auth := r.Group("/api", mw.Auth(sec, c))
	auth.POST("/auth/logout", authH.Logout)
	auth.POST("/auth/refresh", authH.Refresh)
	auth.GET("/friends", friendsH.List)
	auth.GET("/friends/requests", friendsH.Requests)
	auth.GET("/friends/search", friendsH.Search)
	auth.GET("/friends/online", friendsH.Online)
	auth.POST("/friends/request/:id", friendsH.Request)
	auth.POST("/friends/accept/:id", friendsH.Accept)
	auth.POST("/friends/block/:id", friendsH.Block)
	auth.POST("/friends/unblock/:id", friendsH.Unblock)
	auth.DELETE("/friends/:id", friendsH.Delete)
	auth.GET("/messages/:id", messagesH.History)
	auth.POST("/messages/send/:id", messagesH.Send)
	auth.GET("/users/me", usersH.Me)
	auth.PUT("/users/settings", usersH.UpdateSettings)
	auth.POST("/ai/ask", aiH.Ask)

	return &testApp{router: r, db: db, registry: registry, ai: ai}
}

func postJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doReq(r *gin.Engine, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getAuth(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	return doReq(r, http.MethodGet, path, token, nil, "")
}

func postAuth(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	return doReq(r, http.MethodPost, path, token, nil, "")
}

// multipartBody builds a multipart form with string fields and optional
// file parts (field name → filename/content).
type filePart struct {
	field, name string
	content     []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

// signup registers a user and returns their token and ID.
func signup(t *testing.T, app *testApp, name string) (token string, userID int64) {
	t.Helper()
	w := postJSON(app.router, "/api/auth/signup", map[string]string{
		"email":        name + "@example.com",
		"display_name": name,
		"password":     "pass123456",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token, resp.User.ID
}
