package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"inkwell/internal/infra/memory"
	"inkwell/internal/platform/auth"
	usecaseComment "inkwell/internal/usecase/comment"
	usecaseLike "inkwell/internal/usecase/like"
	usecasePost "inkwell/internal/usecase/post"
	usecaseSearch "inkwell/internal/usecase/search"
)

const (
	testAPIBasePath = "/api/v1"
	testJWTSecret   = "handler-test-secret"
)

func apiPath(route string) string {
	return testAPIBasePath + route
}

// testServer wraps httptest.Server for integration testing.
type testServer struct {
	*httptest.Server
	router http.Handler
}

// newTestServer creates a test HTTP server with the given handlers.
func newTestServer(cfg RouterConfig) *testServer {
	if cfg.APIBasePath == "" {
		cfg.APIBasePath = testAPIBasePath
	}
	router := NewRouter(cfg)
	srv := httptest.NewServer(router)
	return &testServer{
		Server: srv,
		router: router,
	}
}

// get performs an anonymous GET request to the test server.
func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, "", nil)
}

// do sends body as JSON. An empty token sends the request anonymously.
func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "%s %s", method, path)
	return resp
}

// decodeJSON decodes response body as JSON.
func decodeJSON(t *testing.T, resp *http.Response, dest interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
}

// testEnvelope mirrors envelope with a typed data field.
type testEnvelope[T any] struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

func decodeEnvelope[T any](t *testing.T, resp *http.Response) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	decodeJSON(t, resp, &env)
	require.Equal(t, resp.StatusCode, env.Status, "envelope status mirrors HTTP status")
	return env
}

// assertStatus checks HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		resp.Body = io.NopCloser(bytes.NewReader(body))
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, want, body)
	}
}

// assertContentType checks Content-Type header.
func assertContentType(t *testing.T, resp *http.Response, want string) {
	t.Helper()
	if got := resp.Header.Get("Content-Type"); got != want {
		t.Errorf("Content-Type = %q, want %q", got, want)
	}
}

// assertErrorKind validates the error envelope.
func assertErrorKind(t *testing.T, resp *http.Response, wantStatus int, wantKind string) testEnvelope[any] {
	t.Helper()
	assertStatus(t, resp, wantStatus)
	assertContentType(t, resp, "application/json")
	env := decodeEnvelope[any](t, resp)
	require.Equal(t, wantKind, env.Error)
	require.NotEmpty(t, env.Message)
	return env
}

// mockHealthChecker is a mock implementation of health checker.
type mockHealthChecker struct {
	healthCheckFunc func(ctx context.Context) error
}

func (m *mockHealthChecker) HealthCheck(ctx context.Context) error {
	if m.healthCheckFunc != nil {
		return m.healthCheckFunc(ctx)
	}
	return nil
}

// testApp is the full router over an in-memory store.
type testApp struct {
	*testServer
	store  *memory.Store
	issuer *auth.Issuer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithPolicy(t, usecaseComment.ReplyPolicyRootOnly)
}

func newTestAppWithPolicy(t *testing.T, policy usecaseComment.ReplyPolicy) *testApp {
	t.Helper()

	store := memory.New()
	posts := store.Posts()

	verifier, err := auth.NewVerifier(testJWTSecret, "")
	require.NoError(t, err)
	issuer, err := auth.NewIssuer(testJWTSecret, "")
	require.NoError(t, err)

	ts := newTestServer(RouterConfig{
		PostHandler:    NewPostHandler(usecasePost.NewService(posts, nil, nil, nil), nil),
		CommentHandler: NewCommentHandler(usecaseComment.NewService(store.Comments(), posts, policy, nil, nil), nil),
		LikeHandler:    NewLikeHandler(usecaseLike.NewService(posts, nil, nil, 3, nil), nil),
		SearchHandler:  NewSearchHandler(usecaseSearch.NewService(posts, nil, nil), nil),
		HealthHandler:  &HealthHandler{DB: store},
		Middlewares:    []func(http.Handler) http.Handler{auth.Middleware(verifier, nil)},
	})
	t.Cleanup(ts.Close)

	return &testApp{testServer: ts, store: store, issuer: issuer}
}

// token mints a bearer token for a fresh or given user.
func (a *testApp) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	tok, err := a.issuer.Issue(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

// createPost publishes a post through the API and returns it.
func (a *testApp) createPost(t *testing.T, token, title, category string) postResponse {
	t.Helper()
	resp := a.do(t, http.MethodPost, apiPath("/posts"), token, map[string]string{
		"title":    title,
		"body":     "<p>hello</p>",
		"category": category,
	})
	assertStatus(t, resp, http.StatusCreated)
	return decodeEnvelope[postResponse](t, resp).Data
}

// comment posts a root comment, or a reply when parent is set.
func (a *testApp) comment(t *testing.T, token string, postID uuid.UUID, content string, parent *uuid.UUID) commentMutationResponse {
	t.Helper()
	body := map[string]any{"content": content}
	if parent != nil {
		body["parent_id"] = parent.String()
	}
	resp := a.do(t, http.MethodPost, apiPath("/posts/"+postID.String()+"/comments"), token, body)
	assertStatus(t, resp, http.StatusCreated)
	return decodeEnvelope[commentMutationResponse](t, resp).Data
}
