package handler

import (
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeHandler_Toggle(t *testing.T) {
	app := newTestApp(t)
	p := app.createPost(t, app.token(t, uuid.New()), "Likeable", "general")
	userTok := app.token(t, uuid.New())
	path := apiPath("/posts/" + p.ID.String() + "/like")

	resp := app.do(t, http.MethodPost, path, userTok, nil)
	assertStatus(t, resp, http.StatusOK)
	env := decodeEnvelope[likeResponse](t, resp)
	assert.Equal(t, "post liked", env.Message)
	assert.Equal(t, likeResponse{PostID: p.ID, Liked: true, LikeCount: 1}, env.Data)

	resp = app.do(t, http.MethodGet, path, userTok, nil)
	assertStatus(t, resp, http.StatusOK)
	assert.True(t, decodeEnvelope[likeResponse](t, resp).Data.Liked)

	resp = app.do(t, http.MethodPost, path, userTok, nil)
	assertStatus(t, resp, http.StatusOK)
	env = decodeEnvelope[likeResponse](t, resp)
	assert.Equal(t, "post unliked", env.Message)
	assert.Equal(t, likeResponse{PostID: p.ID, Liked: false, LikeCount: 0}, env.Data)
}

func TestLikeHandler_StatusIsPerUser(t *testing.T) {
	app := newTestApp(t)
	p := app.createPost(t, app.token(t, uuid.New()), "Likeable", "general")
	path := apiPath("/posts/" + p.ID.String() + "/like")

	resp := app.do(t, http.MethodPost, path, app.token(t, uuid.New()), nil)
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = app.do(t, http.MethodGet, path, app.token(t, uuid.New()), nil)
	assertStatus(t, resp, http.StatusOK)
	env := decodeEnvelope[likeResponse](t, resp)
	assert.False(t, env.Data.Liked)
	assert.Equal(t, 1, env.Data.LikeCount)

	resp = app.get(t, path)
	assertErrorKind(t, resp, http.StatusUnauthorized, "unauthorized")
}

func TestLikeHandler_Errors(t *testing.T) {
	app := newTestApp(t)
	p := app.createPost(t, app.token(t, uuid.New()), "Likeable", "general")

	resp := app.do(t, http.MethodPost, apiPath("/posts/"+p.ID.String()+"/like"), "", nil)
	assertErrorKind(t, resp, http.StatusUnauthorized, "unauthorized")

	resp = app.do(t, http.MethodPost, apiPath("/posts/"+uuid.NewString()+"/like"), app.token(t, uuid.New()), nil)
	assertErrorKind(t, resp, http.StatusNotFound, "not_found")

	resp = app.do(t, http.MethodPost, apiPath("/posts/abc/like"), app.token(t, uuid.New()), nil)
	assertErrorKind(t, resp, http.StatusBadRequest, "validation")
}

func TestLikeHandler_ConcurrentUsers(t *testing.T) {
	app := newTestApp(t)
	p := app.createPost(t, app.token(t, uuid.New()), "Popular", "general")
	path := apiPath("/posts/" + p.ID.String() + "/like")

	const users = 10
	tokens := make([]string, users)
	for i := range tokens {
		tokens[i] = app.token(t, uuid.New())
	}

	var wg sync.WaitGroup
	for _, tok := range tokens {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodPost, app.URL+path, nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			resp, err := http.DefaultClient.Do(req)
			if !assert.NoError(t, err) {
				return
			}
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		}(tok)
	}
	wg.Wait()

	resp := app.get(t, apiPath("/posts/"+p.ID.String()))
	assertStatus(t, resp, http.StatusOK)
	got := decodeEnvelope[postResponse](t, resp).Data
	require.Equal(t, users, got.LikeCount)
}
