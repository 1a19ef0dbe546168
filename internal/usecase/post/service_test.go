package post

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/internal/domain/apperr"
	"inkwell/internal/domain/comment"
	domainPost "inkwell/internal/domain/post"
	"inkwell/internal/infra/memory"
)

type stubPurger struct{ calls int }

func (p *stubPurger) Purge(ctx context.Context) (int64, error) {
	p.calls++
	return 0, nil
}

type stubImages struct {
	confirmed map[string]string
}

func (s *stubImages) UploadURL(ctx context.Context, postID domainPost.ID, contentType string, contentLength int64) (*domainPost.ImageUpload, error) {
	key := domainPost.ImageKey(postID, "img", contentType)
	return &domainPost.ImageUpload{UploadURL: "http://upload/" + key, Key: key, Expires: time.Minute}, nil
}

func (s *stubImages) ConfirmUpload(ctx context.Context, postID domainPost.ID, key string) (string, error) {
	if !domainPost.OwnsImageKey(postID, key) {
		return "", apperr.ErrValidation
	}
	url, ok := s.confirmed[key]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return url, nil
}

func validInput() Input {
	return Input{Title: "Hello", Body: "<p>World</p>", Category: "general"}
}

func TestService_CreateAndGet(t *testing.T) {
	store := memory.New()
	purger := &stubPurger{}
	svc := NewService(store.Posts(), nil, purger, nil)
	ctx := context.Background()
	author := uuid.New()

	p, err := svc.Create(ctx, author, Input{
		Title:    "  <b>Hello</b> ",
		Body:     `<p onclick="x()">World</p><script>alert(1)</script>`,
		Category: " general ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", p.Title)
	assert.Equal(t, "<p>World</p>", p.Body)
	assert.Equal(t, "general", p.Category)
	assert.Equal(t, author, p.AuthorID)
	assert.Zero(t, p.LikeCount)
	assert.Equal(t, 1, purger.calls)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.Get(ctx, uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_CreateValidation(t *testing.T) {
	svc := NewService(memory.New().Posts(), nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, uuid.Nil, validInput())
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	in := validInput()
	in.Title = "  "
	_, err = svc.Create(ctx, uuid.New(), in)
	require.ErrorIs(t, err, apperr.ErrValidation)

	in = validInput()
	in.Body = "<script>alert(1)</script>"
	_, err = svc.Create(ctx, uuid.New(), in)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestService_UpdateOwnerOnlyAndKeepsLikes(t *testing.T) {
	store := memory.New()
	svc := NewService(store.Posts(), nil, nil, nil)
	ctx := context.Background()
	author := uuid.New()

	p, err := svc.Create(ctx, author, validInput())
	require.NoError(t, err)
	liker := uuid.New()
	_, err = store.Posts().ToggleLike(ctx, p.ID, liker)
	require.NoError(t, err)

	in := validInput()
	in.Title = "Edited"
	_, err = svc.Update(ctx, p.ID, uuid.New(), in)
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.Update(ctx, p.ID, uuid.Nil, in)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	updated, err := svc.Update(ctx, p.ID, author, in)
	require.NoError(t, err)
	assert.Equal(t, "Edited", updated.Title)
	assert.Equal(t, 1, updated.LikeCount)
	assert.True(t, updated.IsLikedBy(liker))
	assert.True(t, p.CreatedAt.Equal(updated.CreatedAt))
}

func TestService_DeleteRemovesComments(t *testing.T) {
	store := memory.New()
	svc := NewService(store.Posts(), nil, nil, nil)
	ctx := context.Background()
	author := uuid.New()

	p, err := svc.Create(ctx, author, validInput())
	require.NoError(t, err)
	c := &comment.Comment{ID: uuid.New(), PostID: p.ID, AuthorID: uuid.New(), Content: "hi", CreatedAt: time.Now()}
	require.NoError(t, store.Comments().Create(ctx, c))

	require.ErrorIs(t, svc.Delete(ctx, p.ID, uuid.New()), apperr.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, p.ID, author))

	_, err = svc.Get(ctx, p.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = store.Comments().Get(ctx, c.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_Images(t *testing.T) {
	store := memory.New()
	images := &stubImages{confirmed: map[string]string{}}
	svc := NewService(store.Posts(), images, nil, nil)
	ctx := context.Background()
	author := uuid.New()

	p, err := svc.Create(ctx, author, validInput())
	require.NoError(t, err)

	_, err = svc.ImageUploadURL(ctx, p.ID, uuid.New(), "image/png", 10)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	upload, err := svc.ImageUploadURL(ctx, p.ID, author, "image/png", 10)
	require.NoError(t, err)
	assert.Equal(t, domainPost.ImageKey(p.ID, "img", "image/png"), upload.Key)

	_, err = svc.ConfirmImage(ctx, p.ID, author, upload.Key)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	images.confirmed[upload.Key] = "https://cdn.example.com/" + upload.Key
	updated, err := svc.ConfirmImage(ctx, p.ID, author, upload.Key)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/"+upload.Key, updated.ImageURL)
}

func TestService_ImagesDisabled(t *testing.T) {
	store := memory.New()
	svc := NewService(store.Posts(), nil, nil, nil)
	author := uuid.New()
	p, err := svc.Create(context.Background(), author, validInput())
	require.NoError(t, err)

	_, err = svc.ImageUploadURL(context.Background(), p.ID, author, "image/png", 10)
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.ConfirmImage(context.Background(), p.ID, author, "posts/x")
	require.ErrorIs(t, err, apperr.ErrValidation)
}
