package post

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"inkwell/internal/domain/apperr"
	domainPost "inkwell/internal/domain/post"
	"inkwell/internal/domain/repository"
	"inkwell/internal/pkg/timeutil"
)

// ImageStore issues and verifies image uploads.
type ImageStore interface {
	UploadURL(ctx context.Context, postID domainPost.ID, contentType string, contentLength int64) (*domainPost.ImageUpload, error)
	ConfirmUpload(ctx context.Context, postID domainPost.ID, key string) (string, error)
}

// CachePurger drops cached search results.
type CachePurger interface {
	Purge(ctx context.Context) (int64, error)
}

// Input carries the editable fields of a post.
type Input struct {
	Title    string
	Body     string
	Category string
	ImageURL string
}

// Service implements post CRUD with owner checks.
type Service struct {
	repo   repository.PostRepository
	images ImageStore
	cache  CachePurger
	logger *slog.Logger
}

// NewService builds the post service. images, cache and logger may be nil.
func NewService(repo repository.PostRepository, images ImageStore, cache CachePurger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		repo:   repo,
		images: images,
		cache:  cache,
		logger: logger,
	}
}

// Create publishes a new post owned by authorID.
func (s *Service) Create(ctx context.Context, authorID uuid.UUID, in Input) (*domainPost.Post, error) {
	if authorID == uuid.Nil {
		return nil, fmt.Errorf("%w: sign in to write posts", apperr.ErrUnauthorized)
	}
	now := timeutil.Now()
	p, err := domainPost.New(domainPost.Params{
		ID:        uuid.New(),
		AuthorID:  authorID,
		Title:     in.Title,
		Body:      in.Body,
		Category:  in.Category,
		ImageURL:  in.ImageURL,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.purge(ctx)
	s.logger.InfoContext(ctx, "post created", "post_id", p.ID, "author_id", authorID)
	return p, nil
}

// Get returns a post.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domainPost.Post, error) {
	return s.repo.Get(ctx, id)
}

// Update replaces the editable fields of the requester's post.
func (s *Service) Update(ctx context.Context, id, requesterID uuid.UUID, in Input) (*domainPost.Post, error) {
	p, err := s.owned(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	if err := p.Update(domainPost.Params{
		Title:     in.Title,
		Body:      in.Body,
		Category:  in.Category,
		ImageURL:  in.ImageURL,
		UpdatedAt: timeutil.Now(),
	}); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.purge(ctx)
	return s.repo.Get(ctx, id)
}

// Delete removes the requester's post and all of its comments.
func (s *Service) Delete(ctx context.Context, id, requesterID uuid.UUID) error {
	if _, err := s.owned(ctx, id, requesterID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.purge(ctx)
	s.logger.InfoContext(ctx, "post deleted", "post_id", id)
	return nil
}

// ImageUploadURL returns a presigned upload for a new image of the post.
func (s *Service) ImageUploadURL(ctx context.Context, id, requesterID uuid.UUID, contentType string, contentLength int64) (*domainPost.ImageUpload, error) {
	if s.images == nil {
		return nil, fmt.Errorf("%w: image uploads are disabled", apperr.ErrValidation)
	}
	if _, err := s.owned(ctx, id, requesterID); err != nil {
		return nil, err
	}
	return s.images.UploadURL(ctx, id, contentType, contentLength)
}

// ConfirmImage verifies an uploaded image and attaches it to the post.
func (s *Service) ConfirmImage(ctx context.Context, id, requesterID uuid.UUID, key string) (*domainPost.Post, error) {
	if s.images == nil {
		return nil, fmt.Errorf("%w: image uploads are disabled", apperr.ErrValidation)
	}
	if _, err := s.owned(ctx, id, requesterID); err != nil {
		return nil, err
	}
	url, err := s.images.ConfirmUpload(ctx, id, key)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetImage(ctx, id, url, timeutil.Now()); err != nil {
		return nil, err
	}
	s.purge(ctx)
	return s.repo.Get(ctx, id)
}

func (s *Service) owned(ctx context.Context, id, requesterID uuid.UUID) (*domainPost.Post, error) {
	if requesterID == uuid.Nil {
		return nil, fmt.Errorf("%w: sign in to manage posts", apperr.ErrUnauthorized)
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsOwnedBy(requesterID) {
		return nil, fmt.Errorf("%w: only the author can change this post", apperr.ErrForbidden)
	}
	return p, nil
}

func (s *Service) purge(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Purge(ctx); err != nil {
		s.logger.DebugContext(ctx, "failed to purge search cache", "error", err)
	}
}
