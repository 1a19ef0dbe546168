package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"inkwell/internal/domain/apperr"
	"inkwell/internal/domain/post"
)

// PostSearcher runs filtered post queries.
type PostSearcher interface {
	Search(ctx context.Context, query post.SearchQuery) ([]*post.Post, error)
}

// ResultCache caches anonymous search results per purge generation.
type ResultCache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, generation int64, query post.SearchQuery) ([]*post.Post, bool, error)
	Set(ctx context.Context, generation int64, query post.SearchQuery, posts []*post.Post) error
}

// Result bundles a page of posts with the paging it was produced with.
type Result struct {
	Posts  []*post.Post
	Limit  int
	Offset int
}

// Service performs post searches.
type Service struct {
	posts  PostSearcher
	cache  ResultCache
	logger *slog.Logger
}

// NewService builds a search service. cache may be nil.
func NewService(posts PostSearcher, cache ResultCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		posts:  posts,
		cache:  cache,
		logger: logger,
	}
}

// Search returns the posts matching every set predicate, newest first.
func (s *Service) Search(ctx context.Context, query post.SearchQuery) (Result, error) {
	result, _, err := s.SearchWithCacheStatus(ctx, query)
	return result, err
}

// SearchWithCacheStatus is Search that also reports a cache hit. Queries bound
// to a user always go to the store.
func (s *Service) SearchWithCacheStatus(ctx context.Context, query post.SearchQuery) (Result, bool, error) {
	q := query
	if err := q.Normalize(); err != nil {
		return Result{}, false, err
	}

	useCache := s.cache != nil && !q.Personal()
	var generation int64
	if useCache {
		var err error
		generation, err = s.cache.Generation(ctx)
		if err != nil {
			s.logger.DebugContext(ctx, "failed to read search cache generation", "error", err)
			useCache = false
		}
	}
	if useCache {
		posts, ok, err := s.cache.Get(ctx, generation, q)
		if err != nil {
			s.logger.DebugContext(ctx, "failed to get search cache", "error", err)
		} else if ok {
			return Result{Posts: posts, Limit: q.Limit, Offset: q.Offset}, true, nil
		}
	}

	posts, err := s.posts.Search(ctx, q)
	if err != nil {
		return Result{}, false, err
	}
	if posts == nil {
		posts = []*post.Post{}
	}

	if useCache {
		// A purge since the generation was read orphans this entry.
		if err := s.cache.Set(ctx, generation, q, posts); err != nil {
			s.logger.DebugContext(ctx, "failed to set search cache", "error", err)
		}
	}
	return Result{Posts: posts, Limit: q.Limit, Offset: q.Offset}, false, nil
}

// Favourites lists the posts userID has liked.
func (s *Service) Favourites(ctx context.Context, userID uuid.UUID, limit, offset int) (Result, error) {
	if userID == uuid.Nil {
		return Result{}, fmt.Errorf("%w: sign in to see favourites", apperr.ErrUnauthorized)
	}
	return s.Search(ctx, post.SearchQuery{
		UserID:  &userID,
		IsLiked: true,
		Limit:   limit,
		Offset:  offset,
	})
}
