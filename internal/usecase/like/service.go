package like

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"inkwell/internal/domain/apperr"
	"inkwell/internal/domain/post"
)

// PostRepository is the storage the like service needs.
type PostRepository interface {
	Get(ctx context.Context, id post.ID) (*post.Post, error)
	ToggleLike(ctx context.Context, postID post.ID, userID post.UserID) (post.LikeState, error)
}

// CachePurger drops cached search results that embed like counts.
type CachePurger interface {
	Purge(ctx context.Context) (int64, error)
}

// Metrics receives toggle outcomes.
type Metrics interface {
	LikeToggled(liked bool)
}

// Service toggles and reads likes.
type Service struct {
	posts      PostRepository
	cache      CachePurger
	metrics    Metrics
	logger     *slog.Logger
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// NewService builds the like service. cache, metrics and logger may be nil.
func NewService(posts PostRepository, cache CachePurger, metrics Metrics, maxRetries int, logger *slog.Logger) *Service {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		posts:      posts,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		maxRetries: uint64(maxRetries),
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return b
}

// Toggle flips userID's like on the post and returns the new state. Conflicts
// reported by the store are retried with exponential backoff.
func (s *Service) Toggle(ctx context.Context, postID, userID uuid.UUID) (post.LikeState, error) {
	if userID == uuid.Nil {
		return post.LikeState{}, fmt.Errorf("%w: sign in to like posts", apperr.ErrUnauthorized)
	}

	var state post.LikeState
	attempt := 0
	op := func() error {
		attempt++
		var err error
		state, err = s.posts.ToggleLike(ctx, postID, userID)
		if err == nil {
			return nil
		}
		if apperr.KindOf(err) == apperr.KindConflict {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		s.logger.DebugContext(ctx, "retrying like toggle",
			"post_id", postID,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.maxRetries), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", apperr.ErrTransient, ctxErr)
		}
		return post.LikeState{}, err
	}

	if s.metrics != nil {
		s.metrics.LikeToggled(state.Liked)
	}
	s.purge(ctx)
	s.logger.InfoContext(ctx, "like toggled",
		"post_id", postID,
		"user_id", userID,
		"liked", state.Liked,
		"like_count", state.LikeCount,
	)
	return state, nil
}

// Status reports whether userID likes the post without changing anything.
func (s *Service) Status(ctx context.Context, postID, userID uuid.UUID) (post.LikeState, error) {
	if userID == uuid.Nil {
		return post.LikeState{}, fmt.Errorf("%w: sign in to see likes", apperr.ErrUnauthorized)
	}
	p, err := s.posts.Get(ctx, postID)
	if err != nil {
		return post.LikeState{}, err
	}
	return post.LikeState{
		PostID:    p.ID,
		Liked:     p.IsLikedBy(userID),
		LikeCount: p.LikeCount,
	}, nil
}

func (s *Service) purge(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Purge(ctx); err != nil {
		s.logger.DebugContext(ctx, "failed to purge search cache", "error", err)
	}
}
