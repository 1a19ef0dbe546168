package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/domain/comment"
	"inkwell/internal/domain/post"
)

// PostRepository defines storage operations for posts.
//
// Implementations return apperr.ErrNotFound for missing rows, apperr.ErrConflict
// for detected concurrent modifications and apperr.ErrTransient when the store
// is unavailable.
type PostRepository interface {
	Get(ctx context.Context, id post.ID) (*post.Post, error)
	Create(ctx context.Context, p *post.Post) error
	// Update persists editable fields only; like state is never written here.
	Update(ctx context.Context, p *post.Post) error
	// Delete removes the post together with all of its comments.
	Delete(ctx context.Context, id post.ID) error
	SetImage(ctx context.Context, id post.ID, imageURL string, updatedAt time.Time) error
	Search(ctx context.Context, query post.SearchQuery) ([]*post.Post, error)
	// ToggleLike flips the user's membership and adjusts the counter in one
	// atomic step.
	ToggleLike(ctx context.Context, postID post.ID, userID post.UserID) (post.LikeState, error)
}

// CommentRepository defines storage operations for comments.
type CommentRepository interface {
	Get(ctx context.Context, id comment.ID) (*comment.Comment, error)
	// ListByPost returns every comment of the post, newest first.
	ListByPost(ctx context.Context, postID uuid.UUID) ([]*comment.Comment, error)
	// Create inserts the comment. For replies the parent must exist at insert
	// time; the check and the insert are atomic.
	Create(ctx context.Context, c *comment.Comment) error
	UpdateContent(ctx context.Context, id comment.ID, content string, updatedAt time.Time) (*comment.Comment, error)
	// DeleteCascade removes a root comment and all of its replies atomically
	// and returns the number of rows removed.
	DeleteCascade(ctx context.Context, rootID comment.ID) (int, error)
	// DeleteSingle removes one reply. Replies stored beneath it under the
	// tolerant reply policy go with it; the count includes them.
	DeleteSingle(ctx context.Context, id comment.ID) (int, error)
}
