package comment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"inkwell/internal/domain/apperr"
	domainComment "inkwell/internal/domain/comment"
	"inkwell/internal/domain/post"
	"inkwell/internal/domain/repository"
	"inkwell/internal/pkg/timeutil"
)

// ReplyPolicy decides which parents a reply may attach to.
type ReplyPolicy string

const (
	// ReplyPolicyRootOnly accepts replies to root comments of the same post only.
	ReplyPolicyRootOnly ReplyPolicy = "root_only"
	// ReplyPolicyTolerant accepts any existing parent. Replies to replies are
	// stored but never appear in the tree.
	ReplyPolicyTolerant ReplyPolicy = "tolerant"
)

// ParseReplyPolicy converts a configuration value; empty means root_only.
func ParseReplyPolicy(v string) (ReplyPolicy, error) {
	switch ReplyPolicy(v) {
	case "", ReplyPolicyRootOnly:
		return ReplyPolicyRootOnly, nil
	case ReplyPolicyTolerant:
		return ReplyPolicyTolerant, nil
	}
	return "", fmt.Errorf("unknown reply policy %q", v)
}

// PostLookup resolves posts.
type PostLookup interface {
	Get(ctx context.Context, id post.ID) (*post.Post, error)
}

// Metrics receives comment activity.
type Metrics interface {
	CommentCreated(root bool)
	CommentsDeleted(root bool, n int)
}

// Tree is the reply tree of a post.
type Tree struct {
	PostID   uuid.UUID
	Comments []*domainComment.Node
	Total    int
}

// DeleteResult reports what a delete removed.
type DeleteResult struct {
	PostID  uuid.UUID
	Removed int
	Root    bool
}

// Service implements the comment operations.
type Service struct {
	comments repository.CommentRepository
	posts    PostLookup
	policy   ReplyPolicy
	metrics  Metrics
	logger   *slog.Logger
}

// NewService builds the comment service. metrics and logger may be nil.
func NewService(comments repository.CommentRepository, posts PostLookup, policy ReplyPolicy, metrics Metrics, logger *slog.Logger) *Service {
	if policy == "" {
		policy = ReplyPolicyRootOnly
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		comments: comments,
		posts:    posts,
		policy:   policy,
		metrics:  metrics,
		logger:   logger,
	}
}

// ListTree rebuilds the comment tree of the post from its stored comments.
func (s *Service) ListTree(ctx context.Context, postID uuid.UUID) (Tree, error) {
	if _, err := s.posts.Get(ctx, postID); err != nil {
		return Tree{}, err
	}
	rows, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return Tree{}, err
	}
	roots, dropped := domainComment.BuildTreeWithStats(rows)
	if dropped > 0 {
		s.logger.DebugContext(ctx, "comments left out of tree",
			"post_id", postID,
			"dropped", dropped,
		)
	}
	return Tree{
		PostID:   postID,
		Comments: roots,
		Total:    domainComment.Count(roots),
	}, nil
}

// CreateRootComment adds a top-level comment to the post.
func (s *Service) CreateRootComment(ctx context.Context, postID, authorID uuid.UUID, content string) (*domainComment.Comment, error) {
	if authorID == uuid.Nil {
		return nil, fmt.Errorf("%w: sign in to comment", apperr.ErrUnauthorized)
	}
	c, err := domainComment.New(domainComment.Params{
		ID:        uuid.New(),
		PostID:    postID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: timeutil.Now(),
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.posts.Get(ctx, postID); err != nil {
		return nil, err
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, err
	}
	s.created(ctx, c)
	return c, nil
}

// CreateReply adds a reply under parentID.
func (s *Service) CreateReply(ctx context.Context, postID, authorID uuid.UUID, content string, parentID uuid.UUID) (*domainComment.Comment, error) {
	if authorID == uuid.Nil {
		return nil, fmt.Errorf("%w: sign in to comment", apperr.ErrUnauthorized)
	}
	c, err := domainComment.New(domainComment.Params{
		ID:        uuid.New(),
		PostID:    postID,
		AuthorID:  authorID,
		Content:   content,
		ParentID:  &parentID,
		CreatedAt: timeutil.Now(),
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.posts.Get(ctx, postID); err != nil {
		return nil, err
	}
	parent, err := s.comments.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if s.policy == ReplyPolicyRootOnly {
		if parent.PostID != postID {
			return nil, fmt.Errorf("%w: parent comment belongs to another post", apperr.ErrValidation)
		}
		if !parent.IsRoot() {
			return nil, fmt.Errorf("%w: replies can only answer a top-level comment", apperr.ErrValidation)
		}
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, err
	}
	s.created(ctx, c)
	return c, nil
}

// EditComment replaces the content of the requester's own comment.
func (s *Service) EditComment(ctx context.Context, commentID, requesterID uuid.UUID, content string) (*domainComment.Comment, error) {
	if requesterID == uuid.Nil {
		return nil, fmt.Errorf("%w: sign in to edit comments", apperr.ErrUnauthorized)
	}
	existing, err := s.comments.Get(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if !existing.IsAuthoredBy(requesterID) {
		return nil, fmt.Errorf("%w: only the author can edit this comment", apperr.ErrForbidden)
	}
	cleaned, err := domainComment.NormalizeContent(content)
	if err != nil {
		return nil, err
	}
	return s.comments.UpdateContent(ctx, commentID, cleaned, timeutil.Later(timeutil.Now(), existing.CreatedAt))
}

// DeleteComment removes the requester's comment. A root comment takes all of
// its replies with it.
func (s *Service) DeleteComment(ctx context.Context, commentID, requesterID uuid.UUID) (DeleteResult, error) {
	if requesterID == uuid.Nil {
		return DeleteResult{}, fmt.Errorf("%w: sign in to delete comments", apperr.ErrUnauthorized)
	}
	existing, err := s.comments.Get(ctx, commentID)
	if err != nil {
		return DeleteResult{}, err
	}
	if !existing.IsAuthoredBy(requesterID) {
		return DeleteResult{}, fmt.Errorf("%w: only the author can delete this comment", apperr.ErrForbidden)
	}

	result := DeleteResult{PostID: existing.PostID, Root: existing.IsRoot()}
	if result.Root {
		result.Removed, err = s.comments.DeleteCascade(ctx, commentID)
	} else {
		result.Removed, err = s.comments.DeleteSingle(ctx, commentID)
	}
	if err != nil {
		return DeleteResult{}, err
	}

	if s.metrics != nil {
		s.metrics.CommentsDeleted(result.Root, result.Removed)
	}
	s.logger.InfoContext(ctx, "comment deleted",
		"comment_id", commentID,
		"post_id", existing.PostID,
		"root", result.Root,
		"removed", result.Removed,
	)
	return result, nil
}

func (s *Service) created(ctx context.Context, c *domainComment.Comment) {
	if s.metrics != nil {
		s.metrics.CommentCreated(c.IsRoot())
	}
	s.logger.DebugContext(ctx, "comment created",
		"comment_id", c.ID,
		"post_id", c.PostID,
		"root", c.IsRoot(),
	)
}
