package comment

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"inkwell/internal/domain/apperr"
	"inkwell/internal/pkg/sanitize"
)

// ID represents Comment identifier.
type ID = uuid.UUID

// MaxContentLength caps comment content (in runes, after sanitising).
const MaxContentLength = 2000

// Comment is a single row of the adjacency list. ParentID is nil for a root
// comment and points at a root comment for a reply.
type Comment struct {
	ID        ID
	PostID    uuid.UUID
	AuthorID  uuid.UUID
	Content   string
	ParentID  *ID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Params represents the input values required to create a Comment.
type Params struct {
	ID        ID
	PostID    uuid.UUID
	AuthorID  uuid.UUID
	Content   string
	ParentID  *ID
	CreatedAt time.Time
}

// New creates a comment after sanitising and validating params.
func New(params Params) (*Comment, error) {
	if params.PostID == uuid.Nil {
		return nil, fmt.Errorf("%w: post is required", apperr.ErrValidation)
	}
	if params.AuthorID == uuid.Nil {
		return nil, fmt.Errorf("%w: author is required", apperr.ErrUnauthorized)
	}
	content, err := NormalizeContent(params.Content)
	if err != nil {
		return nil, err
	}
	var parent *ID
	if params.ParentID != nil {
		if *params.ParentID == uuid.Nil {
			return nil, fmt.Errorf("%w: parent id is invalid", apperr.ErrValidation)
		}
		p := *params.ParentID
		parent = &p
	}
	return &Comment{
		ID:        params.ID,
		PostID:    params.PostID,
		AuthorID:  params.AuthorID,
		Content:   content,
		ParentID:  parent,
		CreatedAt: params.CreatedAt,
		UpdatedAt: params.CreatedAt,
	}, nil
}

// NormalizeContent sanitises content and rejects it when nothing visible remains.
func NormalizeContent(content string) (string, error) {
	if sanitize.IsBlank(content) {
		return "", fmt.Errorf("%w: content is required", apperr.ErrValidation)
	}
	cleaned := sanitize.HTML(content)
	if utf8.RuneCountInString(cleaned) > MaxContentLength {
		return "", fmt.Errorf("%w: content must be at most %d characters", apperr.ErrValidation, MaxContentLength)
	}
	return cleaned, nil
}

// IsRoot reports whether the comment starts a thread.
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}

// IsAuthoredBy reports whether userID wrote the comment.
func (c *Comment) IsAuthoredBy(userID uuid.UUID) bool {
	return userID != uuid.Nil && c.AuthorID == userID
}
