package post

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"inkwell/internal/domain/apperr"
	"inkwell/internal/pkg/sanitize"
)

// ID represents Post identifier.
type ID = uuid.UUID

// UserID identifies an account managed by the external identity service.
type UserID = uuid.UUID

const (
	// MaxTitleLength caps post titles (in runes).
	MaxTitleLength = 255
	// MaxCategoryLength caps category names (in runes).
	MaxCategoryLength = 64
)

// Post is a blog post with its denormalised like set.
type Post struct {
	ID        ID
	AuthorID  UserID
	Title     string
	Body      string
	ImageURL  string
	Category  string
	LikeCount int
	LikedBy   []UserID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Params represents the input values required to create/update a Post.
type Params struct {
	ID        ID
	AuthorID  UserID
	Title     string
	Body      string
	ImageURL  string
	Category  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a new Post after validating and sanitising params.
// A new post starts with no likes.
func New(params Params) (*Post, error) {
	params, err := normalizeParams(params)
	if err != nil {
		return nil, err
	}
	if params.AuthorID == uuid.Nil {
		return nil, fmt.Errorf("%w: author is required", apperr.ErrValidation)
	}

	return &Post{
		ID:        params.ID,
		AuthorID:  params.AuthorID,
		Title:     params.Title,
		Body:      params.Body,
		ImageURL:  params.ImageURL,
		Category:  params.Category,
		LikedBy:   []UserID{},
		CreatedAt: params.CreatedAt,
		UpdatedAt: params.UpdatedAt,
	}, nil
}

// Update applies editable fields. Author, likes and creation time are kept.
func (p *Post) Update(params Params) error {
	params, err := normalizeParams(params)
	if err != nil {
		return err
	}
	p.Title = params.Title
	p.Body = params.Body
	p.ImageURL = params.ImageURL
	p.Category = params.Category
	p.UpdatedAt = params.UpdatedAt
	return nil
}

// IsLikedBy reports whether userID is in the like set.
func (p *Post) IsLikedBy(userID UserID) bool {
	return slices.Contains(p.LikedBy, userID)
}

// IsOwnedBy reports whether userID authored the post.
func (p *Post) IsOwnedBy(userID UserID) bool {
	return userID != uuid.Nil && p.AuthorID == userID
}

func normalizeParams(params Params) (Params, error) {
	params.Title = sanitize.Text(params.Title)
	params.Category = strings.TrimSpace(params.Category)
	params.ImageURL = strings.TrimSpace(params.ImageURL)

	if params.Title == "" {
		return params, fmt.Errorf("%w: title is required", apperr.ErrValidation)
	}
	if utf8.RuneCountInString(params.Title) > MaxTitleLength {
		return params, fmt.Errorf("%w: title must be at most %d characters", apperr.ErrValidation, MaxTitleLength)
	}
	if sanitize.IsBlank(params.Body) {
		return params, fmt.Errorf("%w: body is required", apperr.ErrValidation)
	}
	params.Body = sanitize.HTML(params.Body)
	if params.Category == "" {
		return params, fmt.Errorf("%w: category is required", apperr.ErrValidation)
	}
	if utf8.RuneCountInString(params.Category) > MaxCategoryLength {
		return params, fmt.Errorf("%w: category must be at most %d characters", apperr.ErrValidation, MaxCategoryLength)
	}
	return params, nil
}

// LikeState is the outcome of a like toggle or status read.
type LikeState struct {
	PostID    ID
	Liked     bool
	LikeCount int
}

// Toggle flips userID's membership in the like set and adjusts the counter by
// the same delta. It is the single place the in-process stores mutate likes.
func (p *Post) Toggle(userID UserID) LikeState {
	if i := slices.Index(p.LikedBy, userID); i >= 0 {
		p.LikedBy = slices.Delete(p.LikedBy, i, i+1)
		p.LikeCount--
		return LikeState{PostID: p.ID, Liked: false, LikeCount: p.LikeCount}
	}
	p.LikedBy = append(p.LikedBy, userID)
	p.LikeCount++
	return LikeState{PostID: p.ID, Liked: true, LikeCount: p.LikeCount}
}
