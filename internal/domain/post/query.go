package post

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"inkwell/internal/domain/apperr"
)

const (
	// DefaultLimit is used when SearchQuery.Limit is zero.
	DefaultLimit = 20
	// MaxLimit caps SearchQuery.Limit to avoid unbounded queries.
	MaxLimit = 100
)

// SearchQuery filters posts. All set predicates are AND-combined; the zero
// value matches every post. Results are ordered by creation time, newest first.
type SearchQuery struct {
	// Title matches case-insensitively as a substring.
	Title string
	// Category matches case-insensitively as a substring.
	Category string
	// UserID restricts to posts authored by the user, or liked by the user
	// when IsLiked is set.
	UserID  *UserID
	IsLiked bool
	Limit   int
	Offset  int
}

// Normalize trims inputs, applies paging defaults and validates the query.
func (q *SearchQuery) Normalize() error {
	q.Title = strings.TrimSpace(q.Title)
	q.Category = strings.TrimSpace(q.Category)

	if q.UserID != nil && *q.UserID == uuid.Nil {
		q.UserID = nil
	}
	if q.IsLiked && q.UserID == nil {
		return fmt.Errorf("%w: is_liked requires a user", apperr.ErrValidation)
	}

	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit < 0 || q.Limit > MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", apperr.ErrValidation, MaxLimit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0", apperr.ErrValidation)
	}
	return nil
}

// Personal reports whether the query depends on a specific user.
func (q SearchQuery) Personal() bool {
	return q.UserID != nil
}

// Matches evaluates the query predicates against p in memory.
func (q SearchQuery) Matches(p *Post) bool {
	if q.Title != "" && !containsFold(p.Title, q.Title) {
		return false
	}
	if q.Category != "" && !containsFold(p.Category, q.Category) {
		return false
	}
	if q.UserID != nil {
		if q.IsLiked {
			return p.IsLikedBy(*q.UserID)
		}
		return p.AuthorID == *q.UserID
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
