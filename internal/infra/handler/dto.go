package handler

import (
	"time"

	"github.com/google/uuid"

	"inkwell/internal/domain/comment"
	"inkwell/internal/domain/post"
	"inkwell/internal/pkg/timeutil"
	usecaseComment "inkwell/internal/usecase/comment"
)

type postResponse struct {
	ID        uuid.UUID `json:"id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ImageURL  string    `json:"image_url,omitempty"`
	Category  string    `json:"category"`
	LikeCount int       `json:"like_count"`
	Liked     bool      `json:"liked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// toPostResponse renders p for viewer; the like set itself is not exposed.
func toPostResponse(p *post.Post, viewer uuid.UUID) postResponse {
	return postResponse{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Title:     p.Title,
		Body:      p.Body,
		ImageURL:  p.ImageURL,
		Category:  p.Category,
		LikeCount: p.LikeCount,
		Liked:     viewer != uuid.Nil && p.IsLikedBy(viewer),
		CreatedAt: timeutil.Normalize(p.CreatedAt),
		UpdatedAt: timeutil.Normalize(p.UpdatedAt),
	}
}

type postListResponse struct {
	Posts  []postResponse `json:"posts"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func toPostListResponse(posts []*post.Post, limit, offset int, viewer uuid.UUID) postListResponse {
	resp := postListResponse{
		Posts:  make([]postResponse, 0, len(posts)),
		Limit:  limit,
		Offset: offset,
	}
	for _, p := range posts {
		resp.Posts = append(resp.Posts, toPostResponse(p, viewer))
	}
	return resp
}

type likeResponse struct {
	PostID    uuid.UUID `json:"post_id"`
	Liked     bool      `json:"liked"`
	LikeCount int       `json:"like_count"`
}

func toLikeResponse(s post.LikeState) likeResponse {
	return likeResponse{PostID: s.PostID, Liked: s.Liked, LikeCount: s.LikeCount}
}

type commentResponse struct {
	ID        uuid.UUID  `json:"id"`
	PostID    uuid.UUID  `json:"post_id"`
	AuthorID  uuid.UUID  `json:"author_id"`
	Content   string     `json:"content"`
	ParentID  *uuid.UUID `json:"parent_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toCommentResponse(c *comment.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		PostID:    c.PostID,
		AuthorID:  c.AuthorID,
		Content:   c.Content,
		ParentID:  c.ParentID,
		CreatedAt: timeutil.Normalize(c.CreatedAt),
		UpdatedAt: timeutil.Normalize(c.UpdatedAt),
	}
}

type commentNodeResponse struct {
	commentResponse
	Replies []commentNodeResponse `json:"replies"`
}

type treeResponse struct {
	PostID   uuid.UUID             `json:"post_id"`
	Comments []commentNodeResponse `json:"comments"`
	Total    int                   `json:"total"`
}

func toTreeResponse(tree usecaseComment.Tree) treeResponse {
	return treeResponse{
		PostID:   tree.PostID,
		Comments: toNodeResponses(tree.Comments),
		Total:    tree.Total,
	}
}

func toNodeResponses(nodes []*comment.Node) []commentNodeResponse {
	out := make([]commentNodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, commentNodeResponse{
			commentResponse: toCommentResponse(n.Comment),
			Replies:         toNodeResponses(n.Replies),
		})
	}
	return out
}
