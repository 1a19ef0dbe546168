// Package memory provides mutex-guarded in-process repositories. It backs
// APP_STORAGE=memory and the use case tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/domain/apperr"
	"inkwell/internal/domain/comment"
	"inkwell/internal/domain/post"
	"inkwell/internal/domain/repository"
)

// Store holds posts and comments behind a single RWMutex, so every operation
// (including like toggles and cascade deletes) is atomic.
type Store struct {
	mu       sync.RWMutex
	seq      int64
	posts    map[post.ID]*postRow
	comments map[comment.ID]*commentRow
}

type postRow struct {
	post *post.Post
	seq  int64
}

type commentRow struct {
	comment *comment.Comment
	seq     int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		posts:    make(map[post.ID]*postRow),
		comments: make(map[comment.ID]*commentRow),
	}
}

// Posts returns the store as a PostRepository.
func (s *Store) Posts() *PostRepository { return &PostRepository{s: s} }

// Comments returns the store as a CommentRepository.
func (s *Store) Comments() *CommentRepository { return &CommentRepository{s: s} }

// HealthCheck always succeeds.
func (s *Store) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// PostRepository implements repository.PostRepository in memory.
type PostRepository struct{ s *Store }

var _ repository.PostRepository = (*PostRepository)(nil)

// Get returns a copy of the post.
func (r *PostRepository) Get(ctx context.Context, id post.ID) (*post.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, transient(err)
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.posts[id]
	if !ok {
		return nil, fmt.Errorf("get post %s: %w", id, apperr.ErrNotFound)
	}
	return clonePost(row.post), nil
}

// Create stores a new post.
func (r *PostRepository) Create(ctx context.Context, p *post.Post) error {
	if err := ctx.Err(); err != nil {
		return transient(err)
	}
	if p == nil {
		return fmt.Errorf("%w: post is nil", apperr.ErrValidation)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if _, exists := r.s.posts[p.ID]; exists {
		return fmt.Errorf("create post %s: %w", p.ID, apperr.ErrConflict)
	}
	r.s.posts[p.ID] = &postRow{post: clonePost(p), seq: r.s.next()}
	return nil
}

// Update writes editable fields and keeps the like state.
func (r *PostRepository) Update(ctx context.Context, p *post.Post) error {
	if err := ctx.Err(); err != nil {
		return transient(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.posts[p.ID]
	if !ok {
		return fmt.Errorf("update post %s: %w", p.ID, apperr.ErrNotFound)
	}
	row.post.Title = p.Title
	row.post.Body = p.Body
	row.post.ImageURL = p.ImageURL
	row.post.Category = p.Category
	row.post.UpdatedAt = p.UpdatedAt
	return nil
}

// Delete removes the post and its comments.
func (r *PostRepository) Delete(ctx context.Context, id post.ID) error {
	if err := ctx.Err(); err != nil {
		return transient(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.posts[id]; !ok {
		return fmt.Errorf("delete post %s: %w", id, apperr.ErrNotFound)
	}
	for cid, row := range r.s.comments {
		if row.comment.PostID == id {
			delete(r.s.comments, cid)
		}
	}
	delete(r.s.posts, id)
	return nil
}

// SetImage replaces the image URL.
func (r *PostRepository) SetImage(ctx context.Context, id post.ID, imageURL string, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return transient(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.posts[id]
	if !ok {
		return fmt.Errorf("set image %s: %w", id, apperr.ErrNotFound)
	}
	row.post.ImageURL = imageURL
	row.post.UpdatedAt = updatedAt
	return nil
}

// Search filters posts with SearchQuery.Matches, newest first.
func (r *PostRepository) Search(ctx context.Context, query post.SearchQuery) ([]*post.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, transient(err)
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rows := make([]*postRow, 0, len(r.s.posts))
	for _, row := range r.s.posts {
		if query.Matches(row.post) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.post.CreatedAt.Equal(b.post.CreatedAt) {
			return a.post.CreatedAt.After(b.post.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]*post.Post, 0, len(rows))
	for i, row := range rows {
		if i < query.Offset {
			continue
		}
		if query.Limit > 0 && len(out) >= query.Limit {
			break
		}
		out = append(out, clonePost(row.post))
	}
	return out, nil
}

// ToggleLike flips membership and counter under the store lock.
func (r *PostRepository) ToggleLike(ctx context.Context, postID post.ID, userID post.UserID) (post.LikeState, error) {
	if err := ctx.Err(); err != nil {
		return post.LikeState{}, transient(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.posts[postID]
	if !ok {
		return post.LikeState{}, fmt.Errorf("toggle like %s: %w", postID, apperr.ErrNotFound)
	}
	return row.post.Toggle(userID), nil
}

// CommentRepository implements repository.CommentRepository in memory.
type CommentRepository struct{ s *Store }

var _ repository.CommentRepository = (*CommentRepository)(nil)

// Get returns a copy of the comment.
func (r *CommentRepository) Get(ctx context.Context, id comment.ID) (*comment.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, transient(err)
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.comments[id]
	if !ok {
		return nil, fmt.Errorf("get comment %s: %w", id, apperr.ErrNotFound)
	}
	return cloneComment(row.comment), nil
}

// ListByPost returns the post's comments, newest first.
func (r *CommentRepository) ListByPost(ctx context.Context, postID uuid.UUID) ([]*comment.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, transient(err)
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rows := make([]*commentRow, 0)
	for _, row := range r.s.comments {
		if row.comment.PostID == postID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.comment.CreatedAt.Equal(b.comment.CreatedAt) {
			return a.comment.CreatedAt.After(b.comment.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]*comment.Comment, 0, len(rows))
	for _, row := range rows {
		out = append(out, cloneComment(row.comment))
	}
	return out, nil
}

// Create inserts the comment after checking its post and parent under the lock.
func (r *CommentRepository) Create(ctx context.Context, c *comment.Comment) error {
	if err := ctx.Err(); err != nil {
		return transient(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.posts[c.PostID]; !ok {
		return fmt.Errorf("create comment: post %s: %w", c.PostID, apperr.ErrNotFound)
	}
	if c.ParentID != nil {
		if _, ok := r.s.comments[*c.ParentID]; !ok {
			return fmt.Errorf("create comment: parent %s: %w", *c.ParentID, apperr.ErrNotFound)
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if _, exists := r.s.comments[c.ID]; exists {
		return fmt.Errorf("create comment %s: %w", c.ID, apperr.ErrConflict)
	}
	r.s.comments[c.ID] = &commentRow{comment: cloneComment(c), seq: r.s.next()}
	return nil
}

// UpdateContent replaces content and updated_at only.
func (r *CommentRepository) UpdateContent(ctx context.Context, id comment.ID, content string, updatedAt time.Time) (*comment.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, transient(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.comments[id]
	if !ok {
		return nil, fmt.Errorf("update comment %s: %w", id, apperr.ErrNotFound)
	}
	row.comment.Content = content
	row.comment.UpdatedAt = updatedAt
	return cloneComment(row.comment), nil
}

// DeleteCascade removes the root and every comment beneath it.
func (r *CommentRepository) DeleteCascade(ctx context.Context, rootID comment.ID) (int, error) {
	return r.deleteSubtree(ctx, rootID)
}

// DeleteSingle removes one comment. Rows beneath it (possible only for
// replies accepted under the tolerant reply policy) go with it, matching the
// ON DELETE CASCADE foreign key of the relational schema.
func (r *CommentRepository) DeleteSingle(ctx context.Context, id comment.ID) (int, error) {
	return r.deleteSubtree(ctx, id)
}

func (r *CommentRepository) deleteSubtree(ctx context.Context, id comment.ID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, transient(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.comments[id]; !ok {
		return 0, fmt.Errorf("delete comment %s: %w", id, apperr.ErrNotFound)
	}
	children := make(map[comment.ID][]comment.ID)
	for cid, row := range r.s.comments {
		if row.comment.ParentID != nil {
			children[*row.comment.ParentID] = append(children[*row.comment.ParentID], cid)
		}
	}
	removed := 0
	for queue := []comment.ID{id}; len(queue) > 0; queue = queue[1:] {
		next := queue[0]
		if _, ok := r.s.comments[next]; !ok {
			continue
		}
		delete(r.s.comments, next)
		removed++
		queue = append(queue, children[next]...)
	}
	return removed, nil
}

func clonePost(p *post.Post) *post.Post {
	cp := *p
	cp.LikedBy = slices.Clone(p.LikedBy)
	if cp.LikedBy == nil {
		cp.LikedBy = []post.UserID{}
	}
	return &cp
}

func cloneComment(c *comment.Comment) *comment.Comment {
	cp := *c
	if c.ParentID != nil {
		parent := *c.ParentID
		cp.ParentID = &parent
	}
	return &cp
}

func transient(err error) error {
	return fmt.Errorf("%w: %w", apperr.ErrTransient, err)
}
