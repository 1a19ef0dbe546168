package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inkwell/internal/domain/apperr"
	"inkwell/internal/domain/post"
	"inkwell/internal/domain/repository"
	"inkwell/internal/pkg/timeutil"
)

var _ repository.PostRepository = (*PostRepository)(nil)

// PostRepository implements repository.PostRepository backed by PostgreSQL.
type PostRepository struct {
	pool *pgxpool.Pool
}

// NewPostRepository creates a new PostRepository.
func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

const postColumns = "id, author_id, title, body, image_url, category, liked_by, like_count, created_at, updated_at"

// Create inserts a new post with an empty like set.
func (r *PostRepository) Create(ctx context.Context, p *post.Post) error {
	if p == nil {
		return fmt.Errorf("%w: post is nil", apperr.ErrValidation)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := timeutil.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	const query = `
INSERT INTO posts (id, author_id, title, body, image_url, category, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.AuthorID,
		p.Title,
		p.Body,
		nullableString(p.ImageURL),
		p.Category,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return wrapErr("insert post", err)
	}
	p.LikedBy = []post.UserID{}
	p.LikeCount = 0
	return nil
}

// Update writes editable fields. liked_by and like_count are left untouched.
func (r *PostRepository) Update(ctx context.Context, p *post.Post) error {
	if p == nil || p.ID == uuid.Nil {
		return fmt.Errorf("%w: post id is required", apperr.ErrValidation)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = timeutil.Now()
	}

	const query = `
UPDATE posts
SET title = $1,
	body = $2,
	image_url = $3,
	category = $4,
	updated_at = $5
WHERE id = $6`

	tag, err := r.pool.Exec(ctx, query,
		p.Title,
		p.Body,
		nullableString(p.ImageURL),
		p.Category,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return wrapErr("update post", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update post %s: %w", p.ID, apperr.ErrNotFound)
	}
	return nil
}

// Delete removes a post; comments go with it through ON DELETE CASCADE.
func (r *PostRepository) Delete(ctx context.Context, id post.ID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete post", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete post %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// SetImage replaces the image URL.
func (r *PostRepository) SetImage(ctx context.Context, id post.ID, imageURL string, updatedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE posts SET image_url = $1, updated_at = $2 WHERE id = $3`,
		nullableString(imageURL), updatedAt, id)
	if err != nil {
		return wrapErr("set post image", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set post image %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Get retrieves a single post by ID.
func (r *PostRepository) Get(ctx context.Context, id post.ID) (*post.Post, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	p, err := scanPost(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get post %s", id), err)
	}
	return p, nil
}

// Search returns posts matching every predicate of the query, newest first.
func (r *PostRepository) Search(ctx context.Context, q post.SearchQuery) ([]*post.Post, error) {
	query := q
	if err := query.Normalize(); err != nil {
		return nil, err
	}
	sql, args := buildSearchPostsSQL(query)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr("search posts", err)
	}
	defer rows.Close()

	posts, err := scanPosts(rows)
	if err != nil {
		return nil, wrapErr("search posts", err)
	}
	return posts, nil
}

// ToggleLike flips membership and adjusts like_count in one UPDATE. Both SET
// expressions read the same pre-update row, and concurrent toggles on the
// row are serialised by its row lock, so the counter always equals the set
// size.
func (r *PostRepository) ToggleLike(ctx context.Context, postID post.ID, userID post.UserID) (post.LikeState, error) {
	const query = `
UPDATE posts
SET liked_by = CASE
		WHEN $2 = ANY(liked_by) THEN array_remove(liked_by, $2)
		ELSE array_append(liked_by, $2)
	END,
	like_count = CASE
		WHEN $2 = ANY(liked_by) THEN like_count - 1
		ELSE like_count + 1
	END
WHERE id = $1
RETURNING $2 = ANY(liked_by), like_count`

	state := post.LikeState{PostID: postID}
	if err := r.pool.QueryRow(ctx, query, postID, userID).Scan(&state.Liked, &state.LikeCount); err != nil {
		return post.LikeState{}, wrapErr(fmt.Sprintf("toggle like %s", postID), err)
	}
	return state, nil
}

func buildSearchPostsSQL(q post.SearchQuery) (string, []any) {
	builder := strings.Builder{}
	builder.WriteString("SELECT ")
	builder.WriteString(postColumns)
	builder.WriteString(" FROM posts")

	var conditions []string
	var args []any
	argPos := 1

	if q.Title != "" {
		conditions = append(conditions, fmt.Sprintf(`title ILIKE $%d ESCAPE '\'`, argPos))
		args = append(args, "%"+escapeLike(q.Title)+"%")
		argPos++
	}

	if q.Category != "" {
		conditions = append(conditions, fmt.Sprintf(`category ILIKE $%d ESCAPE '\'`, argPos))
		args = append(args, "%"+escapeLike(q.Category)+"%")
		argPos++
	}

	if q.UserID != nil {
		if q.IsLiked {
			conditions = append(conditions, fmt.Sprintf("$%d::uuid = ANY(liked_by)", argPos))
		} else {
			conditions = append(conditions, fmt.Sprintf("author_id = $%d", argPos))
		}
		args = append(args, *q.UserID)
		argPos++
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}

	builder.WriteString(" ORDER BY created_at DESC, id DESC")
	builder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1))
	args = append(args, q.Limit, q.Offset)

	return builder.String(), args
}

func scanPosts(rows pgx.Rows) ([]*post.Post, error) {
	posts := make([]*post.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func scanPost(row pgx.Row) (*post.Post, error) {
	p := &post.Post{}
	var imageURL *string
	if err := row.Scan(
		&p.ID,
		&p.AuthorID,
		&p.Title,
		&p.Body,
		&imageURL,
		&p.Category,
		&p.LikedBy,
		&p.LikeCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if imageURL != nil {
		p.ImageURL = *imageURL
	}
	if p.LikedBy == nil {
		p.LikedBy = []post.UserID{}
	}
	return p, nil
}
