package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inkwell/internal/domain/apperr"
	"inkwell/internal/domain/comment"
	"inkwell/internal/domain/repository"
	"inkwell/internal/pkg/timeutil"
)

var _ repository.CommentRepository = (*CommentRepository)(nil)

// CommentRepository implements repository.CommentRepository backed by PostgreSQL.
type CommentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository(pool *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{pool: pool}
}

const commentColumns = "id, post_id, author_id, content, parent_id, created_at, updated_at"

// Get retrieves a single comment by ID.
func (r *CommentRepository) Get(ctx context.Context, id comment.ID) (*comment.Comment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
	c, err := scanComment(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get comment %s", id), err)
	}
	return c, nil
}

// ListByPost returns every comment of the post, newest first.
func (r *CommentRepository) ListByPost(ctx context.Context, postID uuid.UUID) ([]*comment.Comment, error) {
	const query = `SELECT ` + commentColumns + `
FROM comments
WHERE post_id = $1
ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, postID)
	if err != nil {
		return nil, wrapErr("list comments", err)
	}
	defer rows.Close()

	comments := make([]*comment.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, wrapErr("scan comment", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list comments", err)
	}
	return comments, nil
}

// Create inserts the comment. For a reply the parent row is locked FOR SHARE
// in the same transaction, so a concurrent cascade delete either runs first
// (and the insert reports NotFound) or waits until the reply is committed
// and then removes it too.
func (r *CommentRepository) Create(ctx context.Context, c *comment.Comment) error {
	if c == nil {
		return fmt.Errorf("%w: comment is nil", apperr.ErrValidation)
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := timeutil.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if c.ParentID != nil {
			var exists bool
			err := tx.QueryRow(ctx,
				`SELECT TRUE FROM comments WHERE id = $1 FOR SHARE`, *c.ParentID).Scan(&exists)
			if err != nil {
				if errorsIsNoRows(err) {
					return fmt.Errorf("parent %s: %w", *c.ParentID, apperr.ErrNotFound)
				}
				return err
			}
		}

		const query = `
INSERT INTO comments (id, post_id, author_id, content, parent_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
		_, err := tx.Exec(ctx, query,
			c.ID,
			c.PostID,
			c.AuthorID,
			c.Content,
			c.ParentID,
			c.CreatedAt,
			c.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return wrapErr("insert comment", err)
	}
	return nil
}

// UpdateContent replaces content and updated_at and returns the stored row.
func (r *CommentRepository) UpdateContent(ctx context.Context, id comment.ID, content string, updatedAt time.Time) (*comment.Comment, error) {
	const query = `
UPDATE comments
SET content = $1,
	updated_at = $2
WHERE id = $3
RETURNING ` + commentColumns

	c, err := scanComment(r.pool.QueryRow(ctx, query, content, updatedAt, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("update comment %s", id), err)
	}
	return c, nil
}

const deleteSubtreeQuery = `
	WITH RECURSIVE subtree AS (
		SELECT id FROM comments WHERE id = $1
		UNION ALL
		SELECT c.id FROM comments c JOIN subtree s ON c.parent_id = s.id
	), deleted AS (
		DELETE FROM comments WHERE id IN (SELECT id FROM subtree) RETURNING 1
	)
	SELECT count(*) FROM deleted`

// DeleteCascade removes the root comment and everything beneath it in one
// transaction and returns the number of removed rows.
func (r *CommentRepository) DeleteCascade(ctx context.Context, rootID comment.ID) (int, error) {
	removed := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var locked uuid.UUID
		if err := tx.QueryRow(ctx,
			`SELECT id FROM comments WHERE id = $1 FOR UPDATE`, rootID).Scan(&locked); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, deleteSubtreeQuery, rootID).Scan(&removed); err != nil {
			return fmt.Errorf("delete subtree: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, wrapErr(fmt.Sprintf("delete comment %s", rootID), err)
	}
	return removed, nil
}

// DeleteSingle removes one comment plus any rows stored beneath it, counting
// every removed row.
func (r *CommentRepository) DeleteSingle(ctx context.Context, id comment.ID) (int, error) {
	var removed int
	if err := r.pool.QueryRow(ctx, deleteSubtreeQuery, id).Scan(&removed); err != nil {
		return 0, wrapErr(fmt.Sprintf("delete comment %s", id), err)
	}
	if removed == 0 {
		return 0, fmt.Errorf("delete comment %s: %w", id, apperr.ErrNotFound)
	}
	return removed, nil
}

func scanComment(row pgx.Row) (*comment.Comment, error) {
	c := &comment.Comment{}
	if err := row.Scan(
		&c.ID,
		&c.PostID,
		&c.AuthorID,
		&c.Content,
		&c.ParentID,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return c, nil
}
