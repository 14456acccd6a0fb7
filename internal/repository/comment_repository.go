package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-repo-api/internal/models"
)

const commentSelect = `SELECT c.id, c.resource_id, c.user_id, c.content, c.created_at, c.updated_at, u.full_name AS author_name, u.role AS author_role
	FROM comments c JOIN users u ON u.id = c.user_id`

// CommentRepository persists resource comments.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs the repository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a comment and an optional notification for the resource
// uploader in one transaction.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment, notification *models.Notification) (err error) {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create comment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO comments (id, resource_id, user_id, content, created_at, updated_at) VALUES (:id, :resource_id, :user_id, :content, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, comment); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	if notification != nil {
		if err = insertNotification(ctx, tx, notification); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create comment: %w", err)
	}
	return nil
}

// FindByID returns a comment with its author name.
func (r *CommentRepository) FindByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.GetContext(ctx, &comment, commentSelect+` WHERE c.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return &comment, nil
}

// ListByResource returns a page of comments in chronological order.
func (r *CommentRepository) ListByResource(ctx context.Context, resourceID string, page, pageSize int) ([]models.Comment, int, error) {
	b := newQueryBuilder()
	b.where("c.resource_id = ?", resourceID)
	where := b.whereClause()
	suffix, args := b.paginate(normalizePage(page, pageSize))

	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, commentSelect+where+` ORDER BY c.created_at ASC, c.id ASC`+suffix, args...); err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM comments c`+where, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}
	return comments, total, nil
}

// UpdateContent replaces the comment body.
func (r *CommentRepository) UpdateContent(ctx context.Context, id, content string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1`, id, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a comment.
func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return requireAffected(result)
}
