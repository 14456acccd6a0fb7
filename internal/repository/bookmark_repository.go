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

// ErrBookmarkExists is returned when the user already bookmarked the resource.
var ErrBookmarkExists = errors.New("bookmark already exists")

// BookmarkRepository persists user bookmarks.
type BookmarkRepository struct {
	db *sqlx.DB
}

// NewBookmarkRepository constructs the repository.
func NewBookmarkRepository(db *sqlx.DB) *BookmarkRepository {
	return &BookmarkRepository{db: db}
}

// Create stores a bookmark; the (user, resource) pair is unique.
func (r *BookmarkRepository) Create(ctx context.Context, bookmark *models.Bookmark) error {
	if bookmark.ID == "" {
		bookmark.ID = uuid.NewString()
	}
	if bookmark.CreatedAt.IsZero() {
		bookmark.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO bookmarks (id, user_id, resource_id, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (user_id, resource_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, bookmark.ID, bookmark.UserID, bookmark.ResourceID, bookmark.CreatedAt)
	if err != nil {
		return fmt.Errorf("create bookmark: %w", err)
	}
	if err := requireAffected(result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookmarkExists
		}
		return err
	}
	return nil
}

// Delete removes the user's bookmark on a resource.
func (r *BookmarkRepository) Delete(ctx context.Context, userID, resourceID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE user_id = $1 AND resource_id = $2`, userID, resourceID)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	return requireAffected(result)
}

// Exists reports whether the user bookmarked the resource.
func (r *BookmarkRepository) Exists(ctx context.Context, userID, resourceID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM bookmarks WHERE user_id = $1 AND resource_id = $2)`, userID, resourceID); err != nil {
		return false, fmt.Errorf("bookmark exists: %w", err)
	}
	return exists, nil
}

// ListByUser returns a page of the user's bookmarks joined with resource details.
func (r *BookmarkRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.BookmarkedResource, int, error) {
	b := newQueryBuilder()
	b.where("b.user_id = ?", userID)
	where := b.whereClause()
	suffix, args := b.paginate(normalizePage(page, pageSize))
	query := `SELECT b.id AS bookmark_id, b.created_at AS bookmarked_at, r.id AS resource_id, r.title, r.type, r.department, r.status
		FROM bookmarks b JOIN resources r ON r.id = b.resource_id` + where + ` ORDER BY b.created_at DESC, b.id DESC` + suffix

	var items []models.BookmarkedResource
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookmarks: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM bookmarks b`+where, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count bookmarks: %w", err)
	}
	return items, total, nil
}
