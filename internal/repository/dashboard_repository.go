package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-repo-api/internal/models"
)

const summaryColumns = `r.id, r.title, r.type, r.department, r.status, r.view_count, r.download_count, r.created_at`

// DashboardRepository runs the aggregate queries behind role dashboards.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// StatusCounts aggregates resources by status, optionally limited to one uploader.
func (r *DashboardRepository) StatusCounts(ctx context.Context, uploadedBy string) (models.StatusCounts, error) {
	b := newQueryBuilder()
	b.whereIf(uploadedBy != "", "r.uploaded_by = ?", uploadedBy)
	query := `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE r.status = 'pending') AS pending,
		COUNT(*) FILTER (WHERE r.status = 'approved') AS approved,
		COUNT(*) FILTER (WHERE r.status = 'rejected') AS rejected
		FROM resources r` + b.whereClause()
	var counts models.StatusCounts
	if err := r.db.GetContext(ctx, &counts, query, b.args...); err != nil {
		return models.StatusCounts{}, fmt.Errorf("dashboard status counts: %w", err)
	}
	return counts, nil
}

// UserCounts aggregates users by role.
func (r *DashboardRepository) UserCounts(ctx context.Context) (models.UserCounts, error) {
	const query = `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE role = 'student') AS students,
		COUNT(*) FILTER (WHERE role = 'supervisor') AS supervisors,
		COUNT(*) FILTER (WHERE role = 'admin') AS admins,
		COUNT(*) FILTER (WHERE role = 'faculty') AS faculty,
		COUNT(*) FILTER (WHERE active) AS active
		FROM users`
	var counts models.UserCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return models.UserCounts{}, fmt.Errorf("dashboard user counts: %w", err)
	}
	return counts, nil
}

// PendingForModerator lists pending resources the actor may moderate.
func (r *DashboardRepository) PendingForModerator(ctx context.Context, actor models.Actor, limit int) ([]models.ResourceSummary, error) {
	b := newQueryBuilder()
	b.where("r.status = ?", models.ResourceStatusPending)
	if !actor.IsAdmin() {
		b.where("(r.supervisor_id = ? OR r.type = ? OR (r.type = ? AND LOWER(r.department) = LOWER(?)))",
			actor.ID, models.ResourceTypeMiniProject, models.ResourceTypeFinalProject, actor.Department)
	}
	query := `SELECT ` + summaryColumns + ` FROM resources r` + b.whereClause() + ` ORDER BY r.created_at ASC, r.id ASC LIMIT ` + b.bind(limit)
	return r.selectSummaries(ctx, query, b.args)
}

// Popular lists the most downloaded approved resources.
func (r *DashboardRepository) Popular(ctx context.Context, limit int) ([]models.ResourceSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM resources r WHERE r.status = 'approved' ORDER BY r.download_count DESC, r.view_count DESC, r.id ASC LIMIT $1`
	return r.selectSummaries(ctx, query, []interface{}{limit})
}

// Recent lists the newest approved resources, optionally for one department.
func (r *DashboardRepository) Recent(ctx context.Context, department string, limit int) ([]models.ResourceSummary, error) {
	b := newQueryBuilder()
	b.where("r.status = ?", models.ResourceStatusApproved)
	b.whereIf(department != "", "LOWER(r.department) = LOWER(?)", department)
	query := `SELECT ` + summaryColumns + ` FROM resources r` + b.whereClause() + ` ORDER BY r.created_at DESC, r.id DESC LIMIT ` + b.bind(limit)
	return r.selectSummaries(ctx, query, b.args)
}

// UploadedBy lists the user's latest uploads regardless of status.
func (r *DashboardRepository) UploadedBy(ctx context.Context, userID string, limit int) ([]models.ResourceSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM resources r WHERE r.uploaded_by = $1 ORDER BY r.created_at DESC, r.id DESC LIMIT $2`
	return r.selectSummaries(ctx, query, []interface{}{userID, limit})
}

// CountBookmarks returns how many resources the user bookmarked.
func (r *DashboardRepository) CountBookmarks(ctx context.Context, userID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM bookmarks WHERE user_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("dashboard bookmark count: %w", err)
	}
	return total, nil
}

func (r *DashboardRepository) selectSummaries(ctx context.Context, query string, args []interface{}) ([]models.ResourceSummary, error) {
	var items []models.ResourceSummary
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("dashboard resource summaries: %w", err)
	}
	return items, nil
}
