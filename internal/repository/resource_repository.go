package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-repo-api/internal/models"
)

const resourceSelect = `SELECT r.id, r.title, r.description, r.type, r.department, r.file_path, r.file_name, r.mime_type, r.size_bytes,
	r.uploaded_by, r.student_id, r.supervisor_id, r.status, r.rejection_reason, r.view_count, r.download_count, r.created_at, r.updated_at,
	u.full_name AS uploader_name, s.full_name AS supervisor_name,
	m.resource_id IS NOT NULL AS has_metadata, m.year AS meta_year, m.semester AS meta_semester, m.course AS meta_course, m.tags AS meta_tags
	FROM resources r
	LEFT JOIN users u ON u.id = r.uploaded_by
	LEFT JOIN users s ON s.id = r.supervisor_id
	LEFT JOIN resource_metadata m ON m.resource_id = r.id`

var resourceSorts = map[string]string{
	"created_at":     "r.created_at",
	"updated_at":     "r.updated_at",
	"title":          "r.title",
	"view_count":     "r.view_count",
	"download_count": "r.download_count",
}

type resourceRow struct {
	models.Resource
	HasMetadata  bool           `db:"has_metadata"`
	MetaYear     sql.NullInt64  `db:"meta_year"`
	MetaSemester sql.NullString `db:"meta_semester"`
	MetaCourse   sql.NullString `db:"meta_course"`
	MetaTags     sql.NullString `db:"meta_tags"`
}

func (row resourceRow) toModel() models.Resource {
	res := row.Resource
	if !row.HasMetadata {
		return res
	}
	meta := &models.ResourceMetadata{ResourceID: res.ID, Tags: splitTags(row.MetaTags.String)}
	if row.MetaYear.Valid {
		year := int(row.MetaYear.Int64)
		meta.Year = &year
	}
	if row.MetaSemester.Valid {
		meta.Semester = &row.MetaSemester.String
	}
	if row.MetaCourse.Valid {
		meta.Course = &row.MetaCourse.String
	}
	res.Metadata = meta
	return res
}

type metadataRecord struct {
	ResourceID string  `db:"resource_id"`
	Year       *int    `db:"year"`
	Semester   *string `db:"semester"`
	Course     *string `db:"course"`
	Tags       string  `db:"tags"`
}

func newMetadataRecord(resourceID string, meta *models.ResourceMetadata) metadataRecord {
	return metadataRecord{
		ResourceID: resourceID,
		Year:       meta.Year,
		Semester:   meta.Semester,
		Course:     meta.Course,
		Tags:       joinTags(meta.Tags),
	}
}

// ResourceRepository provides persistence for resources and their access logs.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository constructs the repository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Create inserts the resource, its optional metadata and any notifications
// raised by the upload in a single transaction.
func (r *ResourceRepository) Create(ctx context.Context, res *models.Resource, notifications []models.Notification) (err error) {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = res.CreatedAt
	if res.Status == "" {
		res.Status = models.ResourceStatusPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create resource: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO resources (id, title, description, type, department, file_path, file_name, mime_type, size_bytes, uploaded_by, student_id, supervisor_id, status, rejection_reason, view_count, download_count, created_at, updated_at)
		VALUES (:id, :title, :description, :type, :department, :file_path, :file_name, :mime_type, :size_bytes, :uploaded_by, :student_id, :supervisor_id, :status, :rejection_reason, 0, 0, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, res); err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}

	if !res.Metadata.Empty() {
		if err = upsertMetadata(ctx, tx, res.ID, res.Metadata); err != nil {
			return err
		}
	}

	for i := range notifications {
		if notifications[i].ResourceID == nil {
			notifications[i].ResourceID = &res.ID
		}
		if err = insertNotification(ctx, tx, &notifications[i]); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create resource: %w", err)
	}
	return nil
}

// FindByID returns a resource with uploader/supervisor names and metadata.
func (r *ResourceRepository) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	var row resourceRow
	if err := r.db.GetContext(ctx, &row, resourceSelect+` WHERE r.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find resource: %w", err)
	}
	res := row.toModel()
	return &res, nil
}

// List returns a filtered page of resources and the total match count.
func (r *ResourceRepository) List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error) {
	b := resourceFilterQuery(filter)
	where := b.whereClause()
	suffix, args := b.paginate(normalizePage(filter.Page, filter.PageSize))
	query := resourceSelect + where + orderBy(filter.SortBy, filter.SortOrder, resourceSorts, "created_at", "r.id") + suffix

	var rows []resourceRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list resources: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM resources r LEFT JOIN resource_metadata m ON m.resource_id = r.id` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count resources: %w", err)
	}

	return toResources(rows), total, nil
}

// ListAll returns every resource matching the filter without pagination.
func (r *ResourceRepository) ListAll(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, error) {
	b := resourceFilterQuery(filter)
	query := resourceSelect + b.whereClause() + orderBy(filter.SortBy, filter.SortOrder, resourceSorts, "created_at", "r.id")
	var rows []resourceRow
	if err := r.db.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, fmt.Errorf("list all resources: %w", err)
	}
	return toResources(rows), nil
}

// resourceFilterQuery translates list filters and the viewer's visibility
// scope into conditions. Admins see everything. Other viewers see approved
// resources, resources they own or supervise, and for supervisors the
// resources they are allowed to moderate.
func resourceFilterQuery(filter models.ResourceFilter) *queryBuilder {
	b := newQueryBuilder()
	b.whereIf(filter.Type != "", "r.type = ?", filter.Type)
	b.whereIf(filter.Department != "", "LOWER(r.department) = LOWER(?)", strings.TrimSpace(filter.Department))
	b.whereIf(filter.Status != "", "r.status = ?", filter.Status)
	b.whereIf(filter.UploadedBy != "", "r.uploaded_by = ?", filter.UploadedBy)
	if filter.Year != nil {
		b.where("m.year = ?", *filter.Year)
	}
	if strings.TrimSpace(filter.Course) != "" {
		b.where("LOWER(m.course) = LOWER(?)", strings.TrimSpace(filter.Course))
	}
	if strings.TrimSpace(filter.Search) != "" {
		pattern := likePattern(filter.Search)
		b.where("(LOWER(r.title) LIKE ? OR LOWER(r.description) LIKE ? OR LOWER(m.tags) LIKE ?)", pattern, pattern, pattern)
	}

	viewer := filter.Viewer
	if viewer.IsAdmin() || viewer.ID == "" {
		return b
	}
	scope := "(r.status = ? OR r.uploaded_by = ? OR r.student_id = ? OR r.supervisor_id = ?"
	values := []interface{}{models.ResourceStatusApproved, viewer.ID, viewer.ID, viewer.ID}
	if viewer.Role == models.RoleSupervisor {
		scope += " OR r.type = ? OR (r.type = ? AND LOWER(r.department) = LOWER(?))"
		values = append(values, models.ResourceTypeMiniProject, models.ResourceTypeFinalProject, viewer.Department)
	}
	b.where(scope+")", values...)
	return b
}

func toResources(rows []resourceRow) []models.Resource {
	items := make([]models.Resource, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toModel())
	}
	return items
}

// Update persists editable fields and replaces metadata in one transaction.
func (r *ResourceRepository) Update(ctx context.Context, res *models.Resource) (err error) {
	res.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update resource: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const update = `UPDATE resources SET title = :title, description = :description, type = :type, department = :department, student_id = :student_id, supervisor_id = :supervisor_id, updated_at = :updated_at WHERE id = :id`
	result, err := tx.NamedExecContext(ctx, update, res)
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	if err = requireAffected(result); err != nil {
		return err
	}

	if res.Metadata != nil {
		if err = upsertMetadata(ctx, tx, res.ID, res.Metadata); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update resource: %w", err)
	}
	return nil
}

// UpdateStatus applies a moderation decision and writes the owner
// notification atomically. Returns sql.ErrNoRows when the resource vanished.
func (r *ResourceRepository) UpdateStatus(ctx context.Context, change models.ResourceStatusChange) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update resource status: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const update = `UPDATE resources SET status = $2, rejection_reason = $3, updated_at = $4 WHERE id = $1`
	result, err := tx.ExecContext(ctx, update, change.ResourceID, change.Status, change.RejectionReason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update resource status: %w", err)
	}
	if err = requireAffected(result); err != nil {
		return err
	}

	if change.Notification != nil {
		if err = insertNotification(ctx, tx, change.Notification); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update resource status: %w", err)
	}
	return nil
}

// RecordAccess appends an access log row and, for views and downloads, bumps
// the matching counter with an in-database increment.
func (r *ResourceRepository) RecordAccess(ctx context.Context, req models.AccessRequest) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record access: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if column := req.Action.CounterColumn(); column != "" {
		query := fmt.Sprintf(`UPDATE resources SET %s = %s + 1 WHERE id = $1`, column, column)
		result, execErr := tx.ExecContext(ctx, query, req.ResourceID)
		if execErr != nil {
			err = fmt.Errorf("increment %s: %w", column, execErr)
			return err
		}
		if err = requireAffected(result); err != nil {
			return err
		}
	}

	var userID *string
	if req.UserID != "" {
		userID = &req.UserID
	}
	const insert = `INSERT INTO resource_access_logs (id, resource_id, user_id, action, ip_address, user_agent, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err = tx.ExecContext(ctx, insert, uuid.NewString(), req.ResourceID, userID, req.Action, req.IPAddress, req.UserAgent, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert access log: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit record access: %w", err)
	}
	return nil
}

// ListAccessLogs returns a page of access events for a resource.
func (r *ResourceRepository) ListAccessLogs(ctx context.Context, resourceID string, page, pageSize int) ([]models.AccessLog, int, error) {
	b := newQueryBuilder()
	b.where("l.resource_id = ?", resourceID)
	where := b.whereClause()
	suffix, args := b.paginate(normalizePage(page, pageSize))
	query := `SELECT l.id, l.resource_id, l.user_id, l.action, l.ip_address, l.user_agent, l.created_at, u.full_name AS user_name
		FROM resource_access_logs l LEFT JOIN users u ON u.id = l.user_id` + where + ` ORDER BY l.created_at DESC, l.id DESC` + suffix

	var logs []models.AccessLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list access logs: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM resource_access_logs l`+where, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count access logs: %w", err)
	}
	return logs, total, nil
}

// Delete removes the resource and every dependent row, returning the stored
// file path so the caller can remove the file once the transaction committed.
func (r *ResourceRepository) Delete(ctx context.Context, id string) (filePath string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin delete resource: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = tx.GetContext(ctx, &filePath, `SELECT file_path FROM resources WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		err = fmt.Errorf("lock resource: %w", err)
		return "", err
	}

	dependents := []string{
		`DELETE FROM notifications WHERE resource_id = $1`,
		`DELETE FROM bookmarks WHERE resource_id = $1`,
		`DELETE FROM comments WHERE resource_id = $1`,
		`DELETE FROM resource_access_logs WHERE resource_id = $1`,
		`DELETE FROM resource_metadata WHERE resource_id = $1`,
		`DELETE FROM resources WHERE id = $1`,
	}
	for _, stmt := range dependents {
		if _, err = tx.ExecContext(ctx, stmt, id); err != nil {
			err = fmt.Errorf("delete resource dependents: %w", err)
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit delete resource: %w", err)
		return "", err
	}
	return filePath, nil
}

// Stats aggregates resource counters.
func (r *ResourceRepository) Stats(ctx context.Context) (*models.ResourceStats, error) {
	const totals = `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'pending') AS pending,
		COUNT(*) FILTER (WHERE status = 'approved') AS approved,
		COUNT(*) FILTER (WHERE status = 'rejected') AS rejected,
		COALESCE(SUM(view_count), 0) AS total_views,
		COALESCE(SUM(download_count), 0) AS total_downloads
		FROM resources`
	var row struct {
		Total          int `db:"total"`
		Pending        int `db:"pending"`
		Approved       int `db:"approved"`
		Rejected       int `db:"rejected"`
		TotalViews     int `db:"total_views"`
		TotalDownloads int `db:"total_downloads"`
	}
	if err := r.db.GetContext(ctx, &row, totals); err != nil {
		return nil, fmt.Errorf("resource stats: %w", err)
	}

	var byType []struct {
		Type  string `db:"type"`
		Count int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &byType, `SELECT type, COUNT(*) AS count FROM resources GROUP BY type ORDER BY type`); err != nil {
		return nil, fmt.Errorf("resource stats by type: %w", err)
	}

	stats := &models.ResourceStats{
		Total:          row.Total,
		Pending:        row.Pending,
		Approved:       row.Approved,
		Rejected:       row.Rejected,
		TotalViews:     row.TotalViews,
		TotalDownloads: row.TotalDownloads,
		ByType:         make(map[string]int, len(byType)),
	}
	for _, item := range byType {
		stats.ByType[item.Type] = item.Count
	}
	return stats, nil
}

func upsertMetadata(ctx context.Context, exec sqlx.ExtContext, resourceID string, meta *models.ResourceMetadata) error {
	const query = `INSERT INTO resource_metadata (resource_id, year, semester, course, tags) VALUES (:resource_id, :year, :semester, :course, :tags)
		ON CONFLICT (resource_id) DO UPDATE SET year = EXCLUDED.year, semester = EXCLUDED.semester, course = EXCLUDED.course, tags = EXCLUDED.tags`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, newMetadataRecord(resourceID, meta)); err != nil {
		return fmt.Errorf("upsert resource metadata: %w", err)
	}
	return nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func joinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(strings.ReplaceAll(tag, ",", " "))
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, tag)
	}
	return strings.Join(cleaned, ",")
}
