package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-repo-api/internal/models"
)

var resourceColumnNames = []string{
	"id", "title", "description", "type", "department", "file_path", "file_name", "mime_type", "size_bytes",
	"uploaded_by", "student_id", "supervisor_id", "status", "rejection_reason", "view_count", "download_count", "created_at", "updated_at",
	"uploader_name", "supervisor_name", "has_metadata", "meta_year", "meta_semester", "meta_course", "meta_tags",
}

func strPtr(v string) *string { return &v }

func TestCreateResourceWritesMetadataAndNotifications(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	year := 2024
	res := &models.Resource{
		Title:        "Compilers",
		Type:         models.ResourceTypeFinalProject,
		Department:   "CS",
		FilePath:     "2024/abc.pdf",
		UploadedBy:   strPtr("u1"),
		SupervisorID: strPtr("s1"),
		Metadata:     &models.ResourceMetadata{Year: &year, Tags: []string{"llvm", "LLVM", "parsing"}},
	}
	notifications := []models.Notification{{UserID: "s1", Type: models.NotificationAssignment, Message: "assigned"}}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO resources").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO resource_metadata").
		WithArgs(sqlmock.AnyArg(), 2024, nil, nil, "llvm,parsing").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), res, notifications))
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, models.ResourceStatusPending, res.Status)
	require.NotNil(t, notifications[0].ResourceID)
	assert.Equal(t, res.ID, *notifications[0].ResourceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateResourceRollsBackOnNotificationFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO resources").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Resource{Title: "x", Type: models.ResourceTypeThesis},
		[]models.Notification{{UserID: "s1", Type: models.NotificationAssignment, Message: "m"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindResourceByIDMapsMetadata(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(resourceColumnNames).AddRow(
		"r1", "Compilers", "", "final-project", "CS", "2024/abc.pdf", "abc.pdf", "application/pdf", int64(2048),
		"u1", nil, "s1", "pending", nil, 3, 1, now, now,
		"Student", "Dr. A", true, int64(2024), "odd", nil, "llvm,parsing",
	)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.id = $1")).WithArgs("r1").WillReturnRows(rows)

	res, err := repo.FindByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, models.ResourceTypeFinalProject, res.Type)
	assert.Equal(t, "s1", *res.SupervisorID)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, 2024, *res.Metadata.Year)
	assert.Equal(t, "odd", *res.Metadata.Semester)
	assert.Nil(t, res.Metadata.Course)
	assert.Equal(t, []string{"llvm", "parsing"}, res.Metadata.Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListResourcesAppliesViewerScope(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	filter := models.ResourceFilter{
		Type:     models.ResourceTypeThesis,
		Viewer:   models.Actor{ID: "u1", Role: models.RoleStudent},
		Page:     2,
		PageSize: 5,
	}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.type = $1 AND (r.status = $2 OR r.uploaded_by = $3 OR r.student_id = $4 OR r.supervisor_id = $5) ORDER BY r.created_at DESC, r.id LIMIT $6 OFFSET $7")).
		WithArgs("thesis", "approved", "u1", "u1", "u1", 5, 5).
		WillReturnRows(sqlmock.NewRows(resourceColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM resources r LEFT JOIN resource_metadata m")).
		WithArgs("thesis", "approved", "u1", "u1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	items, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 7, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListResourcesSupervisorSeesModeratable(t *testing.T) {
	b := resourceFilterQuery(models.ResourceFilter{
		Viewer: models.Actor{ID: "s1", Role: models.RoleSupervisor, Department: "CS"},
		Search: "graph",
	})
	assert.Equal(t,
		" WHERE (LOWER(r.title) LIKE $1 OR LOWER(r.description) LIKE $2 OR LOWER(m.tags) LIKE $3) AND (r.status = $4 OR r.uploaded_by = $5 OR r.student_id = $6 OR r.supervisor_id = $7 OR r.type = $8 OR (r.type = $9 AND LOWER(r.department) = LOWER($10)))",
		b.whereClause())
	assert.Len(t, b.args, 10)

	admin := resourceFilterQuery(models.ResourceFilter{Viewer: models.Actor{ID: "a1", Role: models.RoleAdmin}})
	assert.Equal(t, "", admin.whereClause())
}

func TestUpdateStatusWritesNotificationInTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	reason := "missing abstract"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE resources SET status = $2, rejection_reason = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("r1", "rejected", reason, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), models.ResourceStatusChange{
		ResourceID:      "r1",
		Status:          models.ResourceStatusRejected,
		RejectionReason: &reason,
		Notification:    &models.Notification{UserID: "st1", ResourceID: strPtr("r1"), Type: models.NotificationRejection, Message: "rejected"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusMissingResourceRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE resources SET status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), models.ResourceStatusChange{ResourceID: "missing", Status: models.ResourceStatusApproved})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusNotificationFailureRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE resources SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), models.ResourceStatusChange{
		ResourceID:   "r1",
		Status:       models.ResourceStatusApproved,
		Notification: &models.Notification{UserID: "st1", Type: models.NotificationApproval, Message: "ok"},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAccessIncrementsInDatabaseEveryCall(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	const calls = 3
	for i := 0; i < calls; i++ {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE resources SET view_count = view_count + 1 WHERE id = $1")).
			WithArgs("r1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO resource_access_logs").
			WithArgs(sqlmock.AnyArg(), "r1", "u1", "view", "10.0.0.1", "curl", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
	}

	for i := 0; i < calls; i++ {
		err := repo.RecordAccess(context.Background(), models.AccessRequest{
			ResourceID: "r1", UserID: "u1", Action: models.AccessActionView, IPAddress: "10.0.0.1", UserAgent: "curl",
		})
		require.NoError(t, err)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAccessPreviewOnlyLogs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO resource_access_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.RecordAccess(context.Background(), models.AccessRequest{ResourceID: "r1", UserID: "u1", Action: models.AccessActionPreview}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDownloadOnMissingResource(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE resources SET download_count = download_count + 1")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.RecordAccess(context.Background(), models.AccessRequest{ResourceID: "gone", UserID: "u1", Action: models.AccessActionDownload})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteResourceRemovesDependents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT file_path FROM resources WHERE id = $1 FOR UPDATE")).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}).AddRow("2024/abc.pdf"))
	for _, table := range []string{"notifications", "bookmarks", "comments", "resource_access_logs", "resource_metadata"} {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM " + table + " WHERE resource_id = $1")).
			WithArgs("r1").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM resources WHERE id = $1")).WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	path, err := repo.Delete(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "2024/abc.pdf", path)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteResourceFailureRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT file_path FROM resources").WillReturnRows(sqlmock.NewRows([]string{"file_path"}).AddRow("a.pdf"))
	mock.ExpectExec("DELETE FROM notifications").WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	path, err := repo.Delete(context.Background(), "r1")
	require.Error(t, err)
	assert.Empty(t, path)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteResourceNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT file_path FROM resources").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS total").
		WillReturnRows(sqlmock.NewRows([]string{"total", "pending", "approved", "rejected", "total_views", "total_downloads"}).AddRow(5, 1, 3, 1, 40, 12))
	mock.ExpectQuery("GROUP BY type").
		WillReturnRows(sqlmock.NewRows([]string{"type", "count"}).AddRow("thesis", 2).AddRow("past-exam", 3))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 40, stats.TotalViews)
	assert.Equal(t, map[string]int{"thesis": 2, "past-exam": 3}, stats.ByType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinTags(t *testing.T) {
	assert.Equal(t, "go,web dev", joinTags([]string{" go ", "Go", "web,dev", ""}))
	assert.Equal(t, []string{"go", "web dev"}, splitTags("go, web dev,"))
	assert.Nil(t, splitTags(" "))
}
