package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-repo-api/internal/models"
	"github.com/noah-isme/academic-repo-api/internal/repository"
	appErrors "github.com/noah-isme/academic-repo-api/pkg/errors"
)

type fakeCommentRepo struct {
	comments      map[string]*models.Comment
	notifications []*models.Notification
	deleted       []string
}

func (f *fakeCommentRepo) Create(_ context.Context, comment *models.Comment, notification *models.Notification) error {
	if comment.ID == "" {
		comment.ID = "c-new"
	}
	copied := *comment
	f.comments[comment.ID] = &copied
	if notification != nil {
		f.notifications = append(f.notifications, notification)
	}
	return nil
}

func (f *fakeCommentRepo) FindByID(_ context.Context, id string) (*models.Comment, error) {
	c, ok := f.comments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (f *fakeCommentRepo) ListByResource(_ context.Context, resourceID string, _, _ int) ([]models.Comment, int, error) {
	var out []models.Comment
	for _, c := range f.comments {
		if c.ResourceID == resourceID {
			out = append(out, *c)
		}
	}
	return out, len(out), nil
}

func (f *fakeCommentRepo) UpdateContent(_ context.Context, id, content string) error {
	c, ok := f.comments[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Content = content
	return nil
}

func (f *fakeCommentRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.comments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.comments, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func approvedResource() *models.Resource {
	res := pendingFinalProject()
	res.Status = models.ResourceStatusApproved
	return res
}

func TestCommentCreateNotifiesUploader(t *testing.T) {
	comments := &fakeCommentRepo{comments: map[string]*models.Comment{}}
	svc := NewCommentService(comments, newFakeResourceRepo(approvedResource()), nil, nil, zap.NewNop())

	reader := models.Actor{ID: "reader", Role: models.RoleFaculty}
	comment, err := svc.Create(context.Background(), "res-1", reader, CommentRequest{Content: "  Great work  "})
	require.NoError(t, err)
	assert.Equal(t, "Great work", comment.Content)
	require.Len(t, comments.notifications, 1)
	assert.Equal(t, "stu-1", comments.notifications[0].UserID)
	assert.Equal(t, models.NotificationNewComment, comments.notifications[0].Type)

	_, err = svc.Create(context.Background(), "res-1", studentActor, CommentRequest{Content: "thanks"})
	require.NoError(t, err)
	assert.Len(t, comments.notifications, 1)
}

func TestCommentCreateValidation(t *testing.T) {
	svc := NewCommentService(&fakeCommentRepo{comments: map[string]*models.Comment{}}, newFakeResourceRepo(approvedResource()), nil, nil, zap.NewNop())
	_, err := svc.Create(context.Background(), "res-1", studentActor, CommentRequest{Content: "   "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCommentOnHiddenResourceForbidden(t *testing.T) {
	svc := NewCommentService(&fakeCommentRepo{comments: map[string]*models.Comment{}}, newFakeResourceRepo(pendingFinalProject()), nil, nil, zap.NewNop())
	_, err := svc.Create(context.Background(), "res-1", models.Actor{ID: "stu-9", Role: models.RoleStudent}, CommentRequest{Content: "hi"})
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestCommentEditAndDeleteRules(t *testing.T) {
	comments := &fakeCommentRepo{comments: map[string]*models.Comment{
		"c-1": {ID: "c-1", ResourceID: "res-1", UserID: "reader", Content: "old"},
	}}
	svc := NewCommentService(comments, newFakeResourceRepo(approvedResource()), nil, nil, zap.NewNop())
	stranger := models.Actor{ID: "stranger", Role: models.RoleStudent}

	_, err := svc.Update(context.Background(), "c-1", studentActor, CommentRequest{Content: "edited"})
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)

	updated, err := svc.Update(context.Background(), "c-1", models.Actor{ID: "reader", Role: models.RoleFaculty}, CommentRequest{Content: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)

	err = svc.Delete(context.Background(), "c-1", stranger)
	require.Error(t, err)

	require.NoError(t, svc.Delete(context.Background(), "c-1", studentActor))
	assert.Equal(t, []string{"c-1"}, comments.deleted)

	err = svc.Delete(context.Background(), "c-1", adminActor)
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

type fakeBookmarkRepo struct {
	saved map[string]bool
}

func (f *fakeBookmarkRepo) Create(_ context.Context, b *models.Bookmark) error {
	key := b.UserID + "|" + b.ResourceID
	if f.saved[key] {
		return repository.ErrBookmarkExists
	}
	f.saved[key] = true
	return nil
}

func (f *fakeBookmarkRepo) Delete(_ context.Context, userID, resourceID string) error {
	key := userID + "|" + resourceID
	if !f.saved[key] {
		return sql.ErrNoRows
	}
	delete(f.saved, key)
	return nil
}

func (f *fakeBookmarkRepo) ListByUser(context.Context, string, int, int) ([]models.BookmarkedResource, int, error) {
	return []models.BookmarkedResource{{ResourceID: "res-1"}}, len(f.saved), nil
}

func TestBookmarkLifecycle(t *testing.T) {
	repo := &fakeBookmarkRepo{saved: map[string]bool{}}
	svc := NewBookmarkService(repo, newFakeResourceRepo(approvedResource()), nil, nil, zap.NewNop())
	reader := models.Actor{ID: "reader", Role: models.RoleFaculty}

	_, err := svc.Add(context.Background(), "res-1", reader)
	require.NoError(t, err)

	_, err = svc.Add(context.Background(), "res-1", reader)
	require.Error(t, err)
	assert.Equal(t, 409, appErrors.FromError(err).Status)

	items, page, err := svc.List(context.Background(), reader, 1, 20)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, page.TotalCount)

	require.NoError(t, svc.Remove(context.Background(), "res-1", reader))
	err = svc.Remove(context.Background(), "res-1", reader)
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestBookmarkMissingResource(t *testing.T) {
	svc := NewBookmarkService(&fakeBookmarkRepo{saved: map[string]bool{}}, newFakeResourceRepo(), nil, nil, zap.NewNop())
	_, err := svc.Add(context.Background(), "nope", studentActor)
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}
