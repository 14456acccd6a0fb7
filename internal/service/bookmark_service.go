package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-repo-api/internal/authz"
	"github.com/noah-isme/academic-repo-api/internal/models"
	"github.com/noah-isme/academic-repo-api/internal/repository"
	appErrors "github.com/noah-isme/academic-repo-api/pkg/errors"
)

type bookmarkRepository interface {
	Create(ctx context.Context, bookmark *models.Bookmark) error
	Delete(ctx context.Context, userID, resourceID string) error
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.BookmarkedResource, int, error)
}

// BookmarkService lets users save resources for later.
type BookmarkService struct {
	bookmarks bookmarkRepository
	resources resourceFinder
	policy    *authz.Policy
	cache     *CacheService
	logger    *zap.Logger
}

// NewBookmarkService constructs a BookmarkService.
func NewBookmarkService(bookmarks bookmarkRepository, resources resourceFinder, policy *authz.Policy, cache *CacheService, logger *zap.Logger) *BookmarkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = authz.NewPolicy()
	}
	return &BookmarkService{bookmarks: bookmarks, resources: resources, policy: policy, cache: cache, logger: logger}
}

// Add bookmarks a resource the actor can see.
func (s *BookmarkService) Add(ctx context.Context, resourceID string, actor models.Actor) (*models.Bookmark, error) {
	if _, err := authorizedResource(ctx, s.resources, s.policy, resourceID, actor, authz.ActionView); err != nil {
		return nil, err
	}
	bookmark := &models.Bookmark{UserID: actor.ID, ResourceID: resourceID}
	if err := s.bookmarks.Create(ctx, bookmark); err != nil {
		if errors.Is(err, repository.ErrBookmarkExists) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "resource already bookmarked")
		}
		return nil, appErrors.Persistence(err, "failed to bookmark resource")
	}
	s.invalidateUserDashboard(ctx, actor.ID)
	return bookmark, nil
}

// Remove deletes the actor's bookmark on a resource.
func (s *BookmarkService) Remove(ctx context.Context, resourceID string, actor models.Actor) error {
	if actor.ID == "" {
		return appErrors.ErrUnauthorized
	}
	if err := s.bookmarks.Delete(ctx, actor.ID, resourceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "bookmark not found")
		}
		return appErrors.Persistence(err, "failed to remove bookmark")
	}
	s.invalidateUserDashboard(ctx, actor.ID)
	return nil
}

// List returns the actor's bookmarks.
func (s *BookmarkService) List(ctx context.Context, actor models.Actor, page, pageSize int) ([]models.BookmarkedResource, *models.Pagination, error) {
	items, total, err := s.bookmarks.ListByUser(ctx, actor.ID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookmarks")
	}
	return items, paginationFor(page, pageSize, total), nil
}

func (s *BookmarkService) invalidateUserDashboard(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, dashboardUserPattern(userID)); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.String("user_id", userID), zap.Error(err))
	}
}
