package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-repo-api/internal/models"
	appErrors "github.com/noah-isme/academic-repo-api/pkg/errors"
)

const dashboardCachePattern = "dashboard:*"

func dashboardCacheKey(actor models.Actor) string {
	return fmt.Sprintf("dashboard:%s:%s", actor.Role, actor.ID)
}

func dashboardUserPattern(userID string) string {
	return "dashboard:*:" + userID
}

type dashboardRepository interface {
	StatusCounts(ctx context.Context, uploadedBy string) (models.StatusCounts, error)
	UserCounts(ctx context.Context) (models.UserCounts, error)
	PendingForModerator(ctx context.Context, actor models.Actor, limit int) ([]models.ResourceSummary, error)
	Popular(ctx context.Context, limit int) ([]models.ResourceSummary, error)
	Recent(ctx context.Context, department string, limit int) ([]models.ResourceSummary, error)
	UploadedBy(ctx context.Context, userID string, limit int) ([]models.ResourceSummary, error)
	CountBookmarks(ctx context.Context, userID string) (int, error)
}

type unreadCounter interface {
	CountUnread(ctx context.Context, userID string) (int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
	TopLimit int
}

// DashboardService composes role based dashboard payloads.
type DashboardService struct {
	repo   dashboardRepository
	unread unreadCounter
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(repo dashboardRepository, unread unreadCounter, cache *CacheService, cfg DashboardServiceConfig, logger *zap.Logger) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.TopLimit <= 0 {
		cfg.TopLimit = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, unread: unread, cache: cache, logger: logger, now: time.Now, cfg: cfg}
}

// Get returns the dashboard for the actor's role and whether it came from cache.
// The unread notification count is always read live.
func (s *DashboardService) Get(ctx context.Context, actor models.Actor) (*models.Dashboard, bool, error) {
	if actor.ID == "" {
		return nil, false, appErrors.ErrUnauthorized
	}
	if !actor.Role.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}

	dashboard, hit, err := remember(ctx, s.cache, dashboardCacheKey(actor), s.cfg.CacheTTL, func(ctx context.Context) (*models.Dashboard, error) {
		return s.compose(ctx, actor)
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard")
	}

	if s.unread != nil {
		count, err := s.unread.CountUnread(ctx, actor.ID)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
		}
		dashboard.UnreadNotices = count
	}
	return dashboard, hit, nil
}

func (s *DashboardService) compose(ctx context.Context, actor models.Actor) (*models.Dashboard, error) {
	limit := s.cfg.TopLimit
	d := &models.Dashboard{Role: actor.Role, GeneratedAt: s.now().UTC()}
	var err error

	switch actor.Role {
	case models.RoleAdmin:
		if d.Resources, err = s.repo.StatusCounts(ctx, ""); err != nil {
			return nil, err
		}
		var users models.UserCounts
		if users, err = s.repo.UserCounts(ctx); err != nil {
			return nil, err
		}
		d.Users = &users
		if d.PendingReview, err = s.repo.PendingForModerator(ctx, actor, limit); err != nil {
			return nil, err
		}
		if d.Popular, err = s.repo.Popular(ctx, limit); err != nil {
			return nil, err
		}
		if d.Recent, err = s.repo.Recent(ctx, "", limit); err != nil {
			return nil, err
		}
	case models.RoleSupervisor:
		if d.Resources, err = s.repo.StatusCounts(ctx, ""); err != nil {
			return nil, err
		}
		if d.PendingReview, err = s.repo.PendingForModerator(ctx, actor, limit); err != nil {
			return nil, err
		}
		if d.MyUploads, err = s.repo.UploadedBy(ctx, actor.ID, limit); err != nil {
			return nil, err
		}
		if d.Recent, err = s.repo.Recent(ctx, actor.Department, limit); err != nil {
			return nil, err
		}
	case models.RoleStudent:
		if d.Resources, err = s.repo.StatusCounts(ctx, actor.ID); err != nil {
			return nil, err
		}
		if d.MyUploads, err = s.repo.UploadedBy(ctx, actor.ID, limit); err != nil {
			return nil, err
		}
		if d.Popular, err = s.repo.Popular(ctx, limit); err != nil {
			return nil, err
		}
		if d.Recent, err = s.repo.Recent(ctx, actor.Department, limit); err != nil {
			return nil, err
		}
	case models.RoleFaculty:
		if d.Resources, err = s.repo.StatusCounts(ctx, ""); err != nil {
			return nil, err
		}
		if d.Popular, err = s.repo.Popular(ctx, limit); err != nil {
			return nil, err
		}
		if d.Recent, err = s.repo.Recent(ctx, actor.Department, limit); err != nil {
			return nil, err
		}
	}

	if actor.Role != models.RoleAdmin {
		if d.BookmarkCount, err = s.repo.CountBookmarks(ctx, actor.ID); err != nil {
			return nil, err
		}
	}
	return d, nil
}
