package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-repo-api/internal/authz"
	"github.com/noah-isme/academic-repo-api/internal/models"
	appErrors "github.com/noah-isme/academic-repo-api/pkg/errors"
	"github.com/noah-isme/academic-repo-api/pkg/jobs"
	"github.com/noah-isme/academic-repo-api/pkg/storage"
)

const resourceStatsCacheKey = "resources:stats"

type resourceRepository interface {
	Create(ctx context.Context, res *models.Resource, notifications []models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error)
	Update(ctx context.Context, res *models.Resource) error
	UpdateStatus(ctx context.Context, change models.ResourceStatusChange) error
	RecordAccess(ctx context.Context, req models.AccessRequest) error
	ListAccessLogs(ctx context.Context, resourceID string, page, pageSize int) ([]models.AccessLog, int, error)
	Delete(ctx context.Context, id string) (string, error)
	Stats(ctx context.Context) (*models.ResourceStats, error)
}

type supervisorDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListActiveSupervisors(ctx context.Context) ([]models.User, error)
	ListActiveIDsByRole(ctx context.Context, role models.UserRole) ([]string, error)
}

type previewSigner interface {
	Generate(resourceID, userID string) (string, time.Time, error)
	Parse(token string) (resourceID, userID string, expiresAt time.Time, err error)
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

// UploadResourceRequest carries the form fields of a resource upload.
type UploadResourceRequest struct {
	Title          string              `json:"title" validate:"required,max=255"`
	Description    string              `json:"description" validate:"max=5000"`
	Type           models.ResourceType `json:"type" validate:"required,oneof=past-exam mini-project final-project thesis"`
	Department     string              `json:"department" validate:"required,max=120"`
	StudentID      *string             `json:"student_id"`
	SupervisorID   *string             `json:"supervisor_id"`
	SupervisorName *string             `json:"supervisor_name"`
	Year           *int                `json:"year" validate:"omitempty,min=1900,max=2100"`
	Semester       *string             `json:"semester" validate:"omitempty,max=20"`
	Course         *string             `json:"course" validate:"omitempty,max=120"`
	Tags           []string            `json:"tags" validate:"max=20,dive,max=40"`
}

// UploadedFile is the binary part of an upload.
type UploadedFile struct {
	Name        string
	Size        int64
	ContentType string
	Reader      io.Reader
}

// UpdateResourceRequest lists the fields an uploader may edit.
type UpdateResourceRequest struct {
	Title        *string  `json:"title" validate:"omitempty,min=1,max=255"`
	Description  *string  `json:"description" validate:"omitempty,max=5000"`
	Department   *string  `json:"department" validate:"omitempty,min=1,max=120"`
	SupervisorID *string  `json:"supervisor_id"`
	Year         *int     `json:"year" validate:"omitempty,min=1900,max=2100"`
	Semester     *string  `json:"semester" validate:"omitempty,max=20"`
	Course       *string  `json:"course" validate:"omitempty,max=120"`
	Tags         []string `json:"tags" validate:"omitempty,max=20,dive,max=40"`
}

// AccessMeta describes the client performing a read.
type AccessMeta struct {
	IPAddress string
	UserAgent string
}

// PreviewLink is a short-lived URL for inline viewing.
type PreviewLink struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResourceServiceConfig tunes upload validation and approval broadcasts.
type ResourceServiceConfig struct {
	APIPrefix      string
	MaxFileSize    int64
	AllowedMIMEs   []string
	StatsCacheTTL  time.Duration
	FanOutOnAdmin  bool
	FanOutDisabled bool
}

// ResourceServiceParams groups constructor dependencies.
type ResourceServiceParams struct {
	Resources   resourceRepository
	Supervisors supervisorDirectory
	Files       storage.FileStore
	Signer      previewSigner
	Policy      *authz.Policy
	Approvals   jobEnqueuer
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	Config      ResourceServiceConfig
}

// ResourceService implements uploads, moderation and access accounting.
type ResourceService struct {
	resources   resourceRepository
	supervisors supervisorDirectory
	files       storage.FileStore
	signer      previewSigner
	policy      *authz.Policy
	approvals   jobEnqueuer
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ResourceServiceConfig
	allowed     map[string]struct{}
}

// NewResourceService constructs a ResourceService.
func NewResourceService(params ResourceServiceParams) *ResourceService {
	cfg := params.Config
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 50 * 1024 * 1024
	}
	if cfg.StatsCacheTTL <= 0 {
		cfg.StatsCacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	policy := params.Policy
	if policy == nil {
		policy = authz.NewPolicy()
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, m := range cfg.AllowedMIMEs {
		allowed[normalizeMIME(m)] = struct{}{}
	}
	return &ResourceService{
		resources:   params.Resources,
		supervisors: params.Supervisors,
		files:       params.Files,
		signer:      params.Signer,
		policy:      policy,
		approvals:   params.Approvals,
		cache:       params.Cache,
		metrics:     params.Metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		allowed:     allowed,
	}
}

// Upload stores the file and creates a pending resource.
func (s *ResourceService) Upload(ctx context.Context, actor models.Actor, req UploadResourceRequest, file UploadedFile) (*models.Resource, error) {
	if actor.ID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	contentType, err := s.checkFile(file)
	if err != nil {
		return nil, err
	}

	sub := models.ResourceSubmission{
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		Type:           req.Type,
		Department:     strings.TrimSpace(req.Department),
		UploaderID:     actor.ID,
		UploaderRole:   actor.Role,
		StudentID:      trimmedOrNil(req.StudentID),
		SupervisorID:   trimmedOrNil(req.SupervisorID),
		SupervisorName: trimmedOrNil(req.SupervisorName),
		Metadata:       buildMetadata(nil, req.Year, req.Semester, req.Course, req.Tags),
	}
	if actor.Role == models.RoleStudent {
		id := actor.ID
		sub.StudentID = &id
	}

	res := &models.Resource{
		ID:          uuid.NewString(),
		Title:       sub.Title,
		Description: sub.Description,
		Type:        sub.Type,
		Department:  sub.Department,
		FileName:    filepath.Base(file.Name),
		MimeType:    contentType,
		SizeBytes:   file.Size,
		UploadedBy:  &sub.UploaderID,
		StudentID:   sub.StudentID,
		Status:      models.ResourceStatusPending,
		Metadata:    sub.Metadata,
	}
	if needsSupervisor(sub) {
		res.SupervisorID = s.resolveSupervisor(ctx, sub)
	}

	key := fmt.Sprintf("resources/%s/%s%s", res.Type, res.ID, strings.ToLower(filepath.Ext(res.FileName)))
	storedPath, err := s.files.SaveStream(ctx, key, file.Reader, file.Size, contentType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	res.FilePath = storedPath

	if err := s.resources.Create(ctx, res, s.uploadNotifications(ctx, actor, res)); err != nil {
		if delErr := s.files.Delete(ctx, storedPath); delErr != nil && !errors.Is(delErr, storage.ErrObjectNotFound) {
			s.logger.Warn("failed to remove file of aborted upload", zap.String("path", storedPath), zap.Error(delErr))
		}
		return nil, appErrors.Persistence(err, "failed to create resource")
	}

	s.metrics.RecordUpload(res.Type)
	s.invalidate(ctx)
	s.logger.Info("resource uploaded",
		zap.String("resource_id", res.ID),
		zap.String("type", string(res.Type)),
		zap.String("uploaded_by", actor.ID),
		zap.Bool("supervisor_assigned", res.SupervisorID != nil))
	return res, nil
}

func (s *ResourceService) checkFile(file UploadedFile) (string, error) {
	if file.Reader == nil || file.Size <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if file.Size > s.cfg.MaxFileSize {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSize))
	}
	contentType := normalizeMIME(file.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := normalizeMIME(mime.TypeByExtension(strings.ToLower(filepath.Ext(file.Name)))); byExt != "" {
			contentType = byExt
		}
	}
	if len(s.allowed) > 0 {
		if _, ok := s.allowed[contentType]; !ok {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %q is not allowed", contentType))
		}
	}
	return contentType, nil
}

func (s *ResourceService) resolveSupervisor(ctx context.Context, sub models.ResourceSubmission) *string {
	var directory []models.User
	if s.supervisors != nil {
		list, err := s.supervisors.ListActiveSupervisors(ctx)
		if err != nil {
			s.logger.Warn("supervisor directory unavailable", zap.Error(err))
		} else {
			directory = list
		}
	}
	return ResolveSupervisor(sub, directory)
}

func (s *ResourceService) uploadNotifications(ctx context.Context, actor models.Actor, res *models.Resource) []models.Notification {
	var out []models.Notification
	if res.SupervisorID != nil && *res.SupervisorID != actor.ID {
		out = append(out, models.Notification{
			UserID:     *res.SupervisorID,
			ResourceID: &res.ID,
			Type:       models.NotificationAssignment,
			Message:    fmt.Sprintf("You have been assigned to review %q.", res.Title),
		})
	}
	if s.supervisors == nil {
		return out
	}
	admins, err := s.supervisors.ListActiveIDsByRole(ctx, models.RoleAdmin)
	if err != nil {
		s.logger.Warn("failed to load admins for upload notification", zap.Error(err))
		return out
	}
	for _, adminID := range admins {
		if adminID == actor.ID {
			continue
		}
		out = append(out, models.Notification{
			UserID:     adminID,
			ResourceID: &res.ID,
			Type:       models.NotificationNewResource,
			Message:    fmt.Sprintf("New %s %q awaits review.", res.Type, res.Title),
		})
	}
	return out
}

// Get returns a visible resource and records the view.
func (s *ResourceService) Get(ctx context.Context, id string, actor models.Actor, meta AccessMeta) (*models.Resource, error) {
	res, err := s.authorize(ctx, id, actor, authz.ActionView)
	if err != nil {
		return nil, err
	}
	if err := s.record(ctx, res.ID, actor.ID, models.AccessActionView, meta); err != nil {
		return nil, err
	}
	res.ViewCount++
	return res, nil
}

// Find returns a visible resource without recording access.
func (s *ResourceService) Find(ctx context.Context, id string, actor models.Actor) (*models.Resource, error) {
	return s.authorize(ctx, id, actor, authz.ActionView)
}

// List returns resources visible to filter.Viewer.
func (s *ResourceService) List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, *models.Pagination, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid resource type")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid resource status")
	}
	items, total, err := s.resources.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resources")
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Update edits resource fields and metadata.
func (s *ResourceService) Update(ctx context.Context, id string, actor models.Actor, req UpdateResourceRequest) (*models.Resource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	res, err := s.authorize(ctx, id, actor, authz.ActionUpdate)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		res.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		res.Description = strings.TrimSpace(*req.Description)
	}
	if req.Department != nil {
		res.Department = strings.TrimSpace(*req.Department)
	}
	if req.SupervisorID != nil {
		res.SupervisorID = trimmedOrNil(req.SupervisorID)
	}
	if req.Year != nil || req.Semester != nil || req.Course != nil || req.Tags != nil {
		res.Metadata = buildMetadata(res.Metadata, req.Year, req.Semester, req.Course, req.Tags)
	}

	if err := s.resources.Update(ctx, res); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Persistence(err, "failed to update resource")
	}
	s.invalidate(ctx)
	return res, nil
}

// Delete removes the resource, its dependent rows and, after commit, its file.
func (s *ResourceService) Delete(ctx context.Context, id string, actor models.Actor) error {
	if _, err := s.authorize(ctx, id, actor, authz.ActionDelete); err != nil {
		return err
	}
	filePath, err := s.resources.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return appErrors.Persistence(err, "failed to delete resource")
	}

	if filePath != "" {
		if exists, err := s.files.Exists(ctx, filePath); err != nil {
			s.logger.Warn("failed to stat resource file", zap.String("path", filePath), zap.Error(err))
		} else if exists {
			if err := s.files.Delete(ctx, filePath); err != nil {
				s.logger.Warn("failed to remove resource file", zap.String("path", filePath), zap.Error(err))
			}
		}
	}

	s.invalidate(ctx)
	s.logger.Info("resource deleted", zap.String("resource_id", id), zap.String("actor_id", actor.ID))
	return nil
}

// Download opens the stored file and records the download. The caller must
// close the returned object.
func (s *ResourceService) Download(ctx context.Context, id string, actor models.Actor, meta AccessMeta) (*models.Resource, *storage.Object, error) {
	res, err := s.authorize(ctx, id, actor, authz.ActionDownload)
	if err != nil {
		return nil, nil, err
	}
	return s.openAndRecord(ctx, res, actor.ID, models.AccessActionDownload, meta)
}

// PreviewURL issues a signed link for inline viewing.
func (s *ResourceService) PreviewURL(ctx context.Context, id string, actor models.Actor) (*PreviewLink, error) {
	res, err := s.authorize(ctx, id, actor, authz.ActionView)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(res.ID, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign preview link")
	}
	link := fmt.Sprintf("%s/resources/%s/preview?token=%s", strings.TrimRight(s.cfg.APIPrefix, "/"), res.ID, url.QueryEscape(token))
	return &PreviewLink{URL: link, Token: token, ExpiresAt: expiresAt}, nil
}

// Preview validates a signed token and opens the file for inline viewing.
func (s *ResourceService) Preview(ctx context.Context, id, token string, meta AccessMeta) (*models.Resource, *storage.Object, error) {
	resourceID, userID, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired preview token")
	}
	if resourceID != id {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "preview token does not match resource")
	}
	res, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return s.openAndRecord(ctx, res, userID, models.AccessActionPreview, meta)
}

// AccessLogs lists the access history of a resource.
func (s *ResourceService) AccessLogs(ctx context.Context, id string, actor models.Actor, page, pageSize int) ([]models.AccessLog, *models.Pagination, error) {
	if _, err := s.authorize(ctx, id, actor, authz.ActionViewAccessLogs); err != nil {
		return nil, nil, err
	}
	logs, total, err := s.resources.ListAccessLogs(ctx, id, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list access logs")
	}
	return logs, paginationFor(page, pageSize, total), nil
}

// Stats returns repository wide counters, cached.
func (s *ResourceService) Stats(ctx context.Context) (*models.ResourceStats, bool, error) {
	stats, hit, err := remember(ctx, s.cache, resourceStatsCacheKey, s.cfg.StatsCacheTTL, s.resources.Stats)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource stats")
	}
	return stats, hit, nil
}

func (s *ResourceService) openAndRecord(ctx context.Context, res *models.Resource, userID string, action models.AccessAction, meta AccessMeta) (*models.Resource, *storage.Object, error) {
	obj, err := s.files.Open(ctx, res.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	if err := s.record(ctx, res.ID, userID, action, meta); err != nil {
		_ = obj.Body.Close()
		return nil, nil, err
	}
	if action == models.AccessActionDownload {
		res.DownloadCount++
	}
	return res, obj, nil
}

// record appends an access log entry. Callers must be authenticated.
func (s *ResourceService) record(ctx context.Context, resourceID, userID string, action models.AccessAction, meta AccessMeta) error {
	if userID == "" {
		return appErrors.ErrUnauthorized
	}
	err := s.resources.RecordAccess(ctx, models.AccessRequest{
		ResourceID: resourceID,
		UserID:     userID,
		Action:     action,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return appErrors.Persistence(err, "failed to record access")
	}
	s.metrics.RecordAccess(action)
	return nil
}

func (s *ResourceService) load(ctx context.Context, id string) (*models.Resource, error) {
	res, err := s.resources.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	return res, nil
}

func (s *ResourceService) authorize(ctx context.Context, id string, actor models.Actor, action authz.Action) (*models.Resource, error) {
	return authorizedResource(ctx, s.resources, s.policy, id, actor, action)
}

func (s *ResourceService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardCachePattern, resourceStatsCacheKey); err != nil {
		s.logger.Warn("failed to invalidate resource caches", zap.Error(err))
	}
}

func buildMetadata(base *models.ResourceMetadata, year *int, semester, course *string, tags []string) *models.ResourceMetadata {
	meta := &models.ResourceMetadata{}
	if base != nil {
		copied := *base
		meta = &copied
	}
	if year != nil {
		y := *year
		meta.Year = &y
	}
	if semester != nil {
		meta.Semester = trimmedOrNil(semester)
	}
	if course != nil {
		meta.Course = trimmedOrNil(course)
	}
	if tags != nil {
		cleaned := make([]string, 0, len(tags))
		for _, tag := range tags {
			if tag = strings.TrimSpace(tag); tag != "" {
				cleaned = append(cleaned, tag)
			}
		}
		meta.Tags = cleaned
	}
	if meta.Empty() && base == nil {
		return nil
	}
	return meta
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeMIME(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(raw); err == nil {
		return parsed
	}
	return strings.ToLower(raw)
}
