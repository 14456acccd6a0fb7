package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-repo-api/internal/authz"
	"github.com/noah-isme/academic-repo-api/internal/models"
	appErrors "github.com/noah-isme/academic-repo-api/pkg/errors"
)

type commentRepository interface {
	Create(ctx context.Context, comment *models.Comment, notification *models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Comment, error)
	ListByResource(ctx context.Context, resourceID string, page, pageSize int) ([]models.Comment, int, error)
	UpdateContent(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
}

type resourceFinder interface {
	FindByID(ctx context.Context, id string) (*models.Resource, error)
}

// CommentRequest is the body of a create or edit.
type CommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// CommentService manages discussion threads on resources.
type CommentService struct {
	comments  commentRepository
	resources resourceFinder
	policy    *authz.Policy
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCommentService constructs a CommentService.
func NewCommentService(comments commentRepository, resources resourceFinder, policy *authz.Policy, validate *validator.Validate, logger *zap.Logger) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if policy == nil {
		policy = authz.NewPolicy()
	}
	return &CommentService{comments: comments, resources: resources, policy: policy, validator: validate, logger: logger}
}

// List returns comments on a resource visible to the actor.
func (s *CommentService) List(ctx context.Context, resourceID string, actor models.Actor, page, pageSize int) ([]models.Comment, *models.Pagination, error) {
	if _, err := s.resourceFor(ctx, resourceID, actor, authz.ActionView); err != nil {
		return nil, nil, err
	}
	items, total, err := s.comments.ListByResource(ctx, resourceID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	return items, paginationFor(page, pageSize, total), nil
}

// Create posts a comment and notifies the uploader.
func (s *CommentService) Create(ctx context.Context, resourceID string, actor models.Actor, req CommentRequest) (*models.Comment, error) {
	content, err := s.validContent(req)
	if err != nil {
		return nil, err
	}
	res, err := s.resourceFor(ctx, resourceID, actor, authz.ActionComment)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{ResourceID: res.ID, UserID: actor.ID, Content: content, AuthorRole: actor.Role}
	var notification *models.Notification
	if res.UploadedBy != nil && *res.UploadedBy != actor.ID {
		notification = &models.Notification{
			UserID:     *res.UploadedBy,
			ResourceID: &res.ID,
			Type:       models.NotificationNewComment,
			Message:    fmt.Sprintf("New comment on %q.", res.Title),
		}
	}
	if err := s.comments.Create(ctx, comment, notification); err != nil {
		return nil, appErrors.Persistence(err, "failed to create comment")
	}
	s.logger.Debug("comment created", zap.String("comment_id", comment.ID), zap.String("resource_id", res.ID))
	return comment, nil
}

// Update edits a comment body. Only the author or an admin may edit.
func (s *CommentService) Update(ctx context.Context, id string, actor models.Actor, req CommentRequest) (*models.Comment, error) {
	content, err := s.validContent(req)
	if err != nil {
		return nil, err
	}
	comment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanEditComment(actor, comment); err != nil {
		return nil, err
	}
	if err := s.comments.UpdateContent(ctx, id, content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return nil, appErrors.Persistence(err, "failed to update comment")
	}
	comment.Content = content
	return comment, nil
}

// Delete removes a comment. Authors, admins and the resource uploader may delete.
func (s *CommentService) Delete(ctx context.Context, id string, actor models.Actor) error {
	comment, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	res, err := s.resources.FindByID(ctx, comment.ResourceID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	if err := s.policy.CanDeleteComment(actor, comment, res); err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return appErrors.Persistence(err, "failed to delete comment")
	}
	return nil
}

func (s *CommentService) validContent(req CommentRequest) (string, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}
	return req.Content, nil
}

func (s *CommentService) load(ctx context.Context, id string) (*models.Comment, error) {
	comment, err := s.comments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment")
	}
	return comment, nil
}

func (s *CommentService) resourceFor(ctx context.Context, id string, actor models.Actor, action authz.Action) (*models.Resource, error) {
	return authorizedResource(ctx, s.resources, s.policy, id, actor, action)
}

// authorizedResource loads a resource and applies the policy for action.
func authorizedResource(ctx context.Context, finder resourceFinder, policy *authz.Policy, id string, actor models.Actor, action authz.Action) (*models.Resource, error) {
	if actor.ID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	res, err := finder.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	if err := policy.Can(actor, action, res); err != nil {
		return nil, err
	}
	return res, nil
}
