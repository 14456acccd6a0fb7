package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-repo-api/internal/authz"
	"github.com/noah-isme/academic-repo-api/internal/models"
	appErrors "github.com/noah-isme/academic-repo-api/pkg/errors"
	"github.com/noah-isme/academic-repo-api/pkg/jobs"
)

// SetStatus applies a moderation decision. The status and notification for
// the resource's student are written in one transaction. An admin approval
// also queues the approval broadcast once the transaction committed.
func (s *ResourceService) SetStatus(ctx context.Context, id string, actor models.Actor, status models.ResourceStatus, rejectionReason *string) (*models.Resource, error) {
	reason, err := validateDecision(status, rejectionReason)
	if err != nil {
		return nil, err
	}
	actor, err = s.currentModerator(ctx, actor)
	if err != nil {
		return nil, err
	}
	res, err := s.authorize(ctx, id, actor, authz.ActionModerate)
	if err != nil {
		return nil, err
	}

	change := models.ResourceStatusChange{
		ResourceID:      res.ID,
		Status:          status,
		RejectionReason: reason,
		Notification:    decisionNotification(res, status, reason),
	}
	if err := s.resources.UpdateStatus(ctx, change); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Persistence(err, "failed to update resource status")
	}

	previous := res.Status
	res.Status = status
	res.RejectionReason = reason
	res.UpdatedAt = time.Now().UTC()

	s.metrics.RecordStatusTransition(status, actor.Role)
	s.invalidate(ctx)
	s.logger.Info("resource status changed",
		zap.String("resource_id", res.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
		zap.String("actor_id", actor.ID),
		zap.String("actor_role", string(actor.Role)))

	if status == models.ResourceStatusApproved && actor.IsAdmin() {
		s.scheduleFanOut(res)
	}
	return res, nil
}

// currentModerator replaces the role and department carried in a supervisor's
// token with the stored ones, so reassignments apply before the token expires.
func (s *ResourceService) currentModerator(ctx context.Context, actor models.Actor) (models.Actor, error) {
	if actor.Role != models.RoleSupervisor || s.supervisors == nil {
		return actor, nil
	}
	user, err := s.supervisors.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return actor, appErrors.Clone(appErrors.ErrForbidden, "moderator account not found")
		}
		return actor, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load moderator")
	}
	if !user.Active {
		return actor, appErrors.Clone(appErrors.ErrForbidden, "moderator account is inactive")
	}
	actor.Role = user.Role
	actor.Department = user.Department
	return actor, nil
}

func (s *ResourceService) scheduleFanOut(res *models.Resource) {
	if s.approvals == nil || s.cfg.FanOutDisabled || !s.cfg.FanOutOnAdmin {
		return
	}
	snapshot := *res
	job := jobs.Job{ID: uuid.NewString(), Type: ApprovalFanOutJob, Payload: &snapshot}
	if err := s.approvals.TryEnqueue(job); err != nil {
		s.logger.Warn("approval broadcast dropped", zap.String("resource_id", res.ID), zap.Error(err))
	}
}

func validateDecision(status models.ResourceStatus, rejectionReason *string) (*string, error) {
	switch status {
	case models.ResourceStatusApproved:
		return nil, nil
	case models.ResourceStatusRejected:
		reason := trimmedOrNil(rejectionReason)
		if reason == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
		}
		return reason, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be approved or rejected")
	}
}

func decisionNotification(res *models.Resource, status models.ResourceStatus, reason *string) *models.Notification {
	if res.StudentID == nil || strings.TrimSpace(*res.StudentID) == "" {
		return nil
	}
	n := &models.Notification{UserID: *res.StudentID, ResourceID: &res.ID}
	if status == models.ResourceStatusApproved {
		n.Type = models.NotificationApproval
		n.Message = fmt.Sprintf("Your submission %q has been approved.", res.Title)
	} else {
		n.Type = models.NotificationRejection
		n.Message = fmt.Sprintf("Your submission %q was rejected: %s", res.Title, *reason)
	}
	return n
}
