// Package authz maps (actor, action, resource) to allow or deny decisions so
// handlers and services share one set of ownership rules.
package authz

import (
	"github.com/noah-isme/academic-repo-api/internal/models"
	appErrors "github.com/noah-isme/academic-repo-api/pkg/errors"
)

// Action names an operation guarded by the policy.
type Action string

const (
	ActionView           Action = "resource:view"
	ActionDownload       Action = "resource:download"
	ActionUpdate         Action = "resource:update"
	ActionDelete         Action = "resource:delete"
	ActionModerate       Action = "resource:moderate"
	ActionViewAccessLogs Action = "resource:access-logs"
	ActionComment        Action = "resource:comment"
)

// Policy evaluates resource and comment permissions.
type Policy struct{}

// NewPolicy constructs the policy.
func NewPolicy() *Policy {
	return &Policy{}
}

// Can returns nil when actor may perform action on res, otherwise a forbidden error.
func (p *Policy) Can(actor models.Actor, action Action, res *models.Resource) error {
	if actor.ID == "" {
		return appErrors.ErrUnauthorized
	}
	if res == nil {
		return appErrors.ErrNotFound
	}
	if p.allowed(actor, action, res) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, forbiddenMessage(action))
}

func (p *Policy) allowed(actor models.Actor, action Action, res *models.Resource) bool {
	if actor.IsAdmin() {
		return true
	}
	switch action {
	case ActionView, ActionDownload, ActionComment:
		if res.Status == models.ResourceStatusApproved {
			return true
		}
		return isOwner(actor, res) || canModerate(actor, res)
	case ActionUpdate, ActionDelete, ActionViewAccessLogs:
		return res.IsUploadedBy(actor.ID)
	case ActionModerate:
		return canModerate(actor, res)
	}
	return false
}

// CanEditComment allows the author or an admin.
func (p *Policy) CanEditComment(actor models.Actor, comment *models.Comment) error {
	if actor.ID == "" {
		return appErrors.ErrUnauthorized
	}
	if comment == nil {
		return appErrors.ErrNotFound
	}
	if actor.IsAdmin() || comment.UserID == actor.ID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "only the author can edit this comment")
}

// CanDeleteComment allows the author, an admin or the uploader of the
// commented resource.
func (p *Policy) CanDeleteComment(actor models.Actor, comment *models.Comment, res *models.Resource) error {
	if actor.ID == "" {
		return appErrors.ErrUnauthorized
	}
	if comment == nil {
		return appErrors.ErrNotFound
	}
	if actor.IsAdmin() || comment.UserID == actor.ID || res.IsUploadedBy(actor.ID) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not allowed to delete this comment")
}

// canModerate encodes who may approve or reject: the assigned supervisor, a
// supervisor of the same department for final projects, and any supervisor
// for mini projects. Admins are handled by the caller.
func canModerate(actor models.Actor, res *models.Resource) bool {
	if actor.Role != models.RoleSupervisor {
		return false
	}
	if res.IsSupervisedBy(actor.ID) {
		return true
	}
	switch res.Type {
	case models.ResourceTypeFinalProject:
		return models.SameDepartment(actor.Department, res.Department)
	case models.ResourceTypeMiniProject:
		return true
	}
	return false
}

func isOwner(actor models.Actor, res *models.Resource) bool {
	return res.IsUploadedBy(actor.ID) || res.IsStudent(actor.ID) || res.IsSupervisedBy(actor.ID)
}

func forbiddenMessage(action Action) string {
	switch action {
	case ActionModerate:
		return "not allowed to change the status of this resource"
	case ActionUpdate:
		return "only the uploader can edit this resource"
	case ActionDelete:
		return "only the uploader can delete this resource"
	case ActionViewAccessLogs:
		return "only the uploader can view access logs"
	}
	return "resource is not available"
}
