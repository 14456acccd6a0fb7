package models

import "time"

// NotificationType classifies system generated notifications.
type NotificationType string

const (
	NotificationAssignment  NotificationType = "assignment"
	NotificationNewResource NotificationType = "new_resource"
	NotificationApproval    NotificationType = "approval"
	NotificationRejection   NotificationType = "rejection"
	NotificationNewComment  NotificationType = "new_comment"
	NotificationSystem      NotificationType = "system"
)

// Notification is an in-app message owned by a user.
type Notification struct {
	ID         string           `db:"id" json:"id"`
	UserID     string           `db:"user_id" json:"user_id"`
	ResourceID *string          `db:"resource_id" json:"resource_id,omitempty"`
	Type       NotificationType `db:"type" json:"type"`
	Message    string           `db:"message" json:"message"`
	IsRead     bool             `db:"is_read" json:"is_read"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows a user's notification list.
type NotificationFilter struct {
	UnreadOnly bool
	Page       int
	PageSize   int
}

// FanOutResult reports the outcome of an approval broadcast.
type FanOutResult struct {
	Success       bool `json:"success"`
	UsersNotified int  `json:"usersNotified"`
	Batches       int  `json:"batches"`
	FailedBatches int  `json:"failedBatches"`
}
