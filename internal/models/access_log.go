package models

import "time"

// AccessAction identifies a read operation against a resource.
type AccessAction string

const (
	AccessActionView     AccessAction = "view"
	AccessActionDownload AccessAction = "download"
	AccessActionPreview  AccessAction = "preview"
)

// Valid reports whether the action is known.
func (a AccessAction) Valid() bool {
	switch a {
	case AccessActionView, AccessActionDownload, AccessActionPreview:
		return true
	}
	return false
}

// CounterColumn returns the resource counter bumped by the action, if any.
func (a AccessAction) CounterColumn() string {
	switch a {
	case AccessActionView:
		return "view_count"
	case AccessActionDownload:
		return "download_count"
	}
	return ""
}

// AccessLog is an immutable record of a read against a resource.
type AccessLog struct {
	ID         string       `db:"id" json:"id"`
	ResourceID string       `db:"resource_id" json:"resource_id"`
	UserID     *string      `db:"user_id" json:"user_id,omitempty"`
	Action     AccessAction `db:"action" json:"action"`
	IPAddress  string       `db:"ip_address" json:"ip_address"`
	UserAgent  string       `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UserName   *string      `db:"user_name" json:"user_name,omitempty"`
}

// AccessRequest describes a single access event.
type AccessRequest struct {
	ResourceID string
	UserID     string
	Action     AccessAction
	IPAddress  string
	UserAgent  string
}
