package models

import "time"

// ResourceSummary is a compact resource projection used on dashboards.
type ResourceSummary struct {
	ID            string         `db:"id" json:"id"`
	Title         string         `db:"title" json:"title"`
	Type          ResourceType   `db:"type" json:"type"`
	Department    string         `db:"department" json:"department"`
	Status        ResourceStatus `db:"status" json:"status"`
	ViewCount     int            `db:"view_count" json:"view_count"`
	DownloadCount int            `db:"download_count" json:"download_count"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// StatusCounts aggregates resources by moderation state.
type StatusCounts struct {
	Total    int `db:"total" json:"total"`
	Pending  int `db:"pending" json:"pending"`
	Approved int `db:"approved" json:"approved"`
	Rejected int `db:"rejected" json:"rejected"`
}

// UserCounts aggregates users by role.
type UserCounts struct {
	Total       int `db:"total" json:"total"`
	Students    int `db:"students" json:"students"`
	Supervisors int `db:"supervisors" json:"supervisors"`
	Admins      int `db:"admins" json:"admins"`
	Faculty     int `db:"faculty" json:"faculty"`
	Active      int `db:"active" json:"active"`
}

// Dashboard is the role-based summary served to the UI.
type Dashboard struct {
	Role          UserRole          `json:"role"`
	Resources     StatusCounts      `json:"resources"`
	Users         *UserCounts       `json:"users,omitempty"`
	PendingReview []ResourceSummary `json:"pending_review,omitempty"`
	MyUploads     []ResourceSummary `json:"my_uploads,omitempty"`
	Popular       []ResourceSummary `json:"popular,omitempty"`
	Recent        []ResourceSummary `json:"recent,omitempty"`
	UnreadNotices int               `json:"unread_notifications"`
	BookmarkCount int               `json:"bookmark_count"`
	GeneratedAt   time.Time         `json:"generated_at"`
}
