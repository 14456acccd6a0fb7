package models

import "time"

// Comment is a discussion entry on a resource.
type Comment struct {
	ID         string    `db:"id" json:"id"`
	ResourceID string    `db:"resource_id" json:"resource_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
	AuthorName string    `db:"author_name" json:"author_name"`
	AuthorRole UserRole  `db:"author_role" json:"author_role"`
}

// Bookmark links a user to a saved resource.
type Bookmark struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	ResourceID string    `db:"resource_id" json:"resource_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// BookmarkedResource is a bookmark joined with its resource summary.
type BookmarkedResource struct {
	BookmarkID   string         `db:"bookmark_id" json:"bookmark_id"`
	BookmarkedAt time.Time      `db:"bookmarked_at" json:"bookmarked_at"`
	ResourceID   string         `db:"resource_id" json:"resource_id"`
	Title        string         `db:"title" json:"title"`
	Type         ResourceType   `db:"type" json:"type"`
	Department   string         `db:"department" json:"department"`
	Status       ResourceStatus `db:"status" json:"status"`
}
