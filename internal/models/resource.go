package models

import "time"

// ResourceType enumerates the kinds of academic artifacts.
type ResourceType string

const (
	ResourceTypePastExam     ResourceType = "past-exam"
	ResourceTypeMiniProject  ResourceType = "mini-project"
	ResourceTypeFinalProject ResourceType = "final-project"
	ResourceTypeThesis       ResourceType = "thesis"
)

// Valid reports whether the type is known.
func (t ResourceType) Valid() bool {
	switch t {
	case ResourceTypePastExam, ResourceTypeMiniProject, ResourceTypeFinalProject, ResourceTypeThesis:
		return true
	}
	return false
}

// ResourceStatus is the moderation state of a resource.
type ResourceStatus string

const (
	ResourceStatusPending  ResourceStatus = "pending"
	ResourceStatusApproved ResourceStatus = "approved"
	ResourceStatusRejected ResourceStatus = "rejected"
)

// Valid reports whether the status is known.
func (s ResourceStatus) Valid() bool {
	switch s {
	case ResourceStatusPending, ResourceStatusApproved, ResourceStatusRejected:
		return true
	}
	return false
}

// Resource is an uploaded academic artifact.
type Resource struct {
	ID              string            `db:"id" json:"id"`
	Title           string            `db:"title" json:"title"`
	Description     string            `db:"description" json:"description"`
	Type            ResourceType      `db:"type" json:"type"`
	Department      string            `db:"department" json:"department"`
	FilePath        string            `db:"file_path" json:"-"`
	FileName        string            `db:"file_name" json:"file_name"`
	MimeType        string            `db:"mime_type" json:"mime_type"`
	SizeBytes       int64             `db:"size_bytes" json:"size_bytes"`
	UploadedBy      *string           `db:"uploaded_by" json:"uploaded_by,omitempty"`
	StudentID       *string           `db:"student_id" json:"student_id,omitempty"`
	SupervisorID    *string           `db:"supervisor_id" json:"supervisor_id,omitempty"`
	Status          ResourceStatus    `db:"status" json:"status"`
	RejectionReason *string           `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ViewCount       int               `db:"view_count" json:"view_count"`
	DownloadCount   int               `db:"download_count" json:"download_count"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
	UploaderName    *string           `db:"uploader_name" json:"uploader_name,omitempty"`
	SupervisorName  *string           `db:"supervisor_name" json:"supervisor_name,omitempty"`
	Metadata        *ResourceMetadata `db:"-" json:"metadata,omitempty"`
}

// IsUploadedBy reports whether userID uploaded the resource.
func (r *Resource) IsUploadedBy(userID string) bool {
	return r != nil && userID != "" && r.UploadedBy != nil && *r.UploadedBy == userID
}

// IsStudent reports whether userID is the resource's student owner.
func (r *Resource) IsStudent(userID string) bool {
	return r != nil && userID != "" && r.StudentID != nil && *r.StudentID == userID
}

// IsSupervisedBy reports whether userID is the assigned supervisor.
func (r *Resource) IsSupervisedBy(userID string) bool {
	return r != nil && userID != "" && r.SupervisorID != nil && *r.SupervisorID == userID
}

// ResourceMetadata is the optional 1:1 descriptive extension of a resource.
type ResourceMetadata struct {
	ResourceID string   `db:"resource_id" json:"-"`
	Year       *int     `db:"year" json:"year,omitempty"`
	Semester   *string  `db:"semester" json:"semester,omitempty"`
	Course     *string  `db:"course" json:"course,omitempty"`
	Tags       []string `db:"-" json:"tags,omitempty"`
}

// Empty reports whether no metadata field is set.
func (m *ResourceMetadata) Empty() bool {
	return m == nil || (m.Year == nil && m.Semester == nil && m.Course == nil && len(m.Tags) == 0)
}

// ResourceFilter captures list filters and the viewer scope.
type ResourceFilter struct {
	Type       ResourceType
	Department string
	Status     ResourceStatus
	Search     string
	Year       *int
	Course     string
	UploadedBy string
	Viewer     Actor
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// ResourceSubmission is the input to supervisor resolution and resource creation.
type ResourceSubmission struct {
	Title          string
	Description    string
	Type           ResourceType
	Department     string
	UploaderID     string
	UploaderRole   UserRole
	StudentID      *string
	SupervisorID   *string
	SupervisorName *string
	Metadata       *ResourceMetadata
}

// ResourceStatusChange carries the columns written by a moderation decision.
type ResourceStatusChange struct {
	ResourceID      string
	Status          ResourceStatus
	RejectionReason *string
	Notification    *Notification
}

// ResourceStats summarizes resource counts for reporting.
type ResourceStats struct {
	Total          int            `json:"total"`
	Pending        int            `json:"pending"`
	Approved       int            `json:"approved"`
	Rejected       int            `json:"rejected"`
	TotalViews     int            `json:"total_views"`
	TotalDownloads int            `json:"total_downloads"`
	ByType         map[string]int `json:"by_type"`
}
