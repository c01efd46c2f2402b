package domain

import (
	"fmt"
	"time"
)

// ProjectType identifies the kind of creative project
type ProjectType string

const (
	ProjectTypeComic       ProjectType = "comic"
	ProjectTypeTradingCard ProjectType = "trading_card"
	ProjectTypeVisualNovel ProjectType = "visual_novel"
	ProjectTypeCYOA        ProjectType = "cyoa"
	ProjectTypeCover       ProjectType = "cover"
	ProjectTypeMotion      ProjectType = "motion"
)

// ProjectStatus represents the review lifecycle of a project
type ProjectStatus string

const (
	ProjectStatusDraft     ProjectStatus = "draft"
	ProjectStatusReview    ProjectStatus = "review"
	ProjectStatusApproved  ProjectStatus = "approved"
	ProjectStatusPublished ProjectStatus = "published"
	ProjectStatusRejected  ProjectStatus = "rejected"
)

// Project is a creative project as stored by the editing tools.
// Revision is bumped on every update and guards concurrent writers.
type Project struct {
	ID           string         `json:"id"`
	OwnerID      string         `json:"owner_id"`
	Type         ProjectType    `json:"type"`
	Status       ProjectStatus  `json:"status"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Payload      map[string]any `json:"payload"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`
	Revision     int64          `json:"revision"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ProjectUpdate is a partial project update applied only when the stored
// revision still equals ExpectedRevision.
type ProjectUpdate struct {
	ExpectedRevision int64
	Status           *ProjectStatus
}

// CanPublish reports whether a project in the given status may be published.
func CanPublish(status ProjectStatus) (bool, error) {
	switch status {
	case ProjectStatusApproved:
		return true, nil
	case ProjectStatusDraft, ProjectStatusReview:
		return false, fmt.Errorf("%w: project has not been approved yet (status: %s)", ErrProjectNotApproved, status)
	case ProjectStatusPublished:
		return false, fmt.Errorf("%w: project is already published (status: %s)", ErrProjectNotApproved, status)
	case ProjectStatusRejected:
		return false, fmt.Errorf("%w: project was rejected (status: %s)", ErrProjectNotApproved, status)
	default:
		return false, fmt.Errorf("%w: unknown status %s", ErrProjectNotApproved, status)
	}
}

// User is the creator identity attached to a bundle
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Asset is a media file uploaded for a project
type Asset struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	URL          string    `json:"url"`
	Type         string    `json:"type"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProjectVersion is an immutable snapshot of project data.
// VersionNumber is gapless per project and starts at 1.
type ProjectVersion struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"project_id"`
	VersionNumber int            `json:"version_number"`
	CreatedBy     string         `json:"created_by"`
	DataSnapshot  map[string]any `json:"data_snapshot"`
	Changelog     string         `json:"changelog"`
	CreatedAt     time.Time      `json:"created_at"`
}
