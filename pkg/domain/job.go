package domain

import (
	"encoding/json"
	"time"
)

// JobStatus represents the state of a publish job
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusBuilding JobStatus = "building"
	JobStatusFailed   JobStatus = "failed"
	JobStatusComplete JobStatus = "complete"
)

// IsTerminal reports whether no further transitions can happen
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusFailed || s == JobStatusComplete
}

// JobStep records how far a job progressed. It is advisory and does not gate transitions.
type JobStep string

const (
	JobStepValidate JobStep = "validate"
	JobStepBundle   JobStep = "bundle"
	JobStepSave     JobStep = "save"
	JobStepSync     JobStep = "sync"
)

// Visibility of published content
type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPublic   Visibility = "public"
)

// PublishOptions are caller supplied overrides for a publish attempt.
// A nil Tags slice means "not specified"; an empty one clears the tags.
type PublishOptions struct {
	Visibility Visibility `json:"visibility,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	AgeRating  string     `json:"age_rating,omitempty"`
	Changelog  string     `json:"changelog,omitempty"`
}

// PublishJob is one attempt to publish a project
type PublishJob struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"project_id"`
	VersionID      *string         `json:"version_id"`
	RequestedBy    string          `json:"requested_by"`
	Options        PublishOptions  `json:"options"`
	Status         JobStatus       `json:"status"`
	Step           JobStep         `json:"step"`
	BundleJSON     json.RawMessage `json:"bundle_json,omitempty"`
	EmergentSyncID *string         `json:"emergent_sync_id"`
	Error          *string         `json:"error"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at"`
}

// JobPatch is a partial job update; nil fields are left untouched
type JobPatch struct {
	Status         *JobStatus
	Step           *JobStep
	BundleJSON     json.RawMessage
	EmergentSyncID *string
	Error          *string
	CompletedAt    *time.Time
}

// Apply copies the set fields of the patch onto job
func (p JobPatch) Apply(job *PublishJob, now time.Time) {
	if p.Status != nil {
		job.Status = *p.Status
	}
	if p.Step != nil {
		job.Step = *p.Step
	}
	if p.BundleJSON != nil {
		job.BundleJSON = append(json.RawMessage(nil), p.BundleJSON...)
	}
	if p.EmergentSyncID != nil {
		id := *p.EmergentSyncID
		job.EmergentSyncID = &id
	}
	if p.Error != nil {
		msg := *p.Error
		job.Error = &msg
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		job.CompletedAt = &t
	}
	job.UpdatedAt = now
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
