package domain

import "time"

// EventType identifies a job lifecycle event
type EventType string

const (
	EventTypeJobQueued    EventType = "job.queued"
	EventTypeJobStep      EventType = "job.step"
	EventTypeJobCompleted EventType = "job.completed"
	EventTypeJobFailed    EventType = "job.failed"
)

// TopicPublishJobs carries all publish job events
const TopicPublishJobs = "publish.jobs"

// Event is published on the event bus when a job changes
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	JobID     string                 `json:"job_id"`
	ProjectID string                 `json:"project_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
