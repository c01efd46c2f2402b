// Package ports declares the interfaces the publishing pipeline depends on.
// Adapters under pkg/adapters implement them.
package ports

import (
	"context"
	"time"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/bundle"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

// ProjectRepository reads projects and applies revision-guarded updates
type ProjectRepository interface {
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	// UpdateProject returns domain.ErrRevisionConflict when the stored revision moved on
	UpdateProject(ctx context.Context, id string, update domain.ProjectUpdate) (*domain.Project, error)
}

// UserRepository reads creator identities
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// AssetRepository reads project assets
type AssetRepository interface {
	GetProjectAssets(ctx context.Context, projectID string) ([]*domain.Asset, error)
}

// VersionRepository stores immutable project snapshots
type VersionRepository interface {
	// GetLatestProjectVersion returns domain.ErrVersionNotFound when the project has none
	GetLatestProjectVersion(ctx context.Context, projectID string) (*domain.ProjectVersion, error)
	// CreateProjectVersion returns domain.ErrVersionConflict if the number is taken
	CreateProjectVersion(ctx context.Context, version *domain.ProjectVersion) error
	ListProjectVersions(ctx context.Context, projectID string) ([]*domain.ProjectVersion, error)
}

// JobRepository stores publish jobs
type JobRepository interface {
	CreatePublishJob(ctx context.Context, job *domain.PublishJob) error
	GetPublishJob(ctx context.Context, id string) (*domain.PublishJob, error)
	UpdatePublishJob(ctx context.Context, id string, patch domain.JobPatch) (*domain.PublishJob, error)
	// ClaimPublishJob atomically moves a queued job to building/validate.
	// It returns domain.ErrJobNotQueued for any other status.
	ClaimPublishJob(ctx context.Context, id string) (*domain.PublishJob, error)
	ListPublishJobs(ctx context.Context, projectID string) ([]*domain.PublishJob, error)
	HasActivePublishJob(ctx context.Context, projectID string) (bool, error)
}

// Repository is the full set of collaborators the pipeline consumes
type Repository interface {
	ProjectRepository
	UserRepository
	AssetRepository
	VersionRepository
	JobRepository
}

// JobQueue hands job ids from the orchestrator to the worker pool
type JobQueue interface {
	// Enqueue returns domain.ErrQueueFull when the queue is at capacity
	Enqueue(ctx context.Context, jobID string) error
	// Dequeue blocks until a job id is available or ctx is done
	Dequeue(ctx context.Context) (string, error)
	Len(ctx context.Context) (int, error)
}

// Locker serializes work on a key across goroutines or processes
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// EventHandler processes an event delivered by the bus
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes job progress events
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	// Subscribe registers handler until ctx is cancelled
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// SyncRequest carries a validated bundle to the external platform
type SyncRequest struct {
	IdempotencyKey string
	Bundle         *bundle.ContentBundle
}

// SyncResult is what the external platform returned
type SyncResult struct {
	SyncID  string
	Success bool
}

// SyncAdapter pushes bundles to the external content platform.
// It either returns a result or an error; it does not deduplicate calls.
type SyncAdapter interface {
	Sync(ctx context.Context, req SyncRequest) (*SyncResult, error)
}

// IdempotentSyncAdapter is implemented by adapters whose remote side
// deduplicates repeated calls with the same idempotency key
type IdempotentSyncAdapter interface {
	SyncAdapter
	Idempotent() bool
}

// SyncAdapterName returns the adapter's self-reported name, or "unknown"
func SyncAdapterName(adapter SyncAdapter) string {
	if n, ok := adapter.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "unknown"
}

// MetricsCollector records pipeline metrics
type MetricsCollector interface {
	RecordPublishRequest(outcome string)
	RecordJobFinished(status domain.JobStatus, step domain.JobStep, duration time.Duration)
	RecordStepDuration(step domain.JobStep, duration time.Duration)
	RecordSync(adapter string, success bool, duration time.Duration)
	RecordWorkerPoolStatus(idle, busy, stopped int)
	SetQueueDepth(depth int)
	SetActiveJobs(count int)
}
