package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/internal/application/versions"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/bundle"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/ports"
)

// failureWriteTimeout bounds persisting a failed job after its context is gone
const failureWriteTimeout = 10 * time.Second

// Config tunes job execution
type Config struct {
	JobTimeout   time.Duration // bound on a whole job run; 0 disables
	SyncTimeout  time.Duration // bound on one sync adapter call; 0 disables
	SaveRetries  int           // retries after a project revision conflict
	SingleFlight bool          // reject publish while the project has an active job
}

// PublishResult is returned once a job has been accepted
type PublishResult struct {
	JobID         string `json:"job_id"`
	VersionID     string `json:"version_id"`
	VersionNumber int    `json:"version_number"`
}

// Manager coordinates publish jobs
type Manager struct {
	repo      ports.Repository
	versions  *versions.Manager
	queue     ports.JobQueue
	syncer    ports.SyncAdapter
	eventBus  ports.EventBus
	metrics   ports.MetricsCollector
	locker    ports.Locker
	validator *Validator
	logger    *zap.Logger
	cfg       Config

	// Track running jobs
	executions sync.Map // map[string]context.CancelFunc
	active     atomic.Int64

	now func() time.Time
}

// jobRun holds what a single run has produced so far
type jobRun struct {
	job       *domain.PublishJob
	step      domain.JobStep
	bundle    *bundle.ContentBundle
	published bool
	startedAt time.Time
}

// NewManager creates a new orchestrator manager
func NewManager(
	repo ports.Repository,
	versionManager *versions.Manager,
	queue ports.JobQueue,
	syncer ports.SyncAdapter,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	locker ports.Locker,
	validator *Validator,
	logger *zap.Logger,
	cfg Config,
) *Manager {
	return &Manager{
		repo:      repo,
		versions:  versionManager,
		queue:     queue,
		syncer:    syncer,
		eventBus:  eventBus,
		metrics:   metrics,
		locker:    locker,
		validator: validator,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Publish checks preconditions, snapshots the project and queues a publish job.
// Precondition failures return a *domain.PreconditionError and create nothing.
func (m *Manager) Publish(ctx context.Context, projectID, userID string, opts domain.PublishOptions) (*PublishResult, error) {
	if err := m.validator.ValidateOptions(opts); err != nil {
		return nil, m.rejected(projectID, "validate options", "invalid_options", err)
	}

	project, err := m.repo.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return nil, m.rejected(projectID, "load project", "project_not_found", err)
		}
		m.metrics.RecordPublishRequest("error")
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	if ok, err := domain.CanPublish(project.Status); !ok {
		return nil, m.rejected(projectID, "check status", "not_approved", err)
	}

	if _, err := m.repo.GetUser(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, m.rejected(projectID, "load user", "user_not_found", err)
		}
		m.metrics.RecordPublishRequest("error")
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if m.cfg.SingleFlight {
		unlock, err := m.locker.Lock(ctx, "publish:"+projectID)
		if err != nil {
			m.metrics.RecordPublishRequest("error")
			return nil, fmt.Errorf("failed to lock project for publish: %w", err)
		}
		defer unlock()

		active, err := m.repo.HasActivePublishJob(ctx, projectID)
		if err != nil {
			m.metrics.RecordPublishRequest("error")
			return nil, fmt.Errorf("failed to check active jobs: %w", err)
		}
		if active {
			return nil, m.rejected(projectID, "check active jobs", "in_progress", domain.ErrPublishInProgress)
		}
	}

	version, err := m.versions.Snapshot(ctx, projectID, userID, project.Payload, opts.Changelog)
	if err != nil {
		m.metrics.RecordPublishRequest("error")
		return nil, fmt.Errorf("failed to snapshot project: %w", err)
	}

	now := m.now()
	job := &domain.PublishJob{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		VersionID:   domain.Ptr(version.ID),
		RequestedBy: userID,
		Options:     opts,
		Status:      domain.JobStatusQueued,
		Step:        domain.JobStepValidate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := m.repo.CreatePublishJob(ctx, job); err != nil {
		m.metrics.RecordPublishRequest("error")
		return nil, fmt.Errorf("failed to create publish job: %w", err)
	}

	result := &PublishResult{
		JobID:         job.ID,
		VersionID:     version.ID,
		VersionNumber: version.VersionNumber,
	}

	if err := m.queue.Enqueue(ctx, job.ID); err != nil {
		outcome := "enqueue_failed"
		if errors.Is(err, domain.ErrQueueFull) {
			outcome = "queue_full"
		}
		m.metrics.RecordPublishRequest(outcome)

		run := &jobRun{job: job, step: domain.JobStepValidate, startedAt: now}
		m.fail(ctx, run, fmt.Errorf("failed to enqueue job: %w", err))
		return result, fmt.Errorf("failed to enqueue publish job %s: %w", job.ID, err)
	}

	m.publishEvent(ctx, domain.EventTypeJobQueued, job, map[string]interface{}{
		"version_id":     version.ID,
		"version_number": version.VersionNumber,
		"requested_by":   userID,
	})

	m.metrics.RecordPublishRequest("accepted")
	m.logger.Info("publish job queued",
		zap.String("job_id", job.ID),
		zap.String("project_id", projectID),
		zap.String("user_id", userID),
		zap.Int("version_number", version.VersionNumber))

	return result, nil
}

// RunJob executes a queued job through validate, bundle, save and sync.
// A job that already left the queued state is never run again.
func (m *Manager) RunJob(ctx context.Context, jobID string) (err error) {
	job, err := m.repo.ClaimPublishJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotQueued) || errors.Is(err, domain.ErrJobNotFound) {
			m.logger.Warn("skipping publish job",
				zap.String("job_id", jobID),
				zap.Error(err))
			return err
		}
		return fmt.Errorf("failed to claim job: %w", err)
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if m.cfg.JobTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, m.cfg.JobTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	m.executions.Store(jobID, cancel)
	m.metrics.SetActiveJobs(int(m.active.Add(1)))
	defer func() {
		m.executions.Delete(jobID)
		m.metrics.SetActiveJobs(int(m.active.Add(-1)))
	}()

	run := &jobRun{job: job, step: domain.JobStepValidate, startedAt: m.now()}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("publish job panicked",
				zap.String("job_id", jobID),
				zap.String("step", string(run.step)),
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = m.fail(ctx, run, fmt.Errorf("panic: %v", r))
		}
	}()

	m.logger.Info("publish job started",
		zap.String("job_id", jobID),
		zap.String("project_id", job.ProjectID))

	steps := []struct {
		step domain.JobStep
		fn   func(context.Context, *jobRun) error
	}{
		{domain.JobStepValidate, m.validateStep},
		{domain.JobStepBundle, m.bundleStep},
		{domain.JobStepSave, m.saveStep},
		{domain.JobStepSync, m.syncStep},
	}

	for _, s := range steps {
		if err := m.runStep(runCtx, run, s.step, s.fn); err != nil {
			return m.fail(ctx, run, err)
		}
	}

	return m.complete(ctx, run)
}

// runStep records the step on the job before doing its work
func (m *Manager) runStep(ctx context.Context, run *jobRun, step domain.JobStep, fn func(context.Context, *jobRun) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	run.step = step
	if run.job.Step != step {
		job, err := m.repo.UpdatePublishJob(ctx, run.job.ID, domain.JobPatch{Step: domain.Ptr(step)})
		if err != nil {
			return fmt.Errorf("failed to record step: %w", err)
		}
		run.job = job
	}

	m.publishEvent(ctx, domain.EventTypeJobStep, run.job, map[string]interface{}{
		"status": string(domain.JobStatusBuilding),
		"step":   string(step),
	})

	started := time.Now()
	err := fn(ctx, run)
	m.metrics.RecordStepDuration(step, time.Since(started))
	return err
}

// validateStep builds the bundle from current project data and checks it
func (m *Manager) validateStep(ctx context.Context, run *jobRun) error {
	b, err := m.buildBundle(ctx, run.job.ProjectID, run.job.RequestedBy, run.job.Options)
	if err != nil {
		return err
	}

	result := bundle.Validate(b)
	if !result.Valid {
		return errors.New(result.Error())
	}

	run.bundle = b
	return nil
}

// bundleStep stores the validated bundle on the job
func (m *Manager) bundleStep(ctx context.Context, run *jobRun) error {
	data, err := run.bundle.Marshal()
	if err != nil {
		return err
	}

	job, err := m.repo.UpdatePublishJob(ctx, run.job.ID, domain.JobPatch{BundleJSON: data})
	if err != nil {
		return fmt.Errorf("failed to store bundle: %w", err)
	}
	run.job = job
	return nil
}

// saveStep flips the project to published with a revision-guarded update
func (m *Manager) saveStep(ctx context.Context, run *jobRun) error {
	projectID := run.job.ProjectID

	for attempt := 0; ; attempt++ {
		project, err := m.repo.GetProject(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to reload project: %w", err)
		}

		if project.Status == domain.ProjectStatusPublished {
			run.published = true
			return nil
		}
		if ok, err := domain.CanPublish(project.Status); !ok {
			return err
		}

		_, err = m.repo.UpdateProject(ctx, projectID, domain.ProjectUpdate{
			ExpectedRevision: project.Revision,
			Status:           domain.Ptr(domain.ProjectStatusPublished),
		})
		if err == nil {
			run.published = true
			m.logger.Info("project published",
				zap.String("job_id", run.job.ID),
				zap.String("project_id", projectID))
			return nil
		}
		if !errors.Is(err, domain.ErrRevisionConflict) || attempt >= m.cfg.SaveRetries {
			return fmt.Errorf("failed to mark project published: %w", err)
		}

		m.logger.Debug("project revision moved, retrying save",
			zap.String("job_id", run.job.ID),
			zap.String("project_id", projectID),
			zap.Int("attempt", attempt+1))
	}
}

// syncStep pushes the bundle to the external platform. The job id is the
// idempotency key, so a retried call cannot create a second remote record.
func (m *Manager) syncStep(ctx context.Context, run *jobRun) error {
	syncCtx := ctx
	if m.cfg.SyncTimeout > 0 {
		var cancel context.CancelFunc
		syncCtx, cancel = context.WithTimeout(ctx, m.cfg.SyncTimeout)
		defer cancel()
	}

	started := time.Now()
	result, err := m.syncer.Sync(syncCtx, ports.SyncRequest{
		IdempotencyKey: run.job.ID,
		Bundle:         run.bundle,
	})
	success := err == nil && result != nil && result.Success && result.SyncID != ""
	m.metrics.RecordSync(ports.SyncAdapterName(m.syncer), success, time.Since(started))

	if err != nil {
		if errors.Is(syncCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("sync timed out after %s: %w", m.cfg.SyncTimeout, err)
		}
		return err
	}
	if !success {
		return errors.New("platform did not confirm the sync")
	}

	run.job.EmergentSyncID = domain.Ptr(result.SyncID)
	return nil
}

// complete marks the job done
func (m *Manager) complete(ctx context.Context, run *jobRun) error {
	completedAt := m.now()
	job, err := m.repo.UpdatePublishJob(ctx, run.job.ID, domain.JobPatch{
		Status:         domain.Ptr(domain.JobStatusComplete),
		Step:           domain.Ptr(domain.JobStepSync),
		EmergentSyncID: run.job.EmergentSyncID,
		CompletedAt:    &completedAt,
	})
	if err != nil {
		return m.fail(ctx, run, fmt.Errorf("failed to record completion: %w", err))
	}
	run.job = job

	duration := completedAt.Sub(run.startedAt)
	m.metrics.RecordJobFinished(domain.JobStatusComplete, domain.JobStepSync, duration)
	m.publishEvent(ctx, domain.EventTypeJobCompleted, job, map[string]interface{}{
		"status":           string(domain.JobStatusComplete),
		"step":             string(domain.JobStepSync),
		"emergent_sync_id": *job.EmergentSyncID,
	})

	m.logger.Info("publish job completed",
		zap.String("job_id", job.ID),
		zap.String("project_id", job.ProjectID),
		zap.String("emergent_sync_id", *job.EmergentSyncID),
		zap.Duration("duration", duration))

	return nil
}

// fail records the job as failed at its current step. It writes with a
// context detached from cancellation so shutdown still records the outcome.
func (m *Manager) fail(ctx context.Context, run *jobRun, cause error) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	msg := cause.Error()
	if _, err := m.repo.UpdatePublishJob(writeCtx, run.job.ID, domain.JobPatch{
		Status: domain.Ptr(domain.JobStatusFailed),
		Step:   domain.Ptr(run.step),
		Error:  &msg,
	}); err != nil {
		m.logger.Error("failed to record job failure",
			zap.String("job_id", run.job.ID),
			zap.Error(err))
	}

	m.metrics.RecordJobFinished(domain.JobStatusFailed, run.step, m.now().Sub(run.startedAt))
	m.publishEvent(writeCtx, domain.EventTypeJobFailed, run.job, map[string]interface{}{
		"status":            string(domain.JobStatusFailed),
		"step":              string(run.step),
		"error":             msg,
		"project_published": run.published,
	})

	fields := []zap.Field{
		zap.String("job_id", run.job.ID),
		zap.String("project_id", run.job.ProjectID),
		zap.String("step", string(run.step)),
		zap.Error(cause),
	}
	if run.published {
		// Save committed before sync failed; the project stays published.
		fields = append(fields, zap.Bool("project_published", true))
	}
	m.logger.Warn("publish job failed", fields...)

	return &domain.JobError{JobID: run.job.ID, Step: run.step, Err: cause}
}

// GetJob returns a job by id
func (m *Manager) GetJob(ctx context.Context, jobID string) (*domain.PublishJob, error) {
	job, err := m.repo.GetPublishJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs returns a project's jobs, newest first
func (m *Manager) ListJobs(ctx context.Context, projectID string) ([]*domain.PublishJob, error) {
	if _, err := m.repo.GetProject(ctx, projectID); err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	jobs, err := m.repo.ListPublishJobs(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// ListVersions returns a project's versions ordered by number
func (m *Manager) ListVersions(ctx context.Context, projectID string) ([]*domain.ProjectVersion, error) {
	if _, err := m.repo.GetProject(ctx, projectID); err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return m.versions.List(ctx, projectID)
}

// PreviewBundle builds and validates the bundle a publish would produce, without writing anything
func (m *Manager) PreviewBundle(ctx context.Context, projectID, userID string, opts domain.PublishOptions) (*bundle.ContentBundle, bundle.Result, error) {
	if err := m.validator.ValidateOptions(opts); err != nil {
		return nil, bundle.Result{}, &domain.PreconditionError{ProjectID: projectID, Op: "validate options", Err: err}
	}

	b, err := m.buildBundle(ctx, projectID, userID, opts)
	if err != nil {
		return nil, bundle.Result{}, err
	}
	return b, bundle.Validate(b), nil
}

func (m *Manager) buildBundle(ctx context.Context, projectID, userID string, opts domain.PublishOptions) (*bundle.ContentBundle, error) {
	project, err := m.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	user, err := m.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	assets, err := m.repo.GetProjectAssets(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}
	return bundle.BuildAt(project, user, assets, opts, m.now()), nil
}

// ActiveJobs returns the number of jobs currently running
func (m *Manager) ActiveJobs() int {
	return int(m.active.Load())
}

// Shutdown cancels running jobs. Their failures are still recorded.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestrator manager")

	cancelled := 0
	m.executions.Range(func(key, value interface{}) bool {
		value.(context.CancelFunc)()
		cancelled++
		return true
	})

	m.logger.Info("orchestrator manager shut down complete",
		zap.Int("cancelled_jobs", cancelled))
	return nil
}

// rejected records a failed precondition
func (m *Manager) rejected(projectID, op, outcome string, err error) error {
	m.metrics.RecordPublishRequest(outcome)
	m.logger.Info("publish rejected",
		zap.String("project_id", projectID),
		zap.String("check", op),
		zap.Error(err))
	return &domain.PreconditionError{ProjectID: projectID, Op: op, Err: err}
}

func (m *Manager) publishEvent(ctx context.Context, eventType domain.EventType, job *domain.PublishJob, data map[string]interface{}) {
	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		JobID:     job.ID,
		ProjectID: job.ProjectID,
		Timestamp: m.now(),
		Data:      data,
	}

	if err := m.eventBus.Publish(ctx, domain.TopicPublishJobs, event); err != nil {
		m.logger.Error("failed to publish job event",
			zap.String("job_id", job.ID),
			zap.String("type", string(eventType)),
			zap.Error(err))
	}
}

