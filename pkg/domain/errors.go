package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProjectNotFound indicates a project was not found
	ErrProjectNotFound = errors.New("project not found")

	// ErrUserNotFound indicates a user was not found
	ErrUserNotFound = errors.New("user not found")

	// ErrProjectNotApproved indicates the project status does not allow publishing
	ErrProjectNotApproved = errors.New("project must be approved before publishing")

	// ErrPublishInProgress indicates another publish job for the project is still active
	ErrPublishInProgress = errors.New("a publish job is already in progress for this project")

	// ErrInvalidOptions indicates the publish options are malformed
	ErrInvalidOptions = errors.New("invalid publish options")

	// ErrJobNotFound indicates a publish job was not found
	ErrJobNotFound = errors.New("publish job not found")

	// ErrJobNotQueued indicates a job cannot be started because it left the queued state
	ErrJobNotQueued = errors.New("publish job is not queued")

	// ErrVersionNotFound indicates a project has no version snapshots
	ErrVersionNotFound = errors.New("project version not found")

	// ErrRevisionConflict indicates a concurrent writer changed the project first
	ErrRevisionConflict = errors.New("project revision conflict")

	// ErrVersionConflict indicates the version number was already taken
	ErrVersionConflict = errors.New("project version number already exists")

	// ErrQueueFull indicates the job queue cannot accept more work
	ErrQueueFull = errors.New("job queue is full")

	// ErrQueueClosed indicates the job queue was closed
	ErrQueueClosed = errors.New("job queue is closed")
)

// PreconditionError is returned synchronously by publish before any job exists
type PreconditionError struct {
	ProjectID string
	Op        string
	Err       error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("publish precondition %s failed for project %s: %v", e.Op, e.ProjectID, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// JobError describes a failure inside a publish job step
type JobError struct {
	JobID string
	Step  JobStep
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("publish job %s failed at step %s: %v", e.JobID, e.Step, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}
