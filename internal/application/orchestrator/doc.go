// Package orchestrator runs publish jobs for creative projects.
//
// The manager coordinates a publish by:
//   - Checking preconditions synchronously (options, project status, creator)
//   - Snapshotting the project into a new numbered version
//   - Queueing a job and driving it through validate, bundle, save and sync
//   - Publishing job events to the event bus
//
// A job is claimed before it runs, so the external platform is called at most
// once per job. Retrying a failed publish creates a new job.
package orchestrator
