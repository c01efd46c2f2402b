// Package workers implements the worker pool that runs publish jobs.
//
// The pool manages a fixed number of goroutines that:
//   - Dequeue publish job ids from the job queue
//   - Hand each id to the orchestrator, which runs the job steps
//   - Recover from panics so one bad job cannot take a worker down
//
// The health monitor tracks worker status and queue depth and records metrics.
package workers
