// Package websocket provides real-time publish job progress via WebSocket.
//
// Clients connect to /api/v1/jobs/:id/ws. The first message is a job.snapshot
// with the job's current status; job.step, job.completed and job.failed events
// follow, and the server closes the stream once the job reaches a final state.
package websocket
