// Package queue provides job queue implementations.
//
// Implementations:
//   - memory: bounded channel, single process
//   - redis: Redis list shared by several publisher instances
package queue
