// Package events provides event bus implementations for publish job events.
//
// Implementations:
//   - redis: Redis Streams, fan-out by default or consumer groups when configured
//   - memory: In-memory fan-out for a single process
package events
