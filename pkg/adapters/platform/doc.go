// Package platform provides adapters that push content bundles to the
// external content platform.
//
// Implementations:
//   - stub: in-process fake used in development and tests
//   - httpapi: JSON over HTTP with an Idempotency-Key header
//   - s3: writes bundles to an S3 compatible bucket
//
// Retrying wraps any adapter and retries only those that declare themselves idempotent.
package platform
