// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Publishing approved projects and previewing their bundles
//   - Publish job, bundle and version queries
//   - Health checks
//   - Prometheus metrics
package http
