// Package storage provides ports.Repository implementations for projects,
// creators, assets, version snapshots and publish jobs.
//
// Implementations:
//   - postgres: PostgreSQL through the pgx driver, schema managed by goose
//   - memory: In-memory maps for tests and single-process demos
package storage
