// Package lock provides ports.Locker implementations used to serialize
// version numbering per project.
//
// Implementations:
//   - memory: keyed mutex, single process
//   - redis: SET NX PX lease with token-checked release
//
// A PostgreSQL advisory lock lives next to the postgres store.
package lock
