// Package store provides the durable snapshot store for hrsync.
//
// The store holds the complete application state (jobs, candidates,
// assessments and candidate timelines) in memory and persists it as a single
// keyed blob after every successful mutation:
//   - Update: clone, apply, bump revision, persist, swap
//   - Restore: load the blob once at startup, verify its checksum, replace state
//
// # Backends
//
//   - SQLite: snapshots table keyed by store key (WAL, synchronous=NORMAL,
//     busy_timeout=5000)
//   - Badger: one key/value pair per store key
//   - Memory: process-local map for tests and throwaway runs
//
// Reads take a read lock and return deep copies. Writes are serialized by the
// store lock, so a failed mutation or a failed persist never leaves partial
// state behind.
package store
