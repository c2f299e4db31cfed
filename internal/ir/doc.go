// Package ir provides the shared data model for hrsync: entity values,
// collections, candidate timelines, assessments, the store snapshot, the
// error taxonomy and canonical hashing.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types in entity attributes; use int64 for numbers
//   - Entities serialize as flat objects with the id merged into the attributes
//   - Canonical JSON (RFC 8785) backs fingerprints and golden traces
package ir
