// Package engine implements the hrsync mutation service.
//
// The engine is the only writer of the durable store. Callers issue
// operations (CreateEntity, UpdateEntity, UpdateStage, Reorder,
// SaveAssessment) from any goroutine; each one pays its simulated network
// cost first and then hands the state change to the Run loop.
//
// ARCHITECTURE:
//
// Transport phase (caller goroutine):
// 1. Pure validation of the request (drafts, reserved attributes)
// 2. transport.Simulator.Do waits the injected delay
// 3. An injected failure returns a TRANSPORT error; nothing was enqueued
//
// Apply phase (Run goroutine, single writer):
// 1. Request dequeued in FIFO order
// 2. store.Update runs the change against a cloned snapshot
// 3. State-dependent checks (entity exists, job exists, positions in range)
// 4. On success the snapshot is persisted and swapped in, revision+1
//
// Network phases of concurrent calls overlap; their apply phases never do.
// A failed call leaves the store exactly as it was.
//
// Reads (List, GetTimeline, GetAssessment) pay latency but are never failed
// by injection. They take the store's read lock and return copies.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Every applied mutation is counted by Clock.Next(); the store revision is
// the durable counterpart. Wall-clock time only stamps attributes and
// timeline events.
//
// Deterministic Tests:
// IDGenerator and TimeSource are injectable so scenarios produce
// byte-identical traces.
package engine
