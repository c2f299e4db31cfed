// Package transport simulates the unreliable network between the dashboard
// and its backend.
//
// Every call goes through Simulator.Do, which:
//  1. waits a policy-chosen delay (context-aware, never busy-waits)
//  2. for mutating calls, asks the policy whether to fail
//  3. only then runs the call body
//
// A failed call therefore never reaches the store. Reads only ever see
// latency.
//
// Policies:
//   - RandomPolicy: uniform delay, per-kind failure rates, seeded RNG
//   - ScriptedPolicy: fixed delay and a scripted failure sequence for tests
package transport
