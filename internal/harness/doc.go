// Package harness runs YAML conformance scenarios against the mutation
// service and the optimistic controller.
//
// A scenario seeds an in-memory store, runs a flow of steps through a live
// engine, checks each step's outcome, and evaluates assertions on the trace
// and the final store state. Traces are compared against golden files.
//
// # Scenario Format
//
//	name: reorder_jobs
//	description: "Moving the last job to the top renumbers densely"
//	fixture:
//	  jobs:
//	    - { id: job-1, title: Backend Engineer, status: active }
//	    - { id: job-2, title: Designer, status: active }
//	  candidates:
//	    - { id: candidate-1, name: Ada, email: ada@example.com, jobId: job-1 }
//	flow:
//	  - op: reorder
//	    collection: jobs
//	    from: 1
//	    to: 0
//	    expect: { ids: [job-2, job-1] }
//	  - op: move
//	    id: candidate-1
//	    stage: tech
//	    fail: true
//	assertions:
//	  - type: final_order
//	    collection: jobs
//	    ids: [job-2, job-1]
//	  - type: timeline
//	    id: candidate-1
//	    count: 1
//
// Steps without an expect clause must succeed, except that a step with
// fail: true must fail with TRANSPORT (and, for drag and move intents,
// settle rolled_back).
//
// # Assertion Types
//
//   - trace_contains: a step with the op (and outcome) ran
//   - trace_order: ops appear in the specified order
//   - trace_count: an op appears exactly N times
//   - final_order: a collection's ids sorted by order, orders dense
//   - final_state: a subset of one entity's attributes
//   - timeline: a candidate's event count or stage sequence
//   - revision: the final store revision
//
// # Deterministic Testing
//
// Entity and event ids come from testutil.SequenceGenerator, timestamps from
// testutil.StepClock, and failures from transport.ScriptedPolicy with zero
// latency. The same scenario always yields byte-identical canonical traces.
package harness
