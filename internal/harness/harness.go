package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/hrsync/internal/engine"
	"github.com/roach88/hrsync/internal/ir"
	"github.com/roach88/hrsync/internal/optimistic"
	"github.com/roach88/hrsync/internal/query"
	"github.com/roach88/hrsync/internal/store"
	"github.com/roach88/hrsync/internal/testutil"
	"github.com/roach88/hrsync/internal/transport"
)

// Harness executes scenario steps against a live engine with deterministic
// ids, timestamps and failure injection.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	policy *transport.ScriptedPolicy
	logger *slog.Logger
}

// stepOutcome is what a step produced besides its trace event.
type stepOutcome struct {
	err    error
	phase  string
	entity *ir.Entity
	result map[string]any
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store seeded from its
// fixture. Ids come from a sequence starting at 0001, timestamps from a
// clock starting at testutil.Epoch and stepping one second per reading,
// and the transport has no latency and fails only where a step says so.
// Identical scenarios therefore produce identical traces.
//
// Run returns an error for malformed steps and failing setup steps.
// Unmet expectations and assertions are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	snap, err := buildFixture(scenario.Fixture)
	if err != nil {
		return nil, fmt.Errorf("fixture: %w", err)
	}

	st := store.New(store.NewMemoryBackend(),
		store.WithLogger(logger),
		store.WithTimeSource(func() time.Time { return testutil.Epoch }))
	defer st.Close()
	st.Seed(snap)

	policy := transport.NewScriptedPolicy(0)
	eng := engine.New(st, transport.NewSimulator(policy, transport.WithLogger(logger)),
		engine.WithIDGenerator(testutil.NewSequenceGenerator(1)),
		engine.WithTimeSource(testutil.NewStepClock(testutil.Epoch, time.Second)),
		engine.WithLogger(logger))
	stop := eng.Start(ctx)
	defer stop()

	h := &Harness{store: st, engine: eng, policy: policy, logger: logger}
	result := NewResult()

	for i, step := range scenario.Setup {
		ev, out, err := h.execute(ctx, len(result.Trace)+1, step)
		if err != nil {
			return nil, fmt.Errorf("setup step %d: %w", i, err)
		}
		result.AddTrace(ev)
		if out.err != nil {
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Op, out.err)
		}
	}

	for i, step := range scenario.Flow {
		ev, out, err := h.execute(ctx, len(result.Trace)+1, step)
		if err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i, err)
		}
		result.AddTrace(ev)
		for _, msg := range checkExpect(step, ev, out) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, msg))
		}
	}

	result.Final = st.Snapshot()
	for i, assertion := range scenario.Assertions {
		if err := evaluateAssertion(result, assertion); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return result, nil
}

// execute runs one step and records it.
func (h *Harness) execute(ctx context.Context, n int, step Step) (TraceEvent, stepOutcome, error) {
	args, err := stepArgs(step)
	if err != nil {
		return TraceEvent{}, stepOutcome{}, err
	}

	if step.Fail {
		h.policy.FailNext(1)
	}

	var out stepOutcome
	switch step.Op {
	case OpCreate, OpUpdate, OpUpdateStage:
		out, err = h.write(ctx, step)
	case OpReorder:
		var items []ir.Entity
		items, out.err = h.engine.Reorder(ctx, ir.Collection(step.Collection), *step.From, *step.To)
		if out.err == nil {
			out.result = map[string]any{"ids": entityIDs(items)}
		}
	case OpList:
		var page query.Page
		page, out.err = h.engine.List(ctx, *step.Query)
		if out.err == nil {
			out.result = map[string]any{"ids": entityIDs(page.Items), "total": page.Total}
		}
	case OpTimeline:
		var events []ir.TimelineEvent
		events, out.err = h.engine.GetTimeline(ctx, step.ID)
		if out.err == nil {
			out.result = map[string]any{"count": len(events)}
		}
	case OpGetAssessment:
		var a ir.Assessment
		a, out.err = h.engine.GetAssessment(ctx, step.ID)
		if out.err == nil {
			out.result = assessmentResult(a)
		}
	case OpSaveAssessment:
		out, err = h.saveAssessment(ctx, step)
	case OpDrag, OpMove:
		out, err = h.intent(ctx, step)
	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}
	if err != nil {
		return TraceEvent{}, stepOutcome{}, err
	}

	if step.Fail && h.policy.Remaining() > 0 {
		return TraceEvent{}, stepOutcome{}, fmt.Errorf("%s: injected failure was not consumed (the call never reached the transport)", step.Op)
	}

	h.logger.Debug("step executed", "step", n, "op", step.Op, "error", out.err)

	return TraceEvent{
		Step:     n,
		Op:       step.Op,
		Args:     args,
		Outcome:  outcomeOf(out.err),
		Phase:    out.phase,
		Result:   out.result,
		Revision: h.store.Revision(),
	}, out, nil
}

// write runs the single-entity mutations.
func (h *Harness) write(ctx context.Context, step Step) (stepOutcome, error) {
	var (
		out    stepOutcome
		entity ir.Entity
	)
	switch step.Op {
	case OpCreate, OpUpdate:
		fields, err := ir.ObjectFromGo(step.Fields)
		if err != nil {
			return out, fmt.Errorf("fields: %w", err)
		}
		if step.Op == OpCreate {
			entity, out.err = h.engine.CreateEntity(ctx, ir.Collection(step.Collection), fields)
		} else {
			entity, out.err = h.engine.UpdateEntity(ctx, ir.Collection(step.Collection), step.ID, fields)
		}
	case OpUpdateStage:
		entity, out.err = h.engine.UpdateStage(ctx, step.ID, ir.Stage(step.Stage))
	}
	if out.err != nil {
		return out, nil
	}

	out.entity = &entity
	out.result = map[string]any{"id": entity.ID}
	if step.Op == OpUpdateStage {
		out.result["stage"] = string(entity.Stage())
	}
	return out, nil
}

func (h *Harness) saveAssessment(ctx context.Context, step Step) (stepOutcome, error) {
	var out stepOutcome

	// The document is written in its JSON shape; round-trip it through
	// encoding/json so the struct's json tags apply.
	data, err := json.Marshal(step.Assessment)
	if err != nil {
		return out, fmt.Errorf("assessment: %w", err)
	}
	var a ir.Assessment
	if err := json.Unmarshal(data, &a); err != nil {
		return out, fmt.Errorf("assessment: %w", err)
	}

	saved, err := h.engine.SaveAssessment(ctx, step.ID, a)
	if err != nil {
		out.err = err
		return out, nil
	}
	out.result = assessmentResult(saved)
	return out, nil
}

// intent drives a drag or move through a fresh optimistic controller and
// waits for it to settle.
func (h *Harness) intent(ctx context.Context, step Step) (stepOutcome, error) {
	var out stepOutcome

	q := query.Query{Collection: ir.Collection(step.Collection)}
	if step.Op == OpMove {
		q.Collection = ir.CollectionCandidates
	}
	if step.Query != nil {
		q = *step.Query
	}

	c := optimistic.New(h.engine, q,
		optimistic.WithLogger(h.logger),
		optimistic.WithErrorReporter(optimistic.LogReporter{Logger: h.logger}))
	if err := c.Load(ctx); err != nil {
		return out, fmt.Errorf("load view: %w", err)
	}

	var (
		m   *optimistic.Mutation
		err error
	)
	if step.Op == OpDrag {
		m, err = c.Reorder(ctx, step.ID, step.Target)
	} else {
		m, err = c.MoveStage(ctx, step.ID, ir.Stage(step.Stage))
	}
	if err != nil {
		out.err = err
		return out, nil
	}

	if werr := m.Wait(ctx); werr != nil && ctx.Err() != nil {
		return out, fmt.Errorf("wait for %s: %w", step.Op, werr)
	}
	c.Wait()

	out.err = m.Err()
	out.phase = m.Phase().String()
	out.result = map[string]any{"ids": c.View().IDs()}
	return out, nil
}

// buildFixture turns fixture rows into a revision-0 snapshot.
func buildFixture(f Fixture) (ir.Snapshot, error) {
	snap := ir.NewSnapshot()

	add := func(collection ir.Collection, rows []map[string]any) error {
		for i, row := range rows {
			obj, err := ir.ObjectFromGo(row)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", collection, i, err)
			}
			id := ir.Text(obj[ir.AttrID])
			delete(obj, ir.AttrID)

			if _, ok := obj[ir.AttrOrder]; !ok {
				obj[ir.AttrOrder] = ir.IRInt(i)
			}
			if collection == ir.CollectionCandidates {
				if _, ok := obj[ir.AttrStage]; !ok {
					obj[ir.AttrStage] = ir.IRString(ir.StageApplied)
				}
				stage := ir.Stage(ir.Text(obj[ir.AttrStage]))
				snap.CandidateTimelines[id] = []ir.TimelineEvent{
					ir.NewApplication("seed-"+id, stage, testutil.Epoch),
				}
			}
			snap.Collections[collection] = append(snap.Collections[collection], ir.NewEntity(id, obj))
		}
		return nil
	}

	if err := add(ir.CollectionJobs, f.Jobs); err != nil {
		return ir.Snapshot{}, err
	}
	if err := add(ir.CollectionCandidates, f.Candidates); err != nil {
		return ir.Snapshot{}, err
	}
	return snap, nil
}

// stepArgs renders a step's arguments for the trace. Every value is
// canonical-JSON safe.
func stepArgs(step Step) (map[string]any, error) {
	args := map[string]any{}
	if step.Collection != "" {
		args["collection"] = step.Collection
	}
	if step.ID != "" {
		args["id"] = step.ID
	}
	if step.Target != "" {
		args["target"] = step.Target
	}
	if step.Stage != "" {
		args["stage"] = step.Stage
	}
	if step.From != nil {
		args["from"] = *step.From
	}
	if step.To != nil {
		args["to"] = *step.To
	}
	if len(step.Fields) > 0 {
		obj, err := ir.ObjectFromGo(step.Fields)
		if err != nil {
			return nil, fmt.Errorf("fields: %w", err)
		}
		args["fields"] = obj
	}
	if step.Query != nil {
		args["query"] = queryArgs(*step.Query)
	}
	if step.Assessment != nil {
		obj, err := ir.ObjectFromGo(step.Assessment)
		if err != nil {
			return nil, fmt.Errorf("assessment: %w", err)
		}
		args["assessment"] = obj
	}
	if step.Fail {
		args["fail"] = true
	}
	if len(args) == 0 {
		return nil, nil
	}
	return args, nil
}

func queryArgs(q query.Query) map[string]any {
	out := map[string]any{"collection": string(q.Collection)}
	if q.Text != "" {
		out["text"] = q.Text
	}
	if len(q.Fields) > 0 {
		fields := make(map[string]any, len(q.Fields))
		for k, v := range q.Fields {
			fields[k] = v
		}
		out["fields"] = fields
	}
	if q.Page > 0 {
		out["page"] = q.Page
	}
	if q.PageSize > 0 {
		out["pageSize"] = q.PageSize
	}
	return out
}

func assessmentResult(a ir.Assessment) map[string]any {
	n := 0
	for _, s := range a.Sections {
		n += len(s.Questions)
	}
	return map[string]any{"id": a.ID, "questions": n}
}

func entityIDs(entities []ir.Entity) []string {
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return ids
}

// outcomeOf names a step's outcome: "ok", the error code, or "ERROR" for
// errors outside the structured taxonomy.
func outcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if code := ir.CodeOf(err); code != "" {
		return string(code)
	}
	return OutcomeError
}

// checkExpect compares a step's outcome with its expectation. A step with
// no expect clause must succeed, or fail with TRANSPORT when it injects a
// failure.
func checkExpect(step Step, ev TraceEvent, out stepOutcome) []string {
	var want Expect
	if step.Expect != nil {
		want = *step.Expect
	}
	wantErr := want.Error
	if wantErr == "" && step.Fail {
		wantErr = string(ir.CodeTransport)
	}

	var msgs []string
	switch {
	case out.err == nil && wantErr != "":
		msgs = append(msgs, fmt.Sprintf("expected error %s, got success", wantErr))
	case out.err != nil && wantErr == "":
		msgs = append(msgs, fmt.Sprintf("unexpected error: %v", out.err))
	case out.err != nil && ev.Outcome != wantErr:
		msgs = append(msgs, fmt.Sprintf("expected error %s, got %s (%v)", wantErr, ev.Outcome, out.err))
	}

	if want.Field != "" {
		var e *ir.Error
		if !errors.As(out.err, &e) || e.Field != want.Field {
			msgs = append(msgs, fmt.Sprintf("expected error on field %q, got %v", want.Field, out.err))
		}
	}

	if ev.Phase != "" {
		wantPhase := want.Phase
		if wantPhase == "" {
			wantPhase = optimistic.PhaseConfirmed.String()
			if wantErr != "" {
				wantPhase = optimistic.PhaseRolledBack.String()
			}
		}
		if ev.Phase != wantPhase {
			msgs = append(msgs, fmt.Sprintf("expected phase %s, got %s", wantPhase, ev.Phase))
		}
	}

	if want.IDs != nil {
		got, _ := ev.Result["ids"].([]string)
		if !equalStrings(got, want.IDs) {
			msgs = append(msgs, fmt.Sprintf("expected ids %v, got %v", want.IDs, got))
		}
	}
	if want.Total != nil {
		if got, ok := ev.Result["total"].(int); !ok || got != *want.Total {
			msgs = append(msgs, fmt.Sprintf("expected total %d, got %v", *want.Total, ev.Result["total"]))
		}
	}
	if want.Count != nil {
		got, ok := ev.Result["count"].(int)
		if !ok {
			got, ok = ev.Result["questions"].(int)
		}
		if !ok || got != *want.Count {
			msgs = append(msgs, fmt.Sprintf("expected count %d, got %v", *want.Count, got))
		}
	}
	if len(want.Result) > 0 {
		if out.entity == nil {
			msgs = append(msgs, "expected an entity result, got none")
		} else if err := matchAttrs(*out.entity, want.Result); err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}
