package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/hrsync/internal/ir"
	"github.com/roach88/hrsync/internal/store"
	"github.com/roach88/hrsync/internal/testutil"
	"github.com/roach88/hrsync/internal/transport"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture holds 3 jobs and 3 candidates, all dense-ordered, candidates at
// stage applied with their initial timeline event.
func fixture() ir.Snapshot {
	snap := ir.NewSnapshot()
	for i := 1; i <= 3; i++ {
		snap.Collections[ir.CollectionJobs] = append(snap.Collections[ir.CollectionJobs],
			ir.NewEntity(fmt.Sprintf("job-%d", i), ir.IRObject{
				ir.AttrTitle:  ir.IRString(fmt.Sprintf("Job %d", i)),
				ir.AttrSlug:   ir.IRString(fmt.Sprintf("job-%d", i)),
				ir.AttrStatus: ir.IRString("active"),
				ir.AttrTags:   ir.Strings(),
				ir.AttrOrder:  ir.IRInt(i - 1),
			}))
		id := fmt.Sprintf("candidate-%d", i)
		snap.Collections[ir.CollectionCandidates] = append(snap.Collections[ir.CollectionCandidates],
			ir.NewEntity(id, ir.IRObject{
				ir.AttrName:  ir.IRString(fmt.Sprintf("Candidate %d", i)),
				ir.AttrEmail: ir.IRString(fmt.Sprintf("c%d@example.com", i)),
				ir.AttrStage: ir.IRString(ir.StageApplied),
				ir.AttrJobID: ir.IRString("job-1"),
				ir.AttrOrder: ir.IRInt(i - 1),
			}))
		snap.CandidateTimelines[id] = []ir.TimelineEvent{
			ir.NewApplication("timeline-"+id+"-0", ir.StageApplied, testutil.Epoch),
		}
	}
	return snap
}

type testEnv struct {
	engine *Engine
	store  *store.Store
	policy *transport.ScriptedPolicy
}

// newTestEnv starts an engine over the fixture with a zero-delay scripted
// policy that succeeds unless told otherwise.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	policy := transport.NewScriptedPolicy(0)
	return newTestEnvWithPolicy(t, policy, policy)
}

func newTestEnvWithPolicy(t *testing.T, p transport.Policy, scripted *transport.ScriptedPolicy) *testEnv {
	t.Helper()
	return newTestEnvWithBackend(t, store.NewMemoryBackend(), p, scripted)
}

func newTestEnvWithBackend(t *testing.T, b store.Backend, p transport.Policy, scripted *transport.ScriptedPolicy, opts ...transport.SimulatorOption) *testEnv {
	t.Helper()
	s := store.New(b, store.WithLogger(quietLogger()))
	s.Seed(fixture())
	sim := transport.NewSimulator(p, append([]transport.SimulatorOption{transport.WithLogger(quietLogger())}, opts...)...)
	e := New(s, sim,
		WithIDGenerator(testutil.NewSequenceGenerator(1)),
		WithTimeSource(testutil.NewStepClock(time.Time{}, 0)),
		WithLogger(quietLogger()))
	stop := e.Start(context.Background())
	t.Cleanup(stop)
	return &testEnv{engine: e, store: s, policy: scripted}
}

// slowBackend delays every Save so a persist can outlive a call timeout.
type slowBackend struct {
	store.Backend
	delay time.Duration
}

func (b slowBackend) Save(ctx context.Context, rec store.Record) error {
	time.Sleep(b.delay)
	return b.Backend.Save(ctx, rec)
}

func ids(entities []ir.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.ID
	}
	return out
}

func orders(entities []ir.Entity) []int64 {
	out := make([]int64, len(entities))
	for i, e := range entities {
		out[i], _ = e.Order()
	}
	return out
}

// irError extracts the structured error or fails the test.
func irError(t *testing.T, err error) *ir.Error {
	t.Helper()
	var e *ir.Error
	require.True(t, errors.As(err, &e), "expected *ir.Error, got %v", err)
	return e
}
