package optimistic

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hrsync/internal/engine"
	"github.com/roach88/hrsync/internal/ir"
	"github.com/roach88/hrsync/internal/query"
	"github.com/roach88/hrsync/internal/store"
	"github.com/roach88/hrsync/internal/testutil"
	"github.com/roach88/hrsync/internal/transport"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder captures reported errors.
type recorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *recorder) ReportError(_ *Mutation, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) reported() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// candidates builds n candidates at stage applied, ordered 0..n-1.
func candidates(n int) ir.Snapshot {
	snap := ir.NewSnapshot()
	snap.Collections[ir.CollectionJobs] = []ir.Entity{
		ir.NewEntity("job-1", ir.IRObject{
			ir.AttrTitle: ir.IRString("Job 1"), ir.AttrStatus: ir.IRString("active"), ir.AttrOrder: ir.IRInt(0),
		}),
	}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("candidate-%d", i)
		snap.Collections[ir.CollectionCandidates] = append(snap.Collections[ir.CollectionCandidates],
			ir.NewEntity(id, ir.IRObject{
				ir.AttrName:  ir.IRString(fmt.Sprintf("Candidate %d", i)),
				ir.AttrEmail: ir.IRString(fmt.Sprintf("c%d@example.com", i)),
				ir.AttrStage: ir.IRString(ir.StageApplied),
				ir.AttrJobID: ir.IRString("job-1"),
				ir.AttrOrder: ir.IRInt(i - 1),
			}))
		snap.CandidateTimelines[id] = []ir.TimelineEvent{ir.NewApplication("t-"+id, ir.StageApplied, testutil.Epoch)}
	}
	return snap
}

type testEnv struct {
	engine     *engine.Engine
	store      *store.Store
	policy     *transport.ScriptedPolicy
	controller *Controller
	reporter   *recorder
}

func newTestEnv(t *testing.T, delay time.Duration) *testEnv {
	t.Helper()
	s := store.New(store.NewMemoryBackend(), store.WithLogger(quietLogger()))
	s.Seed(candidates(3))
	policy := transport.NewScriptedPolicy(delay)
	sim := transport.NewSimulator(policy, transport.WithLogger(quietLogger()))
	e := engine.New(s, sim,
		engine.WithIDGenerator(testutil.NewSequenceGenerator(1)),
		engine.WithTimeSource(testutil.NewStepClock(time.Time{}, 0)),
		engine.WithLogger(quietLogger()))
	stop := e.Start(context.Background())
	t.Cleanup(stop)

	rec := &recorder{}
	c := New(e, query.Query{Collection: ir.CollectionCandidates},
		WithErrorReporter(rec), WithLogger(quietLogger()))
	require.NoError(t, c.Load(context.Background()))
	t.Cleanup(c.Wait)
	return &testEnv{engine: e, store: s, policy: policy, controller: c, reporter: rec}
}

func (env *testEnv) fresh(t *testing.T) View {
	t.Helper()
	page, err := env.engine.List(context.Background(), env.controller.Query())
	require.NoError(t, err)
	return viewOf(env.controller.Query(), page)
}

func TestLoad(t *testing.T) {
	env := newTestEnv(t, 0)
	v := env.controller.View()
	assert.Equal(t, []string{"candidate-1", "candidate-2", "candidate-3"}, v.IDs())
	assert.Equal(t, 3, v.Total)
	assert.Equal(t, int64(0), v.Revision)
}

func TestReorder_TentativeThenConfirmed(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond)
	ctx := context.Background()

	m, err := env.controller.Reorder(ctx, "candidate-3", "candidate-1")
	require.NoError(t, err)

	// Published synchronously, before the engine call completes
	assert.Equal(t, PhaseTentative, m.Phase())
	tentative := env.controller.View()
	assert.Equal(t, []string{"candidate-3", "candidate-1", "candidate-2"}, tentative.IDs())
	for i, e := range tentative.Items {
		o, _ := e.Order()
		assert.Equal(t, int64(i), o)
	}

	require.NoError(t, m.Wait(ctx))
	assert.Equal(t, PhaseConfirmed, m.Phase())
	assert.Equal(t, env.fresh(t), env.controller.View())
	assert.Equal(t, int64(1), env.controller.View().Revision)
	assert.Empty(t, env.reporter.reported())
}

func TestReorder_RollbackMatchesFreshQuery(t *testing.T) {
	env := newTestEnv(t, 0)
	env.policy.Script(true)
	ctx := context.Background()
	original := env.controller.View()

	m, err := env.controller.Reorder(ctx, "candidate-3", "candidate-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"candidate-3", "candidate-1", "candidate-2"}, m.Tentative().IDs())
	assert.Equal(t, original, m.Original())

	err = m.Wait(ctx)
	require.Error(t, err)
	assert.True(t, ir.IsTransport(err))
	assert.Equal(t, PhaseRolledBack, m.Phase())

	got := env.controller.View()
	assert.Equal(t, env.fresh(t), got)
	assert.Equal(t, original.IDs(), got.IDs())

	reported := env.reporter.reported()
	require.Len(t, reported, 1)
	assert.True(t, ir.IsTransport(reported[0]))
}

func TestReorder_SamePositionIsConfirmedNoop(t *testing.T) {
	env := newTestEnv(t, 0)

	m, err := env.controller.Reorder(context.Background(), "candidate-2", "candidate-2")
	require.NoError(t, err)
	assert.Equal(t, PhaseConfirmed, m.Phase())
	assert.Empty(t, env.policy.Calls())
	select {
	case <-m.Done():
	default:
		t.Fatal("no-op mutation should already be settled")
	}
}

func TestReorder_UnknownIDFailsSynchronously(t *testing.T) {
	env := newTestEnv(t, 0)
	before := env.controller.View()

	_, err := env.controller.Reorder(context.Background(), "candidate-9", "candidate-1")
	assert.True(t, ir.IsNotFound(err))
	_, err = env.controller.Reorder(context.Background(), "candidate-1", "candidate-9")
	assert.True(t, ir.IsNotFound(err))

	assert.Equal(t, before, env.controller.View())
	assert.Empty(t, env.policy.Calls())
}

func TestReorder_NotCancelledWithCaller(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	m, err := env.controller.Reorder(ctx, "candidate-1", "candidate-3")
	require.NoError(t, err)
	cancel()

	require.NoError(t, m.Wait(context.Background()))
	assert.Equal(t, PhaseConfirmed, m.Phase())
	assert.Equal(t, []string{"candidate-2", "candidate-3", "candidate-1"}, env.controller.View().IDs())
}

func TestMoveStage_ConfirmedAppendsEvent(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond)
	ctx := context.Background()

	m, err := env.controller.MoveStage(ctx, "candidate-2", ir.StageTech)
	require.NoError(t, err)
	v := env.controller.View()
	assert.Equal(t, ir.StageTech, v.Items[v.Index("candidate-2")].Stage())

	require.NoError(t, m.Wait(ctx))
	events := env.store.Timeline("candidate-2")
	require.Len(t, events, 2)
	assert.Equal(t, ir.StageApplied, *events[1].From)
	assert.Equal(t, ir.StageTech, events[1].To)
	assert.Equal(t, env.fresh(t), env.controller.View())
}

func TestMoveStage_RollbackRestoresStage(t *testing.T) {
	env := newTestEnv(t, 0)
	env.policy.Script(true)
	ctx := context.Background()

	m, err := env.controller.MoveStage(ctx, "candidate-1", ir.StageHired)
	require.NoError(t, err)
	require.Error(t, m.Wait(ctx))

	assert.Equal(t, PhaseRolledBack, m.Phase())
	v := env.controller.View()
	assert.Equal(t, ir.StageApplied, v.Items[v.Index("candidate-1")].Stage())
	assert.Len(t, env.store.Timeline("candidate-1"), 1)
}

func TestMoveStage_Validation(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()

	_, err := env.controller.MoveStage(ctx, "candidate-1", "interview")
	assert.True(t, ir.IsValidation(err))

	_, err = env.controller.MoveStage(ctx, "candidate-9", ir.StageTech)
	assert.True(t, ir.IsNotFound(err))

	m, err := env.controller.MoveStage(ctx, "candidate-1", ir.StageApplied)
	require.NoError(t, err)
	assert.Equal(t, PhaseConfirmed, m.Phase())
	assert.Empty(t, env.policy.Calls())
}

func TestSubscribe_SeesTentativeThenReconciled(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()

	var mu sync.Mutex
	var seen [][]string
	unsubscribe := env.controller.Subscribe(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, v.IDs())
	})

	m, err := env.controller.Reorder(ctx, "candidate-2", "candidate-1")
	require.NoError(t, err)
	require.NoError(t, m.Wait(ctx))
	unsubscribe()

	require.NoError(t, env.controller.Refresh(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, []string{"candidate-2", "candidate-1", "candidate-3"}, seen[0])
	assert.Equal(t, seen[0], seen[1])
}

func TestOverlappingIntents_BothConfirmed(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	ctx := context.Background()

	m1, err := env.controller.Reorder(ctx, "candidate-3", "candidate-1")
	require.NoError(t, err)
	m2, err := env.controller.MoveStage(ctx, "candidate-2", ir.StageScreen)
	require.NoError(t, err)

	// The second tentative view builds on the first
	assert.Equal(t, []string{"candidate-3", "candidate-1", "candidate-2"}, m2.Tentative().IDs())

	require.NoError(t, m1.Wait(ctx))
	require.NoError(t, m2.Wait(ctx))
	env.controller.Wait()

	assert.Equal(t, env.fresh(t), env.controller.View())
	assert.Equal(t, int64(2), env.controller.View().Revision)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "tentative", PhaseTentative.String())
	assert.Equal(t, "confirmed", PhaseConfirmed.String())
	assert.Equal(t, "rolled_back", PhaseRolledBack.String())
	assert.False(t, PhaseTentative.Settled())
	assert.True(t, PhaseRolledBack.Settled())
}
