package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hrsync/internal/ir"
)

func newTestSimulator(p Policy, opts ...SimulatorOption) *Simulator {
	opts = append([]SimulatorOption{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewSimulator(p, opts...)
}

func TestDo_InjectedFailureNeverCallsFn(t *testing.T) {
	sim := newTestSimulator(NewScriptedPolicy(0, true))

	called := false
	err := sim.Do(context.Background(), ReorderOp("reorderJobs"), func(context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.True(t, ir.IsTransport(err))
	assert.True(t, ir.IsRetryable(err))
	assert.False(t, called)

	var e *ir.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "reorderJobs", e.Op)
}

func TestDo_ScriptConsumedByMutatingOpsOnly(t *testing.T) {
	policy := NewScriptedPolicy(0, false, true)
	sim := newTestSimulator(policy)
	ctx := context.Background()
	noop := func(context.Context) error { return nil }

	require.NoError(t, sim.Do(ctx, ReadOp("getJobs"), noop))
	assert.Equal(t, 2, policy.Remaining(), "reads must not consume outcomes")

	require.NoError(t, sim.Do(ctx, WriteOp("createJob"), noop))
	assert.True(t, ir.IsTransport(sim.Do(ctx, WriteOp("updateJob"), noop)))
	require.NoError(t, sim.Do(ctx, WriteOp("updateJob"), noop), "exhausted script succeeds")

	assert.Equal(t, []Op{WriteOp("createJob"), WriteOp("updateJob"), WriteOp("updateJob")}, policy.Calls())
}

func TestDo_ReadsNeverFail(t *testing.T) {
	sim := newTestSimulator(NewRandomPolicy(RandomConfig{WriteFail: 1, ReorderFail: 1, Seed: 3}))
	for range 50 {
		require.NoError(t, sim.Do(context.Background(), ReadOp("getCandidates"), func(context.Context) error { return nil }))
	}
}

func TestDo_PropagatesFnError(t *testing.T) {
	sim := newTestSimulator(NewScriptedPolicy(0))
	notFound := ir.NewNotFoundError(ir.CollectionJobs, "job-x")

	err := sim.Do(context.Background(), WriteOp("updateJob"), func(context.Context) error { return notFound })
	assert.Same(t, notFound, err)
	assert.True(t, errors.Is(err, notFound))
}

func TestDo_CancelDuringDelay(t *testing.T) {
	sim := newTestSimulator(NewScriptedPolicy(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- sim.Do(ctx, WriteOp("createJob"), func(context.Context) error {
			t.Error("fn must not run")
			return nil
		})
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, ir.IsTransport(err))
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestDo_TimeoutIsTransportError(t *testing.T) {
	sim := newTestSimulator(NewScriptedPolicy(time.Hour), WithTimeout(10*time.Millisecond))

	err := sim.Do(context.Background(), ReadOp("getJobs"), func(context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, ir.IsTransport(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_WorkFinishingAfterTimeoutReportsItsResult(t *testing.T) {
	sim := newTestSimulator(NewScriptedPolicy(0), WithTimeout(10*time.Millisecond))

	applied := false
	err := sim.Do(context.Background(), WriteOp("updateStage"), func(ctx context.Context) error {
		<-ctx.Done()
		applied = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, applied)

	boom := errors.New("disk full")
	err = sim.Do(context.Background(), WriteOp("updateStage"), func(ctx context.Context) error {
		<-ctx.Done()
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, ir.IsTransport(err))
}

func TestCall_ReturnsValue(t *testing.T) {
	sim := newTestSimulator(NewScriptedPolicy(time.Millisecond))
	n, err := Call(context.Background(), sim, ReadOp("count"), func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	sim = newTestSimulator(NewScriptedPolicy(0, true))
	n, err = Call(context.Background(), sim, WriteOp("count"), func(context.Context) (int, error) { return 42, nil })
	assert.True(t, ir.IsTransport(err))
	assert.Zero(t, n)
}

func TestRandomPolicy_DelayWithinBounds(t *testing.T) {
	p := NewRandomPolicy(RandomConfig{MinDelay: 200 * time.Millisecond, MaxDelay: 1200 * time.Millisecond, Seed: 42})
	for range 1000 {
		d := p.Delay(ReadOp("x"))
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}

	fixed := NewRandomPolicy(RandomConfig{MinDelay: time.Second, MaxDelay: 0})
	assert.Equal(t, time.Second, fixed.Delay(ReadOp("x")))
}

func TestRandomPolicy_FailureRates(t *testing.T) {
	p := NewRandomPolicy(RandomConfig{WriteFail: DefaultWriteFail, ReorderFail: DefaultReorderFail, Seed: 7})

	const n = 20000
	var writes, reorders int
	for range n {
		if p.Fail(WriteOp("w")) {
			writes++
		}
		if p.Fail(ReorderOp("r")) {
			reorders++
		}
		assert.False(t, p.Fail(ReadOp("r")))
	}
	assert.InDelta(t, DefaultWriteFail, float64(writes)/n, 0.01)
	assert.InDelta(t, DefaultReorderFail, float64(reorders)/n, 0.01)
}

func TestRandomPolicy_SeedReproducible(t *testing.T) {
	a := NewRandomPolicy(RandomConfig{MinDelay: 0, MaxDelay: time.Second, WriteFail: 0.5, Seed: 9})
	b := NewRandomPolicy(RandomConfig{MinDelay: 0, MaxDelay: time.Second, WriteFail: 0.5, Seed: 9})
	for range 100 {
		assert.Equal(t, a.Delay(ReadOp("x")), b.Delay(ReadOp("x")))
		assert.Equal(t, a.Fail(WriteOp("x")), b.Fail(WriteOp("x")))
	}
}

func TestKind(t *testing.T) {
	assert.False(t, Read.Mutating())
	assert.True(t, Write.Mutating())
	assert.True(t, Reorder.Mutating())
	assert.Equal(t, "reorder", Reorder.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
