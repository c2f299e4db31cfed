package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hrsync/internal/ir"
)

func TestRestore_NoSnapshotKeepsSeed(t *testing.T) {
	s := createTestStore(t)
	s.Seed(sampleSnapshot())

	found, err := s.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Len(t, s.Get(ir.CollectionJobs), 2)
	assert.Equal(t, int64(4), s.Revision())
}

func TestPersistRestore_RoundTripAllBackends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backends := map[string]func() Backend{
		"sqlite": func() Backend {
			b, err := OpenSQLite(filepath.Join(dir, "rt.db"))
			require.NoError(t, err)
			return b
		},
		"badger": func() Backend {
			b, err := OpenBadger(filepath.Join(dir, "badger"))
			require.NoError(t, err)
			return b
		},
		"memory": func() Backend { return NewMemoryBackend() },
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			backend := open()
			defer backend.Close()

			writer := New(backend, WithLogger(quietLogger()))
			writer.Seed(sampleSnapshot())
			require.NoError(t, writer.Persist(ctx))

			reader := New(backend, WithLogger(quietLogger()))
			found, err := reader.Restore(ctx)
			require.NoError(t, err)
			require.True(t, found)

			assert.Equal(t, writer.Snapshot(), reader.Snapshot())
			assert.Equal(t, "Backend & Infra", reader.Get(ir.CollectionJobs)[0].String(ir.AttrTitle))
		})
	}
}

func TestRestore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	b1, err := OpenSQLite(path)
	require.NoError(t, err)
	s1 := New(b1, WithLogger(quietLogger()))
	s1.Seed(sampleSnapshot())
	require.NoError(t, s1.Put(ctx, ir.CollectionJobs, job("job-3", "Data", 2)))
	require.NoError(t, s1.Close())

	b2, err := OpenSQLite(path)
	require.NoError(t, err)
	s2 := New(b2, WithLogger(quietLogger()))
	defer s2.Close()

	found, err := s2.Restore(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, s2.Get(ir.CollectionJobs), 3)
	assert.Equal(t, int64(5), s2.Revision())
}

func TestRestore_RejectsChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := New(backend, WithLogger(quietLogger()))
	s.Seed(sampleSnapshot())
	require.NoError(t, s.Persist(ctx))

	rec, found, err := backend.Load(ctx, DefaultKey)
	require.NoError(t, err)
	require.True(t, found)
	rec.Data = []byte(`{"revision":99,"collections":{}}`)
	require.NoError(t, backend.Save(ctx, rec))

	fresh := New(backend, WithLogger(quietLogger()))
	_, err = fresh.Restore(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
	assert.Equal(t, int64(0), fresh.Revision())
}

func TestUpdate_IncrementsRevisionAndPersists(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	s.Seed(sampleSnapshot())

	err := s.Update(ctx, func(tx *Tx) error {
		assert.Equal(t, int64(4), tx.Revision())
		return tx.Put(ir.CollectionJobs, job("job-3", "Data", 2))
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), s.Revision())

	rec, found, err := s.backend.Load(ctx, DefaultKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(5), rec.Revision)
	assert.Equal(t, fixedNow, rec.SavedAt.UTC())
}

func TestUpdate_ErrorLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	s.Seed(sampleSnapshot())
	before := s.Snapshot()

	boom := errors.New("boom")
	err := s.Update(ctx, func(tx *Tx) error {
		tx.List(ir.CollectionJobs)[0].Attrs[ir.AttrTitle] = ir.IRString("mutated")
		tx.AppendEvent("candidate-1", ir.NewApplication("x", ir.StageApplied, fixedNow))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, s.Snapshot())
}

func TestUpdate_PersistFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{Backend: NewMemoryBackend(), fail: true}
	s := New(backend, WithLogger(quietLogger()))
	s.Seed(sampleSnapshot())
	before := s.Snapshot()

	err := s.ReplaceAll(ctx, ir.CollectionJobs, nil)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, before, s.Snapshot())

	backend.fail = false
	require.NoError(t, s.ReplaceAll(ctx, ir.CollectionJobs, nil))
	assert.Empty(t, s.Get(ir.CollectionJobs))
	assert.Equal(t, before.Revision+1, s.Revision())
}

func TestUpdate_CancelledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Update(ctx, func(*Tx) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestPut_UpsertsByID(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	s.Seed(sampleSnapshot())

	require.NoError(t, s.Put(ctx, ir.CollectionJobs, job("job-2", "Frontend Lead", 1)))
	jobs := s.Get(ir.CollectionJobs)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Frontend Lead", jobs[1].String(ir.AttrTitle))

	err := s.Put(ctx, "offices", job("o-1", "HQ", 0))
	assert.True(t, ir.IsValidation(err))
}

func TestGet_ReturnsDeepCopies(t *testing.T) {
	s := createTestStore(t)
	s.Seed(sampleSnapshot())

	jobs := s.Get(ir.CollectionJobs)
	jobs[0].Attrs[ir.AttrTitle] = ir.IRString("changed")

	assert.Equal(t, "Backend & Infra", s.Get(ir.CollectionJobs)[0].String(ir.AttrTitle))
	assert.Empty(t, s.Get("unknown"))
}

func TestEntity(t *testing.T) {
	s := createTestStore(t)
	s.Seed(sampleSnapshot())

	e, ok := s.Entity(ir.CollectionJobs, "job-2")
	require.True(t, ok)
	assert.Equal(t, "job-2", e.ID)

	e.Attrs[ir.AttrTitle] = ir.IRString("changed")
	again, _ := s.Entity(ir.CollectionJobs, "job-2")
	assert.NotEqual(t, "changed", again.String(ir.AttrTitle))

	_, ok = s.Entity(ir.CollectionJobs, "job-9")
	assert.False(t, ok)
}

func TestTimelineAndAssessment(t *testing.T) {
	s := createTestStore(t)
	s.Seed(sampleSnapshot())

	events := s.Timeline("candidate-1")
	require.Len(t, events, 1)
	assert.Nil(t, events[0].From)
	assert.Empty(t, s.Timeline("nobody"))

	a, ok := s.Assessment("job-1")
	require.True(t, ok)
	assert.Equal(t, "Backend screen", a.Title)
	_, ok = s.Assessment("job-2")
	assert.False(t, ok)
}

func TestSQLite_Pragmas(t *testing.T) {
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "pragmas.db"))
	require.NoError(t, err)
	defer b.Close()

	assert.NoError(t, b.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, b.verifyPragma("synchronous", "1"))
	assert.NoError(t, b.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, b.verifyPragma("user_version", "1"))

	var indexes int
	require.NoError(t, b.db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'index' AND sql IS NOT NULL`).Scan(&indexes))
	assert.Zero(t, indexes)
}

func TestSQLite_RefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")
	b, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = b.db.Exec("PRAGMA user_version = 2")
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = OpenSQLite(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestSQLite_OpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 3; i++ {
		b, err := OpenSQLite(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, b.Close())
	}
}

func TestOpenBackend(t *testing.T) {
	b, err := OpenBackend(DriverSQLite, ":memory:")
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	b, err = OpenBackend(DriverMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	_, err = OpenBackend("postgres", "x")
	assert.Error(t, err)
}
