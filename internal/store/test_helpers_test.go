package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/hrsync/internal/ir"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestStore creates a store backed by a fresh SQLite file.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	backend, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	s := New(backend, WithLogger(quietLogger()), WithTimeSource(func() time.Time { return fixedNow }))
	t.Cleanup(func() { s.Close() })
	return s
}

func job(id, title string, order int64) ir.Entity {
	return ir.NewEntity(id, ir.IRObject{
		ir.AttrTitle:  ir.IRString(title),
		ir.AttrStatus: ir.IRString("active"),
		ir.AttrOrder:  ir.IRInt(order),
		ir.AttrTags:   ir.Strings("remote"),
	})
}

func sampleSnapshot() ir.Snapshot {
	snap := ir.NewSnapshot()
	snap.Collections[ir.CollectionJobs] = []ir.Entity{
		job("job-1", "Backend & Infra", 0),
		job("job-2", "Frontend", 1),
	}
	snap.Collections[ir.CollectionCandidates] = []ir.Entity{
		ir.NewEntity("candidate-1", ir.IRObject{
			ir.AttrName:  ir.IRString("Ada Lovelace"),
			ir.AttrEmail: ir.IRString("ada@example.com"),
			ir.AttrStage: ir.IRString("applied"),
			ir.AttrJobID: ir.IRString("job-1"),
			ir.AttrOrder: ir.IRInt(0),
		}),
	}
	snap.CandidateTimelines["candidate-1"] = []ir.TimelineEvent{
		ir.NewApplication("timeline-candidate-1-0", ir.StageApplied, fixedNow),
	}
	snap.Assessments["job-1"] = ir.Assessment{
		ID: "assessment-1", JobID: "job-1", Title: "Backend screen",
		Sections: []ir.Section{{ID: "s1", Title: "Basics", Questions: []ir.Question{
			{ID: "q1", Type: ir.QuestionShortText, Title: "Favourite language?", Required: true},
		}}},
	}
	snap.Revision = 4
	return snap
}

// failingBackend wraps a backend and fails every Save while fail is set.
type failingBackend struct {
	Backend
	fail bool
}

var errDiskFull = errors.New("disk full")

func (b *failingBackend) Save(ctx context.Context, rec Record) error {
	if b.fail {
		return errDiskFull
	}
	return b.Backend.Save(ctx, rec)
}
