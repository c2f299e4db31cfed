package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/hrsync/internal/ir"
)

// Store is the single owner of application state.
//
// One Store is constructed at startup, handed to the engine and query layers,
// and closed at shutdown. All mutation goes through Update.
type Store struct {
	mu      sync.RWMutex
	snap    ir.Snapshot
	backend Backend
	key     string
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithKey sets the blob key the snapshot is persisted under.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTimeSource sets the clock used to stamp saved records.
func WithTimeSource(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a store with an empty snapshot persisted through backend.
// Call Restore or Seed before serving requests.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		snap:    ir.NewSnapshot(),
		backend: backend,
		key:     DefaultKey,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the blob key.
func (s *Store) Key() string { return s.key }

// Close closes the backend.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// Revision returns the logical clock value of the current snapshot.
func (s *Store) Revision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Revision
}

// Snapshot returns a deep copy of the full state.
func (s *Store) Snapshot() ir.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Get returns deep copies of the collection's entities in stored order.
// Unknown collections yield an empty slice.
func (s *Store) Get(collection ir.Collection) []ir.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ir.CloneEntities(s.snap.Collections[collection])
}

// View returns a copy of the collection together with the revision it was
// read at, taken under one lock.
func (s *Store) View(collection ir.Collection) ([]ir.Entity, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ir.CloneEntities(s.snap.Collections[collection]), s.snap.Revision
}

// Entity returns a copy of one entity.
func (s *Store) Entity(collection ir.Collection, id string) (ir.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.snap.Collections[collection] {
		if e.ID == id {
			return e.Clone(), true
		}
	}
	return ir.Entity{}, false
}

// Timeline returns a copy of the candidate's audit trail in occurrence order.
func (s *Store) Timeline(candidateID string) []ir.TimelineEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.snap.CandidateTimelines[candidateID]
	out := make([]ir.TimelineEvent, len(events))
	copy(out, events)
	return out
}

// Assessment returns the job's assessment, if one exists.
func (s *Store) Assessment(jobID string) (ir.Assessment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.snap.Assessments[jobID]
	if !ok {
		return ir.Assessment{}, false
	}
	return a.Clone(), true
}

// Seed replaces in-memory state with snap without persisting it.
func (s *Store) Seed(snap ir.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap.Clone()
	s.logger.Debug("store seeded",
		"revision", snap.Revision,
		"jobs", len(snap.Collections[ir.CollectionJobs]),
		"candidates", len(snap.Collections[ir.CollectionCandidates]))
}

// Update runs fn against a clone of the current state. When fn succeeds the
// revision is incremented, the new snapshot persisted, and only then swapped
// in. Any error, including a persistence failure, leaves state untouched.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	next := s.snap.Clone()
	tx := &Tx{snap: &next}
	if err := fn(tx); err != nil {
		return err
	}
	next.Revision = s.snap.Revision + 1

	if err := s.persistLocked(ctx, next); err != nil {
		return err
	}
	s.snap = next
	return nil
}

// Put upserts entity by id and persists.
func (s *Store) Put(ctx context.Context, collection ir.Collection, entity ir.Entity) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.Put(collection, entity)
	})
}

// ReplaceAll replaces the collection's contents and persists.
func (s *Store) ReplaceAll(ctx context.Context, collection ir.Collection, entities []ir.Entity) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.ReplaceAll(collection, entities)
	})
}

// Persist writes the current snapshot under the store key.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistLocked(ctx, s.snap)
}

func (s *Store) persistLocked(ctx context.Context, snap ir.Snapshot) error {
	data, err := marshalSnapshot(snap)
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	rec := Record{
		Key:      s.key,
		Data:     data,
		Checksum: ir.SnapshotChecksum(data),
		Revision: snap.Revision,
		SavedAt:  s.now(),
	}
	if err := s.backend.Save(ctx, rec); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	s.logger.Debug("snapshot persisted", "key", s.key, "revision", snap.Revision, "bytes", len(data))
	return nil
}

// Restore replaces in-memory state with the persisted snapshot.
// It returns false, leaving state untouched, when nothing is stored under the
// key. Blobs whose checksum does not match are rejected.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	rec, found, err := s.backend.Load(ctx, s.key)
	if err != nil {
		return false, fmt.Errorf("restore: %w", err)
	}
	if !found {
		s.logger.Debug("no snapshot to restore", "key", s.key)
		return false, nil
	}

	if got := ir.SnapshotChecksum(rec.Data); got != rec.Checksum {
		return false, fmt.Errorf("restore: checksum mismatch for key %q (stored %s, computed %s)", s.key, rec.Checksum, got)
	}

	snap, err := unmarshalSnapshot(rec.Data)
	if err != nil {
		return false, fmt.Errorf("restore: %w", err)
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	s.logger.Info("snapshot restored",
		"key", s.key,
		"revision", snap.Revision,
		"saved_at", rec.SavedAt)
	return true, nil
}
