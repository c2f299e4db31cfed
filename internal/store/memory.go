package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryBackend keeps records in a process-local map.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]Record)}
}

// Load returns a copy of the record stored under key.
func (b *MemoryBackend) Load(_ context.Context, key string) (Record, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[key]
	if !ok {
		return Record{}, false, nil
	}
	rec.Data = slices.Clone(rec.Data)
	return rec, true, nil
}

// Save stores a copy of rec.
func (b *MemoryBackend) Save(_ context.Context, rec Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec.Data = slices.Clone(rec.Data)
	b.records[rec.Key] = rec
	return nil
}

// Close is a no-op.
func (b *MemoryBackend) Close() error { return nil }
