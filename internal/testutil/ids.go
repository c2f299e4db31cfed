package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator generates zero-padded sequential ids: "0001", "0002", ...
//
// This enables deterministic test execution and golden trace comparison.
// The same scenario with a fresh SequenceGenerator produces byte-identical
// entity and event ids. Implements engine.IDGenerator.
//
// Thread-safety: safe for concurrent use.
type SequenceGenerator struct {
	mu   sync.Mutex
	next int
}

// NewSequenceGenerator creates a generator whose first id is start
// (1 when start < 1).
func NewSequenceGenerator(start int) *SequenceGenerator {
	if start < 1 {
		start = 1
	}
	return &SequenceGenerator{next: start}
}

// Generate returns the next id.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("%04d", g.next)
	g.next++
	return id
}
