package optimistic

import (
	"context"
	"sync"
)

// Phase is the state of one optimistic mutation.
type Phase int

const (
	// PhaseIdle: no change applied yet.
	PhaseIdle Phase = iota
	// PhaseTentative: applied locally, engine call in flight.
	PhaseTentative
	// PhaseConfirmed: the engine accepted the change.
	PhaseConfirmed
	// PhaseRolledBack: the engine rejected the change; the view was re-synced.
	PhaseRolledBack
)

// String returns the phase name used in logs and metrics.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseTentative:
		return "tentative"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Settled reports whether p is terminal.
func (p Phase) Settled() bool {
	return p == PhaseConfirmed || p == PhaseRolledBack
}

// Kind names the intent behind a mutation.
type Kind string

const (
	KindReorder   Kind = "reorder"
	KindMoveStage Kind = "move_stage"
)

// Mutation tracks one intent from tentative apply to settlement.
//
// Thread-safety: all methods are safe for concurrent use.
type Mutation struct {
	kind      Kind
	subject   string
	tentative View
	original  View

	mu    sync.Mutex
	phase Phase
	err   error
	done  chan struct{}
}

func newMutation(kind Kind, subject string, original, tentative View) *Mutation {
	return &Mutation{
		kind:      kind,
		subject:   subject,
		original:  original,
		tentative: tentative,
		phase:     PhaseTentative,
		done:      make(chan struct{}),
	}
}

// settledMutation returns a mutation that is already confirmed, for no-op
// intents that need no dispatch.
func settledMutation(kind Kind, subject string, view View) *Mutation {
	m := newMutation(kind, subject, view, view)
	m.settle(PhaseConfirmed, nil)
	return m
}

// Kind returns the intent kind.
func (m *Mutation) Kind() Kind { return m.kind }

// Subject returns the id of the entity the intent acted on.
func (m *Mutation) Subject() string { return m.subject }

// Tentative returns the view published when the intent was issued.
func (m *Mutation) Tentative() View { return m.tentative.Clone() }

// Original returns the view the intent started from.
func (m *Mutation) Original() View { return m.original.Clone() }

// Phase returns the current phase.
func (m *Mutation) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Err returns the error that rolled the mutation back, or nil.
func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Done is closed once the mutation is settled and the view reconciled.
func (m *Mutation) Done() <-chan struct{} { return m.done }

// Wait blocks until the mutation settles and returns its error.
// If ctx ends first, ctx.Err() is returned and the mutation keeps going.
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mutation) settle(phase Phase, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase.Settled() {
		return
	}
	m.phase = phase
	m.err = err
	close(m.done)
}
