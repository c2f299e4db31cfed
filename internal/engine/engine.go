package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/hrsync/internal/store"
	"github.com/roach88/hrsync/internal/transport"
)

// Engine is the mutation service: a single-writer event loop in front of the
// durable store.
//
// Each operation runs its transport phase (latency, failure injection) on the
// caller's goroutine, then hands the state change to the Run loop, which
// applies requests one at a time through store.Update.
//
// Thread-safety model:
//   - operations (CreateEntity, Reorder, List, ...): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// Mutations block until Run applies them, so Run (or Start) must be running
// before any mutation is issued.
type Engine struct {
	store  *store.Store
	sim    *transport.Simulator
	queue  *requestQueue
	clock  *Clock
	ids    IDGenerator
	now    TimeSource
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator sets the id source for created entities and events.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithTimeSource sets the clock used for createdAt, appliedAt and event
// timestamps.
func WithTimeSource(ts TimeSource) Option {
	return func(e *Engine) {
		if ts != nil {
			e.now = ts
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine over s, with every call routed through sim.
func New(s *store.Store, sim *transport.Simulator, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		sim:    sim,
		queue:  newRequestQueue(),
		clock:  NewClock(),
		ids:    UUIDv7Generator{},
		now:    SystemTime{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the underlying store.
func (e *Engine) Store() *store.Store { return e.store }

// Applied returns the number of mutations the Run loop has committed.
func (e *Engine) Applied() int64 { return e.clock.Current() }

// Run starts the single-writer loop.
// Blocks until ctx is cancelled or Stop() is called. Requests still queued
// at shutdown fail with ErrStopped.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	for {
		if r, ok := e.queue.TryDequeue(); ok {
			e.process(r)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.drain()
			return ctx.Err()

		case <-e.queue.Wait():
			// Fires on new requests and, once closed, on every receive.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Start runs the loop on a new goroutine. The returned function stops the
// loop and waits for it to exit.
func (e *Engine) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	return func() {
		e.Stop()
		cancel()
		<-done
	}
}

// Stop stops accepting mutations. Queued requests fail with ErrStopped.
func (e *Engine) Stop() {
	e.drain()
}

func (e *Engine) drain() {
	for _, r := range e.queue.Close() {
		r.done <- ErrStopped
	}
}

// process applies one request.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) process(r *request) {
	// A request whose context ended while queued is dropped unapplied.
	if err := r.ctx.Err(); err != nil {
		e.logger.Debug("mutation abandoned", "op", r.op, "error", err)
		r.done <- fmt.Errorf("%s: %w", r.op, err)
		return
	}
	// Once started, the change and its persist run to completion.
	err := e.store.Update(context.WithoutCancel(r.ctx), r.apply)
	if err != nil {
		e.logger.Debug("mutation rejected", "op", r.op, "error", err)
		r.done <- err
		return
	}
	seq := e.clock.Next()
	e.logger.Debug("mutation applied", "op", r.op, "seq", seq, "revision", e.store.Revision())
	r.done <- nil
}

// submit hands apply to the Run loop and waits for the outcome.
// The returned error always matches what happened to the store: ctx.Err()
// means the request was dropped before it was applied, nil means it was
// applied and persisted.
func (e *Engine) submit(ctx context.Context, op string, apply func(*store.Tx) error) error {
	r := &request{
		op:    op,
		ctx:   ctx,
		apply: apply,
		done:  make(chan error, 1),
	}
	if !e.queue.Enqueue(r) {
		return ErrStopped
	}
	// Bounded by one apply and persist; process checks ctx before starting.
	return <-r.done
}
