package optimistic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/hrsync/internal/ir"
	"github.com/roach88/hrsync/internal/query"
)

// DefaultDispatchTimeout bounds one engine call plus its reconciliation.
const DefaultDispatchTimeout = 30 * time.Second

// Service is the engine surface the controller drives.
// Implemented by *engine.Engine.
type Service interface {
	List(ctx context.Context, q query.Query) (query.Page, error)
	Reorder(ctx context.Context, collection ir.Collection, from, to int) ([]ir.Entity, error)
	UpdateStage(ctx context.Context, candidateID string, stage ir.Stage) (ir.Entity, error)
}

// Controller keeps the view of one query in sync with the engine,
// applying intents optimistically.
//
// Thread-safety: intents, Load, Refresh and View are safe from any
// goroutine. Subscribers are called in publish order from the publishing
// goroutine and must not issue intents synchronously.
type Controller struct {
	svc      Service
	query    query.Query
	reporter ErrorReporter
	logger   *slog.Logger
	timeout  time.Duration

	// pubMu serialises publications so subscribers observe views in the
	// order they were accepted.
	pubMu sync.Mutex

	mu      sync.Mutex
	view    View
	subs    map[int]func(View)
	nextSub int

	inflight sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithErrorReporter sets where rollback errors are reported.
func WithErrorReporter(r ErrorReporter) Option {
	return func(c *Controller) {
		if r != nil {
			c.reporter = r
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDispatchTimeout bounds each dispatched call. Non-positive values are
// ignored.
func WithDispatchTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New returns a controller for q. Call Load before issuing intents.
func New(svc Service, q query.Query, opts ...Option) *Controller {
	c := &Controller{
		svc:     svc,
		query:   q,
		logger:  slog.Default(),
		timeout: DefaultDispatchTimeout,
		subs:    make(map[int]func(View)),
		view:    View{Query: q, Items: []ir.Entity{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reporter == nil {
		c.reporter = LogReporter{Logger: c.logger}
	}
	return c
}

// Query returns the query the controller tracks.
func (c *Controller) Query() query.Query { return c.query }

// View returns a copy of the published view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.Clone()
}

// Subscribe registers fn for every published view and returns a function
// that unregisters it.
func (c *Controller) Subscribe(fn func(View)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Load fetches the initial view.
func (c *Controller) Load(ctx context.Context) error {
	return c.fetch(ctx)
}

// Refresh re-fetches the view.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.fetch(ctx)
}

// Wait blocks until every dispatched mutation has settled.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Reorder moves draggedID to targetID's position.
//
// The tentative view is published before Reorder returns; the engine call
// runs in the background. Ids absent from the view fail synchronously with
// a NOT_FOUND error. Dropping an item on itself is a confirmed no-op.
func (c *Controller) Reorder(ctx context.Context, draggedID, targetID string) (*Mutation, error) {
	const op = "reorder"

	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	base := c.view.Clone()
	c.mu.Unlock()

	from, to := base.Index(draggedID), base.Index(targetID)
	if from < 0 {
		return nil, ir.NewNotFoundError(c.query.Collection, draggedID).WithOp(op)
	}
	if to < 0 {
		return nil, ir.NewNotFoundError(c.query.Collection, targetID).WithOp(op)
	}
	if from == to {
		return settledMutation(KindReorder, draggedID, base), nil
	}

	fromOrder, ok1 := base.Items[from].Order()
	toOrder, ok2 := base.Items[to].Order()
	if !ok1 || !ok2 {
		e := ir.NewValidationError(ir.AttrOrder, fmt.Sprintf("%s is not order-bearing", c.query.Collection)).WithOp(op)
		e.Collection = c.query.Collection
		return nil, e
	}

	m := newMutation(KindReorder, draggedID, base, base.spliced(from, to))
	c.publishLocked(m.tentative)
	c.logger.Debug("tentative reorder", "id", draggedID, "from", fromOrder, "to", toOrder)

	collection := c.query.Collection
	c.dispatch(ctx, m, func(ctx context.Context) error {
		_, err := c.svc.Reorder(ctx, collection, int(fromOrder), int(toOrder))
		return err
	})
	return m, nil
}

// MoveStage relabels candidateID with stage locally and dispatches the
// stage transition. Moving to the current stage is a confirmed no-op.
func (c *Controller) MoveStage(ctx context.Context, candidateID string, stage ir.Stage) (*Mutation, error) {
	const op = "moveStage"

	if c.query.Collection != ir.CollectionCandidates {
		e := ir.NewValidationError(ir.AttrStage, fmt.Sprintf("%s have no stage", c.query.Collection)).WithOp(op)
		e.Collection = c.query.Collection
		return nil, e
	}
	if _, err := ir.ParseStage(string(stage)); err != nil {
		if e, ok := err.(*ir.Error); ok {
			return nil, e.WithOp(op)
		}
		return nil, err
	}

	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	base := c.view.Clone()
	c.mu.Unlock()

	i := base.Index(candidateID)
	if i < 0 {
		return nil, ir.NewNotFoundError(ir.CollectionCandidates, candidateID).WithOp(op)
	}
	if base.Items[i].Stage() == stage {
		return settledMutation(KindMoveStage, candidateID, base), nil
	}

	m := newMutation(KindMoveStage, candidateID, base, base.relabeled(i, stage))
	c.publishLocked(m.tentative)
	c.logger.Debug("tentative stage move", "id", candidateID, "from", base.Items[i].Stage(), "to", stage)

	c.dispatch(ctx, m, func(ctx context.Context) error {
		_, err := c.svc.UpdateStage(ctx, candidateID, stage)
		return err
	})
	return m, nil
}

// dispatch runs call on a new goroutine and reconciles the outcome.
// The call is detached from ctx cancellation but bounded by the dispatch
// timeout.
func (c *Controller) dispatch(ctx context.Context, m *Mutation, call func(context.Context) error) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		if err := call(ctx); err != nil {
			c.rollback(ctx, m, err)
			return
		}
		if err := c.fetch(ctx); err != nil {
			// The change is durable; the view catches up on the next fetch.
			c.logger.Warn("refetch after confirm failed", "kind", m.Kind(), "subject", m.Subject(), "error", err)
		}
		c.settle(m, PhaseConfirmed, nil)
	}()
}

// rollback reports err, discards the tentative view and re-syncs. If the
// re-fetch fails the view captured at intent time is restored.
func (c *Controller) rollback(ctx context.Context, m *Mutation, err error) {
	c.reporter.ReportError(m, err)
	if ferr := c.fetch(ctx); ferr != nil {
		c.logger.Warn("refetch after rollback failed, restoring original view",
			"kind", m.Kind(), "subject", m.Subject(), "error", ferr)
		c.pubMu.Lock()
		c.offerLocked(m.original)
		c.pubMu.Unlock()
	}
	c.settle(m, PhaseRolledBack, err)
}

func (c *Controller) settle(m *Mutation, phase Phase, err error) {
	m.settle(phase, err)
	mutationsTotal.WithLabelValues(string(m.Kind()), phase.String()).Inc()
	c.logger.Debug("mutation settled", "kind", m.Kind(), "subject", m.Subject(), "phase", phase.String())
}

// fetch runs the query and offers the result for publication.
func (c *Controller) fetch(ctx context.Context) error {
	page, err := c.svc.List(ctx, c.query)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", c.query.Collection, err)
	}
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	c.offerLocked(viewOf(c.query, page))
	return nil
}

// offerLocked publishes v unless its revision is older than the published
// view's. Caller holds pubMu.
func (c *Controller) offerLocked(v View) bool {
	c.mu.Lock()
	current := c.view.Revision
	c.mu.Unlock()
	if v.Revision < current {
		staleFetchesTotal.Inc()
		c.logger.Debug("stale view dropped", "revision", v.Revision, "published", current)
		return false
	}
	c.publishLocked(v)
	return true
}

// publishLocked installs v and notifies subscribers. Caller holds pubMu.
func (c *Controller) publishLocked(v View) {
	c.mu.Lock()
	c.view = v.Clone()
	subs := make([]func(View), 0, len(c.subs))
	for id := 0; id < c.nextSub; id++ {
		if fn, ok := c.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(v.Clone())
	}
}
