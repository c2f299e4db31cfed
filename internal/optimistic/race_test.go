package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hrsync/internal/ir"
	"github.com/roach88/hrsync/internal/query"
)

// gatedService answers List from a channel so tests decide which fetch sees
// which revision. Mutations succeed unless failWith is set.
type gatedService struct {
	pages    chan query.Page
	failWith error
	listErr  error

	mu    sync.Mutex
	lists int
}

func newGatedService() *gatedService {
	return &gatedService{pages: make(chan query.Page, 8)}
}

func (s *gatedService) List(ctx context.Context, _ query.Query) (query.Page, error) {
	s.mu.Lock()
	s.lists++
	listErr := s.listErr
	s.mu.Unlock()
	if listErr != nil {
		return query.Page{}, listErr
	}
	select {
	case p := <-s.pages:
		return p, nil
	case <-ctx.Done():
		return query.Page{}, ctx.Err()
	}
}

func (s *gatedService) Reorder(context.Context, ir.Collection, int, int) ([]ir.Entity, error) {
	return nil, s.failWith
}

func (s *gatedService) UpdateStage(context.Context, string, ir.Stage) (ir.Entity, error) {
	return ir.Entity{}, s.failWith
}

func (s *gatedService) setListErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

func page(revision int64, ids ...string) query.Page {
	items := make([]ir.Entity, len(ids))
	for i, id := range ids {
		items[i] = ir.NewEntity(id, ir.IRObject{
			ir.AttrStage: ir.IRString(ir.StageApplied),
			ir.AttrOrder: ir.IRInt(i),
		})
	}
	return query.Page{Items: items, Total: len(ids), Page: 1, PageSize: 50, Revision: revision}
}

func TestOverlappingReconciliations_NewestRevisionWins(t *testing.T) {
	svc := newGatedService()
	c := New(svc, query.Query{Collection: ir.CollectionCandidates}, WithLogger(quietLogger()))
	ctx := context.Background()

	svc.pages <- page(1, "a", "b", "c")
	require.NoError(t, c.Load(ctx))

	var mu sync.Mutex
	var revisions []int64
	c.Subscribe(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		revisions = append(revisions, v.Revision)
	})

	m1, err := c.Reorder(ctx, "c", "a")
	require.NoError(t, err)
	m2, err := c.Reorder(ctx, "b", "c")
	require.NoError(t, err)

	// Newest first: whichever reconciliation receives revision 2 must not
	// overwrite revision 3.
	svc.pages <- page(3, "b", "c", "a")
	svc.pages <- page(2, "c", "a", "b")

	require.NoError(t, m1.Wait(ctx))
	require.NoError(t, m2.Wait(ctx))
	c.Wait()

	v := c.View()
	assert.Equal(t, int64(3), v.Revision)
	assert.Equal(t, []string{"b", "c", "a"}, v.IDs())

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(revisions); i++ {
		assert.LessOrEqual(t, revisions[i-1], revisions[i], "published revisions never go backwards: %v", revisions)
	}
}

func TestStaleFetchIsDropped(t *testing.T) {
	svc := newGatedService()
	c := New(svc, query.Query{Collection: ir.CollectionCandidates}, WithLogger(quietLogger()))
	ctx := context.Background()

	svc.pages <- page(5, "a", "b")
	require.NoError(t, c.Load(ctx))

	svc.pages <- page(4, "b", "a")
	require.NoError(t, c.Refresh(ctx))

	assert.Equal(t, int64(5), c.View().Revision)
	assert.Equal(t, []string{"a", "b"}, c.View().IDs())
}

func TestRollback_RefetchFailureRestoresOriginal(t *testing.T) {
	svc := newGatedService()
	svc.failWith = errors.New("boom")
	rec := &recorder{}
	c := New(svc, query.Query{Collection: ir.CollectionCandidates},
		WithLogger(quietLogger()), WithErrorReporter(rec))
	ctx := context.Background()

	svc.pages <- page(1, "a", "b", "c")
	require.NoError(t, c.Load(ctx))
	original := c.View()
	svc.setListErr(errors.New("offline"))

	m, err := c.Reorder(ctx, "c", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, c.View().IDs())

	assert.EqualError(t, m.Wait(ctx), "boom")
	assert.Equal(t, PhaseRolledBack, m.Phase())
	assert.Equal(t, original, c.View())
	assert.Len(t, rec.reported(), 1)
}

func TestReorder_OrdersReassignedFromVisibleMultiset(t *testing.T) {
	svc := newGatedService()
	c := New(svc, query.Query{Collection: ir.CollectionCandidates}, WithLogger(quietLogger()))
	ctx := context.Background()

	// Second page of a larger list: orders 10, 11, 12
	p := page(1, "k", "l", "m")
	for i := range p.Items {
		p.Items[i] = p.Items[i].WithOrder(int64(10 + i))
	}
	svc.pages <- p
	require.NoError(t, c.Load(ctx))

	m, err := c.Reorder(ctx, "m", "k")
	require.NoError(t, err)

	tentative := m.Tentative()
	assert.Equal(t, []string{"m", "k", "l"}, tentative.IDs())
	for i, e := range tentative.Items {
		o, _ := e.Order()
		assert.Equal(t, int64(10+i), o)
	}

	svc.pages <- page(2, "m", "k", "l")
	require.NoError(t, m.Wait(ctx))
}
