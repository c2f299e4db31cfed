package query

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/hrsync/internal/ir"
)

// Source provides a consistent read of one collection.
// *store.Store satisfies it.
type Source interface {
	View(collection ir.Collection) ([]ir.Entity, int64)
}

// Run compiles q and evaluates it against src.
func Run(src Source, q Query) (Page, error) {
	plan, err := Compile(q)
	if err != nil {
		return Page{}, err
	}
	entities, rev := src.View(plan.Spec.Name)
	page := Evaluate(entities, plan)
	page.Revision = rev
	return page, nil
}

// Evaluate filters, sorts and paginates entities according to plan.
// entities is not modified. Items is never nil.
func Evaluate(entities []ir.Entity, plan Plan) Page {
	m := newMatcher()
	matched := make([]ir.Entity, 0, len(entities))
	for _, e := range entities {
		if m.match(plan.Filter, e) {
			matched = append(matched, e)
		}
	}

	if plan.Spec.Ordered {
		SortByOrder(matched)
	}

	page := Page{
		Items:    []ir.Entity{},
		Total:    len(matched),
		Page:     plan.Page,
		PageSize: plan.PageSize,
	}

	// Guard the multiplication: a huge page number is simply out of range.
	if plan.PageSize <= 0 || plan.Page-1 > len(matched)/plan.PageSize {
		return page
	}
	start := (plan.Page - 1) * plan.PageSize
	if start >= len(matched) {
		return page
	}
	end := min(start+plan.PageSize, len(matched))
	page.Items = ir.CloneEntities(matched[start:end])
	return page
}

// SortByOrder sorts ascending by the order attribute, ties broken by id.
// Entities without an order sort last.
func SortByOrder(entities []ir.Entity) {
	slices.SortStableFunc(entities, func(a, b ir.Entity) int {
		return cmp.Or(
			cmp.Compare(orderOf(a), orderOf(b)),
			strings.Compare(a.ID, b.ID),
		)
	})
}

func orderOf(e ir.Entity) int64 {
	if o, ok := e.Order(); ok {
		return o
	}
	return math.MaxInt64
}

// matcher evaluates predicates. It owns a case folder, which is stateful and
// must not be shared between goroutines.
type matcher struct {
	fold cases.Caser
}

func newMatcher() *matcher {
	return &matcher{fold: cases.Fold()}
}

func (m *matcher) match(p Predicate, e ir.Entity) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case Contains:
		needle := m.fold.String(pred.Needle)
		for _, field := range pred.Fields {
			if strings.Contains(m.fold.String(e.String(field)), needle) {
				return true
			}
		}
		return false
	case Equals:
		return e.String(pred.Field) == pred.Value
	case And:
		for _, sub := range pred.Predicates {
			if !m.match(sub, e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
