package optimistic

import (
	"slices"

	"github.com/roach88/hrsync/internal/ir"
	"github.com/roach88/hrsync/internal/query"
)

// View is the controller's published state for one query.
type View struct {
	Query    query.Query `json:"query"`
	Items    []ir.Entity `json:"items"`
	Total    int         `json:"total"`
	Revision int64       `json:"revision"`
}

// viewOf builds a view from a fetched page.
func viewOf(q query.Query, page query.Page) View {
	return View{
		Query:    q,
		Items:    ir.CloneEntities(page.Items),
		Total:    page.Total,
		Revision: page.Revision,
	}
}

// Clone returns a deep copy.
func (v View) Clone() View {
	out := v
	out.Items = ir.CloneEntities(v.Items)
	return out
}

// IDs returns the item ids in view order.
func (v View) IDs() []string {
	out := make([]string, len(v.Items))
	for i, e := range v.Items {
		out[i] = e.ID
	}
	return out
}

// Index returns the position of id in the view, or -1.
func (v View) Index(id string) int {
	return slices.IndexFunc(v.Items, func(e ir.Entity) bool { return e.ID == id })
}

// Fingerprint hashes the view's items; equal fingerprints mean the same
// items with the same attributes in the same order.
func (v View) Fingerprint() (string, error) {
	return ir.ViewFingerprint(v.Items)
}

// spliced returns a copy of v with the item at from moved to to. The moved
// items' order values are reassigned from the sorted multiset of the values
// they held, so the visible page stays consistently numbered.
func (v View) spliced(from, to int) View {
	out := v.Clone()
	moved := out.Items[from]
	out.Items = slices.Delete(out.Items, from, from+1)
	out.Items = slices.Insert(out.Items, to, moved)

	orders := make([]int64, 0, len(out.Items))
	for _, e := range out.Items {
		if o, ok := e.Order(); ok {
			orders = append(orders, o)
		}
	}
	if len(orders) != len(out.Items) {
		return out
	}
	slices.Sort(orders)
	for i := range out.Items {
		out.Items[i] = out.Items[i].WithOrder(orders[i])
	}
	return out
}

// relabeled returns a copy of v with the item at i moved to stage.
func (v View) relabeled(i int, stage ir.Stage) View {
	out := v.Clone()
	out.Items[i].Attrs = out.Items[i].Attrs.Merge(ir.IRObject{ir.AttrStage: ir.IRString(stage)})
	return out
}
